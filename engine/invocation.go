package engine

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hupe1980/agentrelay/core"
)

// DefaultInvocationPrefixes are the markers recognized at the start of a message.
var DefaultInvocationPrefixes = []string{"run ", "/run "}

// Invocation is a parsed capability call.
type Invocation struct {
	Name  string
	Input string
}

// ParseInvocation looks for a capability marker at the start of text. The
// match is case-insensitive. It returns ok=false when no marker is present.
// A marker without a capability name is core.ErrMalformedInvocation; the
// argument is optional and keeps its inner whitespace.
func ParseInvocation(text string, prefixes []string) (Invocation, bool, error) {
	trimmed := strings.TrimSpace(text)

	for _, prefix := range prefixes {
		bare := strings.TrimSpace(prefix)
		if bare == "" {
			continue
		}
		n := len(bare)
		if len(trimmed) < n || !strings.EqualFold(trimmed[:n], bare) {
			continue
		}
		rest := trimmed[n:]
		if rest == "" {
			return Invocation{}, true, fmt.Errorf("%w: missing capability name", core.ErrMalformedInvocation)
		}
		// A prefix ending in a space needs a separator, which may be any whitespace.
		if bare != prefix {
			if r, _ := utf8.DecodeRuneInString(rest); !unicode.IsSpace(r) {
				continue
			}
		}

		rest = strings.TrimSpace(rest)
		if rest == "" {
			return Invocation{}, true, fmt.Errorf("%w: missing capability name", core.ErrMalformedInvocation)
		}
		name, input := rest, ""
		if i := strings.IndexFunc(rest, unicode.IsSpace); i >= 0 {
			name, input = rest[:i], strings.TrimSpace(rest[i:])
		}
		return Invocation{Name: strings.ToLower(name), Input: input}, true, nil
	}
	return Invocation{}, false, nil
}
