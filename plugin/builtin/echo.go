package builtin

import (
	"context"

	"github.com/hupe1980/agentrelay/plugin"
)

// NewEcho creates a module that replies with its input.
func NewEcho() *plugin.Func {
	return plugin.NewFunc(plugin.Descriptor{
		Name:        "echo",
		Description: "Reply with the given text",
		Metadata:    plugin.Metadata{Author: Author, Version: "1.0.0", Example: "run echo hello"},
	}, func(_ context.Context, in plugin.Input) (plugin.Output, error) {
		return plugin.Output{Text: in.Text}, nil
	})
}
