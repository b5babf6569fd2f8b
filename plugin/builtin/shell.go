package builtin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/plugin"
)

// ShellOptions configures the shell module.
type ShellOptions struct {
	// Shell is the interpreter invoked as `<Shell> -c <command>`.
	Shell string
	// Dir is the working directory. Empty uses the process directory.
	Dir string
	// Env replaces the environment when non-nil.
	Env []string
	// MaxOutput caps the captured combined output in bytes.
	MaxOutput int
	// WaitDelay bounds how long Wait blocks for I/O after the process group
	// was killed.
	WaitDelay time.Duration
}

// Shell runs a command line in a subprocess. The subprocess gets its own
// process group which is killed when the invocation is canceled or times out.
type Shell struct {
	opts ShellOptions
	path string
}

// NewShell creates the shell module.
func NewShell(optFns ...func(o *ShellOptions)) *Shell {
	opts := ShellOptions{
		Shell:     "sh",
		MaxOutput: 64 * 1024,
		WaitDelay: 2 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Shell{opts: opts}
}

// Descriptor implements plugin.Plugin.
func (s *Shell) Descriptor() plugin.Descriptor {
	return plugin.Descriptor{
		Name:        "shell",
		Description: "Run a shell command",
		Metadata: plugin.Metadata{
			Author:   Author,
			Version:  "1.0.0",
			Example:  "run shell echo hello",
			Category: "utility",
		},
	}
}

// Initialize resolves the interpreter.
func (s *Shell) Initialize(context.Context) error {
	path, err := exec.LookPath(s.opts.Shell)
	if err != nil {
		return fmt.Errorf("shell %q not found: %w", s.opts.Shell, err)
	}
	s.path = path
	return nil
}

// Execute runs in.Text. A non-zero exit status is an error carrying the
// captured output.
func (s *Shell) Execute(ctx context.Context, in plugin.Input) (plugin.Output, error) {
	command := strings.TrimSpace(in.Text)
	if command == "" {
		return plugin.Output{}, fmt.Errorf("%w: empty command", core.ErrInvalidArgument)
	}

	cmd := exec.CommandContext(ctx, s.path, "-c", command)
	cmd.Dir = s.opts.Dir
	if s.opts.Env != nil {
		cmd.Env = s.opts.Env
	}
	setProcessGroup(cmd)
	cmd.WaitDelay = s.opts.WaitDelay

	out := &limitedBuffer{max: s.opts.MaxOutput}
	cmd.Stdout = out
	cmd.Stderr = out

	err := cmd.Run()
	text := strings.TrimSpace(out.String())
	if ctxErr := ctx.Err(); ctxErr != nil {
		return plugin.Output{}, ctxErr
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return plugin.Output{}, fmt.Errorf("exit status %d: %s", exitErr.ExitCode(), text)
		}
		return plugin.Output{}, err
	}
	return plugin.Output{Text: text}, nil
}

// Shutdown implements plugin.Plugin.
func (s *Shell) Shutdown(context.Context) error {
	s.path = ""
	return nil
}

// limitedBuffer keeps the first max bytes written and discards the rest.
type limitedBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	max       int
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.max > 0 {
		room := b.max - b.buf.Len()
		if room <= 0 {
			b.truncated = true
			return len(p), nil
		}
		if len(p) > room {
			b.buf.Write(p[:room])
			b.truncated = true
			return len(p), nil
		}
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.truncated {
		return b.buf.String() + "\n[output truncated]"
	}
	return b.buf.String()
}
