package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/model"
	"github.com/hupe1980/agentrelay/plugin"
)

// AskOptions configures the ask module.
type AskOptions struct {
	Name         string
	Model        string
	SystemPrompt string
}

// NewAsk creates a module sending its argument as a single prompt to p,
// bypassing the provider chain and the conversation history.
func NewAsk(p model.Provider, optFns ...func(o *AskOptions)) *plugin.Func {
	opts := AskOptions{Name: "ask"}
	for _, fn := range optFns {
		fn(&opts)
	}

	info := p.Info()
	return plugin.NewFunc(plugin.Descriptor{
		Name:        opts.Name,
		Description: fmt.Sprintf("Ask %s/%s a single question", info.Provider, info.Name),
		Metadata:    plugin.Metadata{Author: Author, Version: "1.0.0", Example: fmt.Sprintf("run %s why is the sky blue?", opts.Name), Category: "model"},
	}, func(ctx context.Context, in plugin.Input) (plugin.Output, error) {
		prompt := strings.TrimSpace(in.Text)
		if prompt == "" {
			return plugin.Output{}, fmt.Errorf("%w: empty prompt", core.ErrInvalidArgument)
		}
		var msgs []core.Message
		if opts.SystemPrompt != "" {
			msgs = append(msgs, core.NewMessage(core.RoleSystem, opts.SystemPrompt))
		}
		msgs = append(msgs, core.NewMessage(core.RoleUser, prompt))

		resp, err := p.Complete(ctx, model.Request{Messages: msgs, Model: opts.Model})
		if err != nil {
			return plugin.Output{}, err
		}
		if strings.TrimSpace(resp.Text) == "" {
			return plugin.Output{}, model.ErrEmptyResponse
		}
		return plugin.Output{Text: resp.Text}, nil
	})
}
