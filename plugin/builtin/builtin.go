package builtin

import (
	"context"
	"errors"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/memory"
	"github.com/hupe1980/agentrelay/model"
	"github.com/hupe1980/agentrelay/plugin"
)

// Author is the metadata author of the bundled modules.
const Author = "agentrelay"

// MemoryReader is the subset of memory.Manager used by the memory modules.
type MemoryReader interface {
	Read(ctx context.Context, sessionID string, mode memory.Mode, limit int) ([]core.Message, error)
	Audit(ctx context.Context, sessionID string) (memory.AuditReport, error)
}

// Deps carries the optional collaborators of the bundled modules.
type Deps struct {
	Memory MemoryReader
	// Ask is the provider behind the ask module, typically a local model.
	Ask model.Provider
	// Shell configures the shell module. Zero values use the defaults.
	Shell []func(o *ShellOptions)
	// DisableShell skips registration of the shell module.
	DisableShell bool
}

// RegisterDefaults registers every bundled module whose dependencies are
// present in deps.
func RegisterDefaults(reg *plugin.Registry, deps Deps) error {
	mods := []plugin.Plugin{
		NewEcho(),
		NewCalculator(),
		NewPluginMetadata(reg),
	}
	if !deps.DisableShell {
		mods = append(mods, NewShell(deps.Shell...))
	}
	if deps.Memory != nil {
		mods = append(mods, NewMemory(deps.Memory), NewMemoryInspect(deps.Memory))
	}
	if deps.Ask != nil {
		mods = append(mods, NewAsk(deps.Ask))
	}

	var errs []error
	for _, m := range mods {
		if err := reg.Register(m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func sessionOrDefault(arg, current string) string {
	if arg != "" {
		return arg
	}
	if current != "" {
		return current
	}
	return "default"
}
