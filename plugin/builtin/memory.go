package builtin

import (
	"context"
	"strings"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/memory"
	"github.com/hupe1980/agentrelay/plugin"
)

// MemoryView is the payload of the memory module.
type MemoryView struct {
	Session  string         `json:"session"`
	Messages []core.Message `json:"messages"`
}

// NewMemory creates a module listing the short-term window of a session. The
// argument names the session; it defaults to the invoking session.
func NewMemory(mem MemoryReader) *plugin.Func {
	return plugin.NewFunc(plugin.Descriptor{
		Name:        "memory",
		Description: "List short memory for a given session",
		Metadata:    plugin.Metadata{Author: Author, Version: "1.0.0", Example: "run memory <session_id>", Category: "memory"},
	}, func(ctx context.Context, in plugin.Input) (plugin.Output, error) {
		id := sessionOrDefault(strings.TrimSpace(in.Text), in.SessionID)
		msgs, err := mem.Read(ctx, id, memory.ModeShort, 0)
		if err != nil {
			return plugin.Output{}, err
		}
		return plugin.Output{Data: MemoryView{Session: id, Messages: msgs}}, nil
	})
}

// InspectView is the payload of the memory_inspect module.
type InspectView struct {
	Session string         `json:"session"`
	Short   []core.Message `json:"short"`
	Full    []core.Message `json:"full"`
	Count   InspectCount   `json:"count"`
}

// InspectCount holds per-tier message counts.
type InspectCount struct {
	Short int `json:"short"`
	Full  int `json:"full"`
}

// NewMemoryInspect creates a module returning both memory tiers of a session
// side by side.
func NewMemoryInspect(mem MemoryReader) *plugin.Func {
	return plugin.NewFunc(plugin.Descriptor{
		Name:        "memory_inspect",
		Description: "Inspect full memory contents for a given session ID",
		Metadata:    plugin.Metadata{Author: Author, Version: "1.0.0", Example: "run memory_inspect <session_id>", Category: "memory"},
	}, func(ctx context.Context, in plugin.Input) (plugin.Output, error) {
		id := sessionOrDefault(strings.TrimSpace(in.Text), in.SessionID)
		report, err := mem.Audit(ctx, id)
		if err != nil {
			return plugin.Output{}, err
		}
		return plugin.Output{Data: InspectView{
			Session: id,
			Short:   report.ShortTerm,
			Full:    report.LongTerm,
			Count:   InspectCount{Short: report.Counts.Short, Full: report.Counts.Long},
		}}, nil
	})
}
