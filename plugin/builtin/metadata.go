package builtin

import (
	"context"

	"github.com/hupe1980/agentrelay/plugin"
)

// PluginInfo is one entry of the plugin_metadata listing.
type PluginInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Author      string `json:"author"`
	Version     string `json:"version"`
	Category    string `json:"category"`
	Example     string `json:"example"`
}

// NewPluginMetadata creates a module listing the descriptors of reg,
// including itself.
func NewPluginMetadata(reg *plugin.Registry) *plugin.Func {
	return plugin.NewFunc(plugin.Descriptor{
		Name:        "plugin_metadata",
		Description: "List metadata about all available plugins",
		Metadata:    plugin.Metadata{Author: Author, Version: "1.0.0", Category: "utility"},
	}, func(context.Context, plugin.Input) (plugin.Output, error) {
		descs := reg.List()
		infos := make([]PluginInfo, 0, len(descs))
		for _, d := range descs {
			infos = append(infos, PluginInfo{
				Name:        d.Name,
				Description: d.Description,
				Author:      d.Metadata.Author,
				Version:     d.Metadata.Version,
				Category:    d.Metadata.Category,
				Example:     d.Metadata.Example,
			})
		}
		return plugin.Output{Data: map[string]any{"plugins": infos}}, nil
	})
}
