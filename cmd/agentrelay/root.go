package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentrelay"
	"github.com/hupe1980/agentrelay/config"
	"github.com/hupe1980/agentrelay/engine"
)

// cli holds the persistent flags shared by every subcommand.
type cli struct {
	configPath string
	verbose    bool
	session    string
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "agentrelay",
		Short: "Conversational assistant backend with capability modules and provider fallback",
		Long: `agentrelay routes each message either to a capability module
("run <plugin> <input>") or to an ordered chain of language model providers,
keeping the conversation in a fast and a durable memory tier.

Run "agentrelay chat" for an interactive session.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "", "path to a YAML config file")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVarP(&c.session, "session", "s", engine.DefaultSessionID, "session ID")

	root.AddCommand(
		c.sendCmd(),
		c.chatCmd(),
		c.pluginsCmd(),
		c.sessionsCmd(),
		c.memoryCmd(),
		c.auditCmd(),
		c.resetCmd(),
		c.logsCmd(),
		c.configCmd(),
	)
	return root
}

func (c *cli) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// open builds an AgentRelay for one command. The caller must Close it.
func (c *cli) open(cmd *cobra.Command) (*agentrelay.AgentRelay, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	return agentrelay.New(cmd.Context(), cfg, func(o *agentrelay.Options) {
		o.LogOutput = cmd.ErrOrStderr()
	})
}

// withRelay opens a relay, runs fn and closes the relay again.
func (c *cli) withRelay(cmd *cobra.Command, fn func(a *agentrelay.AgentRelay) error) (err error) {
	a, err := c.open(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close: %w", cerr)
		}
	}()
	return fn(a)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
