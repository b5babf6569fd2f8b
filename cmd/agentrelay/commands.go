package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentrelay"
	"github.com/hupe1980/agentrelay/config"
	"github.com/hupe1980/agentrelay/memory"
)

func (c *cli) sessionArg(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return c.session
}

func (c *cli) sendCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "send <message>",
		Short: "Dispatch a single message and print the reply",
		Example: `  agentrelay send "What is 2+2?"
  agentrelay send run calculator 6*7
  agentrelay send --json -s alice "hello"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			return c.withRelay(cmd, func(a *agentrelay.AgentRelay) error {
				reply := a.Dispatch(cmd.Context(), c.session, text)
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), reply)
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), reply.Text)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full reply as JSON")
	return cmd
}

func (c *cli) chatCmd() *cobra.Command {
	var showPath bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session",
		Long: `Reads one message per line and prints the reply.

Commands:
  /plugins  list capability modules
  /audit    compare both memory tiers of the session
  /reset    clear the session
  /quit     leave the chat`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withRelay(cmd, func(a *agentrelay.AgentRelay) error {
				return c.chat(cmd, a, showPath)
			})
		},
	}
	cmd.Flags().BoolVar(&showPath, "show-path", false, "print which capability or provider answered")
	return cmd
}

func (c *cli) chat(cmd *cobra.Command, a *agentrelay.AgentRelay, showPath bool) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	fmt.Fprintf(out, "agentrelay chat (session %q), /quit to leave\n", c.session)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/plugins":
			if err := printPlugins(out, a); err != nil {
				return err
			}
			continue
		case "/audit":
			report, err := a.AuditSession(ctx, c.session)
			if err != nil {
				fmt.Fprintln(out, "audit failed:", err)
				continue
			}
			fmt.Fprintf(out, "short=%d long=%d consistent=%t\n", report.Counts.Short, report.Counts.Long, report.Consistent())
			continue
		case "/reset":
			res := a.ResetSession(ctx, c.session)
			fmt.Fprintf(out, "reset: %s\n", res.Status())
			continue
		}

		reply := a.Dispatch(ctx, c.session, line)
		if showPath {
			fmt.Fprintf(out, "[%s] %s\n", reply.PathTaken(), reply.Text)
		} else {
			fmt.Fprintln(out, reply.Text)
		}
		if err := ctx.Err(); err != nil {
			return nil
		}
	}
}

func (c *cli) pluginsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "List the registered capability modules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withRelay(cmd, func(a *agentrelay.AgentRelay) error {
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), a.ListCapabilities())
				}
				return printPlugins(cmd.OutOrStdout(), a)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print descriptors as JSON")
	return cmd
}

func printPlugins(w io.Writer, a *agentrelay.AgentRelay) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVERSION\tDESCRIPTION")
	for _, d := range a.ListCapabilities() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Name, d.Metadata.Version, d.Description)
	}
	return tw.Flush()
}

func (c *cli) sessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List the sessions stored in durable memory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withRelay(cmd, func(a *agentrelay.AgentRelay) error {
				ids, err := a.Sessions(cmd.Context())
				if err != nil {
					return err
				}
				for _, id := range ids {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			})
		},
	}
}

func (c *cli) memoryCmd() *cobra.Command {
	var (
		mode  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "memory [session]",
		Short: "Print the conversation of a session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := memory.ParseMode(mode)
			if err != nil {
				return err
			}
			return c.withRelay(cmd, func(a *agentrelay.AgentRelay) error {
				msgs, err := a.ReadMemory(cmd.Context(), c.sessionArg(args), m, limit)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), msgs)
			})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(memory.ModeLong), "memory tier: short or long")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of messages, 0 for all")
	return cmd
}

func (c *cli) auditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit [session]",
		Short: "Compare the fast and durable memory tiers of a session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRelay(cmd, func(a *agentrelay.AgentRelay) error {
				report, err := a.AuditSession(cmd.Context(), c.sessionArg(args))
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), struct {
					memory.AuditReport
					Consistent bool `json:"consistent"`
				}{report, report.Consistent()})
			})
		},
	}
}

func (c *cli) resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset [session]",
		Short: "Clear both memory tiers of a session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRelay(cmd, func(a *agentrelay.AgentRelay) error {
				res := a.ResetSession(cmd.Context(), c.sessionArg(args))
				if err := writeJSON(cmd.OutOrStdout(), struct {
					memory.ResetResult
					Status memory.ResetStatus `json:"status"`
				}{res, res.Status()}); err != nil {
					return err
				}
				if res.Status() == memory.ResetFailed {
					return res.Err()
				}
				return nil
			})
		},
	}
}

func (c *cli) logsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "logs [session]",
		Short: "Print the newest capability invocations of a session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRelay(cmd, func(a *agentrelay.AgentRelay) error {
				recs, err := a.PluginLogs(cmd.Context(), c.sessionArg(args), limit)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), recs)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of records, 0 for all")
	return cmd
}

func (c *cli) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create configuration files",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init <path>",
		Short: "Write the default configuration to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err := config.DefaultConfig().Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration for errors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}

	cmd.AddCommand(show, initCmd, validate)
	return cmd
}
