package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jholhewres/threadrouter/pkg/threadrouter/channels/discord"
	"github.com/jholhewres/threadrouter/pkg/threadrouter/database"
	"github.com/jholhewres/threadrouter/pkg/threadrouter/menu"
	"github.com/jholhewres/threadrouter/pkg/threadrouter/service"
	"github.com/jholhewres/threadrouter/pkg/threadrouter/settings"
)

// newConfigCmd creates `threadrouter config`, which edits the stored menu
// configuration directly. A running instance sees the edits on restart or
// with its next configuration change.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the category menu configuration",
		Long: `Reads and edits the category menu configuration in the configured database.

Examples:
  threadrouter config show
  threadrouter config show --keys
  threadrouter config toggle
  threadrouter config category 123456789012345678 Billing
  threadrouter config describe Please pick a category
  threadrouter config mentions 123456789012345678 <@&42> 1001
  threadrouter config preview
  threadrouter config reset`,
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigToggleCmd(),
		newConfigCategoryCmd(),
		newConfigDescribeCmd(),
		newConfigMentionsCmd(),
		newConfigPreviewCmd(),
		newConfigResetCmd(),
	)
	return cmd
}

// withSettings opens storage, runs fn and closes storage.
func withSettings(cmd *cobra.Command, fn func(mgr *settings.Manager, cfg *service.Config) error) error {
	return withStorage(cmd, func(mgr *settings.Manager, _ *database.Hub, cfg *service.Config) error {
		return fn(mgr, cfg)
	})
}

func withStorage(cmd *cobra.Command, fn func(mgr *settings.Manager, hub *database.Hub, cfg *service.Config) error) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	mgr, hub, err := service.OpenSettings(cmd.Context(), cfg, newLogger(cmd, cfg, cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer hub.Close()
	return fn(mgr, hub, cfg)
}

func newConfigShowCmd() *cobra.Command {
	var listKeys bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the menu configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStorage(cmd, func(mgr *settings.Manager, hub *database.Hub, _ *service.Config) error {
				if listKeys {
					keys, err := hub.Documents().Keys(cmd.Context(), "")
					if err != nil {
						return err
					}
					for _, key := range keys {
						fmt.Fprintln(cmd.OutOrStdout(), key)
					}
					return nil
				}
				out, err := yaml.Marshal(mgr.Snapshot())
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), string(out))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&listKeys, "keys", false, "list the stored document keys instead")
	return cmd
}

func newConfigToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle",
		Short: "Enable or disable the category menu",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSettings(cmd, func(mgr *settings.Manager, _ *service.Config) error {
				enabled, err := mgr.Toggle(cmd.Context())
				if err != nil {
					return err
				}
				if enabled {
					fmt.Fprintln(cmd.OutOrStdout(), "Category menu enabled.")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Category menu disabled.")
				}
				return nil
			})
		},
	}
}

func newConfigCategoryCmd() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "category <id> [label...]",
		Short: "Add a category, or remove it when already configured",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(cmd, func(mgr *settings.Manager, _ *service.Config) error {
				label := strings.TrimSpace(strings.Join(args[1:], " "))
				if label == "" {
					label = args[0]
				}
				added, err := mgr.ToggleCategory(cmd.Context(), settings.Category{
					ID:          args[0],
					Label:       label,
					Description: description,
				})
				if err != nil {
					return err
				}
				if added {
					fmt.Fprintf(cmd.OutOrStdout(), "Added %s.\n", label)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Removed %s.\n", args[0])
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "help text shown next to the label")
	return cmd
}

func newConfigDescribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe [text...]",
		Short: "Set the menu description; no text restores the default",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(cmd, func(mgr *settings.Manager, _ *service.Config) error {
				text, err := mgr.SetDescription(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Menu description: %s\n", text)
				return nil
			})
		},
	}
}

func newConfigMentionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mentions <category-id> [targets...]",
		Short: "Set who is pinged when a thread lands in a category",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(cmd, func(mgr *settings.Manager, _ *service.Config) error {
				targets := discord.ParseMentionTargets(args[1:])
				if err := mgr.SetMentions(cmd.Context(), args[0], targets); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s now mentions %d target(s).\n",
					mgr.Snapshot().Label(args[0]), len(targets))
				return nil
			})
		},
	}
}

func newConfigPreviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preview",
		Short: "Render the menu a new thread would receive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSettings(cmd, func(mgr *settings.Manager, cfg *service.Config) error {
				fmt.Fprint(cmd.OutOrStdout(), renderPreview(cfg.Menu.Strategy(), mgr.Snapshot()))
				return nil
			})
		},
	}
}

func newConfigResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete the stored configuration and restore the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSettings(cmd, func(mgr *settings.Manager, _ *service.Config) error {
				cfg, err := mgr.Reset(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Configuration reset (enabled=%t, %d categories).\n",
					cfg.Enabled, len(cfg.Categories))
				return nil
			})
		},
	}
}

func renderPreview(s menu.Strategy, cfg settings.Configuration) string {
	d := menu.Preview(s, cfg)
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", s.Name())
	if !cfg.Enabled {
		b.WriteString(" (disabled)")
	}
	b.WriteString("\n")
	b.WriteString(d.Description)
	b.WriteString("\n")
	if d.ComponentID != "" {
		for _, opt := range d.Options {
			fmt.Fprintf(&b, "  - %s", opt.Label)
			if opt.Description != "" {
				fmt.Fprintf(&b, ": %s", opt.Description)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
