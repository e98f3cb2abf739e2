package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jholhewres/threadrouter/pkg/threadrouter/database"
)

// newMigrateCmd creates `threadrouter migrate`. Opening storage already
// applies pending migrations; this command reports the schema version and
// can pin a target.
func newMigrateCmd() *cobra.Command {
	var (
		target     int
		statusOnly bool
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Show or apply storage schema migrations",
		Long: `Shows the schema version of the configured SQL backend and applies
pending migrations. Pebble stores have no schema.

Examples:
  threadrouter migrate
  threadrouter migrate --status
  threadrouter migrate --target 1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			hub, err := database.NewHub(ctx, cfg.Database, newLogger(cmd, cfg, cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer hub.Close()

			backend, err := hub.GetBackend("")
			if err != nil {
				return err
			}
			if backend.Migrator == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s backend has no schema to migrate.\n", backend.Type)
				return nil
			}

			if !statusOnly {
				if err := hub.Migrate(ctx, backend.Name, target); err != nil {
					return err
				}
			}
			version, err := backend.Migrator.CurrentVersion(ctx)
			if err != nil {
				return err
			}
			pending, err := backend.Migrator.NeedsMigration(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema version %d (pending: %t)\n", backend.Type, version, pending)
			return nil
		},
	}
	cmd.Flags().IntVar(&target, "target", 0, "schema version to migrate to; 0 means latest")
	cmd.Flags().BoolVar(&statusOnly, "status", false, "only print the current version")
	return cmd
}
