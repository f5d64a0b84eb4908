package main

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/taskpilot/internal/config"
	"github.com/sandeepkv93/taskpilot/internal/storage"
)

func migrateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate up|down",
		Short: "Apply or revert the schema migrations",
		Long: `Apply or revert the schema migrations. Every other command applies
pending up migrations on start, so this is mostly useful for down.

Examples:
  taskpilot migrate up
  taskpilot migrate down`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			var apply func(*sql.DB) error
			switch args[0] {
			case "up":
				apply = storage.MigrateUp
			case "down":
				apply = storage.MigrateDown
			default:
				return fmt.Errorf("unknown direction %q, want up or down", args[0])
			}

			db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := apply(db); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "migrations %s applied\n", args[0])
			return err
		},
	}
	return cmd
}
