package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nerrad567/hydroponics-core/internal/infrastructure/config"
	"github.com/nerrad567/hydroponics-core/internal/infrastructure/database"
)

func newMigrateCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(opts, func(db *database.DB) error {
					if err := db.Migrate(cmd.Context()); err != nil {
						return fmt.Errorf("running migrations: %w", err)
					}
					fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(opts, func(db *database.DB) error {
					if err := db.MigrateDown(cmd.Context()); err != nil {
						return fmt.Errorf("rolling back migration: %w", err)
					}
					fmt.Fprintln(cmd.OutOrStdout(), "last migration rolled back")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List applied and pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(opts, func(db *database.DB) error {
					applied, pending, err := db.GetMigrationStatus(cmd.Context())
					if err != nil {
						return fmt.Errorf("reading migration status: %w", err)
					}

					w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
					fmt.Fprintln(w, "VERSION\tSTATE\tAPPLIED AT")
					for _, m := range applied {
						fmt.Fprintf(w, "%s\tapplied\t%s\n", m.Version, m.AppliedAt.Format("2006-01-02T15:04:05Z07:00"))
					}
					for _, m := range pending {
						fmt.Fprintf(w, "%s\tpending\t-\n", m.Version)
					}
					return w.Flush()
				})
			},
		},
	)
	return cmd
}

// withDatabase loads config, opens the database, runs fn and closes it.
func withDatabase(opts *cliOptions, fn func(db *database.DB) error) error {
	cfg, err := config.Load(opts.resolveConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // close error after a completed command is not actionable

	return fn(db)
}
