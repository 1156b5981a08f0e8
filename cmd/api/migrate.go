package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/withaibuild/site/internal/database"
)

var errNoDatabase = errors.New("database not configured: set DB_HOST and DB_PASSWORD")

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the submission schema",
	}
	cmd.AddCommand(
		migrateRunCmd("up", "Apply pending migrations", func(cmd *cobra.Command, m *database.Migrator) error {
			n, err := m.Up(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
			return nil
		}),
		migrateRunCmd("down", "Roll back the latest migration", func(cmd *cobra.Command, m *database.Migrator) error {
			rolled, err := m.Down(cmd.Context())
			if err != nil {
				return err
			}
			if !rolled {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to roll back")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "rolled back 1 migration")
			return nil
		}),
		migrateRunCmd("version", "Print the schema version and pending migrations", func(cmd *cobra.Command, m *database.Migrator) error {
			version, err := m.CurrentVersion(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d\n", version)

			status, err := m.Status(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range status {
				state := "pending"
				if s.AppliedAt != nil {
					state = "applied " + s.AppliedAt.UTC().Format(time.RFC3339)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%04d %-40s %s\n", s.Version, s.Name, state)
			}
			return nil
		}),
	)
	return cmd
}

func migrateRunCmd(use, short string, run func(*cobra.Command, *database.Migrator) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if !cfg.DatabaseEnabled() {
				return errNoDatabase
			}
			pool, err := database.NewPool(cmd.Context(), &cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			m, err := database.NewSchemaMigrator(pool, log)
			if err != nil {
				return err
			}
			return run(cmd, m)
		},
	}
}
