package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"authorsite/api/internal/store"
)

var errNoDatabase = errors.New("no database configured; set DATABASE_URL or --database-url")

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}

	withDB := func(ctx context.Context, fn func(*sql.DB) error) error {
		if !opts.cfg.RemoteConfigured() {
			return errNoDatabase
		}
		db, err := store.Open(ctx, opts.cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		return fn(db)
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(db *sql.DB) error {
				applied, err := store.MigrateUp(cmd.Context(), db, opts.cfg.MigrationsDir)
				for _, version := range applied {
					cmd.Printf("applied %s\n", version)
				}
				if err != nil {
					return err
				}
				if len(applied) == 0 {
					cmd.Println("Schema is up to date")
				}
				return nil
			})
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Revert applied migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps < 0 {
				return fmt.Errorf("--steps must be positive, or 0 for all")
			}
			return withDB(cmd.Context(), func(db *sql.DB) error {
				reverted, err := store.MigrateDown(cmd.Context(), db, opts.cfg.MigrationsDir, steps)
				for _, version := range reverted {
					cmd.Printf("reverted %s\n", version)
				}
				return err
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to revert, 0 for all")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			migrations, err := store.LoadMigrations(opts.cfg.MigrationsDir)
			if err != nil {
				return err
			}
			return withDB(cmd.Context(), func(db *sql.DB) error {
				applied, err := store.AppliedMigrations(cmd.Context(), db)
				if err != nil {
					return err
				}
				done := make(map[string]bool, len(applied))
				for _, version := range applied {
					done[version] = true
				}
				for _, m := range migrations {
					state := "pending"
					if done[m.Version] {
						state = "applied"
					}
					cmd.Printf("%-8s %s\n", state, m.Version)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(up, down, status)
	return cmd
}
