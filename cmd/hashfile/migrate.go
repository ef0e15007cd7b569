package main

import (
	"database/sql"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"hashfile/internal/config"
	"hashfile/internal/store"

	_ "modernc.org/sqlite"
)

func newMigrateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect metadata schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !status {
				// Open applies pending migrations.
				st, err := store.Open(cfg.DBPath)
				if err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				if err := st.Close(); err != nil {
					return err
				}
			}

			plan, err := migrationStatus(cfg.DBPath)
			if err != nil {
				return err
			}
			if *jsonOutput {
				return writeJSON(plan)
			}
			return writeMigrationStatus(plan, status)
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "show pending migrations without applying them")
	cmd.Flags().BoolVar(&status, "dry-run", false, "alias for --status")
	return cmd
}

func migrationStatus(path string) (*store.MigrationStatus, error) {
	if path == "" {
		return nil, fmt.Errorf("db path is required")
	}
	u := url.URL{Scheme: "file", Path: path}
	db, err := sql.Open("sqlite", u.String())
	if err != nil {
		return nil, err
	}
	defer db.Close()

	plan, err := store.MigrationPlan(db)
	if err != nil {
		return nil, fmt.Errorf("inspect migrations: %w", err)
	}
	return plan, nil
}

func writeMigrationStatus(plan *store.MigrationStatus, statusOnly bool) error {
	if !statusOnly {
		return writePlain("schema at version %d\n", plan.CurrentVersion)
	}
	if err := writePlain("schema version %d of %d\n", plan.CurrentVersion, plan.AvailableVersion); err != nil {
		return err
	}
	if len(plan.Pending) == 0 {
		return writePlain("no pending migrations\n")
	}
	for _, m := range plan.Pending {
		if err := writePlain("  pending %d: %s\n", m.Version, m.Description); err != nil {
			return err
		}
	}
	return nil
}
