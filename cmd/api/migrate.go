package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/go-api-otp/internal/config"
	"github.com/go-api-otp/internal/infrastructure/postgres"
)

// NewMigrateCmd creates the migrate subcommand and its up/down/version children.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
		Long:  `Apply or roll back the embedded PostgreSQL migrations. Only used with STORE_DRIVER=postgres.`,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			url, err := databaseURL()
			if err != nil {
				return err
			}
			cmd.Println("Running migrations...")
			if err := migrateUp(url); err != nil {
				return err
			}
			cmd.Println("Migrations completed successfully")
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			url, err := databaseURL()
			if err != nil {
				return err
			}
			return withMigrator(url, func(m *postgres.Migrator) error {
				cmd.Println("Rolling back migrations...")
				return m.Down()
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			url, err := databaseURL()
			if err != nil {
				return err
			}
			return withMigrator(url, func(m *postgres.Migrator) error {
				v, dirty, err := m.Version()
				if err != nil {
					return err
				}
				cmd.Printf("version %d (dirty: %t)\n", v, dirty)
				return nil
			})
		},
	})
	return cmd
}

// databaseURL resolves DATABASE_URL the same way serve does, default included.
func databaseURL() (string, error) {
	cfg, err := config.Parse()
	if err != nil {
		return "", oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if cfg.DatabaseURL == "" {
		return "", oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL is required")
	}
	return cfg.DatabaseURL, nil
}

func migrateUp(url string) error {
	return withMigrator(url, func(m *postgres.Migrator) error { return m.Up() })
}

func withMigrator(url string, fn func(*postgres.Migrator) error) (err error) {
	m, err := postgres.NewMigrator(url)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "open migrator").Wrap(err)
	}
	defer func() {
		if cerr := m.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(m)
}
