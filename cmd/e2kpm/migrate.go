package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/e2kpm/internal/migrate"
)

func migrateCmd() *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the ClickHouse measurement schema",
	}

	cmd.PersistentFlags().StringVar(
		&dsn, "dsn", "",
		"ClickHouse DSN, e.g. clickhouse://host:9000?database=ran (defaults to export.clickhouse from --config)",
	)

	migrator := func() (migrate.Migrator, error) {
		if dsn != "" {
			return migrate.New(newLogger(), dsn), nil
		}

		cfg, log, err := setup()
		if err != nil {
			return nil, err
		}

		if !cfg.Export.ClickHouse.Enabled {
			return nil, fmt.Errorf("export.clickhouse is not enabled in %s", cfgFile)
		}

		return migrate.New(log, migrate.DSN(cfg.Export.ClickHouse.ClickHouseConfig)), nil
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := migrator()
				if err != nil {
					return err
				}

				return m.Up(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := migrator()
				if err != nil {
					return err
				}

				return m.Down(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the applied and embedded migration versions",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := migrator()
				if err != nil {
					return err
				}

				v, dirty, err := m.Status(cmd.Context())
				if err != nil {
					return err
				}

				versions, err := migrate.Versions()
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "version: %d (dirty: %t)\n", v, dirty)

				for _, name := range versions {
					fmt.Fprintf(out, "  %s\n", name)
				}

				return nil
			},
		},
	)

	return cmd
}
