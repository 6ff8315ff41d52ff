package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, db, err := bootstrap()
			if err != nil {
				return err
			}
			defer db.Close()
			return db.RunMigrations(cfg.Database.MigrationsPath)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back migrations, one step by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n <= 0 {
					return fmt.Errorf("invalid steps %q", args[0])
				}
				steps = n
			}
			cfg, _, db, err := bootstrap()
			if err != nil {
				return err
			}
			defer db.Close()
			return db.MigrateDown(cfg.Database.MigrationsPath, steps)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "goto <version>",
		Short: "Migrate up or down to a specific version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid version %q", args[0])
			}
			cfg, _, db, err := bootstrap()
			if err != nil {
				return err
			}
			defer db.Close()
			return db.MigrateToVersion(cfg.Database.MigrationsPath, uint(version))
		},
	})

	return cmd
}
