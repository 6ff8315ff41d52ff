package main

import (
	"fmt"
	"os"

	"github.com/research-output-api/internal/config"
	"github.com/research-output-api/internal/database"
	"github.com/research-output-api/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "research-output-api",
		Short:         "Research output API with duplicate detection and verification",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newProjectionsCmd())
	return root
}

// bootstrap loads configuration, builds the logger and opens the database
func bootstrap() (*config.Config, zerolog.Logger, *database.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logger.New(cfg.Log)

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		return nil, log, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return cfg, log, db, nil
}
