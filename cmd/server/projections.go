package main

import (
	"github.com/research-output-api/internal/projection"
	"github.com/research-output-api/internal/repository"
	"github.com/spf13/cobra"
)

func newProjectionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projections",
		Short: "Maintain the duplicate-matching projection table",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "rebuild",
		Short: "Recompute the projection of every research item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, db, err := bootstrap()
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := projection.NewMaintainer(log).RebuildAll(cmd.Context(), repository.New(db))
			if err != nil {
				return err
			}
			log.Info().Int("items", n).Msg("Projections rebuilt")
			return nil
		},
	})

	return cmd
}
