package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/echecs92/chess-sync/internal/geocode"
	"github.com/echecs92/chess-sync/internal/storage"
)

const defaultCommunesEndpoint = "https://geo.api.gouv.fr/communes"

func newPostalCmd() *cobra.Command {
	var endpoint string

	cmd := &cobra.Command{
		Use:   "postal",
		Short: "Refresh the postal-code centroid reference table.",
		Long: `postal downloads every commune centroid from the national registry and
rewrites the postal-coordinates table the geocoder validates against.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt := runtimeFrom(cmd)

			entries, err := geocode.FetchPostalCentroids(cmd.Context(), rt.client, endpoint)
			if err != nil {
				return err
			}
			if err := storage.WriteJSON(rt.cfg.Geocode.CentroidsFile, entries); err != nil {
				return err
			}
			rt.log.Info("postal centroids written",
				zap.String("path", rt.cfg.Geocode.CentroidsFile),
				zap.Int("entries", len(entries)),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&endpoint, "endpoint", defaultCommunesEndpoint, "communes registry endpoint")
	return cmd
}
