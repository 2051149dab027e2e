package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/echecs92/chess-sync/internal/geocode"
	"github.com/echecs92/chess-sync/internal/issue"
	"github.com/echecs92/chess-sync/internal/storage"
)

func newGeocodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "geocode",
		Short: "Generate the clubs geocoding hints file.",
		Long: `geocode resolves coordinates for every published club through two
providers with centroid-distance validation and fallbacks, then writes
the hints file consumed by the map views.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt := runtimeFrom(cmd)

			clubs, err := geocode.LoadClubs(rt.cfg.Output.DataDir)
			if err != nil {
				return err
			}
			centroids, err := geocode.LoadCentroidTable(rt.cfg.Geocode.CentroidsFile)
			if err != nil {
				return err
			}
			rt.log.Info("geocoding clubs",
				zap.Int("clubs", len(clubs)),
				zap.Int("centroids", centroids.Len()),
			)

			issues := issue.NewLog()
			resolver := geocode.NewResolver(
				geocode.NewNominatim(rt.client, rt.cfg.Geocode.PrimaryEndpoint),
				geocode.NewBAN(rt.client, rt.cfg.Geocode.SecondaryEndpoint),
				centroids,
				rt.cfg.Geocode,
				issues,
				rt.log,
			)

			payload, err := geocode.GenerateHints(cmd.Context(), clubs, resolver, rt.log)
			if err != nil {
				return err
			}

			out := filepath.Join(rt.cfg.Output.DataDir, "clubs-france-hints.json")
			if err := storage.WriteJSON(out, payload); err != nil {
				return err
			}
			rt.log.Info("hints file written", zap.String("path", out), zap.Int("hints", len(payload.Hints)))
			issues.Report(rt.log, 20)
			return nil
		},
	}
}
