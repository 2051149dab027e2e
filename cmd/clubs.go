package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/echecs92/chess-sync/internal/clubsync"
)

func newClubsCmd() *cobra.Command {
	var licensesOnly bool

	cmd := &cobra.Command{
		Use:   "clubs",
		Short: "Synchronize the club directory from the federation portal.",
		Long: `clubs crawls the committees index, every department listing, each
club's detail sheet and its six federation lists, then publishes the
per-department files, rosters and manifests atomically.

With --licenses-only the published files are kept as-is and only the
licence counts are refreshed in place.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt := runtimeFrom(cmd)
			runner := clubsync.NewRunner(rt.cfg, rt.client, rt.log)
			result, err := runner.Run(cmd.Context(), clubsync.Options{LicensesOnly: licensesOnly})
			if err != nil {
				return err
			}
			rt.log.Info("club sync finished",
				zap.Int("departments", result.Departments),
				zap.Int("clubs", result.Clubs),
				zap.Int("rosters", result.Rosters),
				zap.Int("issues", result.Issues),
			)
			return nil
		},
	}

	cmd.Flags().BoolVar(&licensesOnly, "licenses-only", false, "only refresh licence counts in the published files")
	return cmd
}
