package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/echecs92/chess-sync/internal/fide"
)

func newPlayersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "players",
		Short: "Synchronize the FIDE rating list into sharded player files.",
		Long: `players downloads the current FIDE players list, streams it into 100
shard files keyed by id prefix, accumulates world/continent/federation
rank statistics and indexes the published rating-list archives.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt := runtimeFrom(cmd)
			syncer := fide.NewSyncer(rt.cfg.FIDE, rt.cfg.Output, rt.client, rt.log)
			result, err := syncer.Run(cmd.Context())
			if err != nil {
				return err
			}
			rt.log.Info("player sync finished",
				zap.Int("players", result.TotalPlayers),
				zap.Int("skipped_rows", result.SkippedRows),
				zap.Int("archive_periods", result.ArchivePeriods),
				zap.Int("archives_downloaded", result.DownloadedArchives),
			)
			return nil
		},
	}
}
