// Package cmd wires the sync pipelines into the chess-sync CLI.
package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/echecs92/chess-sync/internal/config"
	"github.com/echecs92/chess-sync/internal/fetch"
	"github.com/echecs92/chess-sync/internal/logging"
	"github.com/echecs92/chess-sync/internal/metrics"
)

var cfgFile string

// runtimeKeyType is the key for storing the runtime in the context.
type runtimeKeyType string

const runtimeKey runtimeKeyType = "runtime"

// runtime bundles the services every subcommand needs.
type runtime struct {
	cfg        config.Config
	log        *zap.Logger
	client     *fetch.Client
	metricsSrv *http.Server
}

func (rt *runtime) close() {
	if rt.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = rt.metricsSrv.Shutdown(ctx)
	}
	_ = rt.log.Sync()
}

// newRuntime loads configuration and builds the shared services. It is a
// variable so tests can swap in a preconfigured runtime.
var newRuntime = func() (*runtime, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, err
	}
	metrics.Init()

	rt := &runtime{
		cfg: cfg,
		log: log,
		client: fetch.New(fetch.Config{
			Timeout:     cfg.HTTP.Timeout(),
			MaxRetries:  cfg.HTTP.MaxRetries,
			BackoffBase: cfg.HTTP.BackoffBase(),
			UserAgent:   cfg.HTTP.UserAgent,
		}, log),
	}
	if cfg.Metrics.Addr != "" {
		errCh := make(chan error, 1)
		rt.metricsSrv = metrics.Serve(cfg.Metrics.Addr, errCh)
		log.Info("metrics listener started", zap.String("addr", cfg.Metrics.Addr))
	}
	return rt, nil
}

func runtimeFrom(cmd *cobra.Command) *runtime {
	rt, _ := cmd.Context().Value(runtimeKey).(*runtime)
	return rt
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chess-sync",
		Short: "Synchronizes the chess club and player datasets.",
		Long: `chess-sync rebuilds the static club and player datasets from the
national federation portal and the FIDE rating list publication: club
directories per department, per-club rosters, sharded player files,
geocoding hints and the postal centroid reference table.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime()
			if err != nil {
				return fmt.Errorf("initialize services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), runtimeKey, rt))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if rt := runtimeFrom(cmd); rt != nil {
				rt.close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (defaults and env vars apply when omitted)")

	cmd.AddCommand(newClubsCmd())
	cmd.AddCommand(newPlayersCmd())
	cmd.AddCommand(newGeocodeCmd())
	cmd.AddCommand(newPostalCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() error {
	return newRootCmd().Execute()
}
