// Package commands implements the codepulse CLI subcommands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/codepulse/internal/analysis"
	"github.com/Sumatoshi-tech/codepulse/internal/analysis/lint"
	"github.com/Sumatoshi-tech/codepulse/internal/analysis/refactor"
	"github.com/Sumatoshi-tech/codepulse/internal/analysis/testgen"
	"github.com/Sumatoshi-tech/codepulse/internal/coordinator"
	"github.com/Sumatoshi-tech/codepulse/internal/resultcache"
	"github.com/Sumatoshi-tech/codepulse/internal/server"
	"github.com/Sumatoshi-tech/codepulse/internal/worker"
	"github.com/Sumatoshi-tech/codepulse/pkg/config"
	"github.com/Sumatoshi-tech/codepulse/pkg/observability"
	"github.com/Sumatoshi-tech/codepulse/pkg/version"
)

const shutdownGrace = 10 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the realtime analysis server",
		Long: `Start the CodePulse server: WebSocket analysis protocol on /ws plus
the HTTP status surface (/healthz, /readyz, /metrics, /api/status).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}

			providers, err := initObservability(cfg, debug)
			if err != nil {
				return err
			}

			defer func() {
				shutdownErr := providers.Shutdown(context.Background())
				if shutdownErr != nil {
					providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
				}
			}()

			return runServe(cobraCmd.Context(), cfg, providers)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging and trace sampling")

	return cmd
}

func initObservability(cfg *config.Config, debug bool) (observability.Providers, error) {
	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Environment = cfg.Telemetry.Environment
	obsCfg.Mode = observability.ModeServe
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	obsCfg.OTLPInsecure = cfg.Telemetry.Insecure
	obsCfg.SampleRatio = cfg.Telemetry.SampleRatio
	obsCfg.LogJSON = cfg.Logging.Format != "text"

	var level slog.Level

	err := level.UnmarshalText([]byte(cfg.Logging.Level))
	if err == nil {
		obsCfg.LogLevel = level
	}

	if debug {
		obsCfg.LogLevel = slog.LevelDebug
		obsCfg.DebugTrace = true
	}

	return observability.Init(obsCfg)
}

// runServe assembles the pipeline and runs the HTTP server, the cache
// sweeper, and signal handling until one of them stops.
func runServe(ctx context.Context, cfg *config.Config, providers observability.Providers) error {
	logger := providers.Logger

	maxCodeBytes, err := cfg.Server.MaxCodeBytes()
	if err != nil {
		return err
	}

	cache := resultcache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL)

	pool := worker.NewPool(logger, worker.DefaultFactories(
		func() analysis.Analyzer { return lint.NewAnalyzer() },
		func() analysis.Analyzer { return refactor.NewAnalyzer() },
		func() analysis.Analyzer { return testgen.NewAnalyzer() },
	))

	coord := coordinator.New(pool, cache, logger, coordinator.Config{
		MaxCodeBytes:    maxCodeBytes,
		DefaultLanguage: cfg.Analysis.DefaultLanguage,
	})

	red, err := observability.NewREDMetrics(providers.Meter)
	if err != nil {
		return err
	}

	err = observability.RegisterServiceGauges(providers.Meter, observability.GaugeSources{
		ActiveConnections: func() int64 { return int64(pool.ActiveConnections()) },
		CacheEntries:      func() int64 { return int64(cache.Len()) },
		CacheHits:         func() int64 { return cache.Stats().Hits },
		CacheMisses:       func() int64 { return cache.Stats().Misses },
	})
	if err != nil {
		return err
	}

	metricsHandler, err := observability.PrometheusHandler()
	if err != nil {
		return err
	}

	srv := server.New(coord, pool, cache, logger, providers.Tracer, red, metricsHandler, server.Config{
		HeartbeatInterval: cfg.Server.HeartbeatInterval,
		HeartbeatMisses:   cfg.Server.HeartbeatMisses,
		WriteTimeout:      cfg.Server.WriteTimeout,
		MaxMessageBytes:   int64(maxCodeBytes) + 4096,
	})

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: 0, // WebSocket responses outlive any fixed write window.
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(signalCtx)

	group.Go(func() error {
		logger.Info("server listening", "addr", addr, "version", version.Version)

		serveErr := httpServer.ListenAndServe()
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", serveErr)
		}

		return nil
	})

	group.Go(func() error {
		return runCacheSweeper(groupCtx, cache, logger, cfg.Cache.CleanupInterval)
	})

	group.Go(func() error {
		<-groupCtx.Done()

		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()

		shutdownErr := httpServer.Shutdown(shutdownCtx)
		if shutdownErr != nil {
			return fmt.Errorf("http shutdown: %w", shutdownErr)
		}

		return nil
	})

	err = group.Wait()
	if err != nil {
		return err
	}

	logger.Info("server stopped")

	return nil
}

// runCacheSweeper expires stale cache entries on a fixed cadence until the
// context ends.
func runCacheSweeper(ctx context.Context, cache *resultcache.Cache, logger *slog.Logger, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()

		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			removed := cache.SweepExpired()
			if removed > 0 {
				logger.Debug("swept expired cache entries", "removed", removed)
			}
		}
	}
}
