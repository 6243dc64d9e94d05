package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JacoLabs/eventparse/internal/backup"
	"github.com/JacoLabs/eventparse/internal/cache"
	"github.com/JacoLabs/eventparse/internal/config"
	"github.com/JacoLabs/eventparse/internal/enhance"
	"github.com/JacoLabs/eventparse/internal/httpapi"
	"github.com/JacoLabs/eventparse/internal/logging"
	"github.com/JacoLabs/eventparse/internal/pipeline"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the extraction HTTP server",
	Long: `Start the eventparsed HTTP server.

Configuration is layered: defaults, then the optional --config YAML file,
then EVENTPARSE_* environment variables.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // best-effort on shutdown
	}()

	logger.Info("starting eventparsed",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.Duration("request_deadline", cfg.Engine.RequestDeadline))

	p, resultCache := buildPipeline(cfg, logger)

	srv, err := httpapi.NewServer(p, logger, cfg.Server)
	if err != nil {
		return fmt.Errorf("create http server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	if resultCache != nil {
		go sweepLoop(ctx, resultCache, logger)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// buildPipeline wires the extraction tiers from configuration. Optional
// tiers that are disabled or misconfigured are left out; the pipeline
// degrades around them.
func buildPipeline(cfg *config.Config, logger *zap.Logger) (*pipeline.Pipeline, *cache.Cache) {
	var recognizers []backup.Recognizer
	if cfg.Backup.Enabled {
		recognizers = append(recognizers, backup.NewDucklingRecognizer(cfg.Backup))
	}
	registry := backup.NewRegistry(logger, recognizers...)

	provider, err := enhance.NewProvider(cfg.Enhance)
	if err != nil {
		logger.Warn("enhancement provider unavailable", zap.Error(err))
		provider = nil
	}
	engine := enhance.NewEngine(provider, cfg.Enhance, logger)

	var resultCache *cache.Cache
	if cfg.Cache.Enabled {
		resultCache = cache.New(cfg.Cache.TTL, cfg.Cache.MaxEntries)
		resultCache.SetMetrics(cache.NewMetrics())
	}

	return pipeline.New(cfg, registry, engine, resultCache, logger), resultCache
}

// sweepLoop periodically removes expired cache entries so memory tracks
// the live working set rather than the TTL horizon.
func sweepLoop(ctx context.Context, c *cache.Cache, logger *zap.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				logger.Debug("cache sweep", zap.Int("expired", n))
			}
		}
	}
}
