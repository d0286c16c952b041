package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/majnioui/calc/internal/config"
	"github.com/majnioui/calc/internal/jobs"
	"github.com/majnioui/calc/internal/logger"
	"github.com/majnioui/calc/internal/places"
	"github.com/majnioui/calc/internal/server"
)

const sweepInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "console")
		boot.Fatal("config load failed", zap.Error(err))
	}

	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)
	defer log.Sync()

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, log); err != nil {
		log.Error("server stopped with error", map[string]interface{}{"error": err})
		os.Exit(1)
	}
	log.Info("bye", nil)
}

func run(cfg *config.Config, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	finder, closeFinder, err := buildFinder(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeFinder()

	for _, dir := range []string{cfg.Batch.UploadDir, cfg.Batch.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	manager := jobs.NewManager(cfg.Batch.OutputDir, time.Duration(cfg.Batch.JobTTL)*time.Second, log)

	srv := server.New(cfg, finder, manager, log)
	defer srv.Close()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      srv.Router(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server starting", map[string]interface{}{
			"port":        cfg.Server.Port,
			"environment": cfg.App.Environment,
			"places":      cfg.Places.Provider,
		})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return manager.RunSweeper(gctx, sweepInterval)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown requested", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("graceful shutdown timed out, closing", map[string]interface{}{"error": err})
			return httpServer.Close()
		}
		return nil
	})

	err = g.Wait()
	manager.Wait()
	return err
}

// buildFinder picks the places provider and puts the redis cache in front
// of it when one is configured.
func buildFinder(ctx context.Context, cfg *config.Config, log logger.Logger) (places.Finder, func(), error) {
	var finder places.Finder
	switch cfg.Places.Provider {
	case "directory":
		dir, err := places.LoadDirectory(cfg.Places.DirectoryFile, cfg.Places.DirectorySheet)
		if err != nil {
			return nil, nil, fmt.Errorf("load branch directory: %w", err)
		}
		log.Info("branch directory loaded", map[string]interface{}{
			"file":     cfg.Places.DirectoryFile,
			"branches": dir.Len(),
		})
		finder = dir
	default:
		finder = places.NewGoogleClient(places.GoogleConfig{
			BaseURL:    cfg.Places.BaseURL,
			APIKey:     cfg.Places.APIKey,
			Timeout:    config.GetDuration(cfg.Places.Timeout),
			MaxRetries: cfg.Places.MaxRetries,
		}, log)
	}

	if cfg.Redis.Address == "" || cfg.Places.CacheTTL <= 0 {
		return finder, func() {}, nil
	}

	client := places.NewRedisClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		// Lookups still work uncached; the cache falls through on errors.
		log.Warn("redis unreachable, places cache degraded", map[string]interface{}{
			"address": cfg.Redis.Address,
			"error":   err,
		})
	}

	cached := places.NewCachedFinder(finder, client, time.Duration(cfg.Places.CacheTTL)*time.Second, log)
	return cached, func() { _ = client.Close() }, nil
}
