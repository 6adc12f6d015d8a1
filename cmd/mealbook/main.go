package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"mealbook/internal/backend"
	"mealbook/internal/cache"
	"mealbook/internal/cli"
	"mealbook/internal/config"
	"mealbook/internal/export"
	apphttp "mealbook/internal/http"
	"mealbook/internal/log"
	"mealbook/internal/services"
	"mealbook/internal/session"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentApp)

	ctx, stop := cli.SignalContext(context.Background(), logger)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(nil).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}

	registry := services.NewSessionRegistry(res.Service, session.Config{AutosaveDelay: cfg.AutosaveDelay})
	sweeper := services.NewSessionSweeper(registry, services.SweeperConfig{
		Interval:     cfg.SessionSweep,
		MaxIdle:      cfg.SessionIdleTimeout,
		FlushTimeout: shutdownTimeout,
	})

	exportCache := cache.NewLRUCache[[]byte](cfg.ExportCacheSize, cfg.ExportCacheTTL)
	cacheManager := cache.NewManager()
	cacheManager.Register(exportCache)
	cacheManager.StartCleanup(time.Minute)

	opts := apphttp.Options{
		Registry:      registry,
		ExportOptions: export.Options{MarkSymbol: cfg.MarkSymbol},
		ExportCache:   exportCache,

		// Clients behind a proxy get their own rate limit bucket.
		TrustedProxies: cfg.TrustedProxies,
	}
	if p, ok := res.Store.(apphttp.Pinger); ok {
		opts.Pinger = p
	}
	srv := apphttp.NewServer(":"+cfg.Port, opts)

	g, gctx := errgroup.WithContext(ctx)

	if err := sweeper.Start(gctx); err != nil {
		return err
	}

	g.Go(func() error {
		logger.Info("Starting mealbook server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"autosave_delay", cfg.AutosaveDelay.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", log.FieldOperation, log.OpShutdown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if err := sweeper.Stop(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		// Pending edits are written before the store closes.
		if err := registry.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to flush open ledgers", log.FieldError, err)
			errs = append(errs, err)
		}
		cacheManager.Stop()
		if err := res.Cleanup(); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}
