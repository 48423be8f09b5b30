package main

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/sync/errgroup"

	"tally/internal/cache"
	"tally/internal/challenge"
	"tally/internal/cli"
	"tally/internal/core"
	apphttp "tally/internal/http"
	"tally/internal/ledger"
	applog "tally/internal/log"
	"tally/internal/services"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal(applog.New(applog.DefaultConfig()), "Configuration validation failed", err)
	}
	logger := cli.SetupLogger(cfg, applog.ComponentApp)
	logger.Info("Starting tally server", "port", cfg.Port)

	loc, err := cfg.Location()
	if err != nil {
		cli.Fatal(logger, "Invalid timezone", err)
	}

	repo, err := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	if err != nil {
		cli.Fatal(logger, "Storage unavailable", err)
	}
	defer repo.Close()

	amqpClient, err := cli.InitAMQP(logger, cfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP client", err)
	}
	// Keep a typed nil out of the interface.
	var events core.EventPublisher
	if amqpClient != nil {
		events = amqpClient
		defer amqpClient.Close()
	}

	views := ledger.NewEngine(repo, ledger.Options{CacheSize: cfg.CacheSize, CacheTTL: cfg.CacheTTL})
	caches := cache.NewManager()
	for _, c := range views.Cleaners() {
		caches.Register(c)
	}
	caches.StartCleanup(cfg.CacheTTL)
	defer caches.Stop()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Profiles:     services.NewProfileService(repo, views, events),
		Categories:   services.NewCategoryService(repo, views, events),
		Transactions: services.NewTransactionService(repo, views, events),
		Ledger:       views,
		Enrollments:  challenge.NewEngine(repo, challenge.Options{Location: loc, Events: events}),
		Catalog:      challenge.NewCatalog(repo),
		Ready:        repo.Ping,
	}, apphttp.Options{
		UserHeader:         cfg.UserHeader,
		RoleHeader:         cfg.RoleHeader,
		Location:           loc,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	})

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", srv.Addr, "timezone", loc.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		cli.Fatal(logger, "Server error", err)
	}
	logger.Info("Server stopped gracefully", applog.FieldOperation, applog.OpShutdown)
}
