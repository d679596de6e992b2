// Copyright 2025 James Ross
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/jamesross/catalog-scrape-core/internal/adminapi"
	"github.com/jamesross/catalog-scrape-core/internal/alerting"
	"github.com/jamesross/catalog-scrape-core/internal/catalog"
	"github.com/jamesross/catalog-scrape-core/internal/config"
	"github.com/jamesross/catalog-scrape-core/internal/handlers"
	"github.com/jamesross/catalog-scrape-core/internal/imagepipeline"
	"github.com/jamesross/catalog-scrape-core/internal/obs"
	"github.com/jamesross/catalog-scrape-core/internal/queue"
	"github.com/jamesross/catalog-scrape-core/internal/reaper"
	"github.com/jamesross/catalog-scrape-core/internal/urlpolicy"
	"github.com/jamesross/catalog-scrape-core/internal/worker"
)

var version = "dev"

func main() {
	var configPath string
	var showVersion bool

	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.StringVar(&configPath, "config", "config/config.yaml", "path to YAML config")
	fs.BoolVar(&showVersion, "version", false, "print version and exit")
	_ = fs.Parse(os.Args[1:])

	if showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := obs.NewLoggerWithFile(cfg.Observability.LogLevel, cfg.Observability.LogFile, cfg.Observability.LogMaxSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logger.Fatal("failed to open database", obs.Err(err))
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	defer db.Close()

	if err := queue.InitSchema(db); err != nil {
		logger.Fatal("failed to init schema", obs.Err(err))
	}

	store := queue.NewStore(db)
	writer := catalog.NewWriter(db)

	objectStore, err := imagepipeline.NewObjectStore(imagepipeline.ObjectStoreConfig{
		Endpoint:  cfg.ObjectStore.Endpoint,
		KeyID:     cfg.ObjectStore.KeyID,
		Secret:    cfg.ObjectStore.Secret,
		Bucket:    cfg.ObjectStore.Bucket,
		Region:    cfg.ObjectStore.Region,
		PublicURL: cfg.ObjectStore.PublicURL,
		PathStyle: cfg.ObjectStore.PathStyle,
	})
	if err != nil {
		logger.Fatal("failed to init object store", obs.Err(err))
	}
	images := imagepipeline.NewPipeline(objectStore,
		imagepipeline.WithConcurrency(cfg.Worker.ImageConcurrency),
	)

	limiter := urlpolicy.NewHostLimiter(cfg.Site.CrawlDelay, cfg.Site.BotCrawlDelay)
	httpClient := &http.Client{Timeout: 30 * time.Second}

	registry := handlers.NewRegistry()
	registry.Register(queue.JobNavigation, handlers.NewNavigationHandler(httpClient, limiter, cfg.Site.UserAgent))
	registry.Register(queue.JobCategory, handlers.NewCategoryHandler(httpClient, limiter, cfg.Site.UserAgent))
	registry.Register(queue.JobProduct, handlers.NewProductHandler(httpClient, limiter, cfg.Site.UserAgent))

	var alerts *alerting.Dispatcher
	if cfg.Alerting.WebhookURL != "" {
		alerts = alerting.NewDispatcher(cfg.Alerting.WebhookURL, cfg.Alerting.Secret, cfg.Alerting.RateLimitPerMin, cfg.Alerting.Timeout, logger)
	}

	pool := worker.New(cfg, store, writer, registry, images, alerts, logger)
	rep := reaper.New(cfg, store, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("signal received, shutting down", obs.String("signal", sig.String()))
		cancel()
		select {
		case sig2 := <-sigCh:
			logger.Warn("second signal received, exiting immediately", obs.String("signal", sig2.String()))
			os.Exit(1)
		case <-time.After(cfg.Worker.ShutdownTimeout + 5*time.Second):
		}
	}()

	obs.StartStatsPoller(ctx, func(c context.Context) (obs.Stats, error) {
		s, err := store.GetStats(c)
		if err != nil {
			return obs.Stats{}, err
		}
		return obs.Stats{Queued: s.Queued, Running: s.Running, Completed: s.Completed, Failed: s.Failed, Locked: s.Locked}, nil
	}, 5*time.Second, logger)

	go rep.Run(ctx)

	adminHandler := adminapi.NewHandler(store, images, pool, logger)
	apiSrv := adminapi.NewServer(fmt.Sprintf(":%d", cfg.Port), adminHandler)
	go func() {
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin api server error", obs.Err(err))
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = apiSrv.Shutdown(shutdownCtx)
	}()

	if err := adminHandler.Start(ctx); err != nil {
		logger.Error("worker pool error", obs.Err(err))
	}
}
