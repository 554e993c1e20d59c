package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sjsage522/catalogworker/config"
	"sjsage522/catalogworker/helpers"
	"sjsage522/catalogworker/internal"
	"sjsage522/catalogworker/internal/crawler"
	"sjsage522/catalogworker/internal/metrics"
	"sjsage522/catalogworker/logger"
	"sjsage522/catalogworker/services/cache"
	"sjsage522/catalogworker/services/persister"
	"sjsage522/catalogworker/services/publisher"
	"sjsage522/catalogworker/services/store"
	"sjsage522/catalogworker/services/worker"

	"github.com/joho/godotenv"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load environment variables, the real environment wins
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return 1
	}

	brands, err := config.LoadBrands(cfg.BrandFile)
	if err != nil {
		log.Error().Err(err).Str("file", cfg.BrandFile).Msg("Failed to load brands")
		return 1
	}

	log.Info().
		Str("environment", cfg.Environment).
		Int("test_mode", cfg.TestMode).
		Bool("use_schedule", cfg.UseSchedule).
		Bool("use_store", cfg.UseStore).
		Str("cron", cfg.CronSpec).
		Msg("Starting application")

	// Cancel on SIGINT or SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	services := initializeServices(ctx, cfg)
	defer services.Cleanup()

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, services.Metrics)
		defer srv.Shutdown(context.Background())
	}

	w, err := newWorker(cfg, brands, services)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create worker")
		return 1
	}

	if err := w.Start(ctx, cfg.CronSpec); err != nil {
		log.Error().Err(err).Msg("Worker exited with error")
		return 1
	}

	log.Info().Msg("Shutting down gracefully...")
	return 0
}

// initializeServices connects the optional backends. Only configuration
// faults stop the process, so an unreachable store or Redis is logged and left out.
func initializeServices(ctx context.Context, cfg *config.Config) *internal.Dependencies {
	services := &internal.Dependencies{
		Metrics: metrics.New(),
		Journal: helpers.NewLogger(cfg.ErrorLogFile),
	}

	// Block markers live in memcache when configured so several workers share them
	services.Cache = cache.NewMemoryService()
	if cfg.MemcacheAddr != "" {
		mc := cache.NewMemcacheService(cfg.MemcacheAddr, "catalogworker")
		if err := mc.Ping(); err != nil {
			logger.Warn("Memcache at %s unreachable, keeping block markers in memory: %v", cfg.MemcacheAddr, err)
		} else {
			services.Cache = mc
			logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
		}
	}

	if cfg.UseStore {
		openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		s, err := store.Open(openCtx, cfg)
		cancel()
		if err != nil {
			services.Journal.LogError("store", err)
			logger.Warn("Store unavailable, persisting snapshot only: %v", err)
		} else {
			services.Store = s
		}
	}

	if cfg.RedisAddr != "" {
		redisPublisher := publisher.NewRedisPublisher(
			ctx,
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamCount,
			cfg.RedisStreamMaxLength,
		)
		if err := redisPublisher.Ping(); err != nil {
			logger.Warn("Redis at %s unreachable, change feed disabled: %v", cfg.RedisAddr, err)
			redisPublisher.Close()
		} else {
			services.Publisher = redisPublisher
			logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
				cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
		}
	}

	return services
}

// newWorker assembles the fetcher, harvester and persister for cfg
func newWorker(cfg *config.Config, brands *config.BrandSchedule, services *internal.Dependencies) (*worker.Worker, error) {
	fetcher, err := crawler.NewFetcher(crawler.FetcherOptions{
		Client:            helpers.DefaultClient(cfg.FetchTimeout),
		DelayMin:          cfg.FetchDelayMin,
		DelayMax:          cfg.FetchDelayMax,
		Cache:             services.Cache,
		BlockTime:         cfg.RateLimitBlock,
		DocumentCacheSize: cfg.DocumentCacheSize,
		RespectRobots:     cfg.RespectRobots,
		Metrics:           services.Metrics,
	})
	if err != nil {
		return nil, err
	}

	harvester := crawler.NewHarvester(
		fetcher,
		crawler.DefaultSiteConfig(cfg.BaseURL),
		crawler.HarvestOptions{Limit: cfg.ProductLimit(), MaxPages: cfg.MaxPages},
		services.Metrics,
	)

	opts := persister.Options{
		SnapshotPath: cfg.SnapshotFile,
		BatchSize:    cfg.StoreBatchSize,
		Publisher:    services.Publisher,
		Metrics:      services.Metrics,
	}
	if cfg.SnapshotBucket != "" {
		opts.Uploader = persister.NewBucketUploader(cfg.SnapshotBucket, "snapshots")
	}

	return worker.NewWorker(
		brands,
		harvester,
		persister.NewPersister(services.Store, opts),
		services.Journal,
		worker.Options{
			UseSchedule: cfg.UseSchedule,
			TestMode:    cfg.TestMode,
			Publisher:   services.Publisher,
			BeforeRun:   fetcher.ResetDocuments,
		},
	), nil
}

func serveMetrics(addr string, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("Serving metrics on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed: %v", err)
		}
	}()
	return srv
}
