package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/crime-stats-service/internal/adapter/httpadapter"
	"github.com/couchcryptid/crime-stats-service/internal/adapter/police"
	"github.com/couchcryptid/crime-stats-service/internal/adapter/postgres"
	"github.com/couchcryptid/crime-stats-service/internal/adapter/rediscache"
	"github.com/couchcryptid/crime-stats-service/internal/adapter/reftable"
	"github.com/couchcryptid/crime-stats-service/internal/config"
	"github.com/couchcryptid/crime-stats-service/internal/domain"
	"github.com/couchcryptid/crime-stats-service/internal/memo"
	"github.com/couchcryptid/crime-stats-service/internal/observability"
	"github.com/couchcryptid/crime-stats-service/internal/pipeline"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to read .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	gazetteer, err := reftable.Load(cfg.ReferencePath, logger)
	if err != nil {
		logger.Error("failed to load reference table", "path", cfg.ReferencePath, "error", err)
		os.Exit(1)
	}

	checks := readiness{}

	var source pipeline.Source
	switch cfg.SourceBackend {
	case config.SourceStore:
		store, err := postgres.Open(cfg.DatabaseURL, metrics, logger)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer store.Close()
		source = store
		checks = append(checks, store.CheckReadiness)
		logger.Info("record source: pre-aggregated store")
	default:
		source = police.NewClient(cfg.PoliceAPIURL, cfg.RetrievalTimeout, metrics, logger)
		logger.Info("record source: live police API", "url", cfg.PoliceAPIURL)
	}

	caches := pipeline.NewMemoryCaches(logger)
	if cfg.CacheBackend == config.CacheRedis {
		client := rediscache.Open(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer client.Close()
		caches = redisCaches(client, logger)
		checks = append(checks, func(ctx context.Context) error { return rediscache.Ping(ctx, client) })
		logger.Info("memo backend: redis", "addr", cfg.RedisAddr)
	}

	opts := pipeline.Options{
		Timeout:     cfg.RetrievalTimeout,
		MaxAttempts: cfg.RetrievalMaxAttempts,
		Backoff:     cfg.RetrievalBackoff,
		Policy: domain.RatePolicy{
			FractionalScale: cfg.FractionalScale,
			FractionalWidth: cfg.FractionalWidth,
			RatioWidth:      cfg.RatioWidth,
		},
	}
	p := pipeline.New(gazetteer, source, caches, opts, logger, metrics)
	checks = append(checks, p.CheckReadiness)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, checks, cfg.DefaultLocationLimit, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

func redisCaches(client *redis.Client, logger *slog.Logger) pipeline.Caches {
	return pipeline.Caches{
		Totals: memo.New[[]domain.LocationStat](domain.KindTotals,
			rediscache.NewStore[[]domain.LocationStat](client, "crime-stats:"+domain.KindTotals, 0), logger),
		Map: memo.New[[]domain.MapStat](domain.KindMap,
			rediscache.NewStore[[]domain.MapStat](client, "crime-stats:"+domain.KindMap, 0), logger),
		Categories: memo.New[[]domain.CategoryStat](domain.KindCategories,
			rediscache.NewStore[[]domain.CategoryStat](client, "crime-stats:"+domain.KindCategories, 0), logger),
	}
}

// readiness reports ready when every dependency check passes.
type readiness []func(context.Context) error

func (r readiness) CheckReadiness(ctx context.Context) error {
	for _, check := range r {
		if err := check(ctx); err != nil {
			return err
		}
	}
	return nil
}
