// Command ingest loads street-level crime records from the police API,
// aggregates them per location and month, and upserts the results into the
// location_totals and category_totals tables read by SOURCE_BACKEND=store.
// With KAFKA_ENABLED=true each cleaned record is also published to
// KAFKA_RECORDS_TOPIC.
//
// Usage:
//
//	go run ./cmd/ingest \
//	  -locations London,Manchester,Liverpool \
//	  -start 2020-01 -end 2023-12
//
// Without -locations the first DEFAULT_LOCATION_LIMIT reference names are
// used. Without -start/-end only the latest published month is loaded.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/couchcryptid/crime-stats-service/internal/adapter/kafka"
	"github.com/couchcryptid/crime-stats-service/internal/adapter/police"
	"github.com/couchcryptid/crime-stats-service/internal/adapter/postgres"
	"github.com/couchcryptid/crime-stats-service/internal/adapter/reftable"
	"github.com/couchcryptid/crime-stats-service/internal/config"
	"github.com/couchcryptid/crime-stats-service/internal/domain"
	"github.com/couchcryptid/crime-stats-service/internal/ingest"
	"github.com/couchcryptid/crime-stats-service/internal/observability"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		slog.Error("ingest failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	locations := flag.String("locations", "", "comma-separated location names (default: first DEFAULT_LOCATION_LIMIT reference names)")
	start := flag.String("start", "", "first month to load, YYYY-MM")
	end := flag.String("end", "", "last month to load, YYYY-MM")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required for ingest")
	}

	var rng *domain.PeriodRange
	switch {
	case *start == "" && *end == "":
	case *start == "" || *end == "":
		flag.Usage()
		return errors.New("-start and -end must be given together")
	default:
		r, err := domain.ParsePeriodRange(*start, *end)
		if err != nil {
			return err
		}
		rng = &r
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	gazetteer, err := reftable.Load(cfg.ReferencePath, logger)
	if err != nil {
		return fmt.Errorf("load reference table: %w", err)
	}

	names := gazetteer.Names(cfg.DefaultLocationLimit)
	if *locations != "" {
		names = splitNames(*locations)
	}

	store, err := postgres.Open(cfg.DatabaseURL, metrics, logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	var publisher ingest.RecordPublisher
	if cfg.KafkaEnabled {
		pub := kafka.NewPublisher(cfg, logger)
		defer func() {
			if err := pub.Close(); err != nil {
				logger.Error("kafka publisher close error", "error", err)
			}
		}()
		publisher = pub
		logger.Info("record publishing enabled", "topic", cfg.KafkaRecordsTopic, "brokers", cfg.KafkaBrokers)
	}

	client := police.NewClient(cfg.PoliceAPIURL, cfg.RetrievalTimeout, metrics, logger)
	policy := domain.RatePolicy{
		FractionalScale: cfg.FractionalScale,
		FractionalWidth: cfg.FractionalWidth,
		RatioWidth:      cfg.RatioWidth,
	}
	loader := ingest.NewLoader(gazetteer, client, store, publisher, policy, logger, metrics)

	_, err = loader.Run(ctx, names, rng)
	return err
}

func splitNames(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
