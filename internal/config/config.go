package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Source backends.
const (
	SourceLive  = "live"
	SourceStore = "store"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	ReferencePath        string
	DefaultLocationLimit int

	// Record source selection and retrieval policy.
	SourceBackend        string
	PoliceAPIURL         string
	DatabaseURL          string
	RetrievalTimeout     time.Duration
	RetrievalMaxAttempts int
	RetrievalBackoff     time.Duration

	// Memoization backend.
	CacheBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Ingest record publishing.
	KafkaEnabled      bool
	KafkaBrokers      []string
	KafkaRecordsTopic string

	// Truncation policy.
	FractionalScale float64
	FractionalWidth int
	RatioWidth      int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:          sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:          sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:         sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:   shutdownTimeout,
		ReferencePath:     sharedcfg.EnvOrDefault("REFERENCE_PATH", "data/gb_latlon.csv"),
		SourceBackend:     sharedcfg.EnvOrDefault("SOURCE_BACKEND", SourceLive),
		PoliceAPIURL:      sharedcfg.EnvOrDefault("POLICE_API_URL", "https://data.police.uk/api"),
		DatabaseURL:       sharedcfg.EnvOrDefault("DATABASE_URL", ""),
		CacheBackend:      sharedcfg.EnvOrDefault("CACHE_BACKEND", CacheMemory),
		RedisAddr:         sharedcfg.EnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     sharedcfg.EnvOrDefault("REDIS_PASSWORD", ""),
		KafkaBrokers:      sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaRecordsTopic: sharedcfg.EnvOrDefault("KAFKA_RECORDS_TOPIC", "crime-records"),
	}

	if cfg.RetrievalTimeout, err = parseDuration("RETRIEVAL_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.RetrievalBackoff, err = parseDuration("RETRIEVAL_BACKOFF", "200ms"); err != nil {
		return nil, err
	}
	if cfg.RetrievalMaxAttempts, err = parsePositiveInt("RETRIEVAL_MAX_ATTEMPTS", "3"); err != nil {
		return nil, err
	}
	if cfg.DefaultLocationLimit, err = parsePositiveInt("DEFAULT_LOCATION_LIMIT", "10"); err != nil {
		return nil, err
	}
	if cfg.FractionalWidth, err = parsePositiveInt("FRACTIONAL_WIDTH", "5"); err != nil {
		return nil, err
	}
	if cfg.RatioWidth, err = parsePositiveInt("RATIO_WIDTH", "3"); err != nil {
		return nil, err
	}

	scale := sharedcfg.EnvOrDefault("FRACTIONAL_SCALE", "100")
	if cfg.FractionalScale, err = strconv.ParseFloat(scale, 64); err != nil || cfg.FractionalScale <= 0 {
		return nil, fmt.Errorf("invalid FRACTIONAL_SCALE %q", scale)
	}

	redisDB := sharedcfg.EnvOrDefault("REDIS_DB", "0")
	if cfg.RedisDB, err = strconv.Atoi(redisDB); err != nil || cfg.RedisDB < 0 {
		return nil, fmt.Errorf("invalid REDIS_DB %q", redisDB)
	}

	kafkaEnabled := sharedcfg.EnvOrDefault("KAFKA_ENABLED", "false")
	if cfg.KafkaEnabled, err = strconv.ParseBool(kafkaEnabled); err != nil {
		return nil, fmt.Errorf("invalid KAFKA_ENABLED %q", kafkaEnabled)
	}

	switch cfg.SourceBackend {
	case SourceLive:
	case SourceStore:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("SOURCE_BACKEND is store but DATABASE_URL is not set")
		}
	default:
		return nil, fmt.Errorf("invalid SOURCE_BACKEND %q: want live or store", cfg.SourceBackend)
	}

	switch cfg.CacheBackend {
	case CacheMemory, CacheRedis:
	default:
		return nil, fmt.Errorf("invalid CACHE_BACKEND %q: want memory or redis", cfg.CacheBackend)
	}

	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaRecordsTopic == "" {
			return nil, errors.New("KAFKA_RECORDS_TOPIC is required when KAFKA_ENABLED is true")
		}
	}
	if cfg.ReferencePath == "" {
		return nil, errors.New("REFERENCE_PATH is required")
	}

	return cfg, nil
}

func parseDuration(name, def string) (time.Duration, error) {
	s := sharedcfg.EnvOrDefault(name, def)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return d, nil
}

func parsePositiveInt(name, def string) (int, error) {
	s := sharedcfg.EnvOrDefault(name, def)
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return n, nil
}
