package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/storm-data-aggregator/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	ReportDir         string
	OutputPath        string
	AggregateWorkers  int
	AggregateInterval time.Duration
	Region            domain.Bounds
	Margin            float64
	SchemaFile        string
	Registry          *domain.Registry
	KafkaBrokers      []string
	KafkaSinkTopic    string
	SQLitePath        string
	HTTPAddr          string
	LogLevel          string
	LogFormat         string
	ShutdownTimeout   time.Duration

	// SPC retrieval.
	SPCBaseURL      string
	FetchTimeout    time.Duration
	FetchRetries    int
	FetchRetryDelay time.Duration
}

// Settings returns the normalization settings derived from the configuration.
func (c *Config) Settings() domain.Settings {
	return domain.Settings{Registry: c.Registry, Region: c.Region, Margin: c.Margin}
}

// KafkaEnabled reports whether rows should also be published to Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	workers, err := parseInt("AGGREGATE_WORKERS", "4")
	if err != nil {
		return nil, err
	}
	if workers < 1 || workers > 64 {
		return nil, errors.New("AGGREGATE_WORKERS must be between 1 and 64")
	}

	interval, err := parseDuration("AGGREGATE_INTERVAL", "0s")
	if err != nil {
		return nil, err
	}
	if interval < 0 {
		return nil, errors.New("AGGREGATE_INTERVAL must not be negative")
	}

	region, margin, err := parseRegion()
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}
	if fetchTimeout <= 0 {
		return nil, errors.New("FETCH_TIMEOUT must be positive")
	}
	fetchRetries, err := parseInt("FETCH_RETRIES", "3")
	if err != nil {
		return nil, err
	}
	if fetchRetries < 1 {
		return nil, errors.New("FETCH_RETRIES must be at least 1")
	}
	fetchRetryDelay, err := parseDuration("FETCH_RETRY_DELAY", "15s")
	if err != nil {
		return nil, err
	}
	if fetchRetryDelay < 0 {
		return nil, errors.New("FETCH_RETRY_DELAY must not be negative")
	}

	cfg := &Config{
		ReportDir:         sharedcfg.EnvOrDefault("STORM_REPORT_DIR", "data/raw/storm_report_data"),
		OutputPath:        sharedcfg.EnvOrDefault("OUTPUT_PATH", "data/processed/storm_reports.parquet"),
		AggregateWorkers:  workers,
		AggregateInterval: interval,
		Region:            region,
		Margin:            margin,
		SchemaFile:        os.Getenv("SCHEMA_FILE"),
		KafkaBrokers:      parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaSinkTopic:    sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "storm-reports"),
		SQLitePath:        os.Getenv("SQLITE_PATH"),
		HTTPAddr:          sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:          sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:         sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:   shutdownTimeout,

		SPCBaseURL:      strings.TrimRight(sharedcfg.EnvOrDefault("SPC_BASE_URL", "https://www.spc.noaa.gov/climo/reports"), "/"),
		FetchTimeout:    fetchTimeout,
		FetchRetries:    fetchRetries,
		FetchRetryDelay: fetchRetryDelay,
	}

	if cfg.SchemaFile != "" {
		cfg.Registry, err = LoadSchemaFile(cfg.SchemaFile)
		if err != nil {
			return nil, err
		}
	} else {
		cfg.Registry = domain.DefaultRegistry()
	}

	if cfg.ReportDir == "" {
		return nil, errors.New("STORM_REPORT_DIR is required")
	}
	if cfg.OutputPath == "" {
		return nil, errors.New("OUTPUT_PATH is required")
	}
	if cfg.KafkaEnabled() && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

func parseRegion() (domain.Bounds, float64, error) {
	def := domain.ContinentalUS
	var b domain.Bounds
	fields := []struct {
		key string
		def float64
		dst *float64
	}{
		{"GEO_LAT_MIN", def.MinLat, &b.MinLat},
		{"GEO_LAT_MAX", def.MaxLat, &b.MaxLat},
		{"GEO_LON_MIN", def.MinLon, &b.MinLon},
		{"GEO_LON_MAX", def.MaxLon, &b.MaxLon},
	}
	for _, f := range fields {
		v, err := parseFloat(f.key, f.def)
		if err != nil {
			return domain.Bounds{}, 0, err
		}
		*f.dst = v
	}
	if b.MinLat >= b.MaxLat {
		return domain.Bounds{}, 0, errors.New("GEO_LAT_MIN must be less than GEO_LAT_MAX")
	}
	if b.MinLon >= b.MaxLon {
		return domain.Bounds{}, 0, errors.New("GEO_LON_MIN must be less than GEO_LON_MAX")
	}

	margin, err := parseFloat("GEO_MARGIN", domain.DefaultMargin)
	if err != nil {
		return domain.Bounds{}, 0, err
	}
	if margin < 0 {
		return domain.Bounds{}, 0, errors.New("GEO_MARGIN must not be negative")
	}
	return b, margin, nil
}

func parseBrokers(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return sharedcfg.ParseBrokers(s)
}

func parseInt(key, def string) (int, error) {
	n, err := strconv.Atoi(sharedcfg.EnvOrDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
