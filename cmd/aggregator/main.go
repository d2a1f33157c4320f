// Command aggregator merges the SPC hail, tornado and wind report files into
// one canonical table sorted newest first. With AGGREGATE_INTERVAL unset it
// runs once and exits; otherwise it re-aggregates on that interval and serves
// /healthz, /readyz, /status and /metrics.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/storm-data-aggregator/internal/adapter/csvfile"
	httpadapter "github.com/couchcryptid/storm-data-aggregator/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/storm-data-aggregator/internal/adapter/kafka"
	"github.com/couchcryptid/storm-data-aggregator/internal/adapter/parquet"
	"github.com/couchcryptid/storm-data-aggregator/internal/adapter/sqlite"
	"github.com/couchcryptid/storm-data-aggregator/internal/config"
	"github.com/couchcryptid/storm-data-aggregator/internal/observability"
	"github.com/couchcryptid/storm-data-aggregator/internal/pipeline"
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sinks := []pipeline.Sink{{Name: "parquet", Loader: parquet.NewWriter(cfg.OutputPath, logger)}}

	var store *sqlite.Store
	if cfg.SQLitePath != "" {
		store, err = sqlite.Open(ctx, cfg.SQLitePath, logger)
		if err != nil {
			logger.Error("failed to open sqlite sink", "error", err)
			return 1
		}
		sinks = append(sinks, pipeline.Sink{Name: "sqlite", Loader: store})
		logger.Info("sqlite sink enabled", "path", cfg.SQLitePath)
	}

	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled() {
		writer = kafkaadapter.NewWriter(cfg, logger)
		sinks = append(sinks, pipeline.Sink{Name: "kafka", Loader: writer})
		logger.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
	}

	source := csvfile.NewDirSource(cfg.ReportDir, logger)
	transformer := pipeline.NewTransformer(cfg.Settings(), csvfile.NewLoader(logger), logger)
	p := pipeline.New(source, transformer, sinks, cfg.AggregateWorkers, logger, metrics, clockwork.NewRealClock())

	code := 0
	if cfg.AggregateInterval == 0 {
		if _, err := p.Aggregate(ctx); err != nil {
			logger.Error("aggregation failed", "error", err)
			code = 1
		}
	} else {
		serve(ctx, cfg, p, logger)
	}

	if store != nil {
		if err := store.Close(); err != nil {
			logger.Error("sqlite close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	return code
}

// serve runs the periodic aggregator and the HTTP server until a signal arrives.
func serve(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, logger *slog.Logger) {
	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := p.Run(ctx, cfg.AggregateInterval); err != nil {
			logger.Error("aggregator error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("aggregation still running at shutdown deadline")
	}

	logger.Info("shutdown complete")
}
