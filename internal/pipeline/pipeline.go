package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/storm-data-aggregator/internal/domain"
	"github.com/couchcryptid/storm-data-aggregator/internal/observability"
)

// FileSource enumerates the report files of one aggregation run.
type FileSource interface {
	ListFiles(ctx context.Context) ([]string, error)
}

// Transformer converts one report file into canonical rows.
type Transformer interface {
	Transform(ctx context.Context, path string) (FileBatch, error)
}

// BatchLoader persists the complete, sorted result of a run.
type BatchLoader interface {
	LoadBatch(ctx context.Context, rows []domain.CanonicalRow) error
}

// Sink is a named BatchLoader.
type Sink struct {
	Name   string
	Loader BatchLoader
}

// File outcomes recorded per run.
const (
	OutcomeProcessed       = "processed"
	OutcomeUnknownCategory = "unknown_category"
	OutcomeMalformedDate   = "malformed_date"
	OutcomeReadError       = "read_error"
)

// Result summarizes one aggregation run.
type Result struct {
	RunID             string
	Rows              []domain.CanonicalRow
	Files             map[string]int // by outcome
	RowsLoaded        int
	Drops             domain.DropStats
	TimestampFailures int
	Duration          time.Duration
}

type fileResult struct {
	batch   FileBatch
	outcome string
}

// Pipeline aggregates every report file into one sorted canonical table and
// hands it to the configured sinks.
type Pipeline struct {
	source      FileSource
	transformer Transformer
	sinks       []Sink
	workers     int
	logger      *slog.Logger
	metrics     *observability.Metrics
	clock       clockwork.Clock
	ready       atomic.Bool
	lastRun     atomic.Pointer[domain.RunSummary]
}

// New creates a Pipeline. workers bounds how many files are processed at once.
func New(source FileSource, transformer Transformer, sinks []Sink, workers int, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		source:      source,
		transformer: transformer,
		sinks:       sinks,
		workers:     workers,
		logger:      logger,
		metrics:     metrics,
		clock:       clock,
	}
}

// CheckReadiness returns nil once at least one run has succeeded.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no aggregation run has completed yet")
	}
	return nil
}

// LastRun returns the summary of the most recent successful run.
func (p *Pipeline) LastRun() (domain.RunSummary, bool) {
	s := p.lastRun.Load()
	if s == nil {
		return domain.RunSummary{}, false
	}
	return *s, true
}

// Aggregate performs one complete run: every file is transformed, the
// batches are concatenated in file order and stably sorted by timestamp,
// newest first. Sinks receive the result only after it is complete. A run
// that yields no rows fails with domain.ErrEmptyAggregationResult and
// writes nothing.
func (p *Pipeline) Aggregate(ctx context.Context) (*Result, error) {
	start := p.clock.Now()
	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID)

	p.metrics.AggregationRunning.Set(1)
	defer p.metrics.AggregationRunning.Set(0)

	paths, err := p.source.ListFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list report files: %w", err)
	}
	logger.Info("aggregation started", "files", len(paths), "workers", p.workers)

	results, err := p.transformAll(ctx, logger, paths)
	if err != nil {
		return nil, err
	}

	res := p.merge(runID, results)
	if len(res.Rows) == 0 {
		logger.Error("aggregation produced no rows", "files", len(paths), "dropped", res.Drops.Total())
		return nil, fmt.Errorf("%w: %d files, %d rows loaded", domain.ErrEmptyAggregationResult, len(paths), res.RowsLoaded)
	}
	domain.SortByTimestampDesc(res.Rows)

	sinkCtx := domain.ContextWithRunID(ctx, runID)
	for _, s := range p.sinks {
		if err := s.Loader.LoadBatch(sinkCtx, res.Rows); err != nil {
			return nil, fmt.Errorf("write %s: %w", s.Name, err)
		}
		logger.Debug("sink written", "sink", s.Name, "rows", len(res.Rows))
	}

	res.Duration = p.clock.Since(start)
	p.metrics.RowsOutput.Add(float64(len(res.Rows)))
	p.metrics.AggregationDuration.Observe(res.Duration.Seconds())
	finished := p.clock.Now()
	p.metrics.LastSuccess.Set(float64(finished.Unix()))
	p.lastRun.Store(&domain.RunSummary{
		RunID:             runID,
		FinishedAt:        finished.UTC(),
		DurationSeconds:   res.Duration.Seconds(),
		Files:             res.Files,
		RowsLoaded:        res.RowsLoaded,
		RowsOutput:        len(res.Rows),
		Dropped:           res.Drops,
		TimestampFailures: res.TimestampFailures,
	})
	p.ready.Store(true)

	logger.Info("aggregation complete",
		"files", len(paths),
		"rows", len(res.Rows),
		"dropped", res.Drops.Total(),
		"timestamp_failures", res.TimestampFailures,
		"duration", res.Duration,
	)
	return res, nil
}

// transformAll processes files concurrently. Each worker writes only its own
// slot, so the results need no locking and keep file order.
func (p *Pipeline) transformAll(ctx context.Context, logger *slog.Logger, paths []string) ([]fileResult, error) {
	results := make([]fileResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			batch, err := p.transformer.Transform(gctx, path)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				results[i] = fileResult{outcome: p.skip(logger, path, err)}
				return nil
			}
			results[i] = fileResult{batch: batch, outcome: OutcomeProcessed}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// skip logs why a file was left out and returns its outcome. Unknown
// categories are expected alongside report files and only logged at debug.
func (p *Pipeline) skip(logger *slog.Logger, path string, err error) string {
	switch {
	case errors.Is(err, domain.ErrUnknownCategory):
		logger.Debug("file skipped", "path", path, "reason", OutcomeUnknownCategory)
		return OutcomeUnknownCategory
	case errors.Is(err, domain.ErrMalformedDateToken):
		logger.Warn("file skipped", "path", path, "reason", OutcomeMalformedDate, "error", err)
		return OutcomeMalformedDate
	default:
		logger.Warn("file skipped", "path", path, "reason", OutcomeReadError, "error", err)
		return OutcomeReadError
	}
}

func (p *Pipeline) merge(runID string, results []fileResult) *Result {
	res := &Result{
		RunID: runID,
		Files: make(map[string]int),
		Drops: domain.DropStats{},
	}

	total := 0
	for _, r := range results {
		total += len(r.batch.Rows)
	}
	res.Rows = make([]domain.CanonicalRow, 0, total)

	for _, r := range results {
		res.Files[r.outcome]++
		p.metrics.Files.WithLabelValues(r.outcome).Inc()
		if r.outcome != OutcomeProcessed {
			continue
		}
		res.Rows = append(res.Rows, r.batch.Rows...)
		res.RowsLoaded += r.batch.Loaded
		res.Drops.Add(r.batch.Drops)
		res.TimestampFailures += r.batch.TimestampFailures
	}

	p.metrics.RowsLoaded.Add(float64(res.RowsLoaded))
	for reason, n := range res.Drops {
		p.metrics.RowsDropped.WithLabelValues(string(reason)).Add(float64(n))
	}
	p.metrics.TimestampFailures.Add(float64(res.TimestampFailures))
	return res
}

// Run aggregates every interval until the context is cancelled. A failed run
// is retried with exponential backoff starting at 200ms and capped at the
// interval.
func (p *Pipeline) Run(ctx context.Context, interval time.Duration) error {
	p.logger.Info("aggregator started", "interval", interval)

	const initialBackoff = 200 * time.Millisecond
	backoff := initialBackoff
	maxBackoff := max(interval, initialBackoff)

	for {
		if ctx.Err() != nil {
			p.logger.Info("aggregator stopping", "reason", ctx.Err())
			return nil
		}

		wait := interval
		if _, err := p.Aggregate(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Error("aggregation failed", "error", err, "retry_in", backoff)
			wait = backoff
			backoff = nextBackoff(backoff, maxBackoff)
		} else {
			backoff = initialBackoff
		}

		if !sleepWithContext(ctx, p.clock, wait) {
			p.logger.Info("aggregator stopping", "reason", ctx.Err())
			return nil
		}
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
