// Command fetch downloads SPC daily storm report CSV files into the directory
// layout the aggregator reads (hail/, tornado/, wind/). Days without reports
// of a category get a header-only placeholder file.
//
// Usage:
//
//	go run ./cmd/fetch --start 2024-04-01 --end 2024-04-30
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/storm-data-aggregator/internal/adapter/spc"
	"github.com/couchcryptid/storm-data-aggregator/internal/config"
	"github.com/couchcryptid/storm-data-aggregator/internal/observability"
)

// publicationLag is how far behind today the default end date stays, since
// SPC keeps revising recent days.
const publicationLag = 7 * 24 * time.Hour

type options struct {
	start     string
	end       string
	dir       string
	overwrite bool
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(clockwork.NewRealClock()).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd(clock clockwork.Clock) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download SPC storm report files for a date range",
		Long: `Downloads the daily hail, tornado and wind report CSVs published by the
Storm Prediction Center. Existing files are kept unless --overwrite is given.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFetch(cmd.Context(), clock, opts)
		},
	}

	cmd.Flags().StringVar(&opts.start, "start", spc.DefaultStart.Format(time.DateOnly), "first day to fetch (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.end, "end", "", "last day to fetch (YYYY-MM-DD, default: one week ago)")
	cmd.Flags().StringVar(&opts.dir, "dir", "", "output root (default: STORM_REPORT_DIR)")
	cmd.Flags().BoolVar(&opts.overwrite, "overwrite", false, "replace files that already exist")
	return cmd
}

func runFetch(ctx context.Context, clock clockwork.Clock, opts options) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(cfg)

	start, end, err := resolveRange(clock, opts.start, opts.end)
	if err != nil {
		return err
	}
	dir := opts.dir
	if dir == "" {
		dir = cfg.ReportDir
	}

	metrics := observability.NewUnregisteredMetrics()
	client := spc.NewClient(cfg.SPCBaseURL, cfg.FetchTimeout, cfg.FetchRetries, cfg.FetchRetryDelay, logger, metrics)
	d := spc.NewDownloader(client, dir, cfg.Registry, opts.overwrite, logger)

	logger.Info("fetch started",
		"start", start.Format(time.DateOnly),
		"end", end.Format(time.DateOnly),
		"dir", dir,
		"overwrite", opts.overwrite,
	)
	sum, err := d.DownloadRange(ctx, start, end)
	logRequests(logger, metrics)
	if err != nil {
		return err
	}
	if sum.Failed > 0 {
		return fmt.Errorf("%d report files failed to download", sum.Failed)
	}
	return nil
}

// logRequests reports the request counters, since nothing scrapes a CLI run.
func logRequests(logger *slog.Logger, metrics *observability.Metrics) {
	counts, err := metrics.FetchCounts()
	if err != nil {
		logger.Warn("read request counters", "error", err)
		return
	}
	keys := slices.Sorted(maps.Keys(counts))
	args := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		args = append(args, k, counts[k])
	}
	logger.Info("spc requests", args...)
}

// resolveRange parses the flag values. An empty end defaults to one week
// before the clock's current day.
func resolveRange(clock clockwork.Clock, startFlag, endFlag string) (time.Time, time.Time, error) {
	start, err := time.Parse(time.DateOnly, startFlag)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --start: %w", err)
	}

	var end time.Time
	if endFlag == "" {
		y, m, d := clock.Now().UTC().Add(-publicationLag).Date()
		end = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	} else {
		end, err = time.Parse(time.DateOnly, endFlag)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --end: %w", err)
		}
	}

	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("--end %s is before --start %s", end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	return start, end, nil
}
