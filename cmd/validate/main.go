// Command validate checks the integrity of an aggregated storm report Parquet
// file: schema values, state codes, coordinate bounds, timestamps and row
// order. With -source-dir it also re-aggregates the source files and compares
// the result row for row.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -parquet data/processed/storm_reports.parquet \
//	  -source-dir data/raw/storm_report_data
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/couchcryptid/storm-data-aggregator/internal/adapter/csvfile"
	"github.com/couchcryptid/storm-data-aggregator/internal/adapter/parquet"
	"github.com/couchcryptid/storm-data-aggregator/internal/config"
	"github.com/couchcryptid/storm-data-aggregator/internal/domain"
	"github.com/couchcryptid/storm-data-aggregator/internal/observability"
	"github.com/couchcryptid/storm-data-aggregator/internal/pipeline"
)

func main() {
	parquetPath := flag.String("parquet", "", "aggregated Parquet file to check")
	sourceDir := flag.String("source-dir", "", "optional report directory to re-aggregate and compare against")
	flag.Parse()

	if *parquetPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		os.Exit(1)
	}

	if code := run(context.Background(), cfg.Settings(), *parquetPath, *sourceDir, os.Stdout); code != 0 {
		os.Exit(code)
	}
}

func run(ctx context.Context, settings domain.Settings, parquetPath, sourceDir string, out io.Writer) int {
	fmt.Fprintln(out, "=== Storm Report Output Validation ===")
	fmt.Fprintln(out)

	rows, err := parquet.ReadFile(parquetPath)
	if err != nil {
		fmt.Fprintf(out, "FATAL: read parquet: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateSchema(rows),
		validateStates(rows),
		validateCoordinates(rows, settings),
		validateTimestamps(rows),
		validateOrder(rows),
	}

	if sourceDir != "" {
		expected, err := reaggregate(ctx, settings, sourceDir)
		if err != nil {
			fmt.Fprintf(out, "FATAL: re-aggregate %s: %v\n", sourceDir, err)
			return 1
		}
		phases = append(phases, validateSourceParity(rows, expected))
	}

	return report(out, phases, len(rows))
}

func reaggregate(ctx context.Context, settings domain.Settings, dir string) ([]domain.CanonicalRow, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	transformer := pipeline.NewTransformer(settings, csvfile.NewLoader(logger), logger)
	p := pipeline.New(csvfile.NewDirSource(dir, logger), transformer, nil, 4, logger, observability.NewMetricsForTesting(), nil)

	res, err := p.Aggregate(ctx)
	if err != nil {
		return nil, err
	}
	return res.Rows, nil
}

func report(out io.Writer, phases []*phase, rowCount int) int {
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Rows: %d\n", rowCount)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
		if p.dropped > 0 {
			fmt.Fprintf(out, "  ... and %d more\n", p.dropped)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}
