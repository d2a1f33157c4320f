package domain

import "time"

// RunSummary describes a completed aggregation run.
type RunSummary struct {
	RunID             string             `json:"run_id"`
	FinishedAt        time.Time          `json:"finished_at"`
	DurationSeconds   float64            `json:"duration_seconds"`
	Files             map[string]int     `json:"files"`
	RowsLoaded        int                `json:"rows_loaded"`
	RowsOutput        int                `json:"rows_output"`
	Dropped           map[DropReason]int `json:"dropped"`
	TimestampFailures int                `json:"timestamp_failures"`
}
