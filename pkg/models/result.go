// Package models holds the result types shared between the pipeline and its
// callers.
package models

import "time"

// ProcessingResult summarises one file's run through the pipeline.
type ProcessingResult struct {
	Success         bool          `json:"success"`
	Skipped         bool          `json:"skipped"`
	FileName        string        `json:"file_name"`
	SourceKey       string        `json:"source_key,omitempty"`
	CanonicalKey    string        `json:"canonical_key,omitempty"`
	TablesProcessed int           `json:"tables_processed"`
	RowsProcessed   int           `json:"rows_processed"`
	Errors          []string      `json:"errors,omitempty"`
	DatabaseErrors  int           `json:"database_errors,omitempty"`
	ArchivePath     string        `json:"archive_path,omitempty"`
	ProcessingTime  time.Duration `json:"processing_time"`
}

// AddError appends a diagnostic and marks the run failed.
func (r *ProcessingResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Success = false
}

// BatchResult aggregates results across multiple files.
type BatchResult struct {
	Files           []ProcessingResult `json:"files"`
	FilesProcessed  int                `json:"files_processed"`
	FilesSkipped    int                `json:"files_skipped"`
	FilesFailed     int                `json:"files_failed"`
	TablesProcessed int                `json:"tables_processed"`
	RowsProcessed   int                `json:"rows_processed"`
	MergesProcessed int                `json:"merges_processed"`
	Errors          []string           `json:"errors,omitempty"`
}

// Add folds one file result into the aggregate.
func (b *BatchResult) Add(r ProcessingResult) {
	b.Files = append(b.Files, r)
	b.TablesProcessed += r.TablesProcessed
	b.RowsProcessed += r.RowsProcessed
	switch {
	case r.Skipped:
		b.FilesSkipped++
	case r.Success:
		b.FilesProcessed++
	default:
		b.FilesFailed++
	}
}
