package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Processing statuses recorded in file_processing_status.
const (
	StatusProcessing = "processing"
	StatusSuccess    = "success"
	StatusFailed     = "failed"
)

// FileStatus is one audit row for a processed file.
type FileStatus struct {
	ID           int64
	FileName     string
	ObjectKey    string
	Status       string
	JobRunName   string
	ErrorMessage string
	ArchivePath  string
	SizeBytes    int64
	StartedAt    time.Time
	EndedAt      time.Time
}

// StatusRepo tracks per-file processing audit records.
type StatusRepo struct {
	pool *pgxpool.Pool
}

// NewStatusRepo creates the audit repository.
func NewStatusRepo(pool *pgxpool.Pool) *StatusRepo {
	return &StatusRepo{pool: pool}
}

// EnsureSchema provisions the audit table if absent.
func (r *StatusRepo) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS file_processing_status (
			id BIGSERIAL PRIMARY KEY,
			file_name TEXT NOT NULL,
			object_key TEXT,
			status TEXT NOT NULL,
			job_run_name TEXT,
			error_message TEXT,
			archive_path TEXT,
			file_size_bytes BIGINT,
			processing_start_time TIMESTAMPTZ,
			processing_end_time TIMESTAMPTZ,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`
	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create file_processing_status: %w", err)
	}
	return nil
}

// Begin records that processing of a file has started and returns the job
// run name attached to the record.
func (r *StatusRepo) Begin(ctx context.Context, fileName, objectKey string, sizeBytes int64) (string, error) {
	jobRun := uuid.New().String()
	query := `
		INSERT INTO file_processing_status
		(file_name, object_key, status, job_run_name, file_size_bytes, processing_start_time)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	var id int64
	err := r.pool.QueryRow(ctx, query,
		fileName, objectKey, StatusProcessing, jobRun, sizeBytes, time.Now(),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to create processing record: %w", err)
	}
	log.Printf("[Store] created processing record %d for file %s", id, fileName)
	return jobRun, nil
}

// Finish updates the most recent in-flight record for the file. Returns
// false when no record was waiting.
func (r *StatusRepo) Finish(ctx context.Context, fileName, status, errorMessage, archivePath string) (bool, error) {
	query := `
		UPDATE file_processing_status
		SET status = $1,
			error_message = NULLIF($2, ''),
			archive_path = NULLIF($3, ''),
			processing_end_time = $4,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = (
			SELECT id FROM file_processing_status
			WHERE file_name = $5 AND status = $6
			ORDER BY created_at DESC
			LIMIT 1
		)`
	tag, err := r.pool.Exec(ctx, query, status, errorMessage, archivePath, time.Now(), fileName, StatusProcessing)
	if err != nil {
		return false, fmt.Errorf("failed to update processing status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		log.Printf("[Store] WARNING: no processing record found to update for %s", fileName)
		return false, nil
	}
	return true, nil
}

// Latest returns the newest audit record for the file.
func (r *StatusRepo) Latest(ctx context.Context, fileName string) (*FileStatus, error) {
	query := `
		SELECT id, file_name, COALESCE(object_key, ''), status,
			COALESCE(job_run_name, ''), COALESCE(error_message, ''),
			COALESCE(archive_path, ''), COALESCE(file_size_bytes, 0),
			COALESCE(processing_start_time, to_timestamp(0)),
			COALESCE(processing_end_time, to_timestamp(0))
		FROM file_processing_status
		WHERE file_name = $1
		ORDER BY created_at DESC
		LIMIT 1`
	var fs FileStatus
	err := r.pool.QueryRow(ctx, query, fileName).Scan(
		&fs.ID, &fs.FileName, &fs.ObjectKey, &fs.Status,
		&fs.JobRunName, &fs.ErrorMessage, &fs.ArchivePath, &fs.SizeBytes,
		&fs.StartedAt, &fs.EndedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("no processing record found for %s", fileName)
		}
		return nil, fmt.Errorf("failed to load processing status: %w", err)
	}
	return &fs, nil
}
