// Package jobs tracks enrichment job state in Redis so status and
// logs survive restarts and stay visible across replicas.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Job status values.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ErrNotFound is returned when a job id is unknown or expired.
var ErrNotFound = errors.New("job not found")

// Status is the queryable state of one enrichment job.
type Status struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	OriginalFilename string `json:"original_filename"`
	OutputFile       string `json:"output_file,omitempty"`
	DownloadFilename string `json:"download_filename,omitempty"`
	Error            string `json:"error,omitempty"`
	RowsProcessed    int    `json:"rows_processed"`
	DownloadReady    bool   `json:"download_ready"`
}

// Store keeps job hashes and log lists in Redis with a shared TTL.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStore creates a job store. ttl bounds how long finished jobs stay
// queryable.
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func jobKey(id string) string  { return "job:" + id }
func logsKey(id string) string { return "job:" + id + ":logs" }

// Create registers a new running job.
func (s *Store) Create(ctx context.Context, id, originalFilename string) error {
	key := jobKey(id)
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key,
		"status", StatusRunning,
		"original_filename", originalFilename,
		"rows_processed", 0,
		"started_at", time.Now().UTC().Format(time.RFC3339),
	)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create job %s: %w", id, err)
	}
	return nil
}

// Get returns the current state of a job.
func (s *Store) Get(ctx context.Context, id string) (*Status, error) {
	fields, err := s.rdb.HGetAll(ctx, jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	rows, _ := strconv.Atoi(fields["rows_processed"])
	return &Status{
		ID:               id,
		Status:           fields["status"],
		OriginalFilename: fields["original_filename"],
		OutputFile:       fields["output_file"],
		DownloadFilename: fields["download_filename"],
		Error:            fields["error"],
		RowsProcessed:    rows,
		DownloadReady:    fields["status"] == StatusCompleted,
	}, nil
}

// MarkCompleted records a successful job and its downloadable output.
func (s *Store) MarkCompleted(ctx context.Context, id, outputFile, downloadFilename string, rowsProcessed int) error {
	_, err := s.rdb.HSet(ctx, jobKey(id),
		"status", StatusCompleted,
		"output_file", outputFile,
		"download_filename", downloadFilename,
		"rows_processed", rowsProcessed,
	).Result()
	if err != nil {
		return fmt.Errorf("failed to complete job %s: %w", id, err)
	}
	return nil
}

// MarkFailed records a failed job and the operator-facing reason.
func (s *Store) MarkFailed(ctx context.Context, id, message string) error {
	_, err := s.rdb.HSet(ctx, jobKey(id),
		"status", StatusFailed,
		"error", message,
	).Result()
	if err != nil {
		return fmt.Errorf("failed to mark job %s failed: %w", id, err)
	}
	return nil
}

// AppendLog appends one formatted line to the job log.
func (s *Store) AppendLog(ctx context.Context, id, line string) error {
	key := logsKey(id)
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, key, line)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append log for job %s: %w", id, err)
	}
	return nil
}

// Logs returns every log line recorded for a job so far.
func (s *Store) Logs(ctx context.Context, id string) ([]string, error) {
	lines, err := s.rdb.LRange(ctx, logsKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load logs for job %s: %w", id, err)
	}
	return lines, nil
}

// Ping verifies the Redis connection backing the store.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// FormatLogLine renders a job log line the way operators see it:
// a bracketed wall-clock timestamp followed by the message.
func FormatLogLine(at time.Time, message string) string {
	return "[" + at.Format("15:04:05") + "] " + message
}
