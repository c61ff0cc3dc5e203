package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"leadlift/apollo"
	"leadlift/enrich"
	"leadlift/jobs"
	"leadlift/metrics"
	"leadlift/utils"
)

// Database interface for database operations
type Database interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
}

// Matcher is the provider call the pipeline depends on.
type Matcher interface {
	BulkMatch(ctx context.Context, apiKey string, batch []apollo.MatchRequest, logf apollo.Logf) ([]string, error)
}

// JobTracker is the slice of the job store the pipeline writes to.
type JobTracker interface {
	AppendLog(ctx context.Context, id, line string) error
	MarkCompleted(ctx context.Context, id, outputFile, downloadFilename string, rowsProcessed int) error
	MarkFailed(ctx context.Context, id, message string) error
}

// Broadcaster pushes job progress to live subscribers.
type Broadcaster interface {
	BroadcastLog(jobID, line string)
	BroadcastStatus(jobID, status string, downloadReady bool, errMsg string)
}

// EnrichmentService runs enrichment jobs: it reads an uploaded CSV,
// resolves emails batch by batch against the provider, writes the
// output file and records the outcome.
type EnrichmentService struct {
	db         Database
	store      JobTracker
	hub        Broadcaster
	matcher    Matcher
	batchSize  int
	batchDelay time.Duration
}

// NewEnrichmentService wires the pipeline dependencies.
func NewEnrichmentService(db Database, store JobTracker, hub Broadcaster, matcher Matcher, batchSize int, batchDelay time.Duration) *EnrichmentService {
	return &EnrichmentService{
		db:         db,
		store:      store,
		hub:        hub,
		matcher:    matcher,
		batchSize:  batchSize,
		batchDelay: batchDelay,
	}
}

// StartJob launches a job on a background goroutine and returns
// immediately. Job state is observable through the jobs store.
func (s *EnrichmentService) StartJob(jobID uuid.UUID, apiKey, inputPath, outputPath, originalFilename string) {
	go func() {
		ctx := context.Background()
		metrics.JobStarted()
		start := time.Now()

		if err := s.ProcessFile(ctx, jobID.String(), apiKey, inputPath, outputPath, originalFilename); err != nil {
			metrics.JobFinished(jobs.StatusFailed, time.Since(start))
			return
		}
		metrics.JobFinished(jobs.StatusCompleted, time.Since(start))
	}()
}

// ProcessFile runs one enrichment job to completion. The returned
// error is for the caller's accounting only; the job state and log
// already carry the operator-facing details.
func (s *EnrichmentService) ProcessFile(ctx context.Context, jobID, apiKey, inputPath, outputPath, originalFilename string) error {
	logf := s.jobLogger(ctx, jobID)

	fail := func(err error) error {
		logf("❌ FATAL ERROR: %v", err)
		s.recordHistory(ctx, originalFilename, "", jobs.StatusFailed, 0)
		if markErr := s.store.MarkFailed(ctx, jobID, err.Error()); markErr != nil {
			utils.LogError("enrichment: failed to mark job failed", markErr, "job_id", jobID)
		}
		s.hub.BroadcastStatus(jobID, jobs.StatusFailed, false, err.Error())
		return err
	}

	logf("Starting CSV processing...")

	input, err := os.Open(inputPath)
	if err != nil {
		return fail(fmt.Errorf("failed to open uploaded file: %w", err))
	}
	contacts, err := enrich.ReadContacts(input)
	_ = input.Close()
	if err != nil {
		return fail(err)
	}

	logf("Loaded CSV with %d rows", len(contacts))
	logf("Processing %d rows in batches of %d", len(contacts), s.batchSize)

	emails := make([]string, len(contacts))
	rowsProcessed := 0

	for start := 0; start < len(contacts); start += s.batchSize {
		end := utils.Min(start+s.batchSize, len(contacts))
		logf("Processing batch %d: rows %d to %d", start/s.batchSize+1, start+1, end)

		var batch []apollo.MatchRequest
		var batchIndexes []int
		for i := start; i < end; i++ {
			if req := contacts[i].MatchRequest(); req != nil {
				batch = append(batch, *req)
				batchIndexes = append(batchIndexes, i)
			}
		}

		if len(batch) == 0 {
			logf("Skipping batch - no valid data")
			s.pause(ctx)
			continue
		}

		logf("Sending batch with %d valid records", len(batch))
		results, err := s.matcher.BulkMatch(ctx, apiKey, batch, logf)
		if err != nil {
			metrics.IncrementError("provider", "enrichment")
			return fail(err)
		}
		for i, idx := range batchIndexes {
			emails[idx] = results[i]
		}
		rowsProcessed += len(batch)
		metrics.AddRowsProcessed(len(batch))

		logf("Batch completed. Waiting %s before next batch...", s.batchDelay)
		s.pause(ctx)
	}

	if err := s.writeOutput(outputPath, contacts, emails); err != nil {
		return fail(err)
	}
	logf("Processing complete! Output saved to %s", outputPath)

	outputFile := filepath.Base(outputPath)
	s.recordHistory(ctx, originalFilename, outputFile, jobs.StatusCompleted, rowsProcessed)

	downloadFilename := "output_" + originalFilename
	if err := s.store.MarkCompleted(ctx, jobID, outputFile, downloadFilename, rowsProcessed); err != nil {
		utils.LogError("enrichment: failed to mark job completed", err, "job_id", jobID)
	}
	s.hub.BroadcastStatus(jobID, jobs.StatusCompleted, true, "")
	return nil
}

// jobLogger returns a printf-style logger that lands lines in the job
// log, on live WebSocket subscribers, and on the server console.
func (s *EnrichmentService) jobLogger(ctx context.Context, jobID string) apollo.Logf {
	return func(format string, args ...interface{}) {
		line := jobs.FormatLogLine(time.Now(), fmt.Sprintf(format, args...))
		if err := s.store.AppendLog(ctx, jobID, line); err != nil {
			utils.LogError("enrichment: failed to append job log", err, "job_id", jobID)
		}
		s.hub.BroadcastLog(jobID, line)
		utils.LogInfo(line, "job_id", jobID)
	}
}

func (s *EnrichmentService) pause(ctx context.Context) {
	select {
	case <-time.After(s.batchDelay):
	case <-ctx.Done():
	}
}

func (s *EnrichmentService) writeOutput(outputPath string, contacts []enrich.Contact, emails []string) error {
	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := enrich.WriteResults(out, contacts, emails); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func (s *EnrichmentService) recordHistory(ctx context.Context, originalFilename, outputFilename, status string, rowsProcessed int) {
	_, err := s.db.Exec(ctx, `
		INSERT INTO enrichment_history (original_filename, output_filename, status, rows_processed)
		VALUES ($1, $2, $3, $4)
	`, originalFilename, outputFilename, status, rowsProcessed)
	if err != nil {
		metrics.IncrementError("database", "enrichment")
		utils.LogError("enrichment: failed to record history", err, "original_filename", originalFilename)
	}
}
