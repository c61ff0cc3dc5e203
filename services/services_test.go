package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"leadlift/apollo"
	"leadlift/jobs"
	"leadlift/utils"
)

func TestMain(m *testing.M) {
	utils.InitLogging()
	os.Exit(m.Run())
}

// Mock database implementation

type mockRow struct {
	scanFunc func(dest ...interface{}) error
}

func (m *mockRow) Scan(dest ...interface{}) error {
	if m.scanFunc != nil {
		return m.scanFunc(dest...)
	}
	return nil
}

type mockDatabase struct {
	queryRowFunc func(ctx context.Context, sql string, args ...interface{}) pgx.Row
	execFunc     func(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func (m *mockDatabase) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	if m.queryRowFunc != nil {
		return m.queryRowFunc(ctx, sql, args...)
	}
	return &mockRow{}
}

func (m *mockDatabase) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	if m.execFunc != nil {
		return m.execFunc(ctx, sql, args...)
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

type mockMatcher struct {
	bulkMatchFunc func(ctx context.Context, apiKey string, batch []apollo.MatchRequest, logf apollo.Logf) ([]string, error)
}

func (m *mockMatcher) BulkMatch(ctx context.Context, apiKey string, batch []apollo.MatchRequest, logf apollo.Logf) ([]string, error) {
	if m.bulkMatchFunc != nil {
		return m.bulkMatchFunc(ctx, apiKey, batch, logf)
	}
	return make([]string, len(batch)), nil
}

type mockTracker struct {
	logs              []string
	completedID       string
	completedFile     string
	completedDownload string
	completedRows     int
	failedID          string
	failedMessage     string
}

func (m *mockTracker) AppendLog(ctx context.Context, id, line string) error {
	m.logs = append(m.logs, line)
	return nil
}

func (m *mockTracker) MarkCompleted(ctx context.Context, id, outputFile, downloadFilename string, rowsProcessed int) error {
	m.completedID = id
	m.completedFile = outputFile
	m.completedDownload = downloadFilename
	m.completedRows = rowsProcessed
	return nil
}

func (m *mockTracker) MarkFailed(ctx context.Context, id, message string) error {
	m.failedID = id
	m.failedMessage = message
	return nil
}

func (m *mockTracker) hasLogContaining(substr string) bool {
	for _, line := range m.logs {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

type mockBroadcaster struct {
	statuses []string
}

func (m *mockBroadcaster) BroadcastLog(jobID, line string) {}

func (m *mockBroadcaster) BroadcastStatus(jobID, status string, downloadReady bool, errMsg string) {
	m.statuses = append(m.statuses, status)
}

func writeInputCSV(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "leads.csv")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write input file: %v", err)
	}
	return path
}

const validCSV = "First Name,Last Name,LinkedIn URL,Company Name,Company Website\n" +
	"Ada,Lovelace,https://linkedin.com/in/ada,Analytical Engines,analytical.io\n" +
	"Alan,Turing,,Bletchley,bletchley.org\n" +
	",,,NoName Corp,noname.com\n"

func TestProcessFileCompletesJob(t *testing.T) {
	dir := t.TempDir()
	inputPath := writeInputCSV(t, dir, validCSV)
	outputPath := filepath.Join(dir, "output_leads_20250314_092653.csv")

	var historyStatus string
	db := &mockDatabase{
		execFunc: func(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
			if strings.Contains(sql, "INSERT INTO enrichment_history") {
				historyStatus = args[2].(string)
			}
			return pgconn.NewCommandTag("INSERT 0 1"), nil
		},
	}
	matcher := &mockMatcher{
		bulkMatchFunc: func(ctx context.Context, apiKey string, batch []apollo.MatchRequest, logf apollo.Logf) ([]string, error) {
			if apiKey != "test-key" {
				t.Errorf("unexpected api key %q", apiKey)
			}
			if len(batch) != 2 {
				t.Errorf("expected 2 valid rows in batch, got %d", len(batch))
			}
			return []string{"ada@analytical.io", "alan@bletchley.org"}, nil
		},
	}
	tracker := &mockTracker{}
	hub := &mockBroadcaster{}
	jobID := uuid.New().String()

	svc := NewEnrichmentService(db, tracker, hub, matcher, 10, 0)
	if err := svc.ProcessFile(context.Background(), jobID, "test-key", inputPath, outputPath, "leads.csv"); err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}

	output, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("output file not written: %v", err)
	}
	if !strings.Contains(string(output), "ada@analytical.io") {
		t.Error("output file missing resolved email")
	}

	if tracker.completedID != jobID {
		t.Errorf("expected job %s marked completed, got %q", jobID, tracker.completedID)
	}
	if tracker.completedDownload != "output_leads.csv" {
		t.Errorf("unexpected download filename: %s", tracker.completedDownload)
	}
	if tracker.completedRows != 2 {
		t.Errorf("expected 2 rows processed, got %d", tracker.completedRows)
	}
	if historyStatus != jobs.StatusCompleted {
		t.Errorf("expected completed history entry, got %q", historyStatus)
	}
	if len(hub.statuses) == 0 || hub.statuses[len(hub.statuses)-1] != jobs.StatusCompleted {
		t.Errorf("expected completed status broadcast, got %v", hub.statuses)
	}
	if !tracker.hasLogContaining("Loaded CSV with 3 rows") {
		t.Errorf("expected row count log line, got %v", tracker.logs)
	}
}

func TestProcessFileAbortsOnInsufficientCredits(t *testing.T) {
	dir := t.TempDir()
	inputPath := writeInputCSV(t, dir, validCSV)
	outputPath := filepath.Join(dir, "out.csv")

	var historyStatus string
	db := &mockDatabase{
		execFunc: func(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
			if strings.Contains(sql, "INSERT INTO enrichment_history") {
				historyStatus = args[2].(string)
			}
			return pgconn.NewCommandTag("INSERT 0 1"), nil
		},
	}
	matcher := &mockMatcher{
		bulkMatchFunc: func(ctx context.Context, apiKey string, batch []apollo.MatchRequest, logf apollo.Logf) ([]string, error) {
			return nil, apollo.ErrInsufficientCredits
		},
	}
	tracker := &mockTracker{}
	hub := &mockBroadcaster{}
	jobID := uuid.New().String()

	svc := NewEnrichmentService(db, tracker, hub, matcher, 10, 0)
	err := svc.ProcessFile(context.Background(), jobID, "k", inputPath, outputPath, "leads.csv")
	if !errors.Is(err, apollo.ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}

	if tracker.failedID != jobID {
		t.Errorf("expected job marked failed, got %q", tracker.failedID)
	}
	if historyStatus != jobs.StatusFailed {
		t.Errorf("expected failed history entry, got %q", historyStatus)
	}
	if _, err := os.Stat(outputPath); !os.IsNotExist(err) {
		t.Error("output file should not exist for an aborted job")
	}
}

func TestProcessFileRejectsMissingColumns(t *testing.T) {
	dir := t.TempDir()
	inputPath := writeInputCSV(t, dir, "First Name,Last Name\nAda,Lovelace\n")
	outputPath := filepath.Join(dir, "out.csv")

	tracker := &mockTracker{}
	svc := NewEnrichmentService(&mockDatabase{}, tracker, &mockBroadcaster{}, &mockMatcher{}, 10, 0)

	err := svc.ProcessFile(context.Background(), uuid.New().String(), "k", inputPath, outputPath, "leads.csv")
	if err == nil {
		t.Fatal("expected error for missing columns")
	}
	if tracker.failedMessage == "" || !strings.Contains(tracker.failedMessage, "missing required column") {
		t.Errorf("unexpected failure message: %q", tracker.failedMessage)
	}
	if !tracker.hasLogContaining("FATAL ERROR") {
		t.Errorf("expected fatal error log line, got %v", tracker.logs)
	}
}

func TestProcessFileSkipsBatchWithoutValidRows(t *testing.T) {
	dir := t.TempDir()
	input := "First Name,Last Name,LinkedIn URL,Company Name,Company Website\n" +
		",,,NoName Corp,noname.com\n"
	inputPath := writeInputCSV(t, dir, input)
	outputPath := filepath.Join(dir, "out.csv")

	matcherCalled := false
	matcher := &mockMatcher{
		bulkMatchFunc: func(ctx context.Context, apiKey string, batch []apollo.MatchRequest, logf apollo.Logf) ([]string, error) {
			matcherCalled = true
			return make([]string, len(batch)), nil
		},
	}
	tracker := &mockTracker{}
	svc := NewEnrichmentService(&mockDatabase{}, tracker, &mockBroadcaster{}, matcher, 10, 0)

	if err := svc.ProcessFile(context.Background(), uuid.New().String(), "k", inputPath, outputPath, "leads.csv"); err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if matcherCalled {
		t.Error("provider should not be called for a batch without valid rows")
	}
	if !tracker.hasLogContaining("Skipping batch - no valid data") {
		t.Errorf("expected skip log line, got %v", tracker.logs)
	}
	if tracker.completedRows != 0 {
		t.Errorf("expected 0 rows processed, got %d", tracker.completedRows)
	}
}

func TestProcessFileBatchesRows(t *testing.T) {
	dir := t.TempDir()
	var sb strings.Builder
	sb.WriteString("First Name,Last Name,LinkedIn URL,Company Name,Company Website\n")
	for i := 0; i < 5; i++ {
		sb.WriteString("Ada,Lovelace,,Acme,acme.com\n")
	}
	inputPath := writeInputCSV(t, dir, sb.String())
	outputPath := filepath.Join(dir, "out.csv")

	var batchSizes []int
	matcher := &mockMatcher{
		bulkMatchFunc: func(ctx context.Context, apiKey string, batch []apollo.MatchRequest, logf apollo.Logf) ([]string, error) {
			batchSizes = append(batchSizes, len(batch))
			return make([]string, len(batch)), nil
		},
	}
	tracker := &mockTracker{}
	svc := NewEnrichmentService(&mockDatabase{}, tracker, &mockBroadcaster{}, matcher, 2, 0)

	if err := svc.ProcessFile(context.Background(), uuid.New().String(), "k", inputPath, outputPath, "leads.csv"); err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if len(batchSizes) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batchSizes))
	}
	if batchSizes[0] != 2 || batchSizes[1] != 2 || batchSizes[2] != 1 {
		t.Errorf("unexpected batch sizes: %v", batchSizes)
	}
	if tracker.completedRows != 5 {
		t.Errorf("expected 5 rows processed, got %d", tracker.completedRows)
	}
}

func TestPruneDirectory(t *testing.T) {
	dir := t.TempDir()

	oldFile := filepath.Join(dir, "old.csv")
	if err := os.WriteFile(oldFile, []byte("old"), 0o600); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(oldFile, past, past); err != nil {
		t.Fatal(err)
	}

	freshFile := filepath.Join(dir, "fresh.csv")
	if err := os.WriteFile(freshFile, []byte("fresh"), 0o600); err != nil {
		t.Fatal(err)
	}

	removed := pruneDirectory(dir, 24*time.Hour)
	if removed != 1 {
		t.Errorf("expected 1 file removed, got %d", removed)
	}
	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Error("expired file should have been removed")
	}
	if _, err := os.Stat(freshFile); err != nil {
		t.Error("fresh file should have been kept")
	}
}

func TestPruneDirectoryMissingDir(t *testing.T) {
	if removed := pruneDirectory(filepath.Join(t.TempDir(), "nope"), time.Hour); removed != 0 {
		t.Errorf("expected 0 removals for missing directory, got %d", removed)
	}
}
