package handlers

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"leadlift/config"
	"leadlift/jobs"
	"leadlift/middleware"
	"leadlift/services"
	"leadlift/utils"
)

// JobStore is the job state the handlers read and create.
type JobStore interface {
	Create(ctx context.Context, id, originalFilename string) error
	Get(ctx context.Context, id string) (*jobs.Status, error)
	Logs(ctx context.Context, id string) ([]string, error)
	AppendLog(ctx context.Context, id, line string) error
}

// JobStarter launches the background enrichment pipeline.
type JobStarter interface {
	StartJob(jobID uuid.UUID, apiKey, inputPath, outputPath, originalFilename string)
}

// APIKeyStore persists the saved provider credential.
type APIKeyStore interface {
	Save(ctx context.Context, key, value string) error
	Load(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// Jobs Handler
type JobsHandler struct {
	store    JobStore
	starter  JobStarter
	settings APIKeyStore
	config   *config.Config
}

// NewJobsHandler constructs the enrichment job handler.
func NewJobsHandler(store JobStore, starter JobStarter, settings APIKeyStore, cfg *config.Config) *JobsHandler {
	return &JobsHandler{store: store, starter: starter, settings: settings, config: cfg}
}

// CreateJob godoc
// @Summary Upload a CSV and start an enrichment job
// @Description Accepts a multipart CSV upload plus the provider API key and starts background enrichment
// @Tags Jobs
// @Accept multipart/form-data
// @Produce json
// @Success 202 {object} map[string]interface{} "Job accepted"
// @Failure 400 {object} map[string]interface{} "Invalid upload"
// @Router /jobs [post]
func (h *JobsHandler) CreateJob(c *fiber.Ctx) error {
	ctx := c.Context()

	apiKey := strings.TrimSpace(c.FormValue("api_key"))
	saveKey := isFormTrue(c.FormValue("save_api_key"))

	if apiKey == "" {
		// Fall back to the saved credential when one exists
		saved, err := h.settings.Load(ctx, services.ProviderAPIKeySetting)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "API key is required"})
		}
		apiKey = saved
	}

	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "No file selected"})
	}
	if file.Filename == "" {
		return c.Status(400).JSON(fiber.Map{"error": "No file selected"})
	}
	if !strings.HasSuffix(strings.ToLower(file.Filename), ".csv") {
		return c.Status(400).JSON(fiber.Map{"error": "Please upload a CSV file"})
	}
	if file.Size > int64(h.config.MaxUploadBytes) {
		return c.Status(400).JSON(fiber.Map{"error": "File too large"})
	}

	sanitized := utils.SanitizeFilename(file.Filename)
	if sanitized == "" || sanitized == ".csv" {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid filename"})
	}

	storedName := utils.TimestampedFilename(sanitized, time.Now())
	inputPath := filepath.Join(h.config.UploadDir, storedName)
	if err := c.SaveFile(file, inputPath); err != nil {
		utils.LogRequestError(c, "CreateJob: failed to store upload", err, "filename", sanitized)
		return c.Status(500).JSON(fiber.Map{"error": "Failed to store uploaded file"})
	}

	outputPath := filepath.Join(h.config.OutputDir, "output_"+storedName)

	jobID := uuid.New()
	if err := h.store.Create(ctx, jobID.String(), sanitized); err != nil {
		utils.LogRequestError(c, "CreateJob: failed to create job", err, "job_id", jobID)
		return c.Status(500).JSON(fiber.Map{"error": "Failed to create job"})
	}

	if saveKey {
		if err := h.settings.Save(ctx, services.ProviderAPIKeySetting, apiKey); err != nil {
			utils.LogRequestError(c, "CreateJob: failed to save API key", err)
		} else {
			_ = h.store.AppendLog(ctx, jobID.String(), jobs.FormatLogLine(time.Now(), "API key saved for future use"))
		}
	}

	if err := middleware.IssueJobSession(c, h.config.SessionSecret, jobID, h.config.JobRetention, h.config.Environment == "production"); err != nil {
		utils.LogRequestError(c, "CreateJob: failed to issue session", err, "job_id", jobID)
	}

	h.starter.StartJob(jobID, apiKey, inputPath, outputPath, sanitized)

	return c.Status(202).JSON(fiber.Map{
		"job_id":  jobID.String(),
		"message": "File uploaded successfully. Processing started...",
	})
}

// GetJobLogs godoc
// @Summary Get the log of an enrichment job
// @Tags Jobs
// @Produce json
// @Success 200 {object} map[string]interface{} "Job log lines"
// @Failure 404 {object} map[string]interface{} "Unknown job"
// @Router /jobs/{id}/logs [get]
func (h *JobsHandler) GetJobLogs(c *fiber.Ctx) error {
	id, ok := h.jobID(c)
	if !ok {
		return nil
	}

	// The log list alone cannot distinguish an unknown job from a job
	// with no lines yet, so check job existence first.
	if _, err := h.store.Get(c.Context(), id); err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "Job not found"})
		}
		utils.LogRequestError(c, "GetJobLogs: failed to load job", err, "job_id", id)
		return c.Status(500).JSON(fiber.Map{"error": "Failed to load job logs"})
	}

	lines, err := h.store.Logs(c.Context(), id)
	if err != nil {
		utils.LogRequestError(c, "GetJobLogs: failed to load logs", err, "job_id", id)
		return c.Status(500).JSON(fiber.Map{"error": "Failed to load job logs"})
	}
	if lines == nil {
		lines = []string{}
	}
	return c.JSON(fiber.Map{"logs": lines})
}

// GetJobStatus godoc
// @Summary Poll an enrichment job for download readiness
// @Tags Jobs
// @Produce json
// @Success 200 {object} map[string]interface{} "Job status"
// @Failure 404 {object} map[string]interface{} "Unknown job"
// @Router /jobs/{id}/status [get]
func (h *JobsHandler) GetJobStatus(c *fiber.Ctx) error {
	id, ok := h.jobID(c)
	if !ok {
		return nil
	}

	status, err := h.store.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "Job not found"})
		}
		utils.LogRequestError(c, "GetJobStatus: failed to load job", err, "job_id", id)
		return c.Status(500).JSON(fiber.Map{"error": "Failed to load job status"})
	}

	if status.Status == jobs.StatusFailed {
		return c.JSON(fiber.Map{
			"ready":         false,
			"error":         true,
			"error_message": status.Error,
		})
	}
	if status.DownloadReady {
		return c.JSON(fiber.Map{
			"ready":    true,
			"file":     status.OutputFile,
			"filename": status.DownloadFilename,
		})
	}
	return c.JSON(fiber.Map{"ready": false})
}

// jobID resolves the job id from the route, or from the session cookie
// for the "current" alias the browser flow uses. When it returns false
// the error response has already been written.
func (h *JobsHandler) jobID(c *fiber.Ctx) (string, bool) {
	id := c.Params("id")
	if id == "current" {
		sessionID, err := middleware.JobIDFromSession(c, h.config.SessionSecret)
		if err != nil {
			_ = c.Status(404).JSON(fiber.Map{"error": "No active job"})
			return "", false
		}
		return sessionID, true
	}
	if _, err := uuid.Parse(id); err != nil {
		_ = c.Status(400).JSON(fiber.Map{"error": "Invalid job ID"})
		return "", false
	}
	return id, true
}

func isFormTrue(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}
