package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"leadlift/database"
	"leadlift/utils"
)

// History Handler
type HistoryHandler struct {
	db database.Database
}

// NewHistoryHandler constructs a processing history handler.
func NewHistoryHandler(db database.Database) *HistoryHandler {
	return &HistoryHandler{db: db}
}

// HistoryEntry is one finished job in the processing history.
type HistoryEntry struct {
	ID               string `json:"id"`
	OriginalFilename string `json:"original_filename"`
	OutputFilename   string `json:"output_filename"`
	Status           string `json:"status"`
	RowsProcessed    int    `json:"rows_processed"`
	Timestamp        string `json:"timestamp"`
}

// GetHistory godoc
// @Summary List processing history, newest first
// @Tags History
// @Produce json
// @Success 200 {object} map[string]interface{} "History entries"
// @Failure 500 {object} map[string]interface{} "Failed to load history"
// @Router /history [get]
func (h *HistoryHandler) GetHistory(c *fiber.Ctx) error {
	rows, err := h.db.Query(c.Context(), `
		SELECT id, original_filename, output_filename, status, rows_processed, created_at
		FROM enrichment_history
		ORDER BY created_at DESC
		LIMIT 200
	`)
	if err != nil {
		utils.LogRequestError(c, "GetHistory: failed to query history", err)
		return c.Status(500).JSON(fiber.Map{"error": "Failed to load history"})
	}
	defer rows.Close()

	entries := []HistoryEntry{}
	for rows.Next() {
		var (
			id        uuid.UUID
			entry     HistoryEntry
			createdAt time.Time
		)
		if err := rows.Scan(&id, &entry.OriginalFilename, &entry.OutputFilename, &entry.Status, &entry.RowsProcessed, &createdAt); err != nil {
			utils.LogRequestError(c, "GetHistory: failed to scan row", err)
			return c.Status(500).JSON(fiber.Map{"error": "Failed to load history"})
		}
		entry.ID = id.String()
		entry.Timestamp = createdAt.UTC().Format(time.RFC3339)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		utils.LogRequestError(c, "GetHistory: row iteration failed", err)
		return c.Status(500).JSON(fiber.Map{"error": "Failed to load history"})
	}

	return c.JSON(fiber.Map{"history": entries})
}
