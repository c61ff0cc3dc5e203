package handlers

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"leadlift/utils"
)

// Downloads Handler
type DownloadsHandler struct {
	outputDir string
}

// NewDownloadsHandler constructs a download handler serving the outputs directory.
func NewDownloadsHandler(outputDir string) *DownloadsHandler {
	return &DownloadsHandler{outputDir: outputDir}
}

// DownloadFile godoc
// @Summary Download an enriched output file
// @Tags Downloads
// @Produce text/csv
// @Success 200 {file} file "Enriched CSV"
// @Failure 404 {object} map[string]interface{} "File not found"
// @Router /downloads/{filename} [get]
func (h *DownloadsHandler) DownloadFile(c *fiber.Ctx) error {
	requested, err := url.PathUnescape(c.Params("filename"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid filename"})
	}

	// The outputs directory is flat; anything that still looks like a
	// path after sanitization is an escape attempt.
	name := utils.SanitizeFilename(requested)
	if name == "" || name != requested || strings.Contains(requested, "..") {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid filename"})
	}

	path := filepath.Join(h.outputDir, name)
	if _, err := os.Stat(path); err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "File not found"})
	}

	return c.Download(path, name)
}
