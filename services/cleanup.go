package services

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"
)

// StartCleanupService starts a background cleanup service that runs every 24 hours
func StartCleanupService(db Database, uploadDir, outputDir string, fileRetention, historyRetention time.Duration) {
	go func() {
		ctx := context.Background()
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		// Run initial cleanup
		RunCleanupTasks(ctx, db, uploadDir, outputDir, fileRetention, historyRetention)

		for range ticker.C {
			RunCleanupTasks(ctx, db, uploadDir, outputDir, fileRetention, historyRetention)
		}
	}()
}

// RunCleanupTasks prunes expired upload/output files and old history rows
func RunCleanupTasks(ctx context.Context, db Database, uploadDir, outputDir string, fileRetention, historyRetention time.Duration) {
	log.Println("🧹 Running scheduled cleanup tasks...")

	// Note: job status and logs expire via Redis TTL

	removed := pruneDirectory(uploadDir, fileRetention) + pruneDirectory(outputDir, fileRetention)
	if removed > 0 {
		log.Printf("🗑️ Removed %d expired upload/output files", removed)
	}

	result, err := db.Exec(ctx, `
		DELETE FROM enrichment_history
		WHERE created_at < NOW() - make_interval(secs => $1)
	`, historyRetention.Seconds())
	if err != nil {
		log.Printf("⚠️ Failed to prune enrichment history: %v", err)
	} else if result.RowsAffected() > 0 {
		log.Printf("✅ Pruned %d old history entries", result.RowsAffected())
	}

	log.Println("🎯 Cleanup tasks completed successfully")
}

// pruneDirectory removes regular files older than the retention window.
func pruneDirectory(dir string, retention time.Duration) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("⚠️ Failed to read %s for cleanup: %v", dir, err)
		}
		return 0
	}

	cutoff := time.Now().Add(-retention)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
				log.Printf("⚠️ Failed to remove %s: %v", entry.Name(), err)
				continue
			}
			removed++
		}
	}
	return removed
}
