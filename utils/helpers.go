package utils

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// SanitizeFilename reduces an uploaded filename to a safe basename.
// Path separators and shell-hostile characters are stripped so the
// result can never escape the upload directory.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	return name
}

// TimestampedFilename inserts a timestamp before the extension:
// "leads.csv" becomes "leads_20060102_150405.csv".
func TimestampedFilename(name string, at time.Time) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return base + "_" + at.Format("20060102_150405") + ext
}

// Min returns the smaller of two integers
func Min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// MaskSecret returns a display form of a secret showing only the last four characters.
func MaskSecret(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}
