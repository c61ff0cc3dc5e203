package main

import (
	"log"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// A tiny entrypoint that mirrors the platform's bootstrap sequence:
// optionally sync dependencies, ensure sane env defaults, then exec the
// server binary so its exit code becomes the container's exit code.
func main() {
	runSyncCommand(os.Getenv("BOOTSTRAP_SYNC_CMD"))

	if os.Getenv("PORT") == "" {
		// Default to 8080 if platform doesn't inject PORT
		_ = os.Setenv("PORT", "8080")
	}

	if d := startupDelay(os.Getenv("STARTUP_DELAY")); d > 0 {
		log.Printf("Applying startup delay: %v", d)
		time.Sleep(d)
	}

	target := serverBinary(os.Getenv("SERVER_BINARY"))
	if err := syscall.Exec(target, []string{target}, os.Environ()); err != nil {
		log.Fatalf("failed to exec %s: %v", target, err)
	}
}

// runSyncCommand runs an optional dependency sync step (e.g. fetching
// assets or running migration tooling). Failures are logged and
// execution continues, matching the fall-through behavior of the launch
// scripts this replaces; the underlying tool's own diagnostics are the
// message.
func runSyncCommand(syncCmd string) {
	if syncCmd == "" {
		return
	}
	cmd := exec.Command("/bin/sh", "-c", syncCmd)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		log.Printf("bootstrap sync command failed (continuing): %v", err)
	}
}

// startupDelay parses the optional delay for platforms that wire
// dependencies late. Unparseable or negative values mean no delay.
func startupDelay(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

func serverBinary(configured string) string {
	if configured == "" {
		return "/app/main"
	}
	return configured
}
