// LeadLift API
//
// LeadLift enriches uploaded contact spreadsheets with email addresses
// resolved through Apollo's people match API. Uploads run as background
// jobs with live logs, polling endpoints and downloadable results.
//
// @title LeadLift API
// @description CSV contact enrichment service
// @version 1.0
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"leadlift/apollo"
	appconfig "leadlift/config"
	appcrypto "leadlift/crypto"
	"leadlift/database"
	"leadlift/jobs"
	"leadlift/metrics"
	appserver "leadlift/server"
	"leadlift/services"
	"leadlift/utils"
	websocketpkg "leadlift/websocket"
)

func main() {
	// Initialize logging
	utils.InitLogging()

	// Load configuration
	config := appconfig.LoadConfig()
	utils.TrustProxyHeaders.Store(config.TrustProxyHeaders)

	// Track application start time for uptime calculation
	startTime := time.Now()

	// Setup database with automatic migrations
	db, err := database.SetupDatabase(config.DatabaseURL)
	if err != nil {
		log.Fatal("Database setup failed:", err)
	}
	defer db.Close()

	// Setup Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     config.RedisURL,
		Password: config.RedisPassword,
		DB:       0, // use default DB
	})
	defer rdb.Close()

	// Initialize crypto service for secrets at rest
	cryptoService := appcrypto.NewCryptoService(config.EncryptionKey)

	// Job state store and live log fan-out
	store := jobs.NewStore(rdb, config.JobRetention)
	hub := websocketpkg.NewHub()
	go hub.Run()
	defer hub.Close()

	// Enrichment pipeline against the provider API
	providerClient := apollo.NewClient(config.ProviderBaseURL)
	enrichSvc := services.NewEnrichmentService(db, store, hub, providerClient, config.BatchSize, config.BatchDelay)
	settingsSvc := services.NewSettingsService(db, cryptoService)

	// Create Fiber app; body limit leaves headroom for multipart framing
	readyState := appserver.NewReadyState(db, config, rdb)
	app := appserver.CreateFiberApp(config.MaxUploadBytes+1024*1024, startTime, readyState)

	setupRoutes(app, db, rdb, store, hub, enrichSvc, settingsSvc, config, startTime)

	// Working directories for uploads and outputs
	if err := os.MkdirAll(config.UploadDir, 0o750); err != nil {
		log.Fatalf("Failed to create upload directory %s: %v", config.UploadDir, err)
	}
	if err := os.MkdirAll(config.OutputDir, 0o750); err != nil {
		log.Fatalf("Failed to create output directory %s: %v", config.OutputDir, err)
	}
	readyState.MarkStorageReady()

	// Verify Redis connectivity before accepting jobs
	{
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(ctx).Err(); err != nil {
			cancel()
			log.Fatal("Redis connection failed:", err)
		}
		cancel()
		readyState.MarkRedisReady()
	}

	// Background maintenance
	services.StartCleanupService(db, config.UploadDir, config.OutputDir, config.JobRetention, config.HistoryRetention)

	// Feed pool stats into the metrics gauges
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			stat := db.Stat()
			metrics.UpdateDatabaseMetrics(int(stat.AcquiredConns()), int(stat.IdleConns()))
		}
	}()

	utils.LogInfo("LeadLift backend starting", "port", config.Port, "env", config.Environment)

	if err := appserver.ListenWithIPv6Fallback(app, config.Port, startTime); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}
