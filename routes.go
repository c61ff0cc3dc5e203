package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	fiberws "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	appconfig "leadlift/config"
	"leadlift/handlers"
	"leadlift/jobs"
	"leadlift/metrics"
	"leadlift/middleware"
	appserver "leadlift/server"
	"leadlift/services"
	websocketpkg "leadlift/websocket"
)

// setupRoutes configures all API routes and middleware for the application
func setupRoutes(app *fiber.App, db *pgxpool.Pool, rdb *redis.Client, store *jobs.Store, hub *websocketpkg.Hub, enrichSvc *services.EnrichmentService, settingsSvc *services.SettingsService, config *appconfig.Config, startTime time.Time) {
	// Security middleware
	app.Use(helmet.New(helmet.Config{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		HSTSMaxAge: func() int {
			if config.Environment == "production" {
				return 31536000
			}
			return 0
		}(),
		HSTSPreloadEnabled: config.Environment == "production",
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}))

	// CORS configuration
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(config.AllowedOrigins, ","),
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
	}))

	// Optional Prometheus metrics
	if appconfig.GetEnvAsBool("ENABLE_METRICS", true) {
		app.Use(metrics.PrometheusMiddleware())

		app.Get("/metrics", func(c *fiber.Ctx) error {
			handler := promhttp.Handler()

			req := &http.Request{
				Method:     c.Method(),
				URL:        &url.URL{Path: c.Path(), RawQuery: string(c.Request().URI().QueryString())},
				Header:     make(http.Header),
				Body:       io.NopCloser(bytes.NewReader(c.Body())),
				Host:       string(c.Request().Host()),
				RequestURI: c.OriginalURL(),
			}
			c.Request().Header.VisitAll(func(key, value []byte) {
				req.Header.Add(string(key), string(value))
			})

			handler.ServeHTTP(appserver.NewFiberResponseWriter(c), req)
			return nil
		})
	}

	// Initialize rate limiters
	rateLimits := middleware.NewRateLimitConfig(rdb)

	// Initialize handlers
	jobsHandler := handlers.NewJobsHandler(store, enrichSvc, settingsSvc, config)
	downloadsHandler := handlers.NewDownloadsHandler(config.OutputDir)
	historyHandler := handlers.NewHistoryHandler(db)
	settingsHandler := handlers.NewSettingsHandler(settingsSvc)

	// API group (health endpoints are registered in server.CreateFiberApp)
	api := app.Group("/api/v1")

	// Combined health endpoint with component detail
	api.Get("/health", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		health := fiber.Map{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"uptime":    time.Since(startTime).String(),
		}

		healthy := true
		var historyCount int
		if err := db.QueryRow(ctx, "SELECT COUNT(*) FROM enrichment_history").Scan(&historyCount); err != nil {
			healthy = false
			health["database"] = "unhealthy"
			health["database_error"] = err.Error()
		} else {
			health["database"] = "healthy"
			health["history_count"] = historyCount
		}

		if err := rdb.Ping(ctx).Err(); err != nil {
			healthy = false
			health["redis"] = "unhealthy"
			health["redis_error"] = err.Error()
		} else {
			health["redis"] = "healthy"
		}

		if !healthy {
			health["status"] = "unhealthy"
			return c.Status(fiber.StatusServiceUnavailable).JSON(health)
		}
		return c.JSON(health)
	})

	// Enrichment job routes
	api.Post("/jobs", rateLimits.UploadLimiter, jobsHandler.CreateJob)
	api.Get("/jobs/:id/logs", rateLimits.PollingLimiter, jobsHandler.GetJobLogs)
	api.Get("/jobs/:id/status", rateLimits.PollingLimiter, jobsHandler.GetJobStatus)

	// Output downloads
	api.Get("/downloads/:filename", rateLimits.DownloadLimiter, downloadsHandler.DownloadFile)

	// Processing history
	api.Get("/history", rateLimits.PollingLimiter, historyHandler.GetHistory)

	// Saved provider API key
	api.Get("/settings/api-key", rateLimits.SettingsLimiter, settingsHandler.GetAPIKey)
	api.Put("/settings/api-key", rateLimits.SettingsLimiter, settingsHandler.SaveAPIKey)
	api.Delete("/settings/api-key", rateLimits.SettingsLimiter, settingsHandler.DeleteAPIKey)

	// WebSocket job log streaming
	app.Use("/ws", func(c *fiber.Ctx) error {
		if fiberws.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:id", fiberws.New(func(conn *fiberws.Conn) {
		websocketpkg.HandleWebSocket(conn, hub, store)
	}))
}
