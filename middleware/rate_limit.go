package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis/v3"
	"github.com/redis/go-redis/v9"

	"leadlift/utils"
)

// RateLimitConfig holds all rate limiter instances
type RateLimitConfig struct {
	UploadLimiter   fiber.Handler
	DownloadLimiter fiber.Handler
	SettingsLimiter fiber.Handler
	PollingLimiter  fiber.Handler
}

// NewRateLimitConfig creates all rate limiters using Redis storage
func NewRateLimitConfig(rdb *redis.Client) *RateLimitConfig {
	// Redis-backed limiter state so limits hold across replicas
	storage := redisstorage.NewFromConnection(rdb)

	// Uploads start provider-billed jobs, so they get the tightest budget
	uploadLimiter := limiter.New(limiter.Config{
		Max:        10,
		Expiration: 15 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return utils.ClientIP(c)
		},
		Storage: storage,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many uploads. Please try again later.",
			})
		},
	})

	downloadLimiter := limiter.New(limiter.Config{
		Max:        60,
		Expiration: 5 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return utils.ClientIP(c)
		},
		Storage: storage,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many download requests. Please try again later.",
			})
		},
	})

	settingsLimiter := limiter.New(limiter.Config{
		Max:        20,
		Expiration: 5 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return utils.ClientIP(c)
		},
		Storage: storage,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many settings requests. Please try again later.",
			})
		},
	})

	// The browser flow polls status and logs every few seconds
	pollingLimiter := limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return utils.ClientIP(c)
		},
		Storage: storage,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests. Please slow down.",
			})
		},
	})

	return &RateLimitConfig{
		UploadLimiter:   uploadLimiter,
		DownloadLimiter: downloadLimiter,
		SettingsLimiter: settingsLimiter,
		PollingLimiter:  pollingLimiter,
	}
}
