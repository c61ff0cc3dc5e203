package server

import (
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"leadlift/config"
)

// ReadyState tracks initialization state for health checks
type ReadyState struct {
	db           *pgxpool.Pool
	config       *config.Config
	rdb          *redis.Client
	storageReady atomic.Bool
	redisReady   atomic.Bool
}

// NewReadyState creates a new ReadyState instance
func NewReadyState(db *pgxpool.Pool, cfg *config.Config, rdb *redis.Client) *ReadyState {
	return &ReadyState{
		db:     db,
		config: cfg,
		rdb:    rdb,
	}
}

// MarkStorageReady marks the upload/output directory setup as complete
func (r *ReadyState) MarkStorageReady() {
	r.storageReady.Store(true)
}

// MarkRedisReady marks the Redis initialization as complete
func (r *ReadyState) MarkRedisReady() {
	r.redisReady.Store(true)
}

// IsStorageReady returns whether the working directories exist
func (r *ReadyState) IsStorageReady() bool {
	return r.storageReady.Load()
}

// IsRedisReady returns whether Redis connectivity was verified
func (r *ReadyState) IsRedisReady() bool {
	return r.redisReady.Load()
}

// IsFullyReady returns true if all initialization steps are complete
func (r *ReadyState) IsFullyReady() bool {
	return r.storageReady.Load() && r.redisReady.Load()
}

// GetDB returns the database pool for health checks
func (r *ReadyState) GetDB() *pgxpool.Pool {
	return r.db
}

// GetRedis returns the Redis client for health checks
func (r *ReadyState) GetRedis() *redis.Client {
	return r.rdb
}
