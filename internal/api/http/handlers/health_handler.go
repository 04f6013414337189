package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/cityworks/addressing-service/internal/observability"
)

// HealthHandler serves liveness and readiness probes plus the metrics
// snapshot.
type HealthHandler struct {
	pool    *pgxpool.Pool
	redis   *redis.Client
	metrics *observability.Metrics
	version string
}

// NewHealthHandler constructs the handler.
func NewHealthHandler(pool *pgxpool.Pool, redisClient *redis.Client, metrics *observability.Metrics, version string) *HealthHandler {
	return &HealthHandler{pool: pool, redis: redisClient, metrics: metrics, version: version}
}

// Live reports process liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "version": h.version})
}

// Ready checks backing-store connectivity.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx := c.UserContext()
	checks := fiber.Map{}
	healthy := true

	if err := h.pool.Ping(ctx); err != nil {
		checks["postgres"] = err.Error()
		healthy = false
	} else {
		checks["postgres"] = "ok"
	}
	if err := h.redis.Ping(ctx).Err(); err != nil {
		checks["redis"] = err.Error()
		healthy = false
	} else {
		checks["redis"] = "ok"
	}

	status := fiber.StatusOK
	if !healthy {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{"status": checks, "version": h.version})
}

// Metrics dumps the in-memory counters.
func (h *HealthHandler) Metrics(c *fiber.Ctx) error {
	requests, errs := h.metrics.Snapshot()
	return c.JSON(fiber.Map{"requests": requests, "errors": errs})
}
