package server

import (
	"context"
	"time"

	"github.com/nocson47/beaconofknowledge/internal/database"

	"github.com/gofiber/fiber/v2"
)

const (
	statusHealthy     = "healthy"
	statusUnhealthy   = "unhealthy"
	statusUnavailable = "unavailable"
	statusDegraded    = "degraded"

	readinessTimeout = 5 * time.Second
)

func probe(ctx context.Context, ping func(context.Context) error) string {
	if err := ping(ctx); err != nil {
		return statusUnhealthy
	}
	return statusHealthy
}

// LivenessCheck answers as long as the process serves HTTP.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "up", "time": time.Now()})
}

// ReadinessCheck pings the database and Redis. Only the database gates readiness; a
// missing or failing Redis reports "degraded" with a 200.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
	defer cancel()

	checks := fiber.Map{
		"database": probe(ctx, func(ctx context.Context) error { return database.Ping(ctx, s.db) }),
		"redis":    statusUnavailable,
	}
	if s.redis != nil {
		checks["redis"] = probe(ctx, func(ctx context.Context) error { return s.redis.Ping(ctx).Err() })
	}

	code, overall := fiber.StatusOK, statusHealthy
	if checks["database"] != statusHealthy {
		code, overall = fiber.StatusServiceUnavailable, statusUnhealthy
	} else if checks["redis"] != statusHealthy {
		overall = statusDegraded
	}

	return c.Status(code).JSON(fiber.Map{
		"status": overall,
		"checks": checks,
		"time":   time.Now(),
	})
}
