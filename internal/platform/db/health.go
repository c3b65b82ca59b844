package db

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats summarizes pgxpool counters for the readiness probe.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
	Healthy         bool   `json:"healthy"`
}

// GetPoolStats snapshots the pool counters.
func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
		Healthy:         stat.TotalConns() > 0,
	}
}

// Readiness is the /health/db response body. Service and Version identify
// which derivation server answered, so probes through a load balancer can
// tell instances apart.
type Readiness struct {
	Service string     `json:"service"`
	Version string     `json:"version"`
	Status  string     `json:"status"`
	Error   string     `json:"error,omitempty"`
	Pool    *PoolStats `json:"pool"`
}

// HealthHandler reports whether the encounter store behind the derivation
// API is reachable. A failed ping returns 503 with the pool snapshot so the
// probe output shows whether the pool is exhausted or the database is down.
func HealthHandler(pool *pgxpool.Pool, service, version string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), pingTimeout)
		defer cancel()

		body := Readiness{
			Service: service,
			Version: version,
			Status:  "ready",
			Pool:    GetPoolStats(pool),
		}

		if err := pool.Ping(ctx); err != nil {
			body.Status = "unreachable"
			body.Error = err.Error()
			body.Pool.Healthy = false
			return c.JSON(http.StatusServiceUnavailable, body)
		}

		return c.JSON(http.StatusOK, body)
	}
}
