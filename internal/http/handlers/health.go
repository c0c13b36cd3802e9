package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-backend-kit/internal/appctx"
	"github.com/tbourn/go-backend-kit/internal/apperr"
	"github.com/tbourn/go-backend-kit/internal/database"
	"github.com/tbourn/go-backend-kit/internal/search"
)

// readyTimeout bounds each dependency probe of Ready.
const readyTimeout = 2 * time.Second

// HealthResponse is the body of the health endpoints.
type HealthResponse struct {
	Status string            `json:"status" example:"ok"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Health godoc
// @Summary     Liveness probe
// @Tags        health
// @Produce     json
// @Success     200 {object} HealthResponse
// @Router      /health [get]
func Health(c *gin.Context) {
	ok(c, http.StatusOK, HealthResponse{Status: "ok"})
}

// Ready godoc
// @Summary     Readiness probe
// @Description Checks a pooled database connection and the search cluster.
// @Tags        health
// @Produce     json
// @Success     200 {object} HealthResponse
// @Failure     500 {object} apperr.Body
// @Router      /health/ready [get]
func Ready(c *gin.Context) {
	pool, found := appctx.From(c)
	if !found {
		Fail(c, apperr.System("connection pool not configured"))
		return
	}

	checks := map[string]string{}
	if pool.DB() != nil {
		if err := pingDatabase(c.Request.Context(), pool); err != nil {
			Fail(c, err)
			return
		}
		checks["database"] = "ok"
	}
	if es := pool.ElasticOnly().Search(); es != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
		defer cancel()
		if err := search.Ping(ctx, es); err != nil {
			Fail(c, err)
			return
		}
		checks["elastic"] = "ok"
	}
	ok(c, http.StatusOK, HealthResponse{Status: "ok", Checks: checks})
}

func pingDatabase(parent context.Context, pool appctx.ConnectionPool) error {
	ctx, cancel := context.WithTimeout(parent, readyTimeout)
	defer cancel()

	conn, err := database.Acquire(ctx, pool.DB())
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := conn.PingContext(ctx); err != nil {
		return apperr.DatabaseCause(err.Error(), err)
	}
	return nil
}
