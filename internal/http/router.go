// Package httpapi wires the reference HTTP server: cross-cutting middleware,
// the shared connection pool, health and metrics endpoints, and the uniform
// error envelope for everything that falls through.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "github.com/tbourn/go-backend-kit/docs" // registers the OpenAPI document
	"github.com/tbourn/go-backend-kit/internal/appctx"
	"github.com/tbourn/go-backend-kit/internal/apperr"
	"github.com/tbourn/go-backend-kit/internal/config"
	"github.com/tbourn/go-backend-kit/internal/http/handlers"
	"github.com/tbourn/go-backend-kit/internal/http/middleware"
)

// maxBodyBytes caps request bodies for every route.
const maxBodyBytes = 1 << 20

// RegisterRoutes attaches middleware and endpoints to r.
//
// Middleware order matters:
//  1. OpenTelemetry
//  2. RequestID
//  3. Logger (scrubbed) and the error projection
//  4. Recovery
//  5. Body size limit
//  6. Metrics
//  7. Rate limiter
//  8. CORS, security headers, gzip
//  9. Pool injection and the c.Error writer
func RegisterRoutes(r *gin.Engine, pool appctx.ConnectionPool, cfg config.Config) {
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))
	r.Use(middleware.ErrorView(errorView(cfg)))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClientIP())
	r.Use(rl.Handler())

	r.Use(corsMiddleware(cfg.CORS))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	r.Use(appctx.Inject(pool))
	r.Use(handlers.Errors())

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, apperr.NotFound("route not found"))
	})

	r.GET("/health", handlers.Health)
	r.GET("/health/ready", handlers.Ready)

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
}

func errorView(cfg config.Config) apperr.View {
	if cfg.RedactErrors {
		return apperr.ViewUser
	}
	return apperr.ViewSystem
}

// corsMiddleware allows every origin when none are configured, otherwise
// only the listed ones.
func corsMiddleware(c config.CORSConfig) gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(c.AllowedOrigins) == 0 {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = c.AllowedOrigins
	}
	return cors.New(cc)
}

// limitBody caps the request body at maxBytes; reads past it fail.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
