// Command server runs the reference HTTP server: it loads configuration from
// the process environment and .env, builds the relational pool and the search
// client, and serves health, readiness and metrics endpoints until SIGINT or
// SIGTERM.
//
// @title       go-backend-kit reference server
// @version     1.0
// @BasePath    /
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-backend-kit/internal/appctx"
	"github.com/tbourn/go-backend-kit/internal/config"
	"github.com/tbourn/go-backend-kit/internal/database"
	"github.com/tbourn/go-backend-kit/internal/env"
	httpapi "github.com/tbourn/go-backend-kit/internal/http"
	"github.com/tbourn/go-backend-kit/internal/observability"
	"github.com/tbourn/go-backend-kit/internal/search"
	"github.com/tbourn/go-backend-kit/internal/sysutil"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	e := env.Load()
	cfg, err := config.Load(e)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	logger := sysutil.ConfigureLogger(os.Stdout, cfg.LogLevel, cfg.LogPretty)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("setup tracing")
	}

	db := openDatabase(e, cfg, logger.With().Str("component", "database").Logger())

	es, err := search.NewClient(cfg.Elastic)
	if err != nil {
		log.Fatal().Err(err).Msg("create search client")
	}
	pool := appctx.NewConnectionPool(db, es)

	r := gin.New()
	httpapi.RegisterRoutes(r, pool, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			log.Error().Err(err).Msg("server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := pool.Close(); err != nil {
		log.Error().Err(err).Msg("close database pool")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown")
	}
	log.Info().Msg("server stopped")
}

// openDatabase builds the pool when DATABASE_URL is set. Without it the
// server runs search-only and readiness skips the database probe.
func openDatabase(e *env.Env, cfg config.Config, lg zerolog.Logger) *gorm.DB {
	if cfg.Database.URL == "" {
		log.Warn().Msg("DATABASE_URL not set; running without a relational pool")
		return nil
	}

	opts := []database.Option{
		database.WithConnMaxLifetime(cfg.Database.ConnMaxLifetime),
		database.WithConnMaxIdleTime(cfg.Database.ConnMaxIdleTime),
		database.WithSlowThreshold(cfg.Database.SlowThreshold),
		database.WithLogger(lg),
	}
	if cfg.OTEL.Enabled {
		opts = append(opts, database.WithTracing(cfg.OTEL.ServiceName))
	}

	start := time.Now()
	db, err := database.BuildPool(e, cfg.Database.PoolMin, cfg.Database.PoolMax, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("build database pool")
	}
	if err := database.RegisterPoolStats(prometheus.DefaultRegisterer, db, "primary"); err != nil {
		log.Warn().Err(err).Msg("register pool stats")
	}
	log.Info().
		Int("pool_min", cfg.Database.PoolMin).
		Int("pool_max", cfg.Database.PoolMax).
		Dur("took", time.Since(start)).
		Msg("database pool ready")
	return db
}
