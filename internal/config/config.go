// Package config provides application configuration resolved through the
// env accessor, with defaults and validation. It centralizes settings such as
// server timeouts, logging, the relational pool, the search cluster, rate
// limiting, and observability.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tbourn/go-backend-kit/internal/env"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration `validate:"gte=0"`
}

// DatabaseConfig sizes the relational pool. The connection URL itself is
// read by database.BuildPool from DATABASE_URL.
type DatabaseConfig struct {
	URL             string        // DATABASE_URL (kept for diagnostics; may be empty)
	PoolMin         int           `validate:"gte=0,ltefield=PoolMax"` // DB_POOL_MIN
	PoolMax         int           `validate:"gte=1"`                  // DB_POOL_MAX
	ConnMaxLifetime time.Duration `validate:"gte=0"`                  // DB_CONN_MAX_LIFETIME
	ConnMaxIdleTime time.Duration `validate:"gte=0"`                  // DB_CONN_MAX_IDLE_TIME
	SlowThreshold   time.Duration `validate:"gte=0"`                  // DB_SLOW_THRESHOLD
}

// ElasticConfig locates the search cluster.
type ElasticConfig struct {
	Addresses []string `validate:"min=1,dive,url"` // ELASTIC_URLS (comma separated)
	Username  string   // ELASTIC_USERNAME
	Password  string   // ELASTIC_PASSWORD
	APIKey    string   // ELASTIC_API_KEY (wins over basic auth)
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  `validate:"required"`    // OTEL_SERVICE_NAME
	SampleRatio float64 `validate:"gte=0,lte=1"` // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        `validate:"required"`
	ReadTimeout       time.Duration `validate:"gt=0"`
	ReadHeaderTimeout time.Duration `validate:"gt=0"`
	WriteTimeout      time.Duration `validate:"gt=0"`
	IdleTimeout       time.Duration `validate:"gt=0"`
	ShutdownTimeout   time.Duration `validate:"gt=0"`
	MaxHeaderBytes    int           `validate:"gt=0"`
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string `validate:"oneof=debug info warn error fatal panic"`
	LogPretty      bool
	SwaggerEnabled bool

	// Errors: when true, HTTP error bodies carry the redacted user view
	RedactErrors bool

	Database DatabaseConfig
	Elastic  ElasticConfig

	// Rate limiting
	RateRPS   float64 `validate:"gte=0"` // tokens per second
	RateBurst int     `validate:"gte=1"` // bucket size

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// MustLoad loads the configuration and panics if validation fails.
func MustLoad(e *env.Env) Config {
	cfg, err := Load(e)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load resolves configuration through e, applies defaults, normalizes values,
// and validates the result.
func Load(e *env.Env) (Config, error) {
	cfg := Config{
		// Server
		Port:              e.String("PORT", "8080"),
		ReadTimeout:       e.Duration("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: e.Duration("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      e.Duration("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       e.Duration("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   e.Duration("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxHeaderBytes:    e.Int("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(e.String("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(e.String("LOG_LEVEL", "info")),
		LogPretty:      e.Bool("LOG_PRETTY", false),
		SwaggerEnabled: e.Bool("SWAGGER_ENABLED", false),

		RedactErrors: e.Bool("ERRORS_REDACT", false),

		Database: DatabaseConfig{
			URL:             e.Get("DATABASE_URL", ""),
			PoolMin:         e.Int("DB_POOL_MIN", 1),
			PoolMax:         e.Int("DB_POOL_MAX", 20),
			ConnMaxLifetime: e.Duration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: e.Duration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			SlowThreshold:   e.Duration("DB_SLOW_THRESHOLD", 200*time.Millisecond),
		},
		Elastic: ElasticConfig{
			Addresses: e.CSV("ELASTIC_URLS"),
			Username:  e.String("ELASTIC_USERNAME", ""),
			Password:  e.String("ELASTIC_PASSWORD", ""),
			APIKey:    e.String("ELASTIC_API_KEY", ""),
		},

		// Rate limiting
		RateRPS:   e.Float("RATE_RPS", 5.0),
		RateBurst: e.Int("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: e.CSV("CORS_ALLOWED_ORIGINS"),
		},
		Security: SecurityConfig{
			EnableHSTS: e.Bool("ENABLE_HSTS", false),
			HSTSMaxAge: e.Duration("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     e.Bool("OTEL_ENABLED", false),
			Endpoint:    e.String("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    e.Bool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: e.String("OTEL_SERVICE_NAME", "go-backend-kit"),
			SampleRatio: e.Float("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if len(cfg.Elastic.Addresses) == 0 {
		cfg.Elastic.Addresses = []string{"http://localhost:9200"}
	}

	// --- validation ---
	if err := validate.Struct(cfg); err != nil {
		return cfg, describe(err)
	}
	return cfg, nil
}

// describe flattens validator output into one error naming each field.
func describe(err error) error {
	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) {
		return err
	}
	msgs := make([]string, 0, len(vErrs))
	for _, fe := range vErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag()+paramSuffix(fe.Param()), fe.Value()))
	}
	return errors.New("invalid config: " + strings.Join(msgs, "; "))
}

func paramSuffix(p string) string {
	if p == "" {
		return ""
	}
	return "=" + p
}
