// Package observability configures OpenTelemetry tracing for the process and
// hands out the tracer used by the library's own spans.
package observability

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/credentials"

	"github.com/tbourn/go-backend-kit/internal/config"
)

// TracerName is the instrumentation scope of spans started by this module.
const TracerName = "github.com/tbourn/go-backend-kit"

// Shutdown flushes and stops the tracer provider.
type Shutdown func(context.Context) error

// Construction seams. Tests swap them to fail exporter or resource creation
// without a collector; their signatures must stay assignable from those fakes.
var (
	// newOTLPClient builds the gRPC transport from the endpoint/TLS options.
	newOTLPClient = otlptracegrpc.NewClient

	// newOTLPExporterFn wraps the client. No exporter options are taken here.
	newOTLPExporterFn = func(ctx context.Context, client otlptrace.Client) (*otlptrace.Exporter, error) {
		return otlptrace.New(ctx, client)
	}

	// newServiceResourceFn describes the process as service.name/version.
	newServiceResourceFn = func(ctx context.Context, serviceName, version string) (*resource.Resource, error) {
		return resource.New(
			ctx,
			resource.WithAttributes(
				semconv.ServiceName(serviceName),
				semconv.ServiceVersion(version),
			),
		)
	}
)

// Tracer returns the module tracer from the global provider. Before SetupOTel
// (or when tracing is disabled) spans are no-ops.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// SetupOTel installs a batching OTLP/gRPC tracer provider and the W3C
// propagators as globals. When cfg.Enabled is false nothing is installed and
// the returned Shutdown is a no-op. Globals are left untouched on error.
func SetupOTel(ctx context.Context, cfg config.OTELConfig, version string) (Shutdown, error) {
	if !cfg.Enabled {
		log.Debug().Msg("tracing disabled")
		return func(context.Context) error { return nil }, nil
	}

	// Transport: plaintext only when explicitly configured, system roots otherwise.
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}

	// The exporter connects lazily, so an unreachable collector is not an error here.
	exp, err := newOTLPExporterFn(ctx, newOTLPClient(opts...))
	if err != nil {
		return nil, fmt.Errorf("otel exporter: %w", err)
	}
	res, err := newServiceResourceFn(ctx, cfg.ServiceName, version)
	if err != nil {
		_ = exp.Shutdown(ctx) // nothing else owns it yet
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	// Root spans are sampled at SampleRatio; children follow their parent.
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithResource(res),
	)
	// Globals: otelgin, the gorm plugin and Tracer() all read these.
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	log.Info().
		Str("endpoint", cfg.Endpoint).
		Bool("insecure", cfg.Insecure).
		Float64("sample_ratio", cfg.SampleRatio).
		Msg("tracing enabled")
	return tp.Shutdown, nil
}
