// Package telemetry provides OpenTelemetry tracing for detection pipelines.
//
// Configuration is read from the standard environment variables:
//
//	OTEL_ENABLED                 - enable/disable tracing (default: false)
//	OTEL_SERVICE_NAME            - service name (default: frontscan)
//	OTEL_SERVICE_VERSION         - service version (default: unknown)
//	OTEL_EXPORTER_OTLP_ENDPOINT  - OTLP collector endpoint
//	OTEL_EXPORTER_OTLP_PROTOCOL  - grpc or http/protobuf (default: grpc)
//	OTEL_EXPORTER_OTLP_HEADERS   - key1=value1,key2=value2
//	OTEL_EXPORTER_OTLP_INSECURE  - use insecure connection (default: false)
//	OTEL_TRACES_SAMPLER          - sampler type (default: always_on)
//	OTEL_TRACES_SAMPLER_ARG      - sampler argument (ratio)
package telemetry

import (
	"context"
	"os"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

// TracerName is the instrumentation name used for engine spans.
const TracerName = "github.com/frontscan"

// Enabled reports whether tracing is switched on via OTEL_ENABLED.
func Enabled() bool {
	return strings.EqualFold(os.Getenv("OTEL_ENABLED"), "true")
}

// Config holds telemetry configuration loaded from environment variables.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Protocol       string
	Headers        map[string]string
	Insecure       bool
	Sampler        string
	SamplerArg     string
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() *Config {
	return &Config{
		Enabled:        strings.EqualFold(os.Getenv("OTEL_ENABLED"), "true"),
		ServiceName:    envOrDefault("OTEL_SERVICE_NAME", "frontscan"),
		ServiceVersion: envOrDefault("OTEL_SERVICE_VERSION", "unknown"),
		Endpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Protocol:       envOrDefault("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"),
		Headers:        parseKeyValuePairs(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
		Insecure:       strings.EqualFold(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE"), "true"),
		Sampler:        os.Getenv("OTEL_TRACES_SAMPLER"),
		SamplerArg:     os.Getenv("OTEL_TRACES_SAMPLER_ARG"),
	}
}

// ShutdownFunc shuts down the TracerProvider, flushing pending spans.
type ShutdownFunc func(ctx context.Context) error

func noopShutdown(_ context.Context) error { return nil }

// Init initializes OpenTelemetry and installs the global TracerProvider.
// When tracing is disabled it returns a no-op shutdown and leaves the default
// no-op provider in place.
func Init(ctx context.Context) (ShutdownFunc, error) {
	return InitWithConfig(ctx, LoadFromEnv())
}

// InitWithConfig initializes OpenTelemetry with an explicit configuration.
func InitWithConfig(ctx context.Context, cfg *Config) (ShutdownFunc, error) {
	if cfg == nil || !cfg.Enabled {
		return noopShutdown, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return noopShutdown, err
	}

	exporter, err := createExporter(ctx, cfg)
	if err != nil {
		return noopShutdown, err
	}

	tp := trace.NewTracerProvider(
		trace.WithResource(res),
		trace.WithBatcher(exporter),
		trace.WithSampler(createSampler(cfg)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func(ctx context.Context) error {
		return tp.Shutdown(ctx)
	}, nil
}

// createSampler creates a trace sampler from the configuration.
func createSampler(cfg *Config) trace.Sampler {
	switch cfg.Sampler {
	case "always_off":
		return trace.NeverSample()
	case "traceidratio":
		return trace.TraceIDRatioBased(parseRatio(cfg.SamplerArg))
	case "parentbased_always_on":
		return trace.ParentBased(trace.AlwaysSample())
	case "parentbased_always_off":
		return trace.ParentBased(trace.NeverSample())
	case "parentbased_traceidratio":
		return trace.ParentBased(trace.TraceIDRatioBased(parseRatio(cfg.SamplerArg)))
	default:
		return trace.AlwaysSample()
	}
}

// parseRatio parses a sampling ratio, clamped to [0, 1]. Invalid input samples fully.
func parseRatio(s string) float64 {
	if s == "" {
		return 1.0
	}
	ratio, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 1.0
	}
	if ratio < 0 {
		return 0
	}
	if ratio > 1 {
		return 1.0
	}
	return ratio
}

func envOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseKeyValuePairs parses a comma-separated list of key=value pairs.
func parseKeyValuePairs(s string) map[string]string {
	result := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		idx := strings.Index(pair, "=")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(pair[:idx])
		value := strings.TrimSpace(pair[idx+1:])
		if key != "" {
			result[key] = value
		}
	}
	return result
}
