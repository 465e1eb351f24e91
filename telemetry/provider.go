// Package telemetry wires stream.Runtime's metrics snapshot into
// OpenTelemetry and a Prometheus scrape endpoint. Grounded on
// internal/metrics/metrics.go's NewMetricProvider/ServePrometheusMetrics
// and internal/metrics/option.go's functional-options config, merged into
// one file and adapted to observe stream.Snapshot instead of business
// logic pushing its own instruments.
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
)

// Provider is the subset of a *sdkmetric.MeterProvider callers need: a
// Meter to register instruments on and a Shutdown to flush on exit.
type Provider interface {
	Meter(name string, options ...metric.MeterOption) metric.Meter
	Shutdown(ctx context.Context) error
}

// ExporterKind selects which metric reader backs a Provider.
type ExporterKind string

const (
	// ExporterPrometheus exposes a pull-based /metrics endpoint.
	ExporterPrometheus ExporterKind = "prometheus"
	// ExporterOTLP pushes to an OTLP/gRPC collector.
	ExporterOTLP ExporterKind = "otlp"
)

// ExporterConfig configures one reader.
type ExporterConfig struct {
	Kind     ExporterKind
	Endpoint string // OTLP only
	Headers  map[string]string
	Insecure bool
}

// Config configures a Provider build.
type Config struct {
	ServiceName string
	Exporters   []ExporterConfig
}

// Option mutates a Config being built up by NewProvider.
type Option func(Config) Config

// WithExporter appends one exporter to the Provider.
func WithExporter(e ExporterConfig) Option {
	return func(c Config) Config {
		c.Exporters = append(c.Exporters, e)
		return c
	}
}

// WithServiceName sets the resource's service.name attribute.
func WithServiceName(name string) Option {
	return func(c Config) Config {
		c.ServiceName = name
		return c
	}
}

// HoneycombExporter builds an OTLP exporter config from Honeycomb's
// standard environment variables, matching the teacher's
// NewHoneycombConfig helper.
func HoneycombExporter() ExporterConfig {
	key := os.Getenv("OTEL_EXPORTER_OTLP_HEADERS_KEY")
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	serviceName := os.Getenv("OTEL_SERVICE_NAME")
	return ExporterConfig{
		Kind:     ExporterOTLP,
		Endpoint: endpoint,
		Headers: map[string]string{
			"x-honeycomb-team":    key,
			"x-honeycomb-dataset": fmt.Sprintf("%s_metrics", serviceName),
		},
	}
}

func buildReaders(ctx context.Context, cfg Config) ([]sdkmetric.Reader, error) {
	var readers []sdkmetric.Reader
	for _, e := range cfg.Exporters {
		switch e.Kind {
		case ExporterPrometheus:
			exp, err := otelprometheus.New()
			if err != nil {
				return nil, fmt.Errorf("telemetry: prometheus exporter: %w", err)
			}
			readers = append(readers, exp)
		case ExporterOTLP:
			opts := []otlpmetricgrpc.Option{
				otlpmetricgrpc.WithEndpointURL(e.Endpoint),
				otlpmetricgrpc.WithHeaders(e.Headers),
			}
			if e.Insecure {
				opts = append(opts, otlpmetricgrpc.WithInsecure())
			}
			exp, err := otlpmetricgrpc.New(ctx, opts...)
			if err != nil {
				return nil, fmt.Errorf("telemetry: otlp exporter: %w", err)
			}
			readers = append(readers, sdkmetric.NewPeriodicReader(exp))
		}
	}
	return readers, nil
}

// NewProvider builds a Provider from the given options and installs it
// as the global OpenTelemetry meter provider.
func NewProvider(opts ...Option) (Provider, error) {
	var cfg Config
	for _, opt := range opts {
		cfg = opt(cfg)
	}

	readers, err := buildReaders(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = os.Getenv("OTEL_SERVICE_NAME")
	}

	mopts := []sdkmetric.Option{
		sdkmetric.WithResource(resource.NewSchemaless(semconv.ServiceNameKey.String(serviceName))),
	}
	for _, r := range readers {
		mopts = append(mopts, sdkmetric.WithReader(r))
	}

	mp := sdkmetric.NewMeterProvider(mopts...)
	otel.SetMeterProvider(mp)
	return mp, nil
}

// ServePrometheus blocks, serving the process's registered Prometheus
// collectors at /metrics on addr (e.g. ":9090").
func ServePrometheus(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux) //nolint:gosec // scrape server, no client-controlled input
}
