package config

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/mpapenbr/hyperdrive-race/log"
	"github.com/mpapenbr/hyperdrive-race/version"
)

const StdoutEndpoint = "stdout"

type Telemetry struct {
	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
}

type (
	TelemetryOption func(*telemetryConfig)
	telemetryConfig struct {
		endpoint string
		writer   io.Writer
		interval time.Duration
	}
)

// WithEndpoint sets the OTLP/gRPC endpoint. StdoutEndpoint uses the stdout
// exporters instead.
func WithEndpoint(endpoint string) TelemetryOption {
	return func(c *telemetryConfig) {
		c.endpoint = endpoint
	}
}

// WithWriter sets the target of the stdout exporters.
func WithWriter(w io.Writer) TelemetryOption {
	return func(c *telemetryConfig) {
		c.writer = w
	}
}

func WithExportInterval(d time.Duration) TelemetryOption {
	return func(c *telemetryConfig) {
		c.interval = d
	}
}

// SetupTelemetry installs global trace and metric providers.
func SetupTelemetry(ctx context.Context, opts ...TelemetryOption) (*Telemetry, error) {
	cfg := &telemetryConfig{
		endpoint: TelemetryEndpoint,
		writer:   os.Stdout,
		interval: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	res := resource.NewSchemaless(
		attribute.String("service.name", "hdr"),
		attribute.String("service.version", version.Version),
	)
	traceExp, metricExp, err := newExporters(ctx, cfg)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp,
			sdkmetric.WithInterval(cfg.interval))),
		sdkmetric.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	log.Info("telemetry enabled", log.String("endpoint", cfg.endpoint))
	return &Telemetry{tp: tp, mp: mp}, nil
}

//nolint:whitespace // editor/linter issue
func newExporters(ctx context.Context, cfg *telemetryConfig) (
	sdktrace.SpanExporter, sdkmetric.Exporter, error,
) {
	if cfg.endpoint == StdoutEndpoint {
		te, err := stdouttrace.New(stdouttrace.WithWriter(cfg.writer))
		if err != nil {
			return nil, nil, err
		}
		me, err := stdoutmetric.New(stdoutmetric.WithWriter(cfg.writer))
		if err != nil {
			return nil, nil, err
		}
		return te, me, nil
	}
	te, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.endpoint),
		otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, nil, err
	}
	me, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.endpoint),
		otlpmetricgrpc.WithInsecure())
	if err != nil {
		return nil, nil, err
	}
	return te, me, nil
}

// Shutdown flushes and stops both providers.
func (t *Telemetry) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := errors.Join(t.tp.Shutdown(ctx), t.mp.Shutdown(ctx))
	if err != nil {
		log.Warn("telemetry shutdown", log.ErrorField(err))
	}
	return err
}
