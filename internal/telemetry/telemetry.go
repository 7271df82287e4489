// Package telemetry installs the OpenTelemetry trace and metric providers.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"gitlab.com/yelinaung/moniclear/internal/config"
	"gitlab.com/yelinaung/moniclear/internal/logger"
)

// ServiceName identifies this program in exported telemetry.
const ServiceName = "moniclear"

const (
	shutdownTimeout = 10 * time.Second
	exportInterval  = 30 * time.Second
)

// Options selects the exporters.
type Options struct {
	Exporter string
	Endpoint string
	Version  string
	// Writer receives stdout exporter output. Defaults to os.Stderr.
	Writer io.Writer
}

// FromConfig builds Options from the loaded configuration.
func FromConfig(cfg *config.Config, version string) Options {
	return Options{
		Exporter: cfg.OTelExporter,
		Endpoint: cfg.OTelEndpoint,
		Version:  version,
	}
}

// Providers holds the installed SDK providers. The zero value is disabled.
type Providers struct {
	tracer *sdktrace.TracerProvider
	meter  *sdkmetric.MeterProvider
}

// Enabled reports whether exporters are installed.
func (p *Providers) Enabled() bool {
	return p != nil && p.tracer != nil
}

// Setup installs global providers for opts.Exporter. With ExporterNone the
// global no-op providers stay in place.
func Setup(ctx context.Context, opts Options) (*Providers, error) {
	if opts.Exporter == "" || opts.Exporter == config.ExporterNone {
		logger.Log.Debug().Msg("Telemetry disabled")
		return &Providers{}, nil
	}
	if opts.Writer == nil {
		opts.Writer = os.Stderr
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", ServiceName),
		attribute.String("service.version", opts.Version),
	)

	spanExporter, metricExporter, err := exporters(ctx, opts)
	if err != nil {
		return nil, err
	}

	p := &Providers{
		tracer: sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(spanExporter),
			sdktrace.WithResource(res),
		),
		meter: sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter,
				sdkmetric.WithInterval(exportInterval))),
		),
	}

	otel.SetTracerProvider(p.tracer)
	otel.SetMeterProvider(p.meter)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Log.Info().
		Str("exporter", opts.Exporter).
		Str("endpoint", opts.Endpoint).
		Msg("Telemetry initialized")
	return p, nil
}

func exporters(ctx context.Context, opts Options) (sdktrace.SpanExporter, sdkmetric.Exporter, error) {
	var (
		spans   sdktrace.SpanExporter
		metrics sdkmetric.Exporter
		err     error
	)
	switch opts.Exporter {
	case config.ExporterStdout:
		spans, err = stdouttrace.New(stdouttrace.WithWriter(opts.Writer))
		if err == nil {
			metrics, err = stdoutmetric.New(stdoutmetric.WithWriter(opts.Writer))
		}
	case config.ExporterOTLPGRPC:
		spans, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(opts.Endpoint),
			otlptracegrpc.WithInsecure())
		if err == nil {
			metrics, err = otlpmetricgrpc.New(ctx,
				otlpmetricgrpc.WithEndpoint(opts.Endpoint),
				otlpmetricgrpc.WithInsecure())
		}
	case config.ExporterOTLPHTTP:
		spans, err = otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(opts.Endpoint),
			otlptracehttp.WithInsecure())
		if err == nil {
			metrics, err = otlpmetrichttp.New(ctx,
				otlpmetrichttp.WithEndpoint(opts.Endpoint),
				otlpmetrichttp.WithInsecure())
		}
	default:
		return nil, nil, fmt.Errorf("unknown telemetry exporter %q", opts.Exporter)
	}
	if err != nil {
		if spans != nil {
			_ = spans.Shutdown(ctx)
		}
		return nil, nil, fmt.Errorf("failed to create %s exporter: %w", opts.Exporter, err)
	}
	return spans, metrics, nil
}

// Shutdown flushes and stops the providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var errs []error
	if err := p.tracer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to shutdown tracer provider: %w", err))
	}
	if err := p.meter.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to shutdown meter provider: %w", err))
	}
	return errors.Join(errs...)
}

// ForceFlush exports buffered spans immediately.
func (p *Providers) ForceFlush(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	return p.tracer.ForceFlush(ctx)
}
