// Package tracing configures the OpenTelemetry tracer provider and ties its
// shutdown to the lifecycle coordinator.
package tracing

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc/credentials"

	"github.com/JaimeStill/ledger/pkg/lifecycle"
)

// System owns the process tracer provider.
type System interface {
	Tracer(name string) trace.Tracer
	Shutdown(ctx context.Context) error
	Start(lc *lifecycle.Coordinator) error
}

type tracing struct {
	provider trace.TracerProvider
	shutdown func(context.Context) error
	logger   *slog.Logger
}

// New builds the exporter and provider for cfg and installs it as the
// global provider. ExporterNone installs a no-op provider.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	logger = logger.With("system", "tracing")

	if cfg.Exporter == ExporterNone {
		provider := noop.NewTracerProvider()
		otel.SetTracerProvider(provider)
		return &tracing{
			provider: provider,
			shutdown: func(context.Context) error { return nil },
			logger:   logger,
		}, nil
	}

	exp, err := exporter(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s exporter: %w", cfg.Exporter, err)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sampler(cfg)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &tracing{
		provider: tp,
		shutdown: tp.Shutdown,
		logger:   logger,
	}, nil
}

func (t *tracing) Tracer(name string) trace.Tracer {
	return t.provider.Tracer(name)
}

func (t *tracing) Shutdown(ctx context.Context) error {
	return t.shutdown(ctx)
}

func (t *tracing) Start(lc *lifecycle.Coordinator) error {
	lc.OnShutdown(func() {
		<-lc.Context().Done()
		t.logger.Info("flushing traces")

		if err := t.shutdown(context.Background()); err != nil {
			t.logger.Error("tracer shutdown failed", "error", err)
			return
		}

		t.logger.Info("tracer provider stopped")
	})
	return nil
}

func exporter(ctx context.Context, cfg *Config) (sdktrace.SpanExporter, error) {
	headers := cfg.HeaderMap()

	switch cfg.Exporter {
	case ExporterOTLPGRPC:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if len(headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(headers))
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		} else {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(&tls.Config{})))
		}
		return otlptracegrpc.New(ctx, opts...)
	case ExporterOTLPHTTP:
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpointURL(cfg.Endpoint)}
		if len(headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(headers))
		}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	}
	return stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
}

func sampler(cfg *Config) sdktrace.Sampler {
	switch cfg.Sampler {
	case "always_off":
		return sdktrace.ParentBased(sdktrace.NeverSample())
	case "ratio":
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplerRatio))
	}
	return sdktrace.ParentBased(sdktrace.AlwaysSample())
}
