// Package telemetry sets up an OpenTelemetry TracerProvider and offers
// span helpers for RPC dispatch and agent runs (StartRPCSpan,
// StartRunSpan); the dispatcher and the agent lifecycle do not call
// those helpers. It is an ambient observability concern carried regardless
// of spec.md's Non-goals (those scope out clustering/auth, not
// logging/tracing — see SPEC_FULL.md §2).
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Transport selects the OTLP wire protocol used to reach the
// collector. Most collectors accept both; grpc is the lower-overhead
// choice for a collector on the same host or a fast private network,
// http/protobuf is the one that survives behind an ordinary reverse
// proxy.
type Transport string

const (
	TransportHTTP Transport = "http"
	TransportGRPC Transport = "grpc"
)

// Config tunes the OTLP exporter. An empty Endpoint disables export;
// spans are still created (and discarded) so instrumentation code
// paths behave identically with tracing off.
type Config struct {
	Endpoint    string
	ServiceName string
	Transport   Transport // defaults to TransportHTTP
}

// Provider wraps the SDK TracerProvider plus a ready-to-use Tracer for
// Vargos's own spans.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// Setup installs a global TracerProvider and returns it for shutdown.
// When cfg.Endpoint is empty, a provider with no exporter is installed
// (spans are created and sampled but never exported) so callers don't
// need to special-case "tracing disabled".
func Setup(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "vargos-gateway"
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

	if cfg.Endpoint != "" {
		exporter, err := newExporter(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("telemetry: build otlp exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)

	return &Provider{tp: tp, tracer: tp.Tracer(cfg.ServiceName)}, nil
}

func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	if cfg.Transport == TransportGRPC {
		return otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(cfg.Endpoint), otlptracegrpc.WithInsecure())
	}
	return otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(cfg.Endpoint), otlptracehttp.WithInsecure())
}

// Shutdown flushes and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.tp.Shutdown(shutdownCtx)
}

// StartRPCSpan wraps one RPC dispatch call (spec §4.7): target.method,
// with the request id attached as an attribute for cross-referencing
// logs.
func (p *Provider) StartRPCSpan(ctx context.Context, target, method, requestID string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, fmt.Sprintf("rpc.%s.%s", target, method),
		trace.WithAttributes(
			attribute.String("vargos.rpc.target", target),
			attribute.String("vargos.rpc.method", method),
			attribute.String("vargos.rpc.request_id", requestID),
		),
	)
}

// StartRunSpan wraps one agent run (spec §4.10), from preparing through
// its terminal phase.
func (p *Provider) StartRunSpan(ctx context.Context, sessionKey, runID string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "agent.run",
		trace.WithAttributes(
			attribute.String("vargos.session_key", sessionKey),
			attribute.String("vargos.run_id", runID),
		),
	)
}
