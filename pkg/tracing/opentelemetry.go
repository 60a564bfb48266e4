// Package tracing wraps chat models and transcript stores with OpenTelemetry
// spans and Langfuse generations.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/run-bigpig/healthchat/pkg/memory"
)

// OTelTracer implements tracing using OpenTelemetry
type OTelTracer struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	enabled  bool
}

// OTelConfig contains configuration for OpenTelemetry
type OTelConfig struct {
	// Enabled determines whether OpenTelemetry tracing is enabled
	Enabled bool

	// ServiceName is the name of the service
	ServiceName string

	// CollectorEndpoint is the endpoint of the OpenTelemetry collector
	CollectorEndpoint string
}

// NewOTelTracer creates a new OpenTelemetry tracer exporting over OTLP/gRPC
func NewOTelTracer(ctx context.Context, config OTelConfig) (*OTelTracer, error) {
	if !config.Enabled {
		return &OTelTracer{enabled: false}, nil
	}

	exporter, err := otlptrace.New(
		ctx,
		otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(config.CollectorEndpoint),
			otlptracegrpc.WithInsecure(),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return NewOTelTracerWithProvider(tp, config.ServiceName), nil
}

// NewOTelTracerWithProvider uses an existing provider. Shutdown shuts the
// provider down.
func NewOTelTracerWithProvider(tp *sdktrace.TracerProvider, serviceName string) *OTelTracer {
	return &OTelTracer{
		tracer:   tp.Tracer(serviceName),
		provider: tp,
		enabled:  true,
	}
}

// Enabled reports whether spans are recorded
func (t *OTelTracer) Enabled() bool {
	return t != nil && t.enabled
}

// StartSpan starts a new span tagged with the conversation ID, if any
func (t *OTelTracer) StartSpan(ctx context.Context, name string, attributes map[string]string) (context.Context, trace.Span) {
	if !t.Enabled() {
		return ctx, trace.SpanFromContext(ctx)
	}

	attrs := make([]attribute.KeyValue, 0, len(attributes)+1)
	for k, v := range attributes {
		attrs = append(attrs, attribute.String(k, v))
	}

	if id, ok := memory.GetConversationID(ctx); ok {
		attrs = append(attrs, attribute.String("conversation_id", id))
	}

	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan ends a span
func (t *OTelTracer) EndSpan(span trace.Span, err error) {
	if !t.Enabled() {
		return
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Shutdown flushes pending spans
func (t *OTelTracer) Shutdown(ctx context.Context) error {
	if !t.Enabled() || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}
