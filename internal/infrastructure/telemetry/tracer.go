package telemetry

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxStatementLength = 512

// TracerInterface is the tracing surface the service and store layers use
type TracerInterface interface {
	StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span)
	StartSpanWithAttributes(ctx context.Context, spanName string, attrs map[string]interface{}, opts ...trace.SpanStartOption) (context.Context, trace.Span)
	GetSpan(ctx context.Context) trace.Span
	SetAttributes(span trace.Span, attrs map[string]interface{})
}

// OpenTelemetryTracer implements TracerInterface on an otel tracer
type OpenTelemetryTracer struct {
	tracer trace.Tracer
}

// NewOpenTelemetryTracer creates a tracer on the global provider
func NewOpenTelemetryTracer(name string) *OpenTelemetryTracer {
	return &OpenTelemetryTracer{tracer: otel.Tracer(name)}
}

// NewTracerFromProvider creates a tracer bound to tp instead of the global
// provider
func NewTracerFromProvider(tp trace.TracerProvider, name string) *OpenTelemetryTracer {
	return &OpenTelemetryTracer{tracer: tp.Tracer(name)}
}

func (t *OpenTelemetryTracer) StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, spanName, opts...)
}

func (t *OpenTelemetryTracer) StartSpanWithAttributes(ctx context.Context, spanName string, attrs map[string]interface{}, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	opts = append(opts, trace.WithAttributes(convertAttributes(attrs)...))
	return t.tracer.Start(ctx, spanName, opts...)
}

func (t *OpenTelemetryTracer) GetSpan(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

func (t *OpenTelemetryTracer) SetAttributes(span trace.Span, attrs map[string]interface{}) {
	span.SetAttributes(convertAttributes(attrs)...)
}

func convertAttributes(attrs map[string]interface{}) []attribute.KeyValue {
	result := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		switch val := v.(type) {
		case string:
			result = append(result, attribute.String(k, val))
		case bool:
			result = append(result, attribute.Bool(k, val))
		case int:
			result = append(result, attribute.Int(k, val))
		case int64:
			result = append(result, attribute.Int64(k, val))
		case float64:
			result = append(result, attribute.Float64(k, val))
		case []string:
			result = append(result, attribute.StringSlice(k, val))
		default:
			result = append(result, attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}
	return result
}

// StartDatabaseSpan starts a client span for one SQL statement. The span is
// named after the statement's leading keyword, e.g. "db.select".
func StartDatabaseSpan(ctx context.Context, tracer TracerInterface, statement string) (context.Context, trace.Span) {
	statement = strings.Join(strings.Fields(statement), " ")
	operation := "query"
	if i := strings.IndexByte(statement, ' '); i > 0 {
		operation = strings.ToLower(statement[:i])
	} else if statement != "" {
		operation = strings.ToLower(statement)
	}
	if len(statement) > maxStatementLength {
		statement = statement[:maxStatementLength]
	}

	return tracer.StartSpanWithAttributes(ctx, "db."+operation, map[string]interface{}{
		"db.system":    "postgresql",
		"db.operation": operation,
		"db.statement": statement,
	}, trace.WithSpanKind(trace.SpanKindClient))
}

// StartServiceSpan starts a span for service operations
func StartServiceSpan(ctx context.Context, tracer TracerInterface, service, operation string) (context.Context, trace.Span) {
	spanName := fmt.Sprintf("%s.%s", service, operation)
	return tracer.StartSpanWithAttributes(ctx, spanName, map[string]interface{}{
		"service.name":      service,
		"service.operation": operation,
		"component":         "service",
	})
}

// WithSpanError records err on span and marks it failed. A nil err is a
// no-op.
func WithSpanError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
