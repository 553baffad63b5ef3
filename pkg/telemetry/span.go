package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SpanOptions configures a telemetry span
type SpanOptions struct {
	// Name is the operation name for the span
	Name string

	// Attributes are key-value pairs attached to the span
	Attributes []attribute.KeyValue
}

// RecordSpan creates and executes a telemetry span for a stage of workflow
// evaluation. The span ends when fn returns; errors are recorded on it.
// fn's result is returned as-is even on failure, so a stage that builds a
// partial trace entry alongside its error keeps it.
func RecordSpan[T any](
	ctx context.Context,
	tracer trace.Tracer,
	opts SpanOptions,
	fn func(context.Context, trace.Span) (T, error),
) (T, error) {
	ctx, span := tracer.Start(ctx, opts.Name,
		trace.WithAttributes(opts.Attributes...),
	)
	defer span.End()

	result, err := fn(ctx, span)
	RecordErrorOnSpan(span, err)
	return result, err
}

// RecordErrorOnSpan records an error on a span and sets the span status to error.
func RecordErrorOnSpan(span trace.Span, err error) {
	if err == nil {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// NodeAttributes returns the attributes recorded on every analyzer, worker,
// selector, and synthesizer span: its role, the node's label (model name or
// plan label), and the plan's recursion depth.
func NodeAttributes(role, label string, depth int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("chorus.role", role),
		attribute.String("chorus.node", label),
		attribute.Int("chorus.depth", depth),
	}
}

// AddTemperatureAttribute records the resolved temperature and a label for
// how it was derived on a span. The workflow stages pass "auto" for an
// analyzer temperature from the auto call and "resolved" for every other
// case; explicit and default values are not told apart.
func AddTemperatureAttribute(span trace.Span, temperature float64, source string) {
	span.SetAttributes(
		attribute.Float64("chorus.temperature", temperature),
		attribute.String("chorus.temperature_source", source),
	)
}
