// Package telemetry provides the OpenTelemetry integration used to trace
// workflow evaluation: one span per analyzer/worker/selector/synthesizer
// invocation, carrying the node label, plan depth, and outcome.
package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerName identifies the workflow engine's tracer, both on a custom
// TracerProvider and as the name Resolve looks up on the global one.
const TracerName = "chorus-workflow"

// Settings configures whether and how workflow spans are recorded.
// Telemetry is disabled by default and must be explicitly enabled.
type Settings struct {
	// IsEnabled controls whether spans are recorded. Defaults to false.
	IsEnabled bool

	// override, set through WithTracer, takes precedence over the global
	// tracer in Resolve.
	override trace.Tracer
}

// DefaultSettings returns Settings with telemetry disabled.
func DefaultSettings() *Settings {
	return &Settings{IsEnabled: false}
}

// WithEnabled returns a copy of Settings with IsEnabled set to the given value.
func (s *Settings) WithEnabled(enabled bool) *Settings {
	cp := *s
	cp.IsEnabled = enabled
	return &cp
}

// WithTracer returns a copy of Settings that resolves to tracer instead of
// the global one.
func (s *Settings) WithTracer(tracer trace.Tracer) *Settings {
	cp := *s
	cp.override = tracer
	return &cp
}

// Resolve returns the tracer an Engine built from these settings should
// record spans on: a no-op tracer when telemetry is disabled or s is nil,
// the tracer passed to WithTracer when one was set, or the global otel
// tracer otherwise.
func (s *Settings) Resolve() trace.Tracer {
	if s == nil || !s.IsEnabled {
		return noop.NewTracerProvider().Tracer(TracerName)
	}
	if s.override != nil {
		return s.override
	}
	return otel.Tracer(TracerName)
}
