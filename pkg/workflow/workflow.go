// Package workflow implements the recursive plan evaluator: the analyzer,
// worker, selector, and synthesizer stages that together turn one plan
// node and a prompt into a final answer and an execution record.
package workflow

import (
	"context"
	"errors"
	"net/url"

	"go.opentelemetry.io/otel/trace"

	"github.com/chorusdev/chorus/pkg/apperr"
	"github.com/chorusdev/chorus/pkg/config"
	"github.com/chorusdev/chorus/pkg/model"
	"github.com/chorusdev/chorus/pkg/telemetry"
	"github.com/chorusdev/chorus/pkg/temperature"
	"github.com/chorusdev/chorus/pkg/upstream"
)

// Engine drives plan evaluation against an immutable model map and
// timeout configuration. One Engine is shared read-only across every
// concurrent request; nothing on it is mutated after construction.
type Engine struct {
	models *model.Map
	cfg    *config.Config
	tracer trace.Tracer
}

// New builds an Engine over the given model map and configuration, with
// telemetry disabled (a no-op tracer).
func New(models *model.Map, cfg *config.Config) *Engine {
	return NewWithTelemetry(models, cfg, telemetry.DefaultSettings())
}

// NewWithTelemetry builds an Engine that records one span per analyzer,
// worker, selector, and synthesizer invocation through settings.
func NewWithTelemetry(models *model.Map, cfg *config.Config, settings *telemetry.Settings) *Engine {
	return &Engine{models: models, cfg: cfg, tracer: settings.Resolve()}
}

func hostOf(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return baseURL
	}
	return u.Host
}

// modelDefaultFor maps a model's configured temperature/auto-temperature
// into a temperature.ModelDefault, applying the tri-state decision
// recorded for worker auto-resolution: an explicit false AutoTemperature
// is "unset" (nil), so a worker's auto chain can still fall through to
// the analyzer's own auto flag. Only an explicit true is a decided value.
func modelDefaultFor(m model.Config) temperature.ModelDefault {
	var auto *bool
	if m.AutoTemperature {
		v := true
		auto = &v
	}
	return temperature.ModelDefault{Temperature: m.Temperature, AutoTemperature: auto}
}

func buildMessages(prompt string) []upstream.Message {
	return []upstream.Message{{Role: "user", Content: prompt}}
}

// asTimeoutErr re-kinds an upstream failure as apperr.Timeout when the
// stage's context deadline is what actually caused it. The message names
// both the role and the node so a worker entry's recorded error stays
// attributable on its own.
func asTimeoutErr(ctx context.Context, role, node string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperr.Wrap(apperr.Timeout, role+" "+node+" timed out", err)
	}
	return err
}
