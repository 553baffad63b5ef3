package workflow

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/chorusdev/chorus/pkg/apperr"
	"github.com/chorusdev/chorus/pkg/execrecord"
	"github.com/chorusdev/chorus/pkg/plan"
	"github.com/chorusdev/chorus/pkg/telemetry"
	"github.com/chorusdev/chorus/pkg/temperature"
	"github.com/chorusdev/chorus/pkg/upstream"
)

// Evaluate recursively drives one plan level: resolve the analyzer's
// temperature, run the Worker Stage, optionally the Selector Stage, then
// either the Synthesizer Stage or the selector/first-successful-worker
// fallback chain. depth is 0 at the root and increases for each nested
// sub-plan; sink, if non-nil, receives streamed deltas from whichever
// stage ultimately produces the final text.
func (e *Engine) Evaluate(ctx context.Context, p *plan.Plan, prompt string, sink chan<- string, depth int) (string, *execrecord.Record, error) {
	planLabel := p.Label()

	analyzerEntry, err := telemetry.RecordSpan(ctx, e.tracer, telemetry.SpanOptions{
		Name:       "analyzer",
		Attributes: telemetry.NodeAttributes("analyzer", p.Analyzer.Name, depth),
	}, func(ctx context.Context, span trace.Span) (execrecord.Analyzer, error) {
		entry, err := e.resolveAnalyzer(ctx, p.Analyzer)
		telemetry.AddTemperatureAttribute(span, entry.EffectiveTemperature, temperatureSource(entry.AutoTemperatureUsed))
		return entry, err
	})
	if err != nil {
		return "", &execrecord.Record{Analyzer: analyzerEntry}, err
	}

	record := &execrecord.Record{Analyzer: analyzerEntry}

	// Whatever produces this level's final text owns the delta sink. With
	// a synthesizer present its output is the stream; only on the
	// selector-only and lone-worker paths do the workers stream directly
	// (non-winning workers may stream too, which is accepted).
	workerSink := sink
	if p.Synthesizer != nil {
		workerSink = nil
	}

	workerEntries, successful, err := e.runWorkerStage(ctx, planLabel, depth, p.Workers, prompt,
		analyzerEntry.EffectiveTemperature, analyzerEntry.AutoTemperatureUsed, workerSink)
	record.Workers = workerEntries
	if err != nil {
		return "", record, err
	}

	// A selector failure is recorded on its span and in the execution
	// record but is not fatal: the synthesizer or the fallback chain
	// below still runs.
	var selectorEntry *execrecord.Selector
	if p.Selector != nil {
		selectorEntry, _ = telemetry.RecordSpan(ctx, e.tracer, telemetry.SpanOptions{
			Name:       "selector",
			Attributes: telemetry.NodeAttributes("selector", p.Selector.Name, depth),
		}, func(ctx context.Context, span trace.Span) (*execrecord.Selector, error) {
			return e.runSelectorStage(ctx, *p.Selector, prompt, successful, depth)
		})
		record.Selector = selectorEntry
	}

	if p.Synthesizer != nil {
		text, err := telemetry.RecordSpan(ctx, e.tracer, telemetry.SpanOptions{
			Name:       "synthesizer",
			Attributes: telemetry.NodeAttributes("synthesizer", p.Synthesizer.Name, depth),
		}, func(ctx context.Context, span trace.Span) (string, error) {
			text, entry, err := e.runSynthesizerStage(ctx, *p.Synthesizer, prompt, successful, selectorEntry, sink)
			record.Synthesizer = entry
			if entry != nil {
				telemetry.AddTemperatureAttribute(span, entry.Temperature, "resolved")
			}
			return text, err
		})
		if err != nil {
			return "", record, err
		}
		return text, record, nil
	}

	text, err := finalFallbackResponse(planLabel, selectorEntry, successful)
	return text, record, err
}

// temperatureSource labels how the analyzer's temperature was derived,
// for the span attribute set recorded alongside it.
func temperatureSource(autoUsed bool) string {
	if autoUsed {
		return "auto"
	}
	return "resolved"
}

// finalFallbackResponse picks the final text when a plan level has no
// synthesizer: the selector's selected_response, else the
// selector-chosen worker's own response, else the first successful
// worker, else a hard failure.
func finalFallbackResponse(planLabel string, selector *execrecord.Selector, successful []workerOutcome) (string, error) {
	if selector != nil && selector.Success {
		if selector.ChosenResponse != "" {
			return selector.ChosenResponse, nil
		}
		for _, o := range successful {
			if o.Name == selector.ChosenWorker {
				return o.Response, nil
			}
		}
	}
	if len(successful) > 0 {
		return successful[0].Response, nil
	}
	return "", apperr.Newf(apperr.NoFinalResponse, "plan %q produced no usable final response", planLabel)
}

// resolveAnalyzer resolves the analyzer's effective temperature,
// performing the auto-temperature upstream call when neither the node
// nor the model set an explicit value but either requested auto mode.
// The returned entry carries the resolved temperature and auto flag the
// worker stage consumes.
func (e *Engine) resolveAnalyzer(ctx context.Context, ref plan.Ref) (execrecord.Analyzer, error) {
	nodeID := execrecord.NewNodeID()

	modelCfg, err := e.models.Get(ref.Name)
	if err != nil {
		return execrecord.Analyzer{NodeID: nodeID, Model: ref.Name}, err
	}

	nodeHint := temperature.NodeHint{Temperature: ref.Temperature, AutoTemperature: ref.AutoTemperature}
	modelDefault := modelDefaultFor(modelCfg)

	resolved, needsAutoCall := temperature.ResolveAnalyzer(nodeHint, modelDefault)
	if !needsAutoCall {
		return execrecord.Analyzer{NodeID: nodeID, Model: ref.Name, EffectiveTemperature: resolved.Value, AutoTemperatureUsed: false}, nil
	}

	timeouts := e.cfg.TimeoutsFor(hostOf(modelCfg.BaseURL))
	callCtx, cancel := context.WithTimeout(ctx, timeouts.Analyzer)
	defer cancel()

	reply, err := upstream.Call(callCtx, upstream.Input{
		BaseURL:     modelCfg.BaseURL,
		APIKey:      modelCfg.APIKey,
		Model:       ref.Name,
		Messages:    buildMessages(analyzerAutoPrompt()),
		Temperature: temperature.Default,
	})
	if err != nil {
		err = asTimeoutErr(callCtx, "analyzer", ref.Name, err)
		return execrecord.Analyzer{NodeID: nodeID, Model: ref.Name, EffectiveTemperature: temperature.Default, AutoTemperatureUsed: true}, err
	}

	finalized := temperature.FinalizeAnalyzerAuto(upstream.ParseTemperatureReply(reply))
	return execrecord.Analyzer{NodeID: nodeID, Model: ref.Name, EffectiveTemperature: finalized.Value, AutoTemperatureUsed: true}, nil
}

func analyzerAutoPrompt() string {
	return "Choose a sampling temperature between 0 and 2 for this request. " +
		"Respond with a JSON object: {\"temperature\": <number>, \"reasoning\": \"<brief reason>\"}."
}
