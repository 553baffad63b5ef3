package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/chorusdev/chorus/pkg/apperr"
	"github.com/chorusdev/chorus/pkg/execrecord"
	"github.com/chorusdev/chorus/pkg/plan"
	"github.com/chorusdev/chorus/pkg/telemetry"
	"github.com/chorusdev/chorus/pkg/temperature"
	"github.com/chorusdev/chorus/pkg/upstream"
)

// workerOutcome is the successful-worker view passed to the selector and
// synthesizer stages: just the name and final text, regardless of
// whether the worker was a model leaf or a sub-plan.
type workerOutcome struct {
	Name     string
	Response string
}

// runWorkerStage invokes every worker in declaration order, peer workers
// concurrently, and returns an ordered execution-record slice the same
// length as workers plus the successful subset for downstream stages. It
// fails only when every worker failed.
func (e *Engine) runWorkerStage(
	ctx context.Context,
	planLabel string,
	depth int,
	workers []plan.Worker,
	prompt string,
	analyzerTemp float64,
	analyzerAutoUsed bool,
	sink chan<- string,
) ([]execrecord.Worker, []workerOutcome, error) {
	if len(workers) == 0 {
		return nil, nil, apperr.Newf(apperr.ConfigInvalid, "plan %q at depth %d has no workers", planLabel, depth)
	}

	entries := make([]execrecord.Worker, len(workers))
	var wg sync.WaitGroup
	for i, w := range workers {
		wg.Add(1)
		go func(i int, w plan.Worker) {
			defer wg.Done()
			entries[i] = e.runOneWorker(ctx, w, depth, prompt, analyzerTemp, analyzerAutoUsed, sink)
		}(i, w)
	}
	wg.Wait()

	var successful []workerOutcome
	var failures []string
	for _, entry := range entries {
		if entry.Success {
			successful = append(successful, workerOutcome{Name: entry.Name, Response: entry.Response})
		} else {
			failures = append(failures, fmt.Sprintf("%s: %s", entry.Name, entry.Error))
		}
	}

	if len(successful) == 0 {
		return entries, nil, apperr.Newf(apperr.WorkersAllFailed,
			"plan %q: every worker failed: %s", planLabel, strings.Join(failures, "; "))
	}
	return entries, successful, nil
}

func (e *Engine) runOneWorker(
	ctx context.Context,
	w plan.Worker,
	depth int,
	prompt string,
	analyzerTemp float64,
	analyzerAutoUsed bool,
	sink chan<- string,
) execrecord.Worker {
	name := workerName(w)
	entry, _ := telemetry.RecordSpan(ctx, e.tracer, telemetry.SpanOptions{
		Name:       "worker",
		Attributes: telemetry.NodeAttributes("worker", name, depth),
	}, func(ctx context.Context, span trace.Span) (execrecord.Worker, error) {
		var entry execrecord.Worker
		switch worker := w.(type) {
		case plan.ModelWorker:
			entry = e.runModelWorker(ctx, worker, prompt, analyzerTemp, analyzerAutoUsed, sink)
		case *plan.Plan:
			entry = e.runSubPlanWorker(ctx, worker, depth, prompt, sink)
		default:
			entry = execrecord.Worker{NodeID: execrecord.NewNodeID(), Name: "unknown", Success: false, Error: "unrecognized worker type"}
		}

		if entry.EffectiveTemperature != nil {
			telemetry.AddTemperatureAttribute(span, *entry.EffectiveTemperature, "resolved")
		}
		if !entry.Success {
			return entry, errors.New(entry.Error)
		}
		return entry, nil
	})
	return entry
}

// workerName returns the label used for tracing before the worker has
// actually run, mirroring the name each outcome carries in its record.
func workerName(w plan.Worker) string {
	switch worker := w.(type) {
	case plan.ModelWorker:
		return worker.Name
	case *plan.Plan:
		return worker.Label()
	default:
		return "unknown"
	}
}

func (e *Engine) runModelWorker(
	ctx context.Context,
	w plan.ModelWorker,
	prompt string,
	analyzerTemp float64,
	analyzerAutoUsed bool,
	sink chan<- string,
) execrecord.Worker {
	nodeID := execrecord.NewNodeID()

	modelCfg, err := e.models.Get(w.Name)
	if err != nil {
		return execrecord.Worker{NodeID: nodeID, Name: w.Name, Success: false, Error: err.Error()}
	}

	resolved := temperature.ResolveWorker(
		temperature.NodeHint{Temperature: w.Temperature, AutoTemperature: w.AutoTemperature},
		modelDefaultFor(modelCfg),
		temperature.AnalyzerContext{Resolved: analyzerTemp, UsedAuto: analyzerAutoUsed},
	)

	timeouts := e.cfg.TimeoutsFor(hostOf(modelCfg.BaseURL))
	callCtx, cancel := context.WithTimeout(ctx, timeouts.Worker)
	defer cancel()

	text, err := upstream.Call(callCtx, upstream.Input{
		BaseURL:     modelCfg.BaseURL,
		APIKey:      modelCfg.APIKey,
		Model:       w.Name,
		Messages:    buildMessages(prompt),
		Temperature: resolved.Value,
		Sink:        sink,
	})
	if err != nil {
		err = asTimeoutErr(callCtx, "worker", w.Name, err)
		return execrecord.Worker{NodeID: nodeID, Name: w.Name, EffectiveTemperature: &resolved.Value, Success: false, Error: err.Error()}
	}

	return execrecord.Worker{NodeID: nodeID, Name: w.Name, EffectiveTemperature: &resolved.Value, Response: text, Success: true}
}

func (e *Engine) runSubPlanWorker(ctx context.Context, sub *plan.Plan, depth int, prompt string, sink chan<- string) execrecord.Worker {
	nodeID := execrecord.NewNodeID()
	text, nested, err := e.Evaluate(ctx, sub, prompt, sink, depth+1)
	if err != nil {
		return execrecord.Worker{NodeID: nodeID, Name: sub.Label(), Success: false, Error: err.Error(), NestedRecord: nested}
	}
	return execrecord.Worker{NodeID: nodeID, Name: sub.Label(), Response: text, Success: true, NestedRecord: nested}
}
