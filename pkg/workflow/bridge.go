package workflow

import (
	"context"

	"github.com/chorusdev/chorus/pkg/execrecord"
	"github.com/chorusdev/chorus/pkg/plan"
)

// Result is the terminal outcome of one asynchronous plan evaluation.
type Result struct {
	Text   string
	Record *execrecord.Record
	Err    error
}

// EvaluateAsync spawns the plan evaluation on its own goroutine and
// returns two channels: deltas, which receives every streamed text
// fragment and is closed once evaluation finishes, and done, a
// single-shot channel carrying the terminal Result. The HTTP adapter
// owns both receiving ends; dropping them does not by itself cancel the
// in-flight evaluation. ctx is passed to every upstream call, so
// cancelling ctx makes those calls fail early; otherwise the producer
// runs to completion or to a stage timeout. An unread result is discarded.
func (e *Engine) EvaluateAsync(ctx context.Context, p *plan.Plan, prompt string) (deltas <-chan string, done <-chan Result) {
	sink := make(chan string, 64)
	result := make(chan Result, 1)

	go func() {
		text, record, err := e.Evaluate(ctx, p, prompt, sink, 0)
		close(sink)
		result <- Result{Text: text, Record: record, Err: err}
	}()

	return sink, result
}
