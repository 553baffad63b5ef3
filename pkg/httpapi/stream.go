package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/chorusdev/chorus/internal/sse"
	"github.com/chorusdev/chorus/pkg/execrecord"
	"github.com/chorusdev/chorus/pkg/plan"
	"github.com/chorusdev/chorus/pkg/workflow"
)

// writeJSONEvent marshals body and writes it as a single data-only SSE
// event. A marshal failure here would be a programming error (every
// caller passes a plain struct), so it is swallowed rather than
// threaded through every streaming handler's write path.
func writeJSONEvent(w *sse.Writer, body interface{}) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return
	}
	_ = w.WriteData(string(encoded))
}

// maxEventBytes is the target maximum size of one rechunked streaming
// fragment, keeping individual client events small.
const maxEventBytes = 120

// rechunk splits a text fragment into pieces no larger than maxEventBytes,
// preferring to break at a newline boundary over an arbitrary byte offset.
func rechunk(fragment string, maxBytes int) []string {
	if fragment == "" {
		return nil
	}

	var out []string
	var buf strings.Builder

	flush := func() {
		if buf.Len() > 0 {
			out = append(out, buf.String())
			buf.Reset()
		}
	}

	lines := splitAfterNewline(fragment)
	for _, line := range lines {
		if buf.Len() > 0 && buf.Len()+len(line) > maxBytes {
			flush()
		}
		for len(line) > maxBytes {
			if buf.Len() > 0 {
				flush()
			}
			out = append(out, line[:maxBytes])
			line = line[maxBytes:]
		}
		buf.WriteString(line)
		if buf.Len() >= maxBytes {
			flush()
		}
	}
	flush()
	return out
}

// splitAfterNewline splits s into pieces that each end with "\n" (the
// final piece may not), the way strings.SplitAfter does, without
// producing a trailing empty element.
func splitAfterNewline(s string) []string {
	parts := strings.SplitAfter(s, "\n")
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

// runSync evaluates p against prompt with no streaming sink.
func runSync(ctx context.Context, engine *workflow.Engine, p *plan.Plan, prompt string) (string, *execrecord.Record, error) {
	return engine.Evaluate(ctx, p, prompt, nil, 0)
}

// runStream starts an asynchronous evaluation and returns its two
// channels, exactly as EvaluateAsync does; callers drive the consumer
// loop per endpoint family since each renders deltas in its own shape.
func runStream(ctx context.Context, engine *workflow.Engine, p *plan.Plan, prompt string) (<-chan string, <-chan workflow.Result) {
	return engine.EvaluateAsync(ctx, p, prompt)
}

// errStreamCancelled is reported in the terminal event when the client's
// request context is done before the evaluation finished. It never
// reaches writeError/statusFor: headers are already flushed by the time
// a streaming handler can observe it.
var errStreamCancelled = errors.New("stream cancelled")

// consumeStream drives deltas/done to completion, calling onChunk for
// every fragment as it arrives. If ctx is done first (the client
// disconnected), it stops consuming and returns errStreamCancelled
// immediately, draining both channels on a background goroutine so the
// producer, which runs on the same ctx and winds down as its upstream
// calls fail, never blocks trying to send into an abandoned channel.
func consumeStream(ctx context.Context, deltas <-chan string, done <-chan workflow.Result, onChunk func(string)) workflow.Result {
	for {
		select {
		case <-ctx.Done():
			go func() {
				for range deltas {
				}
			}()
			go func() {
				<-done
			}()
			return workflow.Result{Err: errStreamCancelled}
		case fragment, ok := <-deltas:
			if !ok {
				return <-done
			}
			onChunk(fragment)
		}
	}
}
