package workflow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chorusdev/chorus/pkg/apperr"
	"github.com/chorusdev/chorus/pkg/config"
	"github.com/chorusdev/chorus/pkg/model"
	"github.com/chorusdev/chorus/pkg/plan"
)

// fakeModel starts an httptest server that answers /chat/completions with
// reply and returns the model config registering it under name.
func fakeModel(t *testing.T, name, reply string) (*httptest.Server, config.ModelConfig) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		body, _ := json.Marshal(map[string]interface{}{
			"choices": []map[string]interface{}{{"message": map[string]interface{}{"content": reply}}},
		})
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, config.ModelConfig{Name: name, APIBase: srv.URL}
}

func fakeModelFunc(t *testing.T, name string, handler http.HandlerFunc) config.ModelConfig {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return config.ModelConfig{Name: name, APIBase: srv.URL}
}

func fakeFailingModel(t *testing.T, name, message string) config.ModelConfig {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(message))
	}))
	t.Cleanup(srv.Close)
	return config.ModelConfig{Name: name, APIBase: srv.URL}
}

func testConfig(models ...config.ModelConfig) *config.Config {
	return &config.Config{
		Models: models,
		Workflow: config.WorkflowConfig{
			Timeouts: config.WorkflowTimeouts{AnalyzerTimeoutSecs: 5, WorkerTimeoutSecs: 5, SynthesizerTimeoutSecs: 5},
			Domains:  map[string]config.DomainOverride{},
		},
	}
}

// Two-worker flat plan, both succeed, with synthesizer.
func TestEvaluateTwoWorkerSynthesizer(t *testing.T) {
	t.Parallel()

	_, analyzer := fakeModel(t, "m", "ignored-analyzer-reply")
	_, workerA := fakeModel(t, "a", "A")
	_, workerB := fakeModel(t, "b", "B")
	_, synth := fakeModel(t, "s", "AB")

	cfg := testConfig(analyzer, workerA, workerB, synth)
	engine := New(model.NewMap(cfg.Models), cfg)

	p, err := plan.Parse([]byte(`{
		"analyzer": {"ref": "m"},
		"workers": [{"name": "a"}, {"name": "b"}],
		"synthesizer": {"ref": "s"}
	}`))
	require.NoError(t, err)

	text, record, err := engine.Evaluate(context.Background(), p, "hello", nil, 0)
	require.NoError(t, err)
	assert.Equal(t, "AB", text)

	require.Len(t, record.Workers, 2)
	assert.Equal(t, "a", record.Workers[0].Name)
	assert.True(t, record.Workers[0].Success)
	assert.Equal(t, "A", record.Workers[0].Response)
	assert.Equal(t, "b", record.Workers[1].Name)
	assert.True(t, record.Workers[1].Success)
	assert.Equal(t, "B", record.Workers[1].Response)
	assert.Nil(t, record.Selector)
	require.NotNil(t, record.Synthesizer)
}

// Selector-only plan, no synthesizer.
func TestEvaluateSelectorOnlyNoSynthesizer(t *testing.T) {
	t.Parallel()

	_, analyzer := fakeModel(t, "m", "ignored")
	_, worker := fakeModel(t, "x", "X")
	selector := fakeModelFunc(t, "sel", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		body, _ := json.Marshal(map[string]interface{}{
			"choices": []map[string]interface{}{{"message": map[string]interface{}{
				"content": `{"selected_index":1,"reasoning":"ok"}`,
			}}},
		})
		_, _ = w.Write(body)
	})

	cfg := testConfig(analyzer, worker, selector)
	engine := New(model.NewMap(cfg.Models), cfg)

	p, err := plan.Parse([]byte(`{
		"analyzer": {"ref": "m"},
		"workers": [{"name": "x"}],
		"selector": {"ref": "sel"}
	}`))
	require.NoError(t, err)

	text, record, err := engine.Evaluate(context.Background(), p, "q", nil, 0)
	require.NoError(t, err)
	assert.Equal(t, "X", text)
	assert.Nil(t, record.Synthesizer)
	require.NotNil(t, record.Selector)
	assert.Equal(t, 1, record.Selector.ChosenIndex)
	assert.True(t, record.Selector.Success)
}

// Partial worker failure still produces a final response, and
// the execution record preserves declaration order with the failed
// worker's error text recorded.
func TestEvaluatePartialWorkerFailure(t *testing.T) {
	t.Parallel()

	_, analyzer := fakeModel(t, "m", "ignored")
	_, workerA := fakeModel(t, "a", "A")
	workerB := fakeFailingModel(t, "b", "provider exploded")
	_, workerC := fakeModel(t, "c", "C")
	_, selector := fakeModel(t, "sel", `{"selected_index":1,"reasoning":"first"}`)

	cfg := testConfig(analyzer, workerA, workerB, workerC, selector)
	engine := New(model.NewMap(cfg.Models), cfg)

	p, err := plan.Parse([]byte(`{
		"analyzer": {"ref": "m"},
		"workers": [{"name": "a"}, {"name": "b"}, {"name": "c"}],
		"selector": {"ref": "sel"}
	}`))
	require.NoError(t, err)

	text, record, err := engine.Evaluate(context.Background(), p, "q", nil, 0)
	require.NoError(t, err)
	assert.Equal(t, "A", text)

	require.Len(t, record.Workers, 3)
	assert.Equal(t, "a", record.Workers[0].Name)
	assert.True(t, record.Workers[0].Success)
	assert.Equal(t, "b", record.Workers[1].Name)
	assert.False(t, record.Workers[1].Success)
	assert.Contains(t, record.Workers[1].Error, "provider exploded")
	assert.Equal(t, "c", record.Workers[2].Name)
	assert.True(t, record.Workers[2].Success)
}

// Every worker fails; the evaluator fails naming every
// worker's error.
func TestEvaluateAllWorkersFail(t *testing.T) {
	t.Parallel()

	_, analyzer := fakeModel(t, "m", "ignored")
	workerA := fakeFailingModel(t, "a", "boom-a")
	workerB := fakeFailingModel(t, "b", "boom-b")

	cfg := testConfig(analyzer, workerA, workerB)
	engine := New(model.NewMap(cfg.Models), cfg)

	p, err := plan.Parse([]byte(`{
		"analyzer": {"ref": "m"},
		"workers": [{"name": "a"}, {"name": "b"}],
		"synthesizer": {"ref": "m"}
	}`))
	require.NoError(t, err)

	_, record, err := engine.Evaluate(context.Background(), p, "q", nil, 0)
	require.Error(t, err)
	assert.Equal(t, apperr.WorkersAllFailed, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "a:")
	assert.Contains(t, err.Error(), "b:")
	require.Len(t, record.Workers, 2)
	assert.False(t, record.Workers[0].Success)
	assert.False(t, record.Workers[1].Success)
}

// An auto-temperature analyzer propagates to workers that
// requested auto mode, while the synthesizer still defaults to 1.4.
func TestEvaluateAutoTemperaturePropagation(t *testing.T) {
	t.Parallel()

	var capturedWorkerTemp, capturedSynthTemp float64
	analyzer := fakeModelFunc(t, "m", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		body, _ := json.Marshal(map[string]interface{}{
			"choices": []map[string]interface{}{{"message": map[string]interface{}{"content": `{"temperature":"0.65"}`}}},
		})
		_, _ = w.Write(body)
	})
	worker := fakeModelFunc(t, "w", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&req)
		capturedWorkerTemp = req["temperature"].(float64)
		w.Header().Set("Content-Type", "application/json")
		body, _ := json.Marshal(map[string]interface{}{
			"choices": []map[string]interface{}{{"message": map[string]interface{}{"content": "W"}}},
		})
		_, _ = w.Write(body)
	})
	synth := fakeModelFunc(t, "s", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&req)
		capturedSynthTemp = req["temperature"].(float64)
		w.Header().Set("Content-Type", "application/json")
		body, _ := json.Marshal(map[string]interface{}{
			"choices": []map[string]interface{}{{"message": map[string]interface{}{"content": "final"}}},
		})
		_, _ = w.Write(body)
	})

	cfg := testConfig(analyzer, worker, synth)
	engine := New(model.NewMap(cfg.Models), cfg)

	autoTrue := true
	p := &plan.Plan{
		Analyzer:    plan.Ref{Name: "m", AutoTemperature: &autoTrue},
		Workers:     []plan.Worker{plan.ModelWorker{Name: "w", AutoTemperature: &autoTrue}},
		Synthesizer: &plan.Ref{Name: "s"},
	}

	text, record, err := engine.Evaluate(context.Background(), p, "q", nil, 0)
	require.NoError(t, err)
	assert.Equal(t, "final", text)
	assert.True(t, record.Analyzer.AutoTemperatureUsed)
	assert.InDelta(t, 0.65, record.Analyzer.EffectiveTemperature, 0.0001)
	assert.InDelta(t, 0.65, capturedWorkerTemp, 0.0001)
	assert.InDelta(t, 1.4, capturedSynthTemp, 0.0001)
}

// Timeout never panics; it produces a recorded stage failure naming the
// node and role.
func TestEvaluateWorkerTimeoutRecordsFailureNotPanic(t *testing.T) {
	t.Parallel()

	_, analyzer := fakeModel(t, "m", "ignored")
	slow := fakeModelFunc(t, "slow", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		body, _ := json.Marshal(map[string]interface{}{
			"choices": []map[string]interface{}{{"message": map[string]interface{}{"content": "late"}}},
		})
		_, _ = w.Write(body)
	})

	cfg := testConfig(analyzer, slow)
	zero := int64(0)
	cfg.Workflow.Domains[hostOf(slow.APIBase)] = config.DomainOverride{WorkerTimeoutSecs: &zero}

	engine := New(model.NewMap(cfg.Models), cfg)
	p, err := plan.Parse([]byte(`{"analyzer":{"ref":"m"},"workers":[{"name":"slow"}],"synthesizer":{"ref":"m"}}`))
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		_, record, evalErr := engine.Evaluate(context.Background(), p, "q", nil, 0)
		require.Error(t, evalErr)
		require.Len(t, record.Workers, 1)
		assert.False(t, record.Workers[0].Success)
		assert.Equal(t, apperr.WorkersAllFailed, apperr.KindOf(evalErr))
		assert.Contains(t, record.Workers[0].Error, "worker")
		assert.Contains(t, record.Workers[0].Error, "slow")
	})
}

// In a selector-only plan whose only worker fails, the worker stage fails
// before the selector stage or the final-response fallback is reached, so
// the evaluator reports WorkersAllFailed.
func TestEvaluateSelectorOnlyAllWorkersFailReportsWorkersAllFailed(t *testing.T) {
	t.Parallel()

	_, analyzer := fakeModel(t, "m", "ignored")
	worker := fakeFailingModel(t, "w", "down")
	_, selector := fakeModel(t, "sel", "unused")

	cfg := testConfig(analyzer, worker, selector)
	engine := New(model.NewMap(cfg.Models), cfg)

	p, err := plan.Parse([]byte(`{
		"analyzer": {"ref": "m"},
		"workers": [{"name": "w"}],
		"selector": {"ref": "sel"}
	}`))
	require.NoError(t, err)

	_, _, err = engine.Evaluate(context.Background(), p, "q", nil, 0)
	require.Error(t, err)
	assert.Equal(t, apperr.WorkersAllFailed, apperr.KindOf(err))
}

// With a synthesizer present, only the synthesizer's text reaches the
// delta sink: concatenating every streamed fragment equals the final
// response, and worker output stays out of the client-facing sequence.
func TestEvaluateAsyncStreamsOnlySynthesizerText(t *testing.T) {
	t.Parallel()

	_, analyzer := fakeModel(t, "m", "ignored")
	_, worker := fakeModel(t, "w", "worker text")
	_, synth := fakeModel(t, "s", "final answer")

	cfg := testConfig(analyzer, worker, synth)
	engine := New(model.NewMap(cfg.Models), cfg)

	p, err := plan.Parse([]byte(`{
		"analyzer": {"ref": "m"},
		"workers": [{"name": "w"}],
		"synthesizer": {"ref": "s"}
	}`))
	require.NoError(t, err)

	deltas, done := engine.EvaluateAsync(context.Background(), p, "q")

	var streamed strings.Builder
	for fragment := range deltas {
		streamed.WriteString(fragment)
	}
	result := <-done

	require.NoError(t, result.Err)
	assert.Equal(t, "final answer", result.Text)
	assert.Equal(t, result.Text, streamed.String())
}

// Without a synthesizer, the workers stream directly; a selector-only
// level's deltas are the worker text itself.
func TestEvaluateAsyncSelectorOnlyStreamsWorkerText(t *testing.T) {
	t.Parallel()

	_, analyzer := fakeModel(t, "m", "ignored")
	_, worker := fakeModel(t, "x", "X")
	selector := fakeModelFunc(t, "sel", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		body, _ := json.Marshal(map[string]interface{}{
			"choices": []map[string]interface{}{{"message": map[string]interface{}{
				"content": `{"selected_index":1,"reasoning":"ok"}`,
			}}},
		})
		_, _ = w.Write(body)
	})

	cfg := testConfig(analyzer, worker, selector)
	engine := New(model.NewMap(cfg.Models), cfg)

	p, err := plan.Parse([]byte(`{
		"analyzer": {"ref": "m"},
		"workers": [{"name": "x"}],
		"selector": {"ref": "sel"}
	}`))
	require.NoError(t, err)

	deltas, done := engine.EvaluateAsync(context.Background(), p, "q")

	var streamed strings.Builder
	for fragment := range deltas {
		streamed.WriteString(fragment)
	}
	result := <-done

	require.NoError(t, result.Err)
	assert.Equal(t, "X", result.Text)
	assert.Equal(t, "X", streamed.String())
}
