// Package execrecord defines the execution record assembled bottom-up
// as a request's plan tree is evaluated: a serializable trace of the
// analyzer, worker, selector, and synthesizer stages that ran, suitable
// for returning to a client that asked for workflow details.
package execrecord

import "github.com/google/uuid"

// NewNodeID returns a fresh identifier for one analyzer/worker/selector/
// synthesizer entry in a record, so a client rendering workflow details
// can key UI elements across a nested tree.
func NewNodeID() string {
	return uuid.New().String()
}

// Analyzer is the analyzer stage's trace: which model ran, at what
// temperature, and whether that temperature came from an auto-resolution
// upstream call.
type Analyzer struct {
	NodeID               string  `json:"node_id"`
	Model                string  `json:"model"`
	EffectiveTemperature float64 `json:"effective_temperature"`
	AutoTemperatureUsed  bool    `json:"auto_temperature_used"`
}

// Worker is one entry in the workers array, in declared order. Response
// holds the worker's final text regardless of whether it came from a
// model leaf or a sub-plan; a sub-plan worker additionally carries
// NestedRecord. Response is not set when Success is false; a failed
// sub-plan worker still carries the partial NestedRecord its level built.
type Worker struct {
	NodeID               string   `json:"node_id"`
	Name                 string   `json:"name"`
	EffectiveTemperature *float64 `json:"effective_temperature,omitempty"`
	Response             string   `json:"response,omitempty"`
	Success              bool     `json:"success"`
	Error                string   `json:"error,omitempty"`
	NestedRecord         *Record  `json:"nested_record,omitempty"`
}

// Selector is the selector stage's trace, present only when the plan
// level ran a selector.
type Selector struct {
	NodeID         string  `json:"node_id"`
	Model          string  `json:"model"`
	Temperature    float64 `json:"temperature"`
	ChosenIndex    int     `json:"chosen_index,omitempty"`
	ChosenWorker   string  `json:"chosen_worker,omitempty"`
	ChosenResponse string  `json:"chosen_response,omitempty"`
	Reasoning      string  `json:"reasoning,omitempty"`
	Success        bool    `json:"success"`
	Error          string  `json:"error,omitempty"`
	RawOutput      string  `json:"raw_output,omitempty"`
}

// Synthesizer is the synthesizer stage's trace, present only when the
// plan level ran (or inherited) a synthesizer.
type Synthesizer struct {
	NodeID      string  `json:"node_id"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
}

// Record is one plan level's execution record. A Worker's NestedRecord
// is itself a Record, so the structure mirrors the plan tree's shape.
type Record struct {
	Analyzer    Analyzer     `json:"analyzer"`
	Workers     []Worker     `json:"workers"`
	Selector    *Selector    `json:"selector,omitempty"`
	Synthesizer *Synthesizer `json:"synthesizer,omitempty"`
}
