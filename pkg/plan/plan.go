// Package plan implements the recursive workflow tree: an analyzer
// reference, an ordered list of workers (each a model reference or a
// nested sub-plan), and optional selector/synthesizer references, with
// the post-deserialization synthesizer-inheritance pass and structural
// validation described for the workflow engine.
package plan

import (
	"encoding/json"
	"fmt"

	"github.com/chorusdev/chorus/pkg/apperr"
)

// Ref is a reference to a configured model from the analyzer, selector, or
// synthesizer position, with an optional per-node temperature hint.
type Ref struct {
	Name            string
	Temperature     *float64
	AutoTemperature *bool
}

type refJSON struct {
	Ref             string   `json:"ref,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	AutoTemperature *bool    `json:"auto_temperature,omitempty"`
}

// MarshalJSON renders a Ref as {"ref": name, ...}.
func (r Ref) MarshalJSON() ([]byte, error) {
	return json.Marshal(refJSON{Ref: r.Name, Temperature: r.Temperature, AutoTemperature: r.AutoTemperature})
}

// UnmarshalJSON parses a Ref, accepting "ref" as the model-name key.
func (r *Ref) UnmarshalJSON(data []byte) error {
	var aux refJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.Name = aux.Ref
	r.Temperature = aux.Temperature
	r.AutoTemperature = aux.AutoTemperature
	return nil
}

// Worker is either a ModelWorker (a model leaf) or a *Plan (a nested
// sub-plan). It is a closed sum type: no other implementation is valid.
type Worker interface {
	isWorker()
}

// ModelWorker is a model-leaf worker: a named model, with an optional
// per-node temperature hint.
type ModelWorker struct {
	Name            string
	Temperature     *float64
	AutoTemperature *bool
}

func (ModelWorker) isWorker() {}

type modelWorkerJSON struct {
	Name            string   `json:"name,omitempty"`
	Ref             string   `json:"ref,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	AutoTemperature *bool    `json:"auto_temperature,omitempty"`
}

// MarshalJSON renders a ModelWorker as {"name": ..., ...}.
func (m ModelWorker) MarshalJSON() ([]byte, error) {
	return json.Marshal(modelWorkerJSON{Name: m.Name, Temperature: m.Temperature, AutoTemperature: m.AutoTemperature})
}

// UnmarshalJSON parses a ModelWorker, accepting either "name" or "ref" as
// the model-name key ("name" wins if both are present).
func (m *ModelWorker) UnmarshalJSON(data []byte) error {
	var aux modelWorkerJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	m.Name = aux.Name
	if m.Name == "" {
		m.Name = aux.Ref
	}
	m.Temperature = aux.Temperature
	m.AutoTemperature = aux.AutoTemperature
	return nil
}

// Plan is one level of the recursive workflow tree. DisplayLabel is the
// optional explicit label from the JSON form; callers read a plan's label
// through the Label method, which falls back to one derived from the
// analyzer when DisplayLabel is empty.
type Plan struct {
	DisplayLabel string `json:"label,omitempty"`
	Analyzer     Ref    `json:"analyzer"`
	Workers      []Worker
	Selector     *Ref `json:"selector,omitempty"`
	Synthesizer  *Ref `json:"synthesizer,omitempty"`
}

func (*Plan) isWorker() {}

// planJSON mirrors Plan but with Workers left as raw messages, so we can
// disambiguate each worker's concrete type before fully decoding it. It is
// used for decoding only; MarshalJSON encodes []Worker directly, since
// every concrete worker type carries its own MarshalJSON.
type planJSON struct {
	Label       string            `json:"label,omitempty"`
	Analyzer    Ref               `json:"analyzer"`
	Workers     []json.RawMessage `json:"workers"`
	Selector    *Ref              `json:"selector,omitempty"`
	Synthesizer *Ref              `json:"synthesizer,omitempty"`
}

// MarshalJSON renders the plan, including its workers in declaration order.
func (p *Plan) MarshalJSON() ([]byte, error) {
	aux := struct {
		Label       string   `json:"label,omitempty"`
		Analyzer    Ref      `json:"analyzer"`
		Workers     []Worker `json:"workers"`
		Selector    *Ref     `json:"selector,omitempty"`
		Synthesizer *Ref     `json:"synthesizer,omitempty"`
	}{p.DisplayLabel, p.Analyzer, p.Workers, p.Selector, p.Synthesizer}
	return json.Marshal(aux)
}

// UnmarshalJSON parses a plan, disambiguating each worker entry as a
// sub-plan (presence of both "analyzer" and "workers") or a model leaf
// (otherwise).
func (p *Plan) UnmarshalJSON(data []byte) error {
	var raw planJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.DisplayLabel = raw.Label
	p.Analyzer = raw.Analyzer
	p.Selector = raw.Selector
	p.Synthesizer = raw.Synthesizer

	p.Workers = make([]Worker, 0, len(raw.Workers))
	for i, rm := range raw.Workers {
		w, err := decodeWorker(rm)
		if err != nil {
			return fmt.Errorf("worker[%d]: %w", i, err)
		}
		p.Workers = append(p.Workers, w)
	}
	return nil
}

func decodeWorker(data []byte) (Worker, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}

	_, hasAnalyzer := probe["analyzer"]
	_, hasWorkers := probe["workers"]
	if hasAnalyzer && hasWorkers {
		sub := &Plan{}
		if err := json.Unmarshal(data, sub); err != nil {
			return nil, err
		}
		return sub, nil
	}

	var mw ModelWorker
	if err := json.Unmarshal(data, &mw); err != nil {
		return nil, err
	}
	return mw, nil
}

// Label returns the plan's display label, falling back to a value derived
// from its analyzer reference when none was set explicitly.
func (p *Plan) Label() string {
	return p.label()
}

func (p *Plan) label() string {
	if p.DisplayLabel != "" {
		return p.DisplayLabel
	}
	if p.Analyzer.Name != "" {
		return fmt.Sprintf("plan(analyzer=%s)", p.Analyzer.Name)
	}
	return "plan"
}

// Parse decodes a plan from its JSON tree form, runs the synthesizer
// inheritance pass, and validates the resulting tree.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, apperr.Wrap(apperr.ConfigInvalid, "invalid plan JSON", err)
	}
	p.applyInheritance(nil)
	if err := p.validate(0); err != nil {
		return nil, err
	}
	return &p, nil
}

// applyInheritance walks the tree with the nearest enclosing synthesizer
// ref threaded through as a parameter. A node that declares its own synthesizer
// becomes the new nearest enclosing ref for its descendants. A node that
// declares a selector but no synthesizer does not inherit one itself, but
// still passes the unchanged enclosing ref down to its own children.
func (p *Plan) applyInheritance(enclosing *Ref) {
	childEnclosing := enclosing
	if p.Synthesizer != nil {
		childEnclosing = p.Synthesizer
	} else if p.Selector == nil {
		p.Synthesizer = enclosing
	}

	for _, w := range p.Workers {
		if sub, ok := w.(*Plan); ok {
			sub.applyInheritance(childEnclosing)
		}
	}
}

// validate checks structural invariants at every level: a non-empty
// worker list, and at least one of selector/synthesizer present after
// inheritance.
func (p *Plan) validate(depth int) error {
	if len(p.Workers) == 0 {
		return apperr.Newf(apperr.ConfigInvalid, "plan %q at depth %d has no workers", p.label(), depth)
	}
	if p.Selector == nil && p.Synthesizer == nil {
		return apperr.Newf(apperr.ConfigInvalid,
			"plan %q at depth %d has neither a selector nor an inherited synthesizer", p.label(), depth)
	}
	for _, w := range p.Workers {
		if sub, ok := w.(*Plan); ok {
			if err := sub.validate(depth + 1); err != nil {
				return err
			}
		}
	}
	return nil
}

// ModelRefs returns every model name referenced anywhere in the tree:
// every analyzer, every model-leaf worker, every selector, every
// synthesizer, at every depth. Names may repeat.
func (p *Plan) ModelRefs() []string {
	var refs []string
	var walk func(*Plan)
	walk = func(pl *Plan) {
		if pl.Analyzer.Name != "" {
			refs = append(refs, pl.Analyzer.Name)
		}
		if pl.Selector != nil && pl.Selector.Name != "" {
			refs = append(refs, pl.Selector.Name)
		}
		if pl.Synthesizer != nil && pl.Synthesizer.Name != "" {
			refs = append(refs, pl.Synthesizer.Name)
		}
		for _, w := range pl.Workers {
			switch v := w.(type) {
			case ModelWorker:
				if v.Name != "" {
					refs = append(refs, v.Name)
				}
			case *Plan:
				walk(v)
			}
		}
	}
	walk(p)
	return refs
}
