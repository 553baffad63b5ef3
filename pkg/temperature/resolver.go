// Package temperature implements the pure temperature-resolution rules
// each plan node role follows: explicit node/model values win, auto
// modes consult the analyzer (workers only), and everything else
// defaults to 1.4.
package temperature

// Default is used whenever no explicit or auto-resolved temperature
// applies.
const Default = 1.4

// Min and Max bound every resolved temperature.
const (
	Min = 0.0
	Max = 2.0
)

// Source records how a temperature was derived. It is reported on
// Resolved only; the execution record and the workflow's spans do not
// carry it.
type Source string

const (
	SourceExplicit Source = "explicit"
	SourceAuto     Source = "auto"
	SourceDefault  Source = "default"
)

// Resolved is the outcome of resolving one node's temperature.
type Resolved struct {
	Value  float64
	Source Source
}

// NodeHint is the optional per-node temperature override carried on a
// plan.Ref or plan.ModelWorker.
type NodeHint struct {
	Temperature     *float64
	AutoTemperature *bool
}

// ModelDefault is the model-level fallback. AutoTemperature is a pointer
// because the auto-decision chain must be able to fall through it: a
// model config that leaves auto_temperature at its TOML zero value is
// treated as "unset" rather than as an explicit false, so the chain can
// still reach the analyzer-auto flag for workers. See DESIGN.md.
type ModelDefault struct {
	Temperature     *float64
	AutoTemperature *bool
}

// AnalyzerContext carries the analyzer's resolved temperature and
// whether it was obtained via the auto path, for workers that fall
// through to it.
type AnalyzerContext struct {
	Resolved float64
	UsedAuto bool
}

// Clamp bounds v to [Min, Max].
func Clamp(v float64) float64 {
	switch {
	case v < Min:
		return Min
	case v > Max:
		return Max
	default:
		return v
	}
}

// ResolveAnalyzer resolves the analyzer's temperature from explicit
// values alone. If it returns needsAutoCall=true, neither the node nor
// the model set one but auto mode was requested: the caller must invoke
// the analyzer model with the auto-temperature prompt, parse the numeric
// result (see pkg/upstream), and finish with FinalizeAnalyzerAuto.
func ResolveAnalyzer(node NodeHint, model ModelDefault) (resolved Resolved, needsAutoCall bool) {
	if node.Temperature != nil {
		return Resolved{Clamp(*node.Temperature), SourceExplicit}, false
	}
	if model.Temperature != nil {
		return Resolved{Clamp(*model.Temperature), SourceExplicit}, false
	}

	nodeAuto := node.AutoTemperature != nil && *node.AutoTemperature
	modelAuto := model.AutoTemperature != nil && *model.AutoTemperature
	if nodeAuto || modelAuto {
		return Resolved{}, true
	}
	return Resolved{Default, SourceDefault}, false
}

// FinalizeAnalyzerAuto completes analyzer resolution after the auto call.
func FinalizeAnalyzerAuto(value float64) Resolved {
	return Resolved{Clamp(value), SourceAuto}
}

// autoDecision implements the worker auto-flag fallthrough chain: node,
// then model, then "undecided" (the caller falls through further).
func autoDecision(nodeAuto, modelAuto *bool) (value, decided bool) {
	if nodeAuto != nil {
		return *nodeAuto, true
	}
	if modelAuto != nil {
		return *modelAuto, true
	}
	return false, false
}

// ResolveWorker resolves a worker's temperature: an explicit node or
// model temperature wins; otherwise an auto decision falls through node,
// then model, then the analyzer's own auto flag; a true auto decision
// adopts the analyzer's resolved temperature, a false one defaults to 1.4.
func ResolveWorker(node NodeHint, model ModelDefault, analyzer AnalyzerContext) Resolved {
	if node.Temperature != nil {
		return Resolved{Clamp(*node.Temperature), SourceExplicit}
	}
	if model.Temperature != nil {
		return Resolved{Clamp(*model.Temperature), SourceExplicit}
	}

	auto, decided := autoDecision(node.AutoTemperature, model.AutoTemperature)
	if !decided {
		auto = analyzer.UsedAuto
	}
	if auto {
		return Resolved{Clamp(analyzer.Resolved), SourceAuto}
	}
	return Resolved{Default, SourceDefault}
}

// ResolveSelectorOrSynthesizer resolves a selector's or synthesizer's
// temperature: same explicit precedence as workers, but these roles
// never consult the analyzer's auto flag; absent an explicit value they
// always default to 1.4. AutoRequested reports whether an auto flag was
// set on the node or model, purely for diagnostic logging; it has no
// effect on the resolved value.
func ResolveSelectorOrSynthesizer(node NodeHint, model ModelDefault) (resolved Resolved, autoRequested bool) {
	if node.Temperature != nil {
		return Resolved{Clamp(*node.Temperature), SourceExplicit}, false
	}
	if model.Temperature != nil {
		return Resolved{Clamp(*model.Temperature), SourceExplicit}, false
	}

	auto, _ := autoDecision(node.AutoTemperature, model.AutoTemperature)
	return Resolved{Default, SourceDefault}, auto
}
