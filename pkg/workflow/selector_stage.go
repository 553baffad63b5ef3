package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/chorusdev/chorus/pkg/apperr"
	"github.com/chorusdev/chorus/pkg/execrecord"
	"github.com/chorusdev/chorus/pkg/plan"
	"github.com/chorusdev/chorus/pkg/temperature"
	"github.com/chorusdev/chorus/pkg/upstream"
)

var indexKeyAliases = []string{"selected_index", "index", "choice", "selected", "best_index", "best"}

// runSelectorStage asks the selector model to pick one of the successful
// worker outputs and parses its reply. A reply neither JSON-choice nor
// integer-bearing is a recorded failure, not a hard stop: the caller
// decides how to fall back.
func (e *Engine) runSelectorStage(
	ctx context.Context,
	ref plan.Ref,
	prompt string,
	outcomes []workerOutcome,
	depth int,
) (*execrecord.Selector, error) {
	nodeID := execrecord.NewNodeID()

	if len(outcomes) == 0 {
		return &execrecord.Selector{NodeID: nodeID, Success: false, Error: "no successful workers to select from"},
			apperr.New(apperr.SelectorUnparseable, "selector has no candidates")
	}

	modelCfg, err := e.models.Get(ref.Name)
	if err != nil {
		return &execrecord.Selector{NodeID: nodeID, Model: ref.Name, Success: false, Error: err.Error()}, err
	}

	resolved, _ := temperature.ResolveSelectorOrSynthesizer(
		temperature.NodeHint{Temperature: ref.Temperature, AutoTemperature: ref.AutoTemperature},
		modelDefaultFor(modelCfg),
	)

	timeouts := e.cfg.TimeoutsFor(hostOf(modelCfg.BaseURL))
	callCtx, cancel := context.WithTimeout(ctx, timeouts.Synthesizer)
	defer cancel()

	text, err := upstream.Call(callCtx, upstream.Input{
		BaseURL:     modelCfg.BaseURL,
		APIKey:      modelCfg.APIKey,
		Model:       ref.Name,
		Messages:    buildMessages(selectorPrompt(prompt, outcomes)),
		Temperature: resolved.Value,
	})
	if err != nil {
		err = asTimeoutErr(callCtx, "selector", ref.Name, err)
		return &execrecord.Selector{NodeID: nodeID, Model: ref.Name, Temperature: resolved.Value, Success: false, Error: err.Error()}, err
	}

	choice, ok := parseSelectorChoice(text, len(outcomes))
	if !ok {
		return &execrecord.Selector{NodeID: nodeID, Model: ref.Name, Temperature: resolved.Value, Success: false, RawOutput: text},
			apperr.Newf(apperr.SelectorUnparseable, "selector reply had no JSON choice or integer in [1,%d]", len(outcomes))
	}

	chosen := outcomes[choice.index-1]
	selectedResponse := choice.response
	if selectedResponse == "" {
		selectedResponse = chosen.Response
	}
	selectedWorker := choice.worker
	if selectedWorker == "" {
		selectedWorker = chosen.Name
	}

	return &execrecord.Selector{
		NodeID:         nodeID,
		Model:          ref.Name,
		Temperature:    resolved.Value,
		ChosenIndex:    choice.index,
		ChosenWorker:   selectedWorker,
		ChosenResponse: selectedResponse,
		Reasoning:      choice.reasoning,
		Success:        true,
		RawOutput:      text,
	}, nil
}

func selectorPrompt(original string, outcomes []workerOutcome) string {
	var sb strings.Builder
	sb.WriteString("Original request: ")
	sb.WriteString(original)
	sb.WriteString("\n\nCandidate answers:\n")
	for i, o := range outcomes {
		fmt.Fprintf(&sb, "%d. %s: %s\n", i+1, o.Name, o.Response)
	}
	sb.WriteString("\nRespond with a JSON object: {\"selected_index\": <1-based index>, \"reasoning\": \"...\"}.")
	return sb.String()
}

type selectorChoice struct {
	index     int
	worker    string
	response  string
	reasoning string
}

// parseSelectorChoice locates the first balanced JSON object in reply,
// searches it for any index key alias, and falls back to the first
// standalone integer in [1,max] when no valid JSON choice is found.
func parseSelectorChoice(reply string, max int) (selectorChoice, bool) {
	if obj, ok := firstBalancedJSONObject(reply); ok {
		var doc interface{}
		if err := json.Unmarshal([]byte(obj), &doc); err == nil {
			if idx, ok := findAliasedInt(doc, indexKeyAliases, max); ok {
				choice := selectorChoice{index: idx}
				if v, ok := findAliasedString(doc, []string{"reasoning"}); ok {
					choice.reasoning = v
				}
				if v, ok := findAliasedString(doc, []string{"selected_worker"}); ok {
					choice.worker = v
				}
				if v, ok := findAliasedString(doc, []string{"selected_response"}); ok {
					choice.response = v
				}
				return choice, true
			}
		}
	}

	if idx, ok := firstStandaloneInt(reply, max); ok {
		return selectorChoice{index: idx, reasoning: strings.TrimSpace(reply)}, true
	}

	return selectorChoice{}, false
}

// firstBalancedJSONObject scans s for the first top-level-balanced `{...}`
// substring, honoring string-quoted braces and escaped quotes.
func firstBalancedJSONObject(s string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, r := range s {
		if start == -1 {
			if r == '{' {
				start = i
				depth = 1
			}
			continue
		}

		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}
	return "", false
}

func findAliasedInt(doc interface{}, aliases []string, max int) (int, bool) {
	v, ok := findAliased(doc, aliases)
	if !ok {
		return 0, false
	}
	var n int
	switch val := v.(type) {
	case float64:
		n = int(val)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, false
		}
		n = parsed
	default:
		return 0, false
	}
	if n < 1 || n > max {
		return 0, false
	}
	return n, true
}

func findAliasedString(doc interface{}, aliases []string) (string, bool) {
	v, ok := findAliased(doc, aliases)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// findAliased recursively searches a decoded JSON tree for the first key
// matching any of aliases, depth-first over maps and arrays.
func findAliased(doc interface{}, aliases []string) (interface{}, bool) {
	switch val := doc.(type) {
	case map[string]interface{}:
		for _, alias := range aliases {
			if v, ok := val[alias]; ok {
				return v, true
			}
		}
		for _, v := range val {
			if found, ok := findAliased(v, aliases); ok {
				return found, true
			}
		}
	case []interface{}:
		for _, item := range val {
			if found, ok := findAliased(item, aliases); ok {
				return found, true
			}
		}
	}
	return nil, false
}

var standaloneIntPattern = regexp.MustCompile(`\b\d+\b`)

func firstStandaloneInt(s string, max int) (int, bool) {
	for _, match := range standaloneIntPattern.FindAllString(s, -1) {
		n, err := strconv.Atoi(match)
		if err != nil {
			continue
		}
		if n >= 1 && n <= max {
			return n, true
		}
	}
	return 0, false
}
