package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/chorusdev/chorus/pkg/execrecord"
	"github.com/chorusdev/chorus/pkg/plan"
	"github.com/chorusdev/chorus/pkg/temperature"
	"github.com/chorusdev/chorus/pkg/upstream"
)

// runSynthesizerStage merges every successful worker output (optionally
// biased toward the selector's pick) into one consolidated answer.
func (e *Engine) runSynthesizerStage(
	ctx context.Context,
	ref plan.Ref,
	prompt string,
	outcomes []workerOutcome,
	selector *execrecord.Selector,
	sink chan<- string,
) (string, *execrecord.Synthesizer, error) {
	nodeID := execrecord.NewNodeID()

	modelCfg, err := e.models.Get(ref.Name)
	if err != nil {
		return "", &execrecord.Synthesizer{NodeID: nodeID, Model: ref.Name}, err
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
		Messages:    buildMessages(synthesizerPrompt(prompt, outcomes, selector)),
		Temperature: resolved.Value,
		Sink:        sink,
	})
	entry := &execrecord.Synthesizer{NodeID: nodeID, Model: ref.Name, Temperature: resolved.Value}
	if err != nil {
		return "", entry, asTimeoutErr(callCtx, "synthesizer", ref.Name, err)
	}
	return text, entry, nil
}

func synthesizerPrompt(original string, outcomes []workerOutcome, selector *execrecord.Selector) string {
	var sb strings.Builder
	sb.WriteString("Original question: ")
	sb.WriteString(original)
	sb.WriteString("\n\nCandidate answers:\n")
	for _, o := range outcomes {
		fmt.Fprintf(&sb, "- %s: %s\n", o.Name, o.Response)
	}
	if selector != nil && selector.Success {
		fmt.Fprintf(&sb, "\nThe recommended answer is from %q", selector.ChosenWorker)
		if selector.Reasoning != "" {
			fmt.Fprintf(&sb, " (reasoning: %s)", selector.Reasoning)
		}
		sb.WriteString(".\n")
	}
	sb.WriteString("\nProduce a single consolidated answer. Do not mention the candidates, the selection process, or add meta-commentary.")
	return sb.String()
}
