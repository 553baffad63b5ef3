package execrecord

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNodeIDIsUniqueAndNonEmpty(t *testing.T) {
	t.Parallel()

	a := NewNodeID()
	b := NewNodeID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestRecordRoundTripsThroughNestedWorkers(t *testing.T) {
	t.Parallel()

	temp := 0.8
	record := Record{
		Analyzer: Analyzer{NodeID: NewNodeID(), Model: "gpt-x", EffectiveTemperature: 1.4},
		Workers: []Worker{
			{NodeID: NewNodeID(), Name: "A", Response: "a reply", Success: true, EffectiveTemperature: &temp},
			{
				NodeID:  NewNodeID(),
				Name:    "sub-plan",
				Success: true,
				NestedRecord: &Record{
					Analyzer: Analyzer{NodeID: NewNodeID(), Model: "gpt-y"},
					Workers:  []Worker{{NodeID: NewNodeID(), Name: "B", Response: "b", Success: true}},
					Synthesizer: &Synthesizer{NodeID: NewNodeID(), Model: "gpt-y", Temperature: 1.4},
				},
			},
		},
		Synthesizer: &Synthesizer{NodeID: NewNodeID(), Model: "gpt-x", Temperature: 1.4},
	}

	encoded, err := json.Marshal(record)
	require.NoError(t, err)

	var decoded Record
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, record, decoded)
	require.NotNil(t, decoded.Workers[1].NestedRecord)
	assert.Equal(t, "B", decoded.Workers[1].NestedRecord.Workers[0].Name)
}

func TestWorkerOmitsNestedRecordWhenModelLeaf(t *testing.T) {
	t.Parallel()

	w := Worker{NodeID: "n1", Name: "A", Response: "hi", Success: true}
	encoded, err := json.Marshal(w)
	require.NoError(t, err)
	assert.NotContains(t, string(encoded), "nested_record")
}

func TestSelectorAndSynthesizerOmittedWhenNil(t *testing.T) {
	t.Parallel()

	record := Record{Analyzer: Analyzer{NodeID: "n0", Model: "m"}, Workers: []Worker{{NodeID: "n1", Name: "A", Success: true}}}
	encoded, err := json.Marshal(record)
	require.NoError(t, err)
	assert.NotContains(t, string(encoded), "selector")
	assert.NotContains(t, string(encoded), "synthesizer")
}
