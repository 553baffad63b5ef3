package plan

import (
	"encoding/json"
	"testing"

	"github.com/chorusdev/chorus/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlatPlanWithSynthesizer(t *testing.T) {
	t.Parallel()

	src := `{
		"analyzer": {"ref": "m"},
		"workers": [{"name": "a"}, {"name": "b"}],
		"synthesizer": {"ref": "m"}
	}`

	p, err := Parse([]byte(src))
	require.NoError(t, err)

	assert.Equal(t, "m", p.Analyzer.Name)
	require.Len(t, p.Workers, 2)
	assert.Equal(t, ModelWorker{Name: "a"}, p.Workers[0])
	assert.Equal(t, ModelWorker{Name: "b"}, p.Workers[1])
	require.NotNil(t, p.Synthesizer)
	assert.Equal(t, "m", p.Synthesizer.Name)
	assert.Nil(t, p.Selector)
}

func TestParseSelectorOnlyDoesNotInheritSynthesizer(t *testing.T) {
	t.Parallel()

	src := `{
		"analyzer": {"ref": "m"},
		"workers": [{"name": "x"}],
		"selector": {"ref": "m"}
	}`

	p, err := Parse([]byte(src))
	require.NoError(t, err)
	assert.Nil(t, p.Synthesizer)
	require.NotNil(t, p.Selector)
}

func TestNestedSubPlanInheritsEnclosingSynthesizer(t *testing.T) {
	t.Parallel()

	src := `{
		"analyzer": {"ref": "m"},
		"synthesizer": {"ref": "m"},
		"workers": [
			{"name": "a"},
			{
				"analyzer": {"ref": "m"},
				"workers": [{"name": "b"}, {"name": "c"}]
			}
		]
	}`

	p, err := Parse([]byte(src))
	require.NoError(t, err)

	sub, ok := p.Workers[1].(*Plan)
	require.True(t, ok)
	require.NotNil(t, sub.Synthesizer)
	assert.Equal(t, "m", sub.Synthesizer.Name)
}

func TestNestedSubPlanWithSelectorDoesNotInheritSynthesizer(t *testing.T) {
	t.Parallel()

	src := `{
		"analyzer": {"ref": "m"},
		"synthesizer": {"ref": "m"},
		"workers": [
			{
				"analyzer": {"ref": "m"},
				"workers": [{"name": "b"}],
				"selector": {"ref": "m"}
			}
		]
	}`

	p, err := Parse([]byte(src))
	require.NoError(t, err)

	sub, ok := p.Workers[0].(*Plan)
	require.True(t, ok)
	assert.Nil(t, sub.Synthesizer)
	require.NotNil(t, sub.Selector)
}

func TestParseRejectsEmptyWorkers(t *testing.T) {
	t.Parallel()

	src := `{"analyzer": {"ref": "m"}, "workers": [], "synthesizer": {"ref": "m"}}`
	_, err := Parse([]byte(src))
	require.Error(t, err)
	assert.Equal(t, apperr.ConfigInvalid, apperr.KindOf(err))
}

func TestParseRejectsLevelWithNeitherSelectorNorSynthesizer(t *testing.T) {
	t.Parallel()

	src := `{"analyzer": {"ref": "m"}, "workers": [{"name": "a"}]}`
	_, err := Parse([]byte(src))
	require.Error(t, err)
	assert.Equal(t, apperr.ConfigInvalid, apperr.KindOf(err))
}

func TestPlanRoundTrip(t *testing.T) {
	t.Parallel()

	src := `{
		"label": "root",
		"analyzer": {"ref": "m", "temperature": 0.5},
		"synthesizer": {"ref": "m"},
		"workers": [
			{"name": "a", "temperature": 0.9},
			{
				"label": "nested",
				"analyzer": {"ref": "m"},
				"workers": [{"name": "b"}]
			}
		]
	}`

	p, err := Parse([]byte(src))
	require.NoError(t, err)

	encoded, err := json.Marshal(p)
	require.NoError(t, err)

	reparsed, err := Parse(encoded)
	require.NoError(t, err)

	assert.Equal(t, p, reparsed)
}

func TestModelRefsCollectsEveryDepth(t *testing.T) {
	t.Parallel()

	src := `{
		"analyzer": {"ref": "analyzer-model"},
		"synthesizer": {"ref": "synth-model"},
		"workers": [
			{"name": "worker-a"},
			{
				"analyzer": {"ref": "nested-analyzer"},
				"workers": [{"name": "nested-worker"}],
				"selector": {"ref": "nested-selector"}
			}
		]
	}`

	p, err := Parse([]byte(src))
	require.NoError(t, err)

	refs := p.ModelRefs()
	assert.ElementsMatch(t, []string{
		"analyzer-model", "synth-model", "worker-a",
		"nested-analyzer", "nested-worker", "nested-selector",
	}, refs)
}
