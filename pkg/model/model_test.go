package model

import (
	"testing"

	"github.com/chorusdev/chorus/pkg/apperr"
	"github.com/chorusdev/chorus/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapGetKnownAndUnknown(t *testing.T) {
	t.Parallel()

	temp := 0.7
	m := NewMap([]config.ModelConfig{
		{Name: "alpha", APIBase: "https://alpha.example.com/v1", APIKey: "k", Temperature: &temp},
		{Name: "beta", APIBase: "https://beta.example.com/v1", AutoTemperature: true},
	})

	alpha, err := m.Get("alpha")
	require.NoError(t, err)
	assert.Equal(t, "https://alpha.example.com/v1", alpha.BaseURL)
	require.NotNil(t, alpha.Temperature)
	assert.InDelta(t, 0.7, *alpha.Temperature, 1e-9)

	beta, err := m.Get("beta")
	require.NoError(t, err)
	assert.True(t, beta.AutoTemperature)
	assert.Nil(t, beta.Temperature)

	_, err = m.Get("missing")
	require.Error(t, err)
	assert.Equal(t, apperr.ConfigInvalid, apperr.KindOf(err))
}

func TestMapNames(t *testing.T) {
	t.Parallel()

	m := NewMap([]config.ModelConfig{{Name: "alpha"}, {Name: "beta"}})
	assert.ElementsMatch(t, []string{"alpha", "beta"}, m.Names())
}
