package sse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteDataSingleLine(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	w := NewWriter(&buf)
	require.NoError(t, w.WriteData(`{"delta":"hi"}`))
	assert.Equal(t, "data: {\"delta\":\"hi\"}\n\n", buf.String())
}

func TestWriteDataSplitsEmbeddedNewlines(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	w := NewWriter(&buf)
	require.NoError(t, w.WriteData("line one\nline two"))
	assert.Equal(t, "data: line one\ndata: line two\n\n", buf.String())
}

func TestWriteDone(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	w := NewWriter(&buf)
	require.NoError(t, w.WriteDone())
	assert.Equal(t, "data: [DONE]\n\n", buf.String())
}

func TestWriterEmitsMultipleFramesInSequence(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	w := NewWriter(&buf)
	require.NoError(t, w.WriteData(`{"n":1}`))
	require.NoError(t, w.WriteData(`{"n":2}`))
	require.NoError(t, w.WriteDone())

	assert.Equal(t, "data: {\"n\":1}\n\ndata: {\"n\":2}\n\ndata: [DONE]\n\n", buf.String())
}
