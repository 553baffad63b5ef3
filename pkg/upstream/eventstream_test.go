package upstream

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectFrames(t *testing.T, raw string) []string {
	t.Helper()
	scanner := newEventFrameScanner(strings.NewReader(raw))
	var frames []string
	for {
		frame, err := scanner.next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		frames = append(frames, frame)
	}
	return frames
}

func TestEventFrameScannerJoinsMultipleDataLines(t *testing.T) {
	t.Parallel()
	frames := collectFrames(t, "data: line one\ndata: line two\n\n")
	require.Len(t, frames, 1)
	assert.Equal(t, "line one\nline two", frames[0])
}

func TestEventFrameScannerHandlesCRLFFraming(t *testing.T) {
	t.Parallel()
	frames := collectFrames(t, "data: hello\r\n\r\ndata: world\r\n\r\n")
	require.Len(t, frames, 2)
	assert.Equal(t, "hello", frames[0])
	assert.Equal(t, "world", frames[1])
}

func TestEventFrameScannerSkipsCommentLines(t *testing.T) {
	t.Parallel()
	frames := collectFrames(t, ": keep-alive\ndata: payload\n\n")
	require.Len(t, frames, 1)
	assert.Equal(t, "payload", frames[0])
}

func TestEventFrameScannerTrailingFrameWithoutBlankLine(t *testing.T) {
	t.Parallel()
	frames := collectFrames(t, "data: first\n\ndata: last")
	require.Len(t, frames, 2)
	assert.Equal(t, "first", frames[0])
	assert.Equal(t, "last", frames[1])
}

func TestIsDonePayload(t *testing.T) {
	t.Parallel()
	assert.True(t, isDonePayload("[DONE]"))
	assert.True(t, isDonePayload("  [DONE]  "))
	assert.False(t, isDonePayload("not done"))
}
