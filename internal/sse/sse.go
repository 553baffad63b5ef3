// Package sse writes the Server-Sent Event frames the HTTP adapter's
// streaming endpoints emit. Every frame chorus writes is either a single
// JSON data payload or the literal OpenAI-compatible "[DONE]" terminator,
// so this carries none of a general-purpose SSE writer's event-type/id/
// retry fields.
package sse

import (
	"io"
	"strings"
)

// Writer writes data frames to an http.ResponseWriter (or any io.Writer).
type Writer struct {
	w io.Writer
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteData writes one data frame. A payload spanning multiple lines is
// split into consecutive "data:" lines, per the SSE wire format, before
// the blank line that closes the frame.
func (w *Writer) WriteData(data string) error {
	var b strings.Builder
	for _, line := range strings.Split(data, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	_, err := io.WriteString(w.w, b.String())
	return err
}

// WriteDone writes the literal "data: [DONE]" terminator line the
// OpenAI-compatible endpoints close a stream with.
func (w *Writer) WriteDone() error {
	_, err := io.WriteString(w.w, "data: [DONE]\n\n")
	return err
}
