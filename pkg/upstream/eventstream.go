package upstream

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

// eventFrameScanner reads a provider's event-stream body by accumulating
// bytes into a buffer and scanning the buffer for the blank-line boundary
// that terminates one frame, rather than splitting the body line-by-line
// with bufio.Scanner. Providers occasionally flush a delta mid-line across
// two reads; accumulate-then-scan tolerates that without needing to track
// partial-line state across Read calls the way a line scanner would.
type eventFrameScanner struct {
	r   *bufio.Reader
	buf []byte
	eof bool
}

func newEventFrameScanner(r io.Reader) *eventFrameScanner {
	return &eventFrameScanner{r: bufio.NewReaderSize(r, 64*1024)}
}

// next returns the next frame's joined "data:" payload. It returns io.EOF
// once the stream is exhausted and no further frame is pending.
func (s *eventFrameScanner) next() (string, error) {
	for {
		if idx, sepLen := findFrameBoundary(s.buf); idx >= 0 {
			frame := s.buf[:idx]
			s.buf = s.buf[idx+sepLen:]
			return joinDataLines(frame), nil
		}
		if s.eof {
			if len(s.buf) == 0 {
				return "", io.EOF
			}
			frame := s.buf
			s.buf = nil
			return joinDataLines(frame), nil
		}

		chunk := make([]byte, 32*1024)
		n, err := s.r.Read(chunk)
		if n > 0 {
			s.buf = append(s.buf, chunk[:n]...)
		}
		if err != nil {
			if err != io.EOF {
				return "", err
			}
			s.eof = true
		}
	}
}

// findFrameBoundary locates the earliest blank-line separator in buf,
// accepting both "\n\n" and "\r\n\r\n" framing, and returns its start
// index and byte length, or -1 if no boundary has arrived yet.
func findFrameBoundary(buf []byte) (idx, sepLen int) {
	lf := bytes.Index(buf, []byte("\n\n"))
	crlf := bytes.Index(buf, []byte("\r\n\r\n"))
	switch {
	case lf == -1 && crlf == -1:
		return -1, 0
	case lf == -1:
		return crlf, 4
	case crlf == -1:
		return lf, 2
	case crlf <= lf:
		return crlf, 4
	default:
		return lf, 2
	}
}

// joinDataLines extracts every "data:" line from one frame, trims a
// trailing "\r" left over from CRLF framing, skips comment lines (those
// starting with ":"), and joins the remaining payloads with "\n" per the
// SSE multi-line data convention.
func joinDataLines(frame []byte) string {
	var dataLines []string
	for _, raw := range bytes.Split(frame, []byte("\n")) {
		line := strings.TrimSuffix(string(raw), "\r")
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		rest, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		dataLines = append(dataLines, strings.TrimPrefix(rest, " "))
	}
	return strings.Join(dataLines, "\n")
}

// isDonePayload reports whether a frame's joined data payload is the
// literal "[DONE]" sentinel that ends an OpenAI-compatible stream.
func isDonePayload(payload string) bool {
	return strings.TrimSpace(payload) == "[DONE]"
}
