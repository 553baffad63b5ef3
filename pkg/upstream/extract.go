package upstream

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chorusdev/chorus/pkg/apperr"
)

// ExtractText parses a non-streaming upstream response body and extracts
// the assistant's text, tolerating the documented shape variations. If no
// text is found, it scans the payload for a provider error payload and
// fails with UpstreamProvider; otherwise it fails with UpstreamMalformed.
func ExtractText(raw []byte) (string, error) {
	doc, err := parseJSONDoc(string(raw))
	if err != nil {
		return "", apperr.Wrap(apperr.UpstreamMalformed, "response is not valid JSON", err)
	}

	if text, ok := tryExtractText(doc); ok {
		return text, nil
	}

	if message, ok := detectProviderError(doc); ok {
		return "", apperr.New(apperr.UpstreamProvider, message)
	}

	return "", apperr.Newf(apperr.UpstreamMalformed, "no extractable text in response: %s", firstBytes(raw, 500))
}

func parseJSONDoc(raw string) (interface{}, error) {
	var doc interface{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// lookup walks doc through a path of string (object key) and int (array
// index) segments, returning false if any segment is absent or the
// wrong shape.
func lookup(doc interface{}, path ...interface{}) (interface{}, bool) {
	cur := doc
	for _, key := range path {
		switch k := key.(type) {
		case string:
			m, ok := cur.(map[string]interface{})
			if !ok {
				return nil, false
			}
			v, ok := m[k]
			if !ok {
				return nil, false
			}
			cur = v
		case int:
			arr, ok := cur.([]interface{})
			if !ok || k < 0 || k >= len(arr) {
				return nil, false
			}
			cur = arr[k]
		}
	}
	return cur, true
}

func asNonEmptyString(v interface{}) (string, bool) {
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// tryExtractText tries the non-streaming candidate shapes in order:
// message content (string or array of parts), reasoning content,
// choices[0].text, a top-level output_text, and finally the raw message
// object's own JSON as a last resort.
func tryExtractText(doc interface{}) (string, bool) {
	if v, ok := lookup(doc, "choices", 0, "message", "content"); ok {
		if s, ok := asNonEmptyString(v); ok {
			return s, true
		}
		if arr, ok := v.([]interface{}); ok {
			if s, ok := concatPartsText(arr); ok {
				return s, true
			}
		}
	}

	if v, ok := lookup(doc, "choices", 0, "message", "reasoning_content"); ok {
		if s, ok := asNonEmptyString(v); ok {
			return s, true
		}
	}
	if v, ok := lookup(doc, "choices", 0, "message", "reasoning"); ok {
		if s, ok := asNonEmptyString(v); ok {
			return s, true
		}
	}

	if v, ok := lookup(doc, "choices", 0, "text"); ok {
		if s, ok := asNonEmptyString(v); ok {
			return s, true
		}
	}

	if v, ok := lookup(doc, "output_text"); ok {
		if s, ok := asNonEmptyString(v); ok {
			return s, true
		}
	}

	if v, ok := lookup(doc, "choices", 0, "message"); ok {
		if m, ok := v.(map[string]interface{}); ok && len(m) > 0 {
			if encoded, err := json.Marshal(m); err == nil {
				return string(encoded), true
			}
		}
	}

	return "", false
}

func concatPartsText(parts []interface{}) (string, bool) {
	var sb strings.Builder
	for _, part := range parts {
		pm, ok := part.(map[string]interface{})
		if !ok {
			continue
		}
		if t, ok := pm["text"].(string); ok {
			sb.WriteString(t)
		}
	}
	if sb.Len() == 0 {
		return "", false
	}
	return sb.String(), true
}

// tryExtractDeltaText extracts incremental text from one streamed chunk:
// choices[0].delta.content (or .reasoning_content), falling back to the
// non-streaming shapes for providers that repeat a full message per
// chunk.
func tryExtractDeltaText(doc interface{}) (string, bool) {
	if v, ok := lookup(doc, "choices", 0, "delta", "content"); ok {
		if s, ok := asNonEmptyString(v); ok {
			return s, true
		}
	}
	if v, ok := lookup(doc, "choices", 0, "delta", "reasoning_content"); ok {
		if s, ok := asNonEmptyString(v); ok {
			return s, true
		}
	}
	return tryExtractText(doc)
}

var errorTokens = []string{"error", "fail", "invalid", "denied", "unauthorized"}

func containsErrorToken(s string) bool {
	lower := strings.ToLower(s)
	for _, token := range errorTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

func looksLikeErrorCode(v interface{}) bool {
	switch val := v.(type) {
	case float64:
		code := int(val)
		return code != 0 && code != 200
	case string:
		return containsErrorToken(val)
	}
	return false
}

// detectProviderError scans a payload that carried no extractable text
// for one of the documented provider-error shapes.
func detectProviderError(doc interface{}) (string, bool) {
	m, ok := doc.(map[string]interface{})
	if !ok {
		return "", false
	}

	if errObj, ok := m["error"]; ok {
		switch e := errObj.(type) {
		case map[string]interface{}:
			var parts []string
			if msg, ok := e["message"].(string); ok && msg != "" {
				parts = append(parts, msg)
			}
			if code, ok := e["code"]; ok {
				parts = append(parts, fmt.Sprintf("code=%v", code))
			}
			if status, ok := e["status"]; ok {
				parts = append(parts, fmt.Sprintf("status=%v", status))
			}
			if len(parts) > 0 {
				return strings.Join(parts, " "), true
			}
			return "provider returned an error object", true
		case string:
			if e != "" {
				return e, true
			}
		}
	}

	if status, ok := m["status"]; ok && looksLikeErrorCode(status) {
		return fmt.Sprintf("status=%v", status), true
	}
	if code, ok := m["code"]; ok && looksLikeErrorCode(code) {
		return fmt.Sprintf("code=%v", code), true
	}
	if success, ok := m["success"].(bool); ok && !success {
		return "provider reported success=false", true
	}
	if msg, ok := m["message"].(string); ok && containsErrorToken(msg) {
		return msg, true
	}

	return "", false
}
