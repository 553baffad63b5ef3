package httpapi

import "strings"

// promptFromMessages flattens an ordered message sequence into the
// single string prompt the plan evaluator consumes, one "role: content"
// line per non-empty message.
func promptFromMessages(messages []Message) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		lines = append(lines, m.Role+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

// promptFromTextCompletionPrompt normalizes /v1/completions' prompt field,
// which may be a single string or an array of strings joined by newline.
func promptFromTextCompletionPrompt(raw interface{}) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return "", false
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, "\n"), true
	default:
		return "", false
	}
}

// flattenResponsesInput implements /v1/responses' input tolerance: a
// string input, an array of content blocks (each with type plus
// text/input_text or a nested content array), a messages array, a
// standalone prompt, or plain instructions (a system message). Any
// combination present is flattened into one ordered prompt string.
func flattenResponsesInput(req map[string]interface{}) string {
	var lines []string

	if instructions, ok := req["instructions"].(string); ok && strings.TrimSpace(instructions) != "" {
		lines = append(lines, "system: "+instructions)
	}

	if messages, ok := req["messages"].([]interface{}); ok {
		for _, raw := range messages {
			m, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			role, _ := m["role"].(string)
			if role == "" {
				role = "user"
			}
			if text, ok := extractBlockText(m["content"]); ok && text != "" {
				lines = append(lines, role+": "+text)
			}
		}
	}

	if input, ok := req["input"]; ok {
		if text, ok := extractBlockText(input); ok && text != "" {
			lines = append(lines, text)
		}
	}

	if prompt, ok := req["prompt"].(string); ok && strings.TrimSpace(prompt) != "" {
		lines = append(lines, prompt)
	}

	return strings.Join(lines, "\n")
}

// extractBlockText extracts text from a single content value: a plain
// string, a content block with a "text"/"input_text" field, a nested
// "content" array of further blocks, or an array of any of the above.
func extractBlockText(v interface{}) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case map[string]interface{}:
		if s, ok := val["text"].(string); ok {
			return s, true
		}
		if s, ok := val["input_text"].(string); ok {
			return s, true
		}
		if nested, ok := val["content"]; ok {
			return extractBlockText(nested)
		}
		return "", false
	case []interface{}:
		var parts []string
		for _, item := range val {
			if s, ok := extractBlockText(item); ok && s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n"), len(parts) > 0
	default:
		return "", false
	}
}
