package upstream

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/chorusdev/chorus/pkg/temperature"
)

var firstNumberPattern = regexp.MustCompile(`-?\d+(\.\d+)?`)

// ParseTemperatureReply extracts a temperature value from an analyzer's
// free-form auto-temperature reply, tolerating a bare JSON number, a
// quoted number, a JSON object carrying a "temperature" field (with or
// without surrounding prose), or a number embedded in the reply's
// temperature-bearing line. It falls back to the package default when
// nothing numeric can be found.
func ParseTemperatureReply(raw string) float64 {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.Trim(trimmed, `"'`)

	if v, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return temperature.Clamp(v)
	}

	if v, ok := temperatureFromJSON(raw); ok {
		return temperature.Clamp(v)
	}

	if v, ok := temperatureFromText(raw); ok {
		return temperature.Clamp(v)
	}

	return temperature.Default
}

// temperatureFromJSON decodes the first JSON object in raw and reads its
// "temperature" field, whether a number or a quoted string. Prose before
// or after the object is ignored; a reply whose reasoning mentions other
// numbers never shadows the field itself.
func temperatureFromJSON(raw string) (float64, bool) {
	idx := strings.IndexByte(raw, '{')
	if idx == -1 {
		return 0, false
	}

	var doc map[string]interface{}
	if err := json.NewDecoder(strings.NewReader(raw[idx:])).Decode(&doc); err != nil {
		return 0, false
	}

	switch v := doc["temperature"].(type) {
	case float64:
		return v, true
	case string:
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return parsed, true
		}
	}
	return 0, false
}

// temperatureFromText scans raw line by line for the first numeric
// substring on a line that mentions a temperature, so a number elsewhere
// in the reply's reasoning is not mistaken for the value. Only when no
// line qualifies does it fall back to the first number anywhere.
func temperatureFromText(raw string) (float64, bool) {
	for _, line := range strings.Split(raw, "\n") {
		if !strings.Contains(strings.ToLower(line), "temperature") {
			continue
		}
		if match := firstNumberPattern.FindString(line); match != "" {
			if v, err := strconv.ParseFloat(match, 64); err == nil {
				return v, true
			}
		}
	}

	if match := firstNumberPattern.FindString(raw); match != "" {
		if v, err := strconv.ParseFloat(match, 64); err == nil {
			return v, true
		}
	}
	return 0, false
}
