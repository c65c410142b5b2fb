package events

import (
	"encoding/json"
	"strconv"
)

// MetadataFromMap converts an event metadata map to its stored JSON form.
func MetadataFromMap(metadata map[string]interface{}) string {
	if len(metadata) == 0 {
		return ""
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return ""
	}
	return string(data)
}

// MetadataToMap decodes stored metadata. Unparseable payloads yield an
// empty map rather than an error.
func MetadataToMap(stored string) map[string]interface{} {
	if stored == "" {
		return map[string]interface{}{}
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(stored), &m); err != nil {
		return map[string]interface{}{}
	}
	return m
}

// timeOnPageSeconds extracts a "time_on_page" reading (milliseconds) from
// event metadata and converts it to whole seconds. Missing keys and
// non-numeric values yield 0.
func timeOnPageSeconds(metadata map[string]interface{}) int {
	raw, ok := metadata["time_on_page"]
	if !ok {
		return 0
	}

	var ms int
	switch v := raw.(type) {
	case float64:
		ms = int(v)
	case int:
		ms = v
	case json.Number:
		parsed, err := v.Int64()
		if err != nil {
			return 0
		}
		ms = int(parsed)
	case string:
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return 0
		}
		ms = parsed
	default:
		return 0
	}

	if ms <= 0 {
		return 0
	}
	return ms / 1000
}
