package domain

import (
	"strings"
)

// sensitiveFragments are key-name fragments that must never leave the
// process inside an event payload.
var sensitiveFragments = []string{"password", "token", "secret", "key", "hash"}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, fragment := range sensitiveFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

// SanitizeEventData strips any map key whose name contains a sensitive
// fragment, recursing into nested maps and slices. It is applied uniformly
// before a payload is admitted to broadcast, regardless of event shape.
func SanitizeEventData(payload interface{}) interface{} {
	switch value := payload.(type) {
	case map[string]interface{}:
		cleaned := make(map[string]interface{}, len(value))
		for key, nested := range value {
			if isSensitiveKey(key) {
				continue
			}
			cleaned[key] = SanitizeEventData(nested)
		}
		return cleaned

	case []interface{}:
		cleaned := make([]interface{}, 0, len(value))
		for _, item := range value {
			cleaned = append(cleaned, SanitizeEventData(item))
		}
		return cleaned

	default:
		return payload
	}
}
