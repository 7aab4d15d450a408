package discovery

import (
	"encoding/json"
	"strings"
)

// NormalizeList converts a raw settings value into a slug list. Older plugin
// versions stored a single scalar where newer ones store a JSON array; both
// shapes are accepted here, once, at the boundary. Blank entries are dropped.
func NormalizeList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	if strings.HasPrefix(raw, "[") {
		var list []string
		if err := json.Unmarshal([]byte(raw), &list); err == nil {
			out := make([]string, 0, len(list))
			for _, item := range list {
				if trimmed := strings.TrimSpace(item); trimmed != "" {
					out = append(out, trimmed)
				}
			}
			return out
		}
		// Malformed JSON array: fall through and treat it as a scalar.
	}

	return []string{raw}
}
