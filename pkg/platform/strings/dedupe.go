// Package strings holds small string-list helpers shared by config parsing
// and request normalization.
package strings

import (
	"strings"
)

// DedupeAndTrim trims each element and drops empties and repeats, keeping
// first-seen order.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}

// SplitList splits a sep-delimited list such as "a:9092, b:9092" into its
// distinct, non-empty elements. An empty or all-blank input returns nil.
func SplitList(value, sep string) []string {
	out := DedupeAndTrim(strings.Split(value, sep))
	if len(out) == 0 {
		return nil
	}
	return out
}
