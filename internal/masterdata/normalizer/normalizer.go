// Package normalizer maps raw external registry payloads to candidates. It is
// pure: no I/O, deterministic output ordered by field number, and absent
// payload fields simply produce no candidate.
package normalizer

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"masterdata/internal/masterdata/fields"
	"masterdata/internal/masterdata/models"
)

// Normalizer turns one source's payload into candidates.
type Normalizer interface {
	Source() models.Source
	Map(payload map[string]any, evidenceID string) []models.Candidate
}

// MapJSON decodes data and maps it with n. Malformed JSON is the only error.
func MapJSON(n Normalizer, data []byte, evidenceID string) ([]models.Candidate, error) {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", n.Source(), err)
	}
	return n.Map(payload, evidenceID), nil
}

// mapping extracts one catalog field from a payload.
type mapping struct {
	key        string
	confidence float64
	extract    func(payload map[string]any) string
}

// at extracts the string found at path.
func at(path ...string) func(map[string]any) string {
	return func(payload map[string]any) string {
		return getString(payload, path...)
	}
}

// apply runs every mapping against payload and returns the non-empty results
// sorted by field number.
func apply(reg *fields.Registry, source models.Source, mappings []mapping, payload map[string]any, evidenceID string) []models.Candidate {
	out := make([]models.Candidate, 0, len(mappings))
	for _, m := range mappings {
		value := strings.TrimSpace(m.extract(payload))
		if value == "" {
			continue
		}
		out = append(out, models.Candidate{
			FieldNo:    reg.MustKey(m.key).No,
			Value:      value,
			Source:     source,
			EvidenceID: evidenceID,
			Confidence: models.Confidence(m.confidence),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FieldNo < out[j].FieldNo })
	return out
}

// getString walks nested objects along path. Any missing step or non-scalar
// leaf yields "".
func getString(payload map[string]any, path ...string) string {
	var cur any = payload
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		if cur, ok = obj[key]; !ok {
			return ""
		}
	}
	switch v := cur.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// getStrings returns the string elements of the array at path.
func getStrings(payload map[string]any, path ...string) []string {
	if len(path) == 0 {
		return nil
	}
	parent := payload
	for _, key := range path[:len(path)-1] {
		next, ok := parent[key].(map[string]any)
		if !ok {
			return nil
		}
		parent = next
	}
	items, ok := parent[path[len(path)-1]].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

// datePart trims an RFC 3339 timestamp to its calendar date.
func datePart(s string) string {
	if i := strings.IndexByte(s, 'T'); i > 0 {
		return s[:i]
	}
	return s
}
