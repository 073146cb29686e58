// Package memory is the adapter for the memory service: store, search,
// list and delete per-user conversational facts.
package memory

import (
	"log/slog"
)

// Record is one well-formed memory returned by the service.
type Record struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Score    *float64       `json:"score,omitempty"`
	Metadata map[string]any `json:"metadata"`
}

// normalizeRecords converts raw provider records into Records. A raw record
// whose text cannot be found under any of the text/content/memory keys is
// dropped (logged), never surfaced as a partial-record error; callers see
// only well-formed records.
func normalizeRecords(raw []map[string]any, logger *slog.Logger) []Record {
	records := make([]Record, 0, len(raw))
	for i, m := range raw {
		text := firstString(m, "text", "content", "memory")
		if text == "" {
			logger.Warn("Dropping memory record without text", "index", i)
			continue
		}

		rec := Record{Text: text}
		if id, ok := m["id"].(string); ok {
			rec.ID = id
		}
		if score, ok := m["score"].(float64); ok {
			rec.Score = &score
		}
		if meta, ok := m["metadata"].(map[string]any); ok {
			rec.Metadata = meta
		} else {
			rec.Metadata = map[string]any{}
		}
		records = append(records, rec)
	}
	return records
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
