package model

import "strings"

// SourceDocument is an immutable, ordered transcript for a single video.
// SourceKey is the canonical identifier every cached artifact hangs off.
type SourceDocument struct {
	SourceKey string   `json:"source_key"`
	Segments  []string `json:"segments"`
}

func (d *SourceDocument) JoinedText() string {
	parts := make([]string, 0, len(d.Segments))
	for _, seg := range d.Segments {
		trimmed := strings.TrimSpace(seg)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	return strings.Join(parts, "\n")
}

func (d *SourceDocument) Empty() bool {
	for _, seg := range d.Segments {
		if strings.TrimSpace(seg) != "" {
			return false
		}
	}
	return true
}
