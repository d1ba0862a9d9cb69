package model

import "strings"

const (
	minSummaryChars = 30
	minBulletLines  = 4
	minBulletChars  = 50
)

// SummaryArtifact is the (summary, bullets) pair produced by the
// summarization pipeline. Only artifacts where both halves pass their
// validity checks are ever cached.
type SummaryArtifact struct {
	Summary string `json:"summary"`
	Bullets string `json:"bullets"`
}

func (a SummaryArtifact) SummaryValid() bool {
	return len(strings.TrimSpace(a.Summary)) >= minSummaryChars
}

func (a SummaryArtifact) BulletsValid() bool {
	trimmed := strings.TrimSpace(a.Bullets)
	if len(trimmed) < minBulletChars {
		return false
	}
	lines := 0
	for _, line := range strings.Split(trimmed, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "•") {
			lines++
		}
	}
	return lines >= minBulletLines
}

func (a SummaryArtifact) Valid() bool {
	return a.SummaryValid() && a.BulletsValid()
}
