// FilePath: server/worker/internal/models/models.classification.go
package models

// ClassificationResult is the classifier host's output contract: the
// winning label with its severity bucket and confidence, plus the full
// per-label score map.
type ClassificationResult struct {
	Type     string             `json:"type"`
	Severity string             `json:"severity"`
	Score    float64            `json:"score"`
	Scores   map[string]float64 `json:"scores"`
}
