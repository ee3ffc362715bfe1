// FilePath: server/worker/internal/classifier/classifier.model.go
package classifier

import (
	"math"

	"github.com/vigilhome/vigil_v3/server/worker/internal/models"
)

// The acoustic taxonomy is a fixed contract shared with the per-home
// configuration keys; see the alerting package for the mapping table.
const (
	LabelFallImpact         = "Fall / Impact"
	LabelDistressPain       = "Distress / Pain"
	LabelChokingVomiting    = "Choking / Vomiting"
	LabelBreathingEmergency = "Breathing Emergency"
	LabelFireSmokeAlarm     = "Fire / Smoke Alarm"
	LabelGlassBreak         = "Glass Break"
	LabelCoughing           = "Coughing"
	LabelWaterRunning       = "Water Running"
	LabelDoorKnock          = "Door / Knock"
	LabelFootsteps          = "Footsteps"
)

// severityByLabel buckets raw acoustic classes for alerting. This table is
// part of the classifier's output contract and is fixed alongside the
// label taxonomy.
var severityByLabel = map[string]string{
	LabelFallImpact:         models.SeverityHigh,
	LabelDistressPain:       models.SeverityHigh,
	LabelChokingVomiting:    models.SeverityHigh,
	LabelBreathingEmergency: models.SeverityHigh,
	LabelFireSmokeAlarm:     models.SeverityHigh,
	LabelGlassBreak:         models.SeverityMedium,
	LabelCoughing:           models.SeverityMedium,
	LabelWaterRunning:       models.SeverityLow,
	LabelDoorKnock:          models.SeverityLow,
	LabelFootsteps:          models.SeverityLow,
}

// SeverityFor returns the severity bucket for a label, defaulting low for
// anything outside the taxonomy.
func SeverityFor(label string) string {
	if sev, ok := severityByLabel[label]; ok {
		return sev
	}
	return models.SeverityLow
}

// Labels returns the closed label taxonomy.
func Labels() []string {
	return []string{
		LabelFallImpact,
		LabelDistressPain,
		LabelChokingVomiting,
		LabelBreathingEmergency,
		LabelFireSmokeAlarm,
		LabelGlassBreak,
		LabelCoughing,
		LabelWaterRunning,
		LabelDoorKnock,
		LabelFootsteps,
	}
}

// Model is the acoustic event detector. The scoring below is a
// deterministic signal-feature stand-in for the trained network; the
// surrounding host treats it as opaque and only consumes the
// ClassificationResult contract.
type Model struct {
	sampleRate int
}

// NewModel loads the detector for a fixed input rate.
func NewModel(sampleRate int) *Model {
	return &Model{sampleRate: sampleRate}
}

// SampleRate reports the input rate the model expects.
func (m *Model) SampleRate() int {
	return m.sampleRate
}

// Predict scores a mono PCM clip against the full taxonomy and returns
// the winning label with its severity and confidence.
func (m *Model) Predict(samples []int16) *models.ClassificationResult {
	energy, zcr, peak := features(samples)

	scores := map[string]float64{
		LabelFallImpact:         clamp(1.8*peak - 0.9*zcr),
		LabelDistressPain:       clamp(1.2*energy + 0.5*zcr - 0.2),
		LabelChokingVomiting:    clamp(0.9*energy + 0.8*zcr - 0.35),
		LabelBreathingEmergency: clamp(0.6*energy + 1.1*zcr - 0.4),
		LabelFireSmokeAlarm:     clamp(2.2*zcr - 0.3),
		LabelGlassBreak:         clamp(1.1*peak + 0.9*zcr - 0.5),
		LabelCoughing:           clamp(1.0*energy + 0.3*zcr - 0.25),
		LabelWaterRunning:       clamp(1.4*zcr - 0.6*peak),
		LabelDoorKnock:          clamp(1.3*peak - 1.2*zcr - 0.1),
		LabelFootsteps:          clamp(0.8*energy - 0.6*zcr + 0.05),
	}

	best := LabelFootsteps
	bestScore := -1.0
	for _, label := range Labels() {
		if scores[label] > bestScore {
			best = label
			bestScore = scores[label]
		}
	}

	return &models.ClassificationResult{
		Type:     best,
		Severity: SeverityFor(best),
		Score:    bestScore,
		Scores:   scores,
	}
}

// features extracts normalized RMS energy, zero-crossing rate, and peak
// amplitude from a clip.
func features(samples []int16) (energy, zcr, peak float64) {
	if len(samples) == 0 {
		return 0, 0, 0
	}

	var sumSq float64
	var crossings int
	for i, s := range samples {
		v := float64(s) / math.MaxInt16
		sumSq += v * v
		if math.Abs(v) > peak {
			peak = math.Abs(v)
		}
		if i > 0 && (samples[i-1] < 0) != (s < 0) {
			crossings++
		}
	}

	energy = math.Sqrt(sumSq / float64(len(samples)))
	zcr = float64(crossings) / float64(len(samples))
	return energy, zcr, peak
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
