package classifier

import (
	"testing"

	"github.com/vigilhome/vigil_v3/server/worker/internal/models"
)

func square(n int, amplitude int16, period int) []int16 {
	samples := make([]int16, n)
	for i := range samples {
		if (i/period)%2 == 0 {
			samples[i] = amplitude
		} else {
			samples[i] = -amplitude
		}
	}
	return samples
}

func TestModelPredictDeterministic(t *testing.T) {
	m := NewModel(16000)
	samples := square(16000, 12000, 40)

	first := m.Predict(samples)
	second := m.Predict(samples)
	if first.Type != second.Type || first.Score != second.Score {
		t.Errorf("identical input produced different results: %+v vs %+v", first, second)
	}
}

func TestModelPredictContract(t *testing.T) {
	m := NewModel(16000)
	result := m.Predict(square(8000, 6000, 25))

	if result.Type == "" {
		t.Error("result has no label")
	}
	if result.Score < 0 || result.Score > 1 {
		t.Errorf("best score %v out of [0,1]", result.Score)
	}
	if len(result.Scores) != len(Labels()) {
		t.Errorf("got %d label scores, want %d", len(result.Scores), len(Labels()))
	}
	for label, score := range result.Scores {
		if score < 0 || score > 1 {
			t.Errorf("score for %q = %v, out of [0,1]", label, score)
		}
	}
	if result.Scores[result.Type] != result.Score {
		t.Error("best score does not match the score map entry for the best label")
	}
	if result.Severity != SeverityFor(result.Type) {
		t.Errorf("severity %q does not match table for %q", result.Severity, result.Type)
	}
}

func TestModelPredictSilence(t *testing.T) {
	m := NewModel(16000)
	result := m.Predict(make([]int16, 16000))
	if result == nil {
		t.Fatal("silence must still classify")
	}
	if result.Score < 0 || result.Score > 1 {
		t.Errorf("silence score %v out of [0,1]", result.Score)
	}
}

func TestSeverityFor(t *testing.T) {
	cases := []struct {
		label string
		want  string
	}{
		{LabelFallImpact, models.SeverityHigh},
		{LabelDistressPain, models.SeverityHigh},
		{LabelChokingVomiting, models.SeverityHigh},
		{LabelBreathingEmergency, models.SeverityHigh},
		{LabelFireSmokeAlarm, models.SeverityHigh},
		{LabelGlassBreak, models.SeverityMedium},
		{LabelCoughing, models.SeverityMedium},
		{LabelWaterRunning, models.SeverityLow},
		{LabelDoorKnock, models.SeverityLow},
		{LabelFootsteps, models.SeverityLow},
		{"Something Unheard Of", models.SeverityLow},
	}
	for _, tc := range cases {
		if got := SeverityFor(tc.label); got != tc.want {
			t.Errorf("SeverityFor(%q) = %q, want %q", tc.label, got, tc.want)
		}
	}
}
