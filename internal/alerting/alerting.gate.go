// FilePath: server/worker/internal/alerting/alerting.gate.go
package alerting

import (
	"context"

	nuts "github.com/vaudience/go-nuts"

	"github.com/vigilhome/vigil_v3/server/worker/internal/errors"
	"github.com/vigilhome/vigil_v3/server/worker/internal/repository"
)

const (
	// DefaultThreshold applies when a home has no configuration row for a
	// detection type, or when the row's threshold column is null.
	DefaultThreshold = 0.5

	// AdmitUnknownLabels controls what happens when the classifier emits a
	// label outside the config-key taxonomy. Admitting keeps newly deployed
	// classifier versions visible instead of silently dropping them.
	AdmitUnknownLabels = true
)

// Decision is the gate's verdict for one detection.
type Decision struct {
	Admitted  bool    // false means the detection is suppressed
	Threshold float64 // the threshold that was applied
	Reason    string  // short machine-readable reason, recorded on the event
}

// Gate decides, per home and detection type, whether a detection becomes
// an alert. Failures to read configuration fail open to the defaults so
// that a database hiccup never silences a home.
type Gate struct {
	configs repository.ModelConfigRepository
}

func NewGate(configs repository.ModelConfigRepository) *Gate {
	return &Gate{configs: configs}
}

// Admit evaluates one detection against the home's configuration.
// The decision order is: unknown label, disabled type, threshold.
func (g *Gate) Admit(ctx context.Context, homeID, label string, score float64) Decision {
	key, known := ConfigKeyFor(label)
	if !known {
		// No config key means no threshold to consult; admission is
		// unconditional so a newly deployed classifier version stays
		// visible regardless of score.
		if AdmitUnknownLabels {
			nuts.L.Warnf("[Gate] Unknown detection label %q for home %s; admitting", label, homeID)
		}
		return Decision{Admitted: AdmitUnknownLabels, Threshold: DefaultThreshold, Reason: "unknown_label"}
	}

	threshold := DefaultThreshold
	cfg, err := g.configs.GetByHomeAndKey(ctx, homeID, key)
	switch {
	case err == nil:
		if !cfg.Enabled {
			return Decision{Admitted: false, Threshold: threshold, Reason: "disabled"}
		}
		if cfg.Threshold != nil {
			threshold = *cfg.Threshold
		}
	case errors.IsNotFound(err):
		// No row means the type was never configured; treat as enabled
		// with the default threshold.
	default:
		nuts.L.Errorf("[Gate] Failed to load config for home %s key %s: %v; using defaults", homeID, key, err)
	}

	if score < threshold {
		return Decision{Admitted: false, Threshold: threshold, Reason: "below_threshold"}
	}
	return Decision{Admitted: true, Threshold: threshold, Reason: "admitted"}
}
