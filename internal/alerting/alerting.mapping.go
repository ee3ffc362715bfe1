// FilePath: server/worker/internal/alerting/alerting.mapping.go
package alerting

// configKeyByLabel maps classifier labels to the model_key column used by
// the per-home configuration rows. Label strings are the classifier's
// display taxonomy; config keys are stable snake_case identifiers shared
// with the configuration API.
var configKeyByLabel = map[string]string{
	"Fall / Impact":       "fall_impact",
	"Distress / Pain":     "distress_pain",
	"Choking / Vomiting":  "choking_vomiting",
	"Breathing Emergency": "breathing_emergency",
	"Fire / Smoke Alarm":  "fire_smoke_alarm",
	"Glass Break":         "glass_break",
	"Coughing":            "coughing",
	"Water Running":       "water_running",
	"Door / Knock":        "door_knock",
	"Footsteps":           "footsteps",
}

// ConfigKeyFor resolves the configuration key for a classifier label.
// The second return is false for labels outside the known taxonomy.
func ConfigKeyFor(label string) (string, bool) {
	key, ok := configKeyByLabel[label]
	return key, ok
}
