package dispatch

import (
	"errors"
	"time"
)

// Event is one alert-worthy leak verdict. Created by the pipeline when the
// decision engine returns Leak; immutable; written once to the audit log and
// attempted once for outward notification per invocation.
type Event struct {
	DeviceID        string
	Timestamp       time.Time
	FlowRate        float64
	WaterLevel      float64
	Temperature     float64
	Status          string
	LeakProbability *float64
}

// Validate checks the dedup key fields.
func (e Event) Validate() error {
	if e.DeviceID == "" {
		return errors.New("dispatch: empty device id")
	}
	if e.Timestamp.IsZero() {
		return errors.New("dispatch: zero timestamp")
	}
	return nil
}

// Key is the dedup key (device id, timestamp). The key is never re-derived
// from content hashing.
func (e Event) Key() string {
	return e.DeviceID + "|" + e.Timestamp.UTC().Format(time.RFC3339)
}
