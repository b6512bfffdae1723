// Package ingest validates raw sensor readings at the transport boundary.
// Malformed input is rejected here and never reaches inference.
package ingest

import (
	"errors"
	"fmt"
	"time"
)

// Reading is one validated, immutable sensor reading.
type Reading struct {
	DeviceID    string
	Timestamp   time.Time
	FlowRate    float64
	WaterLevel  float64
	Temperature float64
	Status      string
}

// rawReading is the wire shape. Floats are pointers so a missing field is
// distinguishable from zero.
type rawReading struct {
	DeviceID    string   `json:"device_id"`
	Timestamp   string   `json:"timestamp"`
	WaterLevel  *float64 `json:"water_level"`
	Temperature *float64 `json:"temperature"`
	FlowRate    *float64 `json:"flow_rate"`
	Status      string   `json:"status"`
}

// timestampLayouts are accepted on top of RFC3339; field simulators commonly
// send bare datetime strings.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func (r rawReading) toReading(receivedAt time.Time) (Reading, error) {
	if r.DeviceID == "" {
		return Reading{}, errors.New("ingest: device_id is required")
	}
	if r.FlowRate == nil {
		return Reading{}, errors.New("ingest: flow_rate is required")
	}
	if *r.FlowRate <= 0 {
		return Reading{}, fmt.Errorf("ingest: flow_rate must be > 0, got %v", *r.FlowRate)
	}
	if r.WaterLevel == nil {
		return Reading{}, errors.New("ingest: water_level is required")
	}
	if *r.WaterLevel < 0 {
		return Reading{}, fmt.Errorf("ingest: water_level must be >= 0, got %v", *r.WaterLevel)
	}
	if r.Temperature == nil {
		return Reading{}, errors.New("ingest: temperature is required")
	}

	ts := receivedAt.UTC()
	if r.Timestamp != "" {
		parsed, err := parseTimestamp(r.Timestamp)
		if err != nil {
			return Reading{}, err
		}
		ts = parsed
	}

	return Reading{
		DeviceID:    r.DeviceID,
		Timestamp:   ts,
		FlowRate:    *r.FlowRate,
		WaterLevel:  *r.WaterLevel,
		Temperature: *r.Temperature,
		Status:      r.Status,
	}, nil
}

func parseTimestamp(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("ingest: unparseable timestamp %q", value)
}
