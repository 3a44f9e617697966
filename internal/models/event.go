package models

import "time"

type EventKind string

const (
	EventStopEnd  EventKind = "stop_end"
	EventSpeedEnd EventKind = "speed_end"
)

// EventLogEntry records the end of a stop or speeding episode
type EventLogEntry struct {
	ID              string    `json:"id"`
	FleetID         string    `json:"fleet_id"`
	Time            time.Time `json:"time"`
	UnitID          string    `json:"unit_id"`
	Unit            string    `json:"unit"`
	Kind            EventKind `json:"kind"`
	DurationMinutes float64   `json:"duration_minutes"`
	PeakSpeedKph    float64   `json:"peak_speed_kph,omitempty"`
	Location        string    `json:"location"`
	Message         string    `json:"message"`
}
