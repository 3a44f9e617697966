package models

import "time"

type AlertKind string

const (
	AlertStop  AlertKind = "stop"
	AlertSpeed AlertKind = "speed"
)

func (k AlertKind) IsValid() bool {
	return k == AlertStop || k == AlertSpeed
}

// AlertNotice is raised once when a unit arms a stop alert or opens a speeding episode
type AlertNotice struct {
	Kind         AlertKind `json:"kind"`
	FleetID      string    `json:"fleet_id"`
	FleetName    string    `json:"fleet_name"`
	UnitID       string    `json:"unit_id"`
	UnitName     string    `json:"unit_name"`
	DisplayName  string    `json:"display_name"`
	SpeedKph     float64   `json:"speed_kph,omitempty"`
	StopMinutes  float64   `json:"stop_minutes,omitempty"`
	LocationText string    `json:"location_text"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Time         time.Time `json:"time"`
}
