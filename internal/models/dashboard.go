package models

import "time"

type DashboardStatus string

const (
	DashboardOK    DashboardStatus = "ok"
	DashboardError DashboardStatus = "error"
	DashboardIdle  DashboardStatus = "idle"
)

// Speed bands shown on unit cards
const (
	SpeedBandNone    = ""
	SpeedBandWarning = "warning"
	SpeedBandExcess  = "excess"
)

// UnitView is a classified unit plus tracker-derived fields for rendering
type UnitView struct {
	ClassifiedUnit
	DisplayName         string  `json:"display_name"`
	StateLabel          string  `json:"state_label"`
	Color               string  `json:"color"`
	StopDurationMinutes float64 `json:"stop_duration_minutes"`
	StopDurationText    string  `json:"stop_duration_text"`
	IsStopAlertActive   bool    `json:"is_stop_alert_active"`
	IsSpeedAlertActive  bool    `json:"is_speed_alert_active"`
	SpeedBand           string  `json:"speed_band,omitempty"`
}

type StopAlert struct {
	UnitID              string  `json:"unit_id"`
	UnitName            string  `json:"unit_name"`
	DisplayName         string  `json:"display_name"`
	StopDurationMinutes float64 `json:"stop_duration_minutes"`
	DurationText        string  `json:"duration_text"`
	LocationText        string  `json:"location_text"`
	Latitude            float64 `json:"latitude"`
	Longitude           float64 `json:"longitude"`
}

type SpeedAlert struct {
	UnitID       string  `json:"unit_id"`
	UnitName     string  `json:"unit_name"`
	DisplayName  string  `json:"display_name"`
	SpeedKph     float64 `json:"speed_kph"`
	LocationText string  `json:"location_text"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
}

type FleetMetrics struct {
	Total       int `json:"total"`
	IgnitionOn  int `json:"ignition_on"`
	IgnitionOff int `json:"ignition_off"`
	Sheltered   int `json:"sheltered"`
	AtDisposal  int `json:"at_disposal"`
	GPSFaults   int `json:"gps_faults"`
	Moving      int `json:"moving"`
}

// AudioCue tells the browser whether an alert sound should be playing
type AudioCue struct {
	Stop  bool `json:"stop"`
	Speed bool `json:"speed"`
}

// Dashboard is the full payload served to a viewer for one fleet
type Dashboard struct {
	FleetID     string          `json:"fleet_id"`
	FleetName   string          `json:"fleet_name"`
	Status      DashboardStatus `json:"status"`
	Error       string          `json:"error,omitempty"`
	OnRouteOnly bool            `json:"on_route_only"`
	Subtitle    string          `json:"subtitle"`
	GeneratedAt time.Time       `json:"generated_at"`
	Units       []UnitView      `json:"units"`
	StopAlerts  []StopAlert     `json:"stop_alerts"`
	SpeedAlerts []SpeedAlert    `json:"speed_alerts"`
	Events      []EventLogEntry `json:"events"`
	Metrics     FleetMetrics    `json:"metrics"`
	Legend      []LegendEntry   `json:"legend"`
	Audio       AudioCue        `json:"audio"`
}

// IdleDashboard is returned when no known fleet is selected
func IdleDashboard(fleetID string, at time.Time) Dashboard {
	return Dashboard{
		FleetID:     fleetID,
		Status:      DashboardIdle,
		Subtitle:    "Seleccione una flota",
		GeneratedAt: at,
		Units:       []UnitView{},
		StopAlerts:  []StopAlert{},
		SpeedAlerts: []SpeedAlert{},
		Events:      []EventLogEntry{},
		Legend:      Legend(),
	}
}
