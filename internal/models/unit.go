package models

// UnitSample is one telemetry record for a unit as returned by the GPS provider
type UnitSample struct {
	UnitName       string  `json:"unit_name"`
	UnitID         string  `json:"unit_id"`
	IgnitionOn     bool    `json:"ignition_on"`
	SpeedKph       float64 `json:"speed_kph"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	LastReportTime string  `json:"last_report_time"` // Provider-local format, e.g. "Sep 30 2025 12:57PM"
	LocationText   string  `json:"location_text"`
}

// TrackerKey returns the key used for per-unit tracker memory
func (s UnitSample) TrackerKey() string {
	if s.UnitID != "" {
		return s.UnitID
	}
	return s.UnitName
}

// ClassifiedUnit is a sample annotated with zone flags, staleness and display state
type ClassifiedUnit struct {
	UnitSample
	InHomeBase         bool         `json:"in_home_base"`
	InSecondaryHolding bool         `json:"in_secondary_holding"`
	InDisposalSite     bool         `json:"in_disposal_site"`
	IsGPSFault         bool         `json:"is_gps_fault"`
	DisplayState       DisplayState `json:"display_state"`
	FaultReason        *string      `json:"fault_reason,omitempty"`
}

// OutOfHQ reports whether the unit is outside every zone and not faulted
func (u ClassifiedUnit) OutOfHQ() bool {
	return !u.InHomeBase && !u.InSecondaryHolding && !u.InDisposalSite && !u.IsGPSFault
}

// IsSheltered reports whether the unit is parked in a home base or secondary holding area
func (u ClassifiedUnit) IsSheltered() bool {
	return u.DisplayState == StateShelteredAtBase || u.DisplayState == StateShelteredSecondary
}
