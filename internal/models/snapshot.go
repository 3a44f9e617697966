package models

import "time"

const (
	FallbackUnitName = "FALLBACK"
	FallbackUnitID   = "FALLBACK_ID"
)

// Fallback causes reported when the provider cannot produce a usable batch
const (
	CauseAuthentication  = "AUTHENTICATION (401)"
	CauseNetwork         = "Connection/Network Error"
	CauseEmptyUnitList   = "Empty Unit List (check IDs)"
	CauseInvalidResponse = "Invalid Response"
)

// Snapshot is one fetched batch for a fleet
type Snapshot struct {
	FleetID   string       `json:"fleet_id"`
	Units     []UnitSample `json:"units"`
	Fallback  bool         `json:"fallback"`
	Cause     string       `json:"cause,omitempty"`
	FetchedAt time.Time    `json:"fetched_at"`
}

// NewFallbackSnapshot builds the sentinel snapshot used when a fetch fails
func NewFallbackSnapshot(fleetID, cause string, at time.Time) Snapshot {
	return Snapshot{
		FleetID: fleetID,
		Units: []UnitSample{{
			UnitName:     FallbackUnitName,
			UnitID:       FallbackUnitID,
			LocationText: "FALLBACK - " + cause,
		}},
		Fallback:  true,
		Cause:     cause,
		FetchedAt: at,
	}
}
