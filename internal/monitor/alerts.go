package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"fleetwatch-backend/internal/config"
	"fleetwatch-backend/internal/models"
)

var ErrInvalidAlertKind = errors.New("invalid alert kind")

// TrackedUnit is a classified unit with the tracker fields from its last cycle
type TrackedUnit struct {
	models.ClassifiedUnit
	Moving       bool
	StopDuration time.Duration
	// Seeded marks the first cycle a unit was seen; trackers skipped it
	Seeded bool
}

// StopAlertActive reports whether the unit is stopped past the threshold out of HQ
func StopAlertActive(u TrackedUnit, th config.Thresholds) bool {
	return u.StopDuration.Minutes() > th.StopMinutes && u.OutOfHQ()
}

// SpeedAlertActive reports whether the unit is at or above the speed threshold out of HQ
func SpeedAlertActive(u TrackedUnit, th config.Thresholds) bool {
	return u.SpeedKph >= th.SpeedKph && u.OutOfHQ()
}

// Registry turns live alert conditions into the visible pending lists,
// filtering out what operators dismissed. It never touches tracker memory.
type Registry struct {
	store DismissalStore
	scope config.DismissalScope
}

func NewRegistry(store DismissalStore, scope config.DismissalScope) *Registry {
	return &Registry{store: store, scope: scope}
}

// ScopeFor maps a viewer to the dismissal scope it reads and writes
func (r *Registry) ScopeFor(viewerID string) string {
	if r.scope == config.DismissalViewer {
		if viewerID == "" {
			return "anonymous"
		}
		return "viewer:" + viewerID
	}
	return GlobalScope
}

// PendingStop lists stop alerts not dismissed for the viewer, longest stop first
func (r *Registry) PendingStop(ctx context.Context, fleetID, viewerID string, units []TrackedUnit, th config.Thresholds) ([]models.StopAlert, error) {
	dismissed, err := r.store.Dismissed(ctx, fleetID, models.AlertStop, r.ScopeFor(viewerID))
	if err != nil {
		return nil, fmt.Errorf("load stop dismissals: %w", err)
	}

	alerts := []models.StopAlert{}
	durations := make(map[string]time.Duration)
	for _, u := range units {
		if !StopAlertActive(u, th) || dismissed[u.UnitName] {
			continue
		}
		durations[u.UnitName] = u.StopDuration
		alerts = append(alerts, models.StopAlert{
			UnitID:              u.UnitID,
			UnitName:            u.UnitName,
			DisplayName:         DisplayName(u.UnitName),
			StopDurationMinutes: u.StopDuration.Minutes(),
			DurationText:        FormatStopDuration(u.StopDuration),
			LocationText:        u.LocationText,
			Latitude:            u.Latitude,
			Longitude:           u.Longitude,
		})
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		di, dj := durations[alerts[i].UnitName], durations[alerts[j].UnitName]
		if di != dj {
			return di > dj
		}
		return alerts[i].UnitName < alerts[j].UnitName
	})
	return alerts, nil
}

// PendingSpeed lists speed alerts not dismissed for the viewer, fastest first
func (r *Registry) PendingSpeed(ctx context.Context, fleetID, viewerID string, units []TrackedUnit, th config.Thresholds) ([]models.SpeedAlert, error) {
	dismissed, err := r.store.Dismissed(ctx, fleetID, models.AlertSpeed, r.ScopeFor(viewerID))
	if err != nil {
		return nil, fmt.Errorf("load speed dismissals: %w", err)
	}

	alerts := []models.SpeedAlert{}
	for _, u := range units {
		if !SpeedAlertActive(u, th) || dismissed[u.UnitName] {
			continue
		}
		alerts = append(alerts, models.SpeedAlert{
			UnitID:       u.UnitID,
			UnitName:     u.UnitName,
			DisplayName:  DisplayName(u.UnitName),
			SpeedKph:     u.SpeedKph,
			LocationText: u.LocationText,
			Latitude:     u.Latitude,
			Longitude:    u.Longitude,
		})
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].SpeedKph != alerts[j].SpeedKph {
			return alerts[i].SpeedKph > alerts[j].SpeedKph
		}
		return alerts[i].UnitName < alerts[j].UnitName
	})
	return alerts, nil
}

// Dismiss hides the given units from the viewer's pending list for kind
func (r *Registry) Dismiss(ctx context.Context, fleetID, viewerID string, kind models.AlertKind, units ...string) error {
	if !kind.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidAlertKind, kind)
	}
	if len(units) == 0 {
		return nil
	}
	return r.store.Dismiss(ctx, fleetID, kind, r.ScopeFor(viewerID), units...)
}

// Rearm clears dismissals for units in every scope
func (r *Registry) Rearm(ctx context.Context, fleetID string, kind models.AlertKind, units ...string) error {
	if len(units) == 0 {
		return nil
	}
	return r.store.Clear(ctx, fleetID, kind, units...)
}
