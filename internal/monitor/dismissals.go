package monitor

import (
	"context"
	"sync"

	"fleetwatch-backend/internal/models"
)

// GlobalScope is the dismissal scope shared by every viewer of a fleet
const GlobalScope = "global"

// DismissalStore keeps operator dismissals per fleet, alert kind, scope and unit name.
// Clear removes a unit's dismissal in every scope.
type DismissalStore interface {
	Dismiss(ctx context.Context, fleetID string, kind models.AlertKind, scope string, units ...string) error
	Dismissed(ctx context.Context, fleetID string, kind models.AlertKind, scope string) (map[string]bool, error)
	Clear(ctx context.Context, fleetID string, kind models.AlertKind, units ...string) error
}

type dismissalKey struct {
	fleetID string
	kind    models.AlertKind
}

// MemoryDismissals is the in-process DismissalStore
type MemoryDismissals struct {
	mu sync.RWMutex
	// unit -> scopes that dismissed it
	entries map[dismissalKey]map[string]map[string]bool
}

func NewMemoryDismissals() *MemoryDismissals {
	return &MemoryDismissals{entries: make(map[dismissalKey]map[string]map[string]bool)}
}

func (m *MemoryDismissals) Dismiss(_ context.Context, fleetID string, kind models.AlertKind, scope string, units ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := dismissalKey{fleetID, kind}
	byUnit, ok := m.entries[key]
	if !ok {
		byUnit = make(map[string]map[string]bool)
		m.entries[key] = byUnit
	}
	for _, unit := range units {
		scopes, ok := byUnit[unit]
		if !ok {
			scopes = make(map[string]bool)
			byUnit[unit] = scopes
		}
		scopes[scope] = true
	}
	return nil
}

func (m *MemoryDismissals) Dismissed(_ context.Context, fleetID string, kind models.AlertKind, scope string) (map[string]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]bool)
	for unit, scopes := range m.entries[dismissalKey{fleetID, kind}] {
		if scopes[scope] {
			out[unit] = true
		}
	}
	return out, nil
}

func (m *MemoryDismissals) Clear(_ context.Context, fleetID string, kind models.AlertKind, units ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byUnit := m.entries[dismissalKey{fleetID, kind}]
	for _, unit := range units {
		delete(byUnit, unit)
	}
	return nil
}
