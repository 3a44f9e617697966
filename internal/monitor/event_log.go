package monitor

import (
	"sync"

	"fleetwatch-backend/internal/models"
)

// EventLog accumulates end-of-episode entries per fleet for the life of the process
type EventLog struct {
	mu      sync.RWMutex
	entries map[string][]models.EventLogEntry
}

func NewEventLog() *EventLog {
	return &EventLog{entries: make(map[string][]models.EventLogEntry)}
}

func (l *EventLog) Append(entries ...models.EventLogEntry) {
	if len(entries) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range entries {
		l.entries[e.FleetID] = append(l.entries[e.FleetID], e)
	}
}

// Recent returns up to n entries for the fleet, newest first
func (l *EventLog) Recent(fleetID string, n int) []models.EventLogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	all := l.entries[fleetID]
	if n <= 0 || n > len(all) {
		n = len(all)
	}
	out := make([]models.EventLogEntry, 0, n)
	for i := len(all) - 1; i >= len(all)-n; i-- {
		out = append(out, all[i])
	}
	return out
}

func (l *EventLog) Len(fleetID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries[fleetID])
}
