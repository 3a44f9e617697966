package monitor

import (
	"sync"
	"time"
)

// UnitTrackerState is the memory kept for one unit across cycles
type UnitTrackerState struct {
	Stop      StopState
	Speed     SpeedState
	FirstSeen time.Time
	LastSeen  time.Time
}

// TrackerStore holds tracker memory keyed by unit id for the life of the process.
// Entries are created on first sight and never removed.
type TrackerStore struct {
	mu    sync.Mutex
	units map[string]*UnitTrackerState
}

func NewTrackerStore() *TrackerStore {
	return &TrackerStore{units: make(map[string]*UnitTrackerState)}
}

// Update runs fn on the state for key, creating it first if needed.
// created tells fn whether this is the first sight of the unit.
func (s *TrackerStore) Update(key string, now time.Time, fn func(state *UnitTrackerState, created bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.units[key]
	if !ok {
		state = &UnitTrackerState{FirstSeen: now}
		s.units[key] = state
	}
	state.LastSeen = now
	fn(state, !ok)
}

// Get returns a copy of the state for key
func (s *TrackerStore) Get(key string) (UnitTrackerState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.units[key]
	if !ok {
		return UnitTrackerState{}, false
	}
	return *state, true
}

func (s *TrackerStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.units)
}
