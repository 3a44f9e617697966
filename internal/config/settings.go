package config

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrInvalidSettings = errors.New("invalid settings")

// Thresholds are the runtime-tunable engine parameters
type Thresholds struct {
	StopMinutes        float64 `json:"stop_minutes"`
	SpeedKph           float64 `json:"speed_kph"`
	GPSFaultOnMinutes  float64 `json:"gps_fault_on_minutes"`
	GPSFaultOffMinutes float64 `json:"gps_fault_off_minutes"`
	RefreshSeconds     int     `json:"refresh_seconds"`
	ZoneRadiusKm       float64 `json:"zone_radius_km"`
}

var DefaultThresholds = Thresholds{
	StopMinutes:        7,
	SpeedKph:           70,
	GPSFaultOnMinutes:  30,
	GPSFaultOffMinutes: 720,
	RefreshSeconds:     5,
	ZoneRadiusKm:       0.2,
}

func (t Thresholds) RefreshInterval() time.Duration {
	return time.Duration(t.RefreshSeconds) * time.Second
}

func (t Thresholds) Validate() error {
	if t.StopMinutes <= 0 {
		return fmt.Errorf("%w: stop_minutes must be positive, got %v", ErrInvalidSettings, t.StopMinutes)
	}
	if t.SpeedKph <= 0 {
		return fmt.Errorf("%w: speed_kph must be positive, got %v", ErrInvalidSettings, t.SpeedKph)
	}
	if t.GPSFaultOnMinutes <= 0 || t.GPSFaultOffMinutes <= 0 {
		return fmt.Errorf("%w: gps fault thresholds must be positive", ErrInvalidSettings)
	}
	if t.RefreshSeconds < 1 || t.RefreshSeconds > 3600 {
		return fmt.Errorf("%w: refresh_seconds must be between 1 and 3600, got %d", ErrInvalidSettings, t.RefreshSeconds)
	}
	if t.ZoneRadiusKm <= 0 || t.ZoneRadiusKm > 50 {
		return fmt.Errorf("%w: zone_radius_km must be in (0, 50], got %v", ErrInvalidSettings, t.ZoneRadiusKm)
	}
	return nil
}

// ThresholdsPatch carries a partial update; nil fields are left unchanged
type ThresholdsPatch struct {
	StopMinutes        *float64 `json:"stop_minutes,omitempty"`
	SpeedKph           *float64 `json:"speed_kph,omitempty"`
	GPSFaultOnMinutes  *float64 `json:"gps_fault_on_minutes,omitempty"`
	GPSFaultOffMinutes *float64 `json:"gps_fault_off_minutes,omitempty"`
	RefreshSeconds     *int     `json:"refresh_seconds,omitempty"`
	ZoneRadiusKm       *float64 `json:"zone_radius_km,omitempty"`
}

func (p ThresholdsPatch) apply(t Thresholds) Thresholds {
	if p.StopMinutes != nil {
		t.StopMinutes = *p.StopMinutes
	}
	if p.SpeedKph != nil {
		t.SpeedKph = *p.SpeedKph
	}
	if p.GPSFaultOnMinutes != nil {
		t.GPSFaultOnMinutes = *p.GPSFaultOnMinutes
	}
	if p.GPSFaultOffMinutes != nil {
		t.GPSFaultOffMinutes = *p.GPSFaultOffMinutes
	}
	if p.RefreshSeconds != nil {
		t.RefreshSeconds = *p.RefreshSeconds
	}
	if p.ZoneRadiusKm != nil {
		t.ZoneRadiusKm = *p.ZoneRadiusKm
	}
	return t
}

// Settings holds the live thresholds shared by the poller and the HTTP API.
// Readers take a copy, so a cycle always sees one consistent set.
type Settings struct {
	mu        sync.RWMutex
	current   Thresholds
	version   int64
	listeners []func(Thresholds)
}

func NewSettings(initial Thresholds) *Settings {
	return &Settings{current: initial}
}

// Get returns a copy of the current thresholds
func (s *Settings) Get() Thresholds {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Version increments on every successful update
func (s *Settings) Version() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// OnChange registers a callback invoked after each successful update
func (s *Settings) OnChange(fn func(Thresholds)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Update validates and applies a patch. Invalid patches leave the settings untouched.
func (s *Settings) Update(p ThresholdsPatch) (Thresholds, error) {
	s.mu.Lock()
	next := p.apply(s.current)
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return s.Get(), err
	}
	s.current = next
	s.version++
	listeners := append([]func(Thresholds){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
	return next, nil
}
