package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"fleetwatch-backend/internal/config"
	"fleetwatch-backend/internal/geo"
	"fleetwatch-backend/internal/models"
)

var (
	ErrUnknownFleet = errors.New("unknown fleet")
	ErrUnitRequired = errors.New("unit is required")
)

// EngineOptions configures an Engine
type EngineOptions struct {
	Settings        *config.Settings
	Dismissals      DismissalStore
	DismissalScope  config.DismissalScope
	StopLogPolicy   config.StopLogPolicy
	Location        *time.Location
	EventLogDisplay int
}

// CycleResult is the outcome of the last processed snapshot for a fleet
type CycleResult struct {
	FleetID    string
	At         time.Time
	Fallback   bool
	Cause      string
	Units      []TrackedUnit
	Thresholds config.Thresholds
}

// CycleReport is returned from Process for the caller to fan out
type CycleReport struct {
	Result  CycleResult
	Notices []models.AlertNotice
	Events  []models.EventLogEntry
}

type fleetState struct {
	mu       sync.Mutex
	fleet    models.Fleet
	trackers *TrackerStore
	last     *CycleResult
}

// Engine classifies snapshots, runs the stop and speed trackers against
// shared per-unit memory and builds viewer dashboards. One Engine serves
// every viewer so all of them see the same timers.
type Engine struct {
	mu       sync.RWMutex
	fleets   map[string]*fleetState
	order    []string
	registry *Registry
	events   *EventLog
	settings *config.Settings
	policy   config.StopLogPolicy
	loc      *time.Location
	display  int
}

func NewEngine(opts EngineOptions) *Engine {
	if opts.Settings == nil {
		opts.Settings = config.NewSettings(config.DefaultThresholds)
	}
	if opts.Dismissals == nil {
		opts.Dismissals = NewMemoryDismissals()
	}
	if opts.DismissalScope == "" {
		opts.DismissalScope = config.DismissalGlobal
	}
	if opts.StopLogPolicy == "" {
		opts.StopLogPolicy = config.StopLogArming
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.EventLogDisplay <= 0 {
		opts.EventLogDisplay = 50
	}
	return &Engine{
		fleets:   make(map[string]*fleetState),
		registry: NewRegistry(opts.Dismissals, opts.DismissalScope),
		events:   NewEventLog(),
		settings: opts.Settings,
		policy:   opts.StopLogPolicy,
		loc:      opts.Location,
		display:  opts.EventLogDisplay,
	}
}

// AddFleet registers a fleet. Re-adding a known id replaces its zones and
// unit list but keeps tracker memory.
func (e *Engine) AddFleet(f models.Fleet) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if fs, ok := e.fleets[f.ID]; ok {
		fs.mu.Lock()
		fs.fleet = f
		fs.mu.Unlock()
		return
	}
	e.fleets[f.ID] = &fleetState{fleet: f, trackers: NewTrackerStore()}
	e.order = append(e.order, f.ID)
}

// Fleets returns the registered fleets in registration order
func (e *Engine) Fleets() []models.Fleet {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]models.Fleet, 0, len(e.order))
	for _, id := range e.order {
		fs := e.fleets[id]
		fs.mu.Lock()
		out = append(out, fs.fleet)
		fs.mu.Unlock()
	}
	return out
}

func (e *Engine) Fleet(id string) (models.Fleet, bool) {
	fs, ok := e.lookup(id)
	if !ok {
		return models.Fleet{}, false
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.fleet, true
}

func (e *Engine) lookup(id string) (*fleetState, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fs, ok := e.fleets[id]
	return fs, ok
}

func (e *Engine) Settings() *config.Settings {
	return e.settings
}

// Tracker returns a copy of the tracker memory for a unit
func (e *Engine) Tracker(fleetID, unitID string) (UnitTrackerState, bool) {
	fs, ok := e.lookup(fleetID)
	if !ok {
		return UnitTrackerState{}, false
	}
	return fs.trackers.Get(unitID)
}

// Process runs one refresh cycle for a fleet. Cycles for the same fleet are
// serialized. A fallback snapshot leaves tracker memory untouched.
func (e *Engine) Process(ctx context.Context, fleetID string, snap models.Snapshot, now time.Time) (*CycleReport, error) {
	fs, ok := e.lookup(fleetID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFleet, fleetID)
	}

	th := e.settings.Get()

	fs.mu.Lock()
	defer fs.mu.Unlock()

	result := CycleResult{
		FleetID:    fleetID,
		At:         now,
		Fallback:   snap.Fallback,
		Cause:      snap.Cause,
		Thresholds: th,
	}
	report := &CycleReport{}

	if snap.Fallback {
		result.Units = []TrackedUnit{}
		fs.last = &result
		report.Result = result
		return report, nil
	}

	var (
		badTimestamps []string
		moved         []string
		notSpeeding   []string
		seen          = make(map[string]bool, len(snap.Units))
	)
	result.Units = make([]TrackedUnit, 0, len(snap.Units))

	for _, sample := range snap.Units {
		key := sample.TrackerKey()
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		staleness := CheckStaleness(sample.LastReportTime, sample.IgnitionOn, now,
			th.GPSFaultOnMinutes, th.GPSFaultOffMinutes, e.loc)
		if !staleness.Parsed {
			badTimestamps = append(badTimestamps, sample.UnitName)
		}

		var zones geo.Membership
		if !staleness.IsFault {
			zones = geo.ClassifyZones(sample.Latitude, sample.Longitude, fs.fleet.Zones, th.ZoneRadiusKm)
		}
		unit := TrackedUnit{ClassifiedUnit: Classify(sample, zones, staleness)}

		fs.trackers.Update(key, now, func(state *UnitTrackerState, created bool) {
			if created {
				state.Stop.Seed(now)
				unit.Seeded = true
				unit.Moving = sample.SpeedKph > MovingSpeedKph
				return
			}

			stop := state.Stop.Observe(unit.ClassifiedUnit, now, th.StopMinutes, e.policy)
			speed := state.Speed.Observe(unit.ClassifiedUnit, now, th.SpeedKph)

			unit.Moving = stop.Moving
			unit.StopDuration = stop.StopDuration

			if stop.Moving {
				moved = append(moved, sample.UnitName)
			}
			if stop.Ended {
				report.Events = append(report.Events, e.stopEndEntry(fleetID, unit, stop.EndedMinutes, now))
			}
			if stop.Armed {
				report.Notices = append(report.Notices, e.notice(models.AlertStop, fs.fleet, unit, stop.StopDuration.Minutes(), now))
			}

			if !speed.Speeding && !stop.Moving {
				notSpeeding = append(notSpeeding, sample.UnitName)
			}
			if speed.Started {
				report.Notices = append(report.Notices, e.notice(models.AlertSpeed, fs.fleet, unit, 0, now))
			}
			if speed.Ended && speed.Logged {
				report.Events = append(report.Events, e.speedEndEntry(fleetID, unit, speed, now))
			}
		})

		result.Units = append(result.Units, unit)
	}

	if len(badTimestamps) > 0 {
		log.Printf("⚠️  [%s] Unparseable last report time for %d unit(s): %s",
			fleetID, len(badTimestamps), strings.Join(badTimestamps, ", "))
	}

	// Any movement re-arms both alert kinds; a unit that is neither moving
	// nor speeding re-arms its speed alert too
	if err := e.registry.Rearm(ctx, fleetID, models.AlertStop, moved...); err != nil {
		log.Printf("❌ [%s] Failed to clear stop dismissals: %v", fleetID, err)
	}
	speedRearm := append(append([]string(nil), moved...), notSpeeding...)
	if err := e.registry.Rearm(ctx, fleetID, models.AlertSpeed, speedRearm...); err != nil {
		log.Printf("❌ [%s] Failed to clear speed dismissals: %v", fleetID, err)
	}

	e.events.Append(report.Events...)
	for _, ev := range report.Events {
		log.Println(ev.Message)
	}

	fs.last = &result
	report.Result = result
	return report, nil
}

func (e *Engine) stopEndEntry(fleetID string, u TrackedUnit, minutes float64, now time.Time) models.EventLogEntry {
	name := DisplayName(u.UnitName)
	d := time.Duration(minutes * float64(time.Minute))
	return models.EventLogEntry{
		ID:              uuid.New().String(),
		FleetID:         fleetID,
		Time:            now,
		UnitID:          u.UnitID,
		Unit:            name,
		Kind:            models.EventStopEnd,
		DurationMinutes: minutes,
		Location:        u.LocationText,
		Message: fmt.Sprintf("🟢 %s | %s | Parada de %s | %s",
			now.In(e.loc).Format("15:04:05"), name, FormatStopDuration(d), u.LocationText),
	}
}

func (e *Engine) speedEndEntry(fleetID string, u TrackedUnit, res SpeedResult, now time.Time) models.EventLogEntry {
	name := DisplayName(u.UnitName)
	return models.EventLogEntry{
		ID:              uuid.New().String(),
		FleetID:         fleetID,
		Time:            now,
		UnitID:          u.UnitID,
		Unit:            name,
		Kind:            models.EventSpeedEnd,
		DurationMinutes: res.DurationMinutes,
		PeakSpeedKph:    res.PeakKph,
		Location:        u.LocationText,
		Message: fmt.Sprintf("🟡 %s | %s | Máx %.0f km/h | %.1f min | %s",
			now.In(e.loc).Format("15:04:05"), name, res.PeakKph, res.DurationMinutes, u.LocationText),
	}
}

func (e *Engine) notice(kind models.AlertKind, f models.Fleet, u TrackedUnit, stopMinutes float64, now time.Time) models.AlertNotice {
	return models.AlertNotice{
		Kind:         kind,
		FleetID:      f.ID,
		FleetName:    f.Name,
		UnitID:       u.UnitID,
		UnitName:     u.UnitName,
		DisplayName:  DisplayName(u.UnitName),
		SpeedKph:     u.SpeedKph,
		StopMinutes:  stopMinutes,
		LocationText: u.LocationText,
		Latitude:     u.Latitude,
		Longitude:    u.Longitude,
		Time:         now,
	}
}

// Last returns a copy of the last cycle result for a fleet
func (e *Engine) Last(fleetID string) (CycleResult, bool) {
	fs, ok := e.lookup(fleetID)
	if !ok {
		return CycleResult{}, false
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.last == nil {
		return CycleResult{}, false
	}
	return *fs.last, true
}

// Events returns up to n recent log entries for a fleet, newest first
func (e *Engine) Events(fleetID string, n int) []models.EventLogEntry {
	if n <= 0 {
		n = e.display
	}
	return e.events.Recent(fleetID, n)
}

// Dismiss hides one unit's alert for the viewer
func (e *Engine) Dismiss(ctx context.Context, fleetID, viewerID string, kind models.AlertKind, unitName string) error {
	if _, ok := e.lookup(fleetID); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFleet, fleetID)
	}
	if strings.TrimSpace(unitName) == "" {
		return ErrUnitRequired
	}
	return e.registry.Dismiss(ctx, fleetID, viewerID, kind, unitName)
}

// DismissAll hides every alert of kind currently pending for the viewer
func (e *Engine) DismissAll(ctx context.Context, fleetID, viewerID string, kind models.AlertKind) (int, error) {
	if !kind.IsValid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAlertKind, kind)
	}
	last, ok := e.Last(fleetID)
	if !ok {
		if _, known := e.lookup(fleetID); !known {
			return 0, fmt.Errorf("%w: %q", ErrUnknownFleet, fleetID)
		}
		return 0, nil
	}

	var units []string
	switch kind {
	case models.AlertStop:
		pending, err := e.registry.PendingStop(ctx, fleetID, viewerID, last.Units, last.Thresholds)
		if err != nil {
			return 0, err
		}
		for _, a := range pending {
			units = append(units, a.UnitName)
		}
	case models.AlertSpeed:
		pending, err := e.registry.PendingSpeed(ctx, fleetID, viewerID, last.Units, last.Thresholds)
		if err != nil {
			return 0, err
		}
		for _, a := range pending {
			units = append(units, a.UnitName)
		}
	}

	if err := e.registry.Dismiss(ctx, fleetID, viewerID, kind, units...); err != nil {
		return 0, err
	}
	return len(units), nil
}

// Dashboard builds the payload for one viewer from the last cycle.
// An unknown fleet yields the idle dashboard.
func (e *Engine) Dashboard(ctx context.Context, fleetID, viewerID string, onRouteOnly bool) (models.Dashboard, error) {
	fleet, ok := e.Fleet(fleetID)
	if !ok {
		return models.IdleDashboard(fleetID, time.Now()), nil
	}

	d := models.Dashboard{
		FleetID:     fleet.ID,
		FleetName:   fleet.Name,
		Status:      models.DashboardOK,
		OnRouteOnly: onRouteOnly,
		GeneratedAt: time.Now(),
		Units:       []models.UnitView{},
		StopAlerts:  []models.StopAlert{},
		SpeedAlerts: []models.SpeedAlert{},
		Events:      e.Events(fleetID, e.display),
		Legend:      models.Legend(),
	}

	last, ok := e.Last(fleetID)
	if !ok {
		d.Subtitle = "Esperando datos del GPS"
		return d, nil
	}
	d.GeneratedAt = last.At

	if last.Fallback {
		d.Status = models.DashboardError
		d.Error = "FALLBACK - " + last.Cause
		d.Subtitle = "Sin conexión con el proveedor GPS"
		return d, nil
	}

	stops, err := e.registry.PendingStop(ctx, fleetID, viewerID, last.Units, last.Thresholds)
	if err != nil {
		return d, err
	}
	speeds, err := e.registry.PendingSpeed(ctx, fleetID, viewerID, last.Units, last.Thresholds)
	if err != nil {
		return d, err
	}
	d.StopAlerts = stops
	d.SpeedAlerts = speeds
	d.Audio = models.AudioCue{Stop: len(stops) > 0, Speed: len(speeds) > 0}
	d.Metrics = ComputeMetrics(last.Units)

	for _, u := range last.Units {
		if onRouteOnly && !u.OutOfHQ() {
			continue
		}
		d.Units = append(d.Units, BuildUnitView(u, last.Thresholds))
	}
	sort.SliceStable(d.Units, func(i, j int) bool {
		return d.Units[i].UnitName < d.Units[j].UnitName
	})

	if onRouteOnly {
		d.Subtitle = fmt.Sprintf("Unidades en Ruta (%d)", len(d.Units))
	} else {
		d.Subtitle = fmt.Sprintf("Todas las unidades (%d)", len(d.Units))
	}
	return d, nil
}

// BuildUnitView adds the rendering fields for one unit
func BuildUnitView(u TrackedUnit, th config.Thresholds) models.UnitView {
	v := models.UnitView{
		ClassifiedUnit:      u.ClassifiedUnit,
		DisplayName:         DisplayName(u.UnitName),
		StateLabel:          u.DisplayState.Label(),
		Color:               u.DisplayState.Color(),
		StopDurationMinutes: u.StopDuration.Minutes(),
		StopDurationText:    FormatStopDuration(u.StopDuration),
		IsStopAlertActive:   StopAlertActive(u, th),
		IsSpeedAlertActive:  SpeedAlertActive(u, th),
		SpeedBand:           SpeedBand(u.SpeedKph, th.SpeedKph),
	}
	if v.IsStopAlertActive {
		v.Color = models.StopHighlightColor
	}
	return v
}

// SpeedBand is "excess" above threshold+4 kph and "warning" above the threshold
func SpeedBand(speedKph, thresholdKph float64) string {
	switch {
	case speedKph > thresholdKph+4:
		return models.SpeedBandExcess
	case speedKph > thresholdKph:
		return models.SpeedBandWarning
	default:
		return models.SpeedBandNone
	}
}

func ComputeMetrics(units []TrackedUnit) models.FleetMetrics {
	m := models.FleetMetrics{Total: len(units)}
	for _, u := range units {
		if u.IgnitionOn {
			m.IgnitionOn++
		} else {
			m.IgnitionOff++
		}
		if u.IsSheltered() {
			m.Sheltered++
		}
		if u.InDisposalSite {
			m.AtDisposal++
		}
		if u.IsGPSFault {
			m.GPSFaults++
		}
		if u.Moving {
			m.Moving++
		}
	}
	return m
}
