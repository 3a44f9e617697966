package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fleetwatch-backend/internal/config"
	"fleetwatch-backend/internal/models"
)

var t0 = time.Date(2025, 9, 30, 10, 0, 0, 0, time.UTC)

func onRoute(speed float64) models.ClassifiedUnit {
	return models.ClassifiedUnit{
		UnitSample:   models.UnitSample{UnitName: "C-07", UnitID: "7", SpeedKph: speed, IgnitionOn: true},
		DisplayState: models.StateOnRouteOn,
	}
}

func atBase(speed float64) models.ClassifiedUnit {
	u := onRoute(speed)
	u.InHomeBase = true
	u.DisplayState = models.StateOnAtBase
	return u
}

func TestStopState(t *testing.T) {
	t.Run("repeated stopped observations keep last move time", func(t *testing.T) {
		var s StopState
		s.Seed(t0)
		now := t0.Add(3 * time.Minute)
		r1 := s.Observe(onRoute(0), now, 10, config.StopLogArming)
		r2 := s.Observe(onRoute(0), now, 10, config.StopLogArming)
		assert.Equal(t, t0, s.LastMoveTime)
		assert.Equal(t, r1.StopDuration, r2.StopDuration)
		assert.Equal(t, 3*time.Minute, r2.StopDuration)
		assert.Equal(t, StopStopped, s.Phase)
	})

	t.Run("movement resets the stop timer", func(t *testing.T) {
		var s StopState
		s.Seed(t0)
		s.Observe(onRoute(0), t0.Add(5*time.Minute), 10, config.StopLogArming)
		moved := s.Observe(onRoute(20), t0.Add(6*time.Minute), 10, config.StopLogArming)
		assert.True(t, moved.Moving)
		assert.Equal(t, StopMoving, s.Phase)
		r := s.Observe(onRoute(0), t0.Add(6*time.Minute), 10, config.StopLogArming)
		assert.Zero(t, r.StopDuration)
	})

	t.Run("one kph is not movement", func(t *testing.T) {
		var s StopState
		s.Seed(t0)
		r := s.Observe(onRoute(1.0), t0.Add(time.Minute), 10, config.StopLogArming)
		assert.False(t, r.Moving)
		assert.Equal(t, time.Minute, r.StopDuration)
	})

	t.Run("arms once out of HQ and logs arming duration", func(t *testing.T) {
		var s StopState
		s.Seed(t0)
		r := s.Observe(onRoute(0), t0.Add(11*time.Minute), 10, config.StopLogArming)
		assert.True(t, r.Armed)
		assert.InDelta(t, 11, s.ArmedMinutes, 1e-9)

		r = s.Observe(onRoute(0), t0.Add(15*time.Minute), 10, config.StopLogArming)
		assert.False(t, r.Armed, "arming is reported once")
		assert.InDelta(t, 11, s.ArmedMinutes, 1e-9, "armed minutes are not refreshed")

		r = s.Observe(onRoute(25), t0.Add(16*time.Minute), 10, config.StopLogArming)
		assert.True(t, r.Ended)
		assert.InDelta(t, 11, r.EndedMinutes, 1e-9)
		assert.Zero(t, s.ArmedMinutes)
	})

	t.Run("move policy logs full duration", func(t *testing.T) {
		var s StopState
		s.Seed(t0)
		s.Observe(onRoute(0), t0.Add(11*time.Minute), 10, config.StopLogMove)
		r := s.Observe(onRoute(25), t0.Add(16*time.Minute), 10, config.StopLogMove)
		assert.True(t, r.Ended)
		assert.InDelta(t, 16, r.EndedMinutes, 1e-9)
	})

	t.Run("never arms inside a zone", func(t *testing.T) {
		var s StopState
		s.Seed(t0)
		r := s.Observe(atBase(0), t0.Add(60*time.Minute), 10, config.StopLogArming)
		assert.False(t, r.Armed)
		assert.Equal(t, StopStopped, s.Phase)
		r = s.Observe(atBase(10), t0.Add(61*time.Minute), 10, config.StopLogArming)
		assert.False(t, r.Ended)
	})
}

func TestSpeedState(t *testing.T) {
	t.Run("short spike is not logged", func(t *testing.T) {
		var s SpeedState
		r := s.Observe(onRoute(90), t0, 70)
		assert.True(t, r.Started)
		r = s.Observe(onRoute(30), t0.Add(5*time.Second), 70)
		assert.True(t, r.Ended)
		assert.False(t, r.Logged)
		assert.False(t, s.Open())
		assert.Zero(t, s.Peak)
	})

	t.Run("twenty second episode is logged once", func(t *testing.T) {
		var s SpeedState
		s.Observe(onRoute(75), t0, 70)
		r := s.Observe(onRoute(88), t0.Add(10*time.Second), 70)
		assert.False(t, r.Started)
		assert.Equal(t, 88.0, r.PeakKph)
		s.Observe(onRoute(80), t0.Add(15*time.Second), 70)

		r = s.Observe(onRoute(40), t0.Add(20*time.Second), 70)
		assert.True(t, r.Logged)
		assert.Equal(t, 88.0, r.PeakKph)
		assert.InDelta(t, 20.0/60, r.DurationMinutes, 1e-9)

		r = s.Observe(onRoute(40), t0.Add(25*time.Second), 70)
		assert.False(t, r.Ended)
	})

	t.Run("threshold is inclusive", func(t *testing.T) {
		var s SpeedState
		r := s.Observe(onRoute(70), t0, 70)
		assert.True(t, r.Speeding)
	})

	t.Run("entering a zone ends the episode", func(t *testing.T) {
		var s SpeedState
		s.Observe(onRoute(95), t0, 70)
		r := s.Observe(atBase(95), t0.Add(time.Minute), 70)
		assert.True(t, r.Ended)
		assert.True(t, r.Logged)
	})
}

func TestTrackerStore(t *testing.T) {
	store := NewTrackerStore()
	calls := 0
	store.Update("7", t0, func(s *UnitTrackerState, created bool) {
		calls++
		assert.True(t, created)
		s.Stop.Seed(t0)
	})
	store.Update("7", t0.Add(time.Minute), func(s *UnitTrackerState, created bool) {
		calls++
		assert.False(t, created)
	})
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, store.Len())

	got, ok := store.Get("7")
	assert.True(t, ok)
	assert.Equal(t, t0, got.FirstSeen)
	assert.Equal(t, t0.Add(time.Minute), got.LastSeen)

	_, ok = store.Get("missing")
	assert.False(t, ok)
}

func TestEventLogRecent(t *testing.T) {
	l := NewEventLog()
	for i := 0; i < 5; i++ {
		l.Append(models.EventLogEntry{FleetID: "f", Unit: string(rune('a' + i))})
	}
	l.Append(models.EventLogEntry{FleetID: "other", Unit: "z"})

	recent := l.Recent("f", 3)
	assert.Equal(t, []string{"e", "d", "c"}, []string{recent[0].Unit, recent[1].Unit, recent[2].Unit})
	assert.Len(t, l.Recent("f", 0), 5)
	assert.Equal(t, 5, l.Len("f"))
	assert.Empty(t, l.Recent("none", 10))
}
