package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetwatch-backend/internal/config"
	"fleetwatch-backend/internal/models"
)

func tracked(name string, speed float64, stopped time.Duration, outOfHQ bool) TrackedUnit {
	u := TrackedUnit{
		ClassifiedUnit: models.ClassifiedUnit{
			UnitSample:   models.UnitSample{UnitName: name, UnitID: name, SpeedKph: speed},
			DisplayState: models.StateOnRouteOn,
		},
		StopDuration: stopped,
	}
	if !outOfHQ {
		u.InSecondaryHolding = true
		u.DisplayState = models.StateShelteredSecondary
	}
	return u
}

func TestRegistryPending(t *testing.T) {
	ctx := context.Background()
	th := thresholds(10, 70)
	r := NewRegistry(NewMemoryDismissals(), config.DismissalGlobal)

	units := []TrackedUnit{
		tracked("short", 0, 9*time.Minute, true),
		tracked("long", 0, 40*time.Minute, true),
		tracked("mid", 0, 15*time.Minute, true),
		tracked("parked", 0, 90*time.Minute, false),
		tracked("fast", 110, 0, true),
		tracked("limit", 70, 0, true),
		tracked("yard-fast", 120, 0, false),
	}

	stops, err := r.PendingStop(ctx, "f", "", units, th)
	require.NoError(t, err)
	require.Len(t, stops, 2)
	assert.Equal(t, "long", stops[0].UnitName)
	assert.Equal(t, "mid", stops[1].UnitName)

	speeds, err := r.PendingSpeed(ctx, "f", "", units, th)
	require.NoError(t, err)
	require.Len(t, speeds, 2)
	assert.Equal(t, "fast", speeds[0].UnitName)
	assert.Equal(t, "limit", speeds[1].UnitName)

	t.Run("dismiss and rearm", func(t *testing.T) {
		require.NoError(t, r.Dismiss(ctx, "f", "", models.AlertStop, "long"))
		stops, err := r.PendingStop(ctx, "f", "", units, th)
		require.NoError(t, err)
		require.Len(t, stops, 1)
		assert.Equal(t, "mid", stops[0].UnitName)

		other, err := r.PendingStop(ctx, "other-fleet", "", units, th)
		require.NoError(t, err)
		assert.Len(t, other, 2, "dismissals are per fleet")

		require.NoError(t, r.Rearm(ctx, "f", models.AlertStop, "long"))
		stops, err = r.PendingStop(ctx, "f", "", units, th)
		require.NoError(t, err)
		assert.Len(t, stops, 2)
	})
}

func TestRegistryScopes(t *testing.T) {
	global := NewRegistry(NewMemoryDismissals(), config.DismissalGlobal)
	assert.Equal(t, GlobalScope, global.ScopeFor("abc"))

	viewer := NewRegistry(NewMemoryDismissals(), config.DismissalViewer)
	assert.Equal(t, "viewer:abc", viewer.ScopeFor("abc"))
	assert.Equal(t, "anonymous", viewer.ScopeFor(""))
}

func TestMemoryDismissalsClearAllScopes(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryDismissals()
	require.NoError(t, m.Dismiss(ctx, "f", models.AlertSpeed, "viewer:a", "U1", "U2"))
	require.NoError(t, m.Dismiss(ctx, "f", models.AlertSpeed, "viewer:b", "U1"))

	require.NoError(t, m.Clear(ctx, "f", models.AlertSpeed, "U1"))

	a, err := m.Dismissed(ctx, "f", models.AlertSpeed, "viewer:a")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"U2": true}, a)

	b, err := m.Dismissed(ctx, "f", models.AlertSpeed, "viewer:b")
	require.NoError(t, err)
	assert.Empty(t, b)

	assert.NoError(t, m.Clear(ctx, "missing", models.AlertStop, "U9"))
}

func TestSpeedBand(t *testing.T) {
	assert.Equal(t, models.SpeedBandNone, SpeedBand(70, 70))
	assert.Equal(t, models.SpeedBandWarning, SpeedBand(72, 70))
	assert.Equal(t, models.SpeedBandExcess, SpeedBand(74.5, 70))
}
