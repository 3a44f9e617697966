package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetwatch-backend/internal/models"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DefaultForesightURL, cfg.ForesightURL)
	assert.Equal(t, 5*time.Second, cfg.ForesightTimeout)
	assert.Equal(t, 5*time.Second, cfg.SnapshotCacheTTL)
	assert.Equal(t, DefaultThresholds, cfg.Thresholds)
	assert.Equal(t, DismissalGlobal, cfg.DismissalScope)
	assert.Equal(t, StopLogArming, cfg.StopLogPolicy)
	assert.Equal(t, "America/Caracas", cfg.Location().String())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("STOP_THRESHOLD_MINUTES", "10")
	t.Setenv("SPEED_THRESHOLD_KPH", "80.5")
	t.Setenv("REFRESH_INTERVAL_SECONDS", "15")
	t.Setenv("DISMISSAL_SCOPE", "viewer")
	t.Setenv("STOP_LOG_POLICY", "move")
	t.Setenv("ALERT_EMAIL_TO", "ops@example.com, , jefe@example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10.0, cfg.Thresholds.StopMinutes)
	assert.Equal(t, 80.5, cfg.Thresholds.SpeedKph)
	assert.Equal(t, 15, cfg.Thresholds.RefreshSeconds)
	assert.Equal(t, DismissalViewer, cfg.DismissalScope)
	assert.Equal(t, StopLogMove, cfg.StopLogPolicy)
	assert.Equal(t, []string{"ops@example.com", "jefe@example.com"}, cfg.AlertEmailTo)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"dismissal scope", "DISMISSAL_SCOPE", "per-team"},
		{"stop log policy", "STOP_LOG_POLICY", "sometimes"},
		{"timezone", "TIMEZONE", "Mars/Olympus"},
		{"negative stop threshold", "STOP_THRESHOLD_MINUTES", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestGetEnvFallbacks(t *testing.T) {
	t.Setenv("FW_TEST_INT", "not-a-number")
	t.Setenv("FW_TEST_FLOAT", "1.5x")
	assert.Equal(t, 7, getEnvInt("FW_TEST_INT", 7))
	assert.Equal(t, 2.5, getEnvFloat("FW_TEST_FLOAT", 2.5))
	assert.Equal(t, "x", getEnv("FW_TEST_UNSET", "x"))
}

func TestSettings_Update(t *testing.T) {
	s := NewSettings(DefaultThresholds)

	var seen []Thresholds
	s.OnChange(func(th Thresholds) { seen = append(seen, th) })

	stop := 12.0
	got, err := s.Update(ThresholdsPatch{StopMinutes: &stop})
	require.NoError(t, err)
	assert.Equal(t, 12.0, got.StopMinutes)
	assert.Equal(t, DefaultThresholds.SpeedKph, got.SpeedKph)
	assert.Equal(t, int64(1), s.Version())
	require.Len(t, seen, 1)
	assert.Equal(t, got, seen[0])

	t.Run("invalid patch leaves settings untouched", func(t *testing.T) {
		radius := 0.0
		_, err := s.Update(ThresholdsPatch{ZoneRadiusKm: &radius})
		assert.ErrorIs(t, err, ErrInvalidSettings)
		assert.Equal(t, 12.0, s.Get().StopMinutes)
		assert.Equal(t, DefaultThresholds.ZoneRadiusKm, s.Get().ZoneRadiusKm)
		assert.Equal(t, int64(1), s.Version())
		assert.Len(t, seen, 1)
	})
}

func TestThresholds_Validate(t *testing.T) {
	assert.NoError(t, DefaultThresholds.Validate())

	bad := DefaultThresholds
	bad.RefreshSeconds = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidSettings)

	bad = DefaultThresholds
	bad.GPSFaultOffMinutes = -5
	assert.ErrorIs(t, bad.Validate(), ErrInvalidSettings)
}

func writeFleetsFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fleets.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFleetsFile(t *testing.T) {
	path := writeFleetsFile(t, `{
		"fleets": [
			{
				"name": "Flota Norte",
				"unit_ids": ["101", " 102 ", "101", ""],
				"zones": {
					"home_base": [{"label": "Sede", "latitude": 10.4806, "longitude": -66.9036}],
					"disposal_site": [{"label": "La Bonanza", "latitude": 10.35, "longitude": -66.75}]
				}
			}
		]
	}`)

	fleets, err := LoadFleetsFile(path)
	require.NoError(t, err)
	require.Len(t, fleets, 1)

	want := models.Fleet{
		ID:      "flota-norte",
		Name:    "Flota Norte",
		UnitIDs: []string{"101", "102"},
		Enabled: true,
		Zones: models.ZoneSet{
			HomeBase:      []models.Zone{{Kind: models.ZoneHomeBase, Label: "Sede", Latitude: 10.4806, Longitude: -66.9036}},
			DisposalSites: []models.Zone{{Kind: models.ZoneDisposalSite, Label: "La Bonanza", Latitude: 10.35, Longitude: -66.75}},
		},
	}
	if diff := cmp.Diff(want, fleets[0]); diff != "" {
		t.Errorf("fleet mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFleetsFile_Rejects(t *testing.T) {
	t.Run("wrong extension", func(t *testing.T) {
		_, err := LoadFleetsFile("fleets.yaml")
		assert.Error(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := LoadFleetsFile(writeFleetsFile(t, `{"fleets": [`))
		assert.Error(t, err)
	})
}

func TestFilterValidFleets(t *testing.T) {
	good := models.Fleet{
		ID:      "norte",
		Name:    "Norte",
		UnitIDs: []string{"1"},
		Zones:   models.ZoneSet{HomeBase: []models.Zone{{Latitude: 10, Longitude: -66}}},
	}
	noUnits := good
	noUnits.ID, noUnits.UnitIDs = "vacia", nil
	noZones := good
	noZones.ID, noZones.Zones = "sin-zonas", models.ZoneSet{}
	badCoords := good
	badCoords.ID = "mala"
	badCoords.Zones = models.ZoneSet{HomeBase: []models.Zone{{Latitude: 100, Longitude: 0}}}

	valid, err := FilterValidFleets([]models.Fleet{good, noUnits, noZones, badCoords, good})
	require.NoError(t, err)
	require.Len(t, valid, 1)
	assert.Equal(t, "norte", valid[0].ID)

	_, err = FilterValidFleets([]models.Fleet{noUnits, noZones})
	assert.ErrorIs(t, err, ErrNoFleets)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "flota-norte", Slug("Flota Norte"))
	assert.Equal(t, "aseo-urbano-2", Slug("  Aseo Urbano #2 "))
	assert.Equal(t, "camión", Slug("Camión"))
}
