package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"fleetwatch-backend/internal/config"
	"fleetwatch-backend/internal/middleware"
	"fleetwatch-backend/internal/models"
	"fleetwatch-backend/internal/monitor"
)

var t0 = time.Date(2025, 9, 30, 12, 0, 0, 0, time.UTC)

type recordingHub struct {
	mu     sync.Mutex
	fleets []string
}

func (h *recordingHub) BroadcastFleet(_ context.Context, fleetID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fleets = append(h.fleets, fleetID)
}

func newEngine(t *testing.T, scope config.DismissalScope) *monitor.Engine {
	t.Helper()
	th := config.DefaultThresholds
	th.SpeedKph = 70
	e := monitor.NewEngine(monitor.EngineOptions{
		Settings:       config.NewSettings(th),
		DismissalScope: scope,
		Location:       time.UTC,
	})
	e.AddFleet(models.Fleet{
		ID:      "norte",
		Name:    "Flota Norte",
		UnitIDs: []string{"1", "2"},
		Zones: models.ZoneSet{
			HomeBase: []models.Zone{{Label: "Sede", Latitude: 10.4806, Longitude: -66.9036}},
		},
		Enabled: true,
	})
	e.AddFleet(models.Fleet{ID: "apagada", Name: "Apagada", UnitIDs: []string{"9"}})

	sample := func(name, id string, speed float64) models.UnitSample {
		return models.UnitSample{
			UnitName:       name,
			UnitID:         id,
			IgnitionOn:     true,
			SpeedKph:       speed,
			Latitude:       10.55,
			Longitude:      -66.80,
			LastReportTime: t0.Format(monitor.ReportTimeLayout),
			LocationText:   "Autopista",
		}
	}
	_, err := e.Process(context.Background(), "norte", models.Snapshot{
		FleetID:   "norte",
		Units:     []models.UnitSample{sample("C-07", "1", 95), sample("C-08", "2", 82)},
		FetchedAt: t0,
	}, t0)
	require.NoError(t, err)
	return e
}

func newRouter(e *monitor.Engine, hub Broadcaster) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/fleets", ListFleets(e))
	r.Get("/api/fleets/{fleet}/dashboard", GetDashboard(e))
	r.Get("/api/fleets/{fleet}/events", ListEvents(e))
	r.Post("/api/fleets/{fleet}/alerts/{kind}/dismiss", DismissAlert(e, hub))
	r.Post("/api/fleets/{fleet}/alerts/{kind}/dismiss-all", DismissAllAlerts(e, hub))
	return r
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestListFleetsHidesDisabled(t *testing.T) {
	rec := do(t, newRouter(newEngine(t, config.DismissalGlobal), nil), http.MethodGet, "/api/fleets", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	fleets := decode[[]models.FleetSummary](t, rec)
	require.Len(t, fleets, 1)
	assert.Equal(t, models.FleetSummary{ID: "norte", Name: "Flota Norte", UnitCount: 2, ZoneCount: 1}, fleets[0])
}

func TestGetDashboard(t *testing.T) {
	router := newRouter(newEngine(t, config.DismissalGlobal), nil)

	rec := do(t, router, http.MethodGet, "/api/fleets/norte/dashboard?on_route=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	d := decode[models.Dashboard](t, rec)
	assert.Equal(t, models.DashboardOK, d.Status)
	assert.True(t, d.OnRouteOnly)
	require.Len(t, d.SpeedAlerts, 2)
	assert.Equal(t, "C-07", d.SpeedAlerts[0].UnitName, "fastest first")

	rec = do(t, router, http.MethodGet, "/api/fleets/ghost/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.DashboardIdle, decode[models.Dashboard](t, rec).Status)
}

func TestDismissAlert(t *testing.T) {
	hub := &recordingHub{}
	router := newRouter(newEngine(t, config.DismissalViewer), hub)
	viewer := "6f1c1d6e-3f7c-4a7e-9a4e-0c1c6f0b8a11"

	rec := do(t, router, http.MethodPost, "/api/fleets/norte/alerts/speed/dismiss",
		DismissRequest{Unit: "C-07"}, ViewerHeader, viewer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"norte"}, hub.fleets)

	rec = do(t, router, http.MethodGet, "/api/fleets/norte/dashboard", nil, ViewerHeader, viewer)
	d := decode[models.Dashboard](t, rec)
	require.Len(t, d.SpeedAlerts, 1)
	assert.Equal(t, "C-08", d.SpeedAlerts[0].UnitName)

	rec = do(t, router, http.MethodGet, "/api/fleets/norte/dashboard", nil, ViewerHeader, "someone-else")
	assert.Len(t, decode[models.Dashboard](t, rec).SpeedAlerts, 2, "other viewers keep their alerts")
}

func TestDismissAlertErrors(t *testing.T) {
	router := newRouter(newEngine(t, config.DismissalGlobal), &recordingHub{})

	tests := []struct {
		name string
		path string
		body interface{}
		code int
	}{
		{"unknown fleet", "/api/fleets/ghost/alerts/stop/dismiss", DismissRequest{Unit: "C-07"}, http.StatusNotFound},
		{"bad kind", "/api/fleets/norte/alerts/fuel/dismiss", DismissRequest{Unit: "C-07"}, http.StatusBadRequest},
		{"blank unit", "/api/fleets/norte/alerts/stop/dismiss", DismissRequest{Unit: "  "}, http.StatusBadRequest},
		{"unknown field", "/api/fleets/norte/alerts/stop/dismiss", map[string]string{"units": "C-07"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.code, rec.Code)
			assert.Contains(t, rec.Body.String(), `"success":false`)
		})
	}
}

func TestDismissAllAlerts(t *testing.T) {
	hub := &recordingHub{}
	router := newRouter(newEngine(t, config.DismissalGlobal), hub)

	rec := do(t, router, http.MethodPost, "/api/fleets/norte/alerts/speed/dismiss-all", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[DismissResponse](t, rec)
	assert.Equal(t, 2, resp.Dismissed)

	rec = do(t, router, http.MethodGet, "/api/fleets/norte/dashboard", nil)
	assert.Empty(t, decode[models.Dashboard](t, rec).SpeedAlerts)

	rec = do(t, router, http.MethodPost, "/api/fleets/norte/alerts/bogus/dismiss-all", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListEvents(t *testing.T) {
	router := newRouter(newEngine(t, config.DismissalGlobal), nil)

	rec := do(t, router, http.MethodGet, "/api/fleets/norte/events?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodGet, "/api/fleets/norte/events?limit=-1", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/api/fleets/ghost/events", nil).Code)
}

func TestUpdateSettings(t *testing.T) {
	settings := config.NewSettings(config.DefaultThresholds)
	var seen []config.Thresholds
	settings.OnChange(func(th config.Thresholds) { seen = append(seen, th) })

	t.Run("partial update without database", func(t *testing.T) {
		rec := do(t, UpdateSettings(settings, nil), http.MethodPatch, "/api/settings", map[string]float64{"speed_kph": 60})
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decode[SettingsResponse](t, rec)
		assert.Equal(t, 60.0, resp.Thresholds.SpeedKph)
		assert.Equal(t, config.DefaultThresholds.StopMinutes, resp.Thresholds.StopMinutes)
		assert.Equal(t, int64(1), resp.Version)
		require.Len(t, seen, 1)
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		rec := do(t, UpdateSettings(settings, nil), http.MethodPatch, "/api/settings", map[string]float64{"stop_minutes": -1})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, 60.0, settings.Get().SpeedKph)
		assert.Len(t, seen, 1)
	})

	t.Run("persisted when a database is configured", func(t *testing.T) {
		raw, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer raw.Close()
		mock.ExpectExec(`INSERT INTO settings`).WillReturnResult(sqlmock.NewResult(0, 1))

		rec := do(t, UpdateSettings(settings, sqlx.NewDb(raw, "postgres")), http.MethodPatch, "/api/settings", map[string]int{"refresh_seconds": 10})
		require.Equal(t, http.StatusOK, rec.Code)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	rec := do(t, GetSettings(settings), http.MethodGet, "/api/settings", nil)
	assert.Equal(t, 10, decode[SettingsResponse](t, rec).Thresholds.RefreshSeconds)
}

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secreto"), bcrypt.MinCost)
	require.NoError(t, err)
	auth := middleware.NewAuthenticator("secret", time.Hour)

	newDB := func(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
		raw, mock, err := sqlmock.New()
		require.NoError(t, err)
		t.Cleanup(func() { raw.Close() })
		return sqlx.NewDb(raw, "postgres"), mock
	}
	userRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "email", "password", "name", "role", "created_at"}).
			AddRow("u1", "admin@fleetwatch.local", string(hash), "Administrador", "admin", int64(0))
	}

	t.Run("valid credentials", func(t *testing.T) {
		db, mock := newDB(t)
		mock.ExpectQuery(`FROM users`).WithArgs("admin@fleetwatch.local").WillReturnRows(userRows())

		rec := do(t, Login(db, auth), http.MethodPost, "/api/auth/login",
			LoginRequest{Email: " Admin@Fleetwatch.local", Password: "secreto"})
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decode[LoginResponse](t, rec)
		assert.True(t, resp.OK)
		require.NotNil(t, resp.User)
		assert.Equal(t, models.RoleAdmin, resp.User.Role)

		claims, err := auth.ParseToken(resp.Token)
		require.NoError(t, err)
		assert.Equal(t, "u1", claims.UserID)
	})

	t.Run("wrong password", func(t *testing.T) {
		db, mock := newDB(t)
		mock.ExpectQuery(`FROM users`).WillReturnRows(userRows())

		rec := do(t, Login(db, auth), http.MethodPost, "/api/auth/login",
			LoginRequest{Email: "admin@fleetwatch.local", Password: "nope"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, decode[LoginResponse](t, rec).OK)
	})

	t.Run("unknown user", func(t *testing.T) {
		db, mock := newDB(t)
		mock.ExpectQuery(`FROM users`).WillReturnError(sql.ErrNoRows)

		rec := do(t, Login(db, auth), http.MethodPost, "/api/auth/login",
			LoginRequest{Email: "x@y.z", Password: "secreto"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("no database", func(t *testing.T) {
		rec := do(t, Login(nil, auth), http.MethodPost, "/api/auth/login", LoginRequest{})
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestGetStats(t *testing.T) {
	h := GetStats(map[string]StatsSource{
		"cache": func() interface{} { return map[string]int{"hits": 3} },
	})
	rec := do(t, h, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]interface{}](t, rec)
	assert.Contains(t, body, "uptime_seconds")
	assert.Equal(t, map[string]interface{}{"hits": 3.0}, body["cache"])
}

type recordingRefresher struct{ fleets, invalidated []string }

func (r *recordingRefresher) Trigger(fleetID string) { r.fleets = append(r.fleets, fleetID) }

func (r *recordingRefresher) Invalidate(fleetID string) {
	r.invalidated = append(r.invalidated, fleetID)
}

func TestPutFleet(t *testing.T) {
	e := newEngine(t, config.DismissalGlobal)
	refresher := &recordingRefresher{}
	r := chi.NewRouter()
	r.Put("/api/fleets/{fleet}", PutFleet(e, nil, refresher, refresher))

	body := map[string]interface{}{
		"name":     "Flota Sur",
		"unit_ids": []string{" 31", "32", "31"},
		"zones": map[string]interface{}{
			"home_base": []map[string]interface{}{{"label": "Patio", "latitude": 10.2, "longitude": -67.0}},
		},
	}
	rec := do(t, r, http.MethodPut, "/api/fleets/sur", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.FleetSummary{ID: "sur", Name: "Flota Sur", UnitCount: 2, ZoneCount: 1}, decode[models.FleetSummary](t, rec))
	assert.Equal(t, []string{"sur"}, refresher.fleets)
	assert.Equal(t, []string{"sur"}, refresher.invalidated)

	f, ok := e.Fleet("sur")
	require.True(t, ok)
	assert.Equal(t, []string{"31", "32"}, f.UnitIDs)
	assert.Equal(t, models.ZoneHomeBase, f.Zones.HomeBase[0].Kind)

	t.Run("fleet without zones is rejected", func(t *testing.T) {
		rec := do(t, r, http.MethodPut, "/api/fleets/vacia", map[string]interface{}{"name": "Vacia", "unit_ids": []string{"1"}})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		_, ok := e.Fleet("vacia")
		assert.False(t, ok)
	})
}

func TestCreateUser(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer raw.Close()
	db := sqlx.NewDb(raw, "postgres")

	t.Run("created", func(t *testing.T) {
		mock.ExpectQuery(`SELECT EXISTS`).WithArgs("ops@fleetwatch.local").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectExec(`INSERT INTO users`).WillReturnResult(sqlmock.NewResult(0, 1))

		rec := do(t, CreateUser(db), http.MethodPost, "/api/users",
			CreateUserRequest{Email: "Ops@fleetwatch.local", Password: "x", Name: "Operador", Role: models.RoleOperator})
		require.Equal(t, http.StatusCreated, rec.Code)
		resp := decode[CreateUserResponse](t, rec)
		assert.Equal(t, "ops@fleetwatch.local", resp.User.Email)
	})

	t.Run("duplicate", func(t *testing.T) {
		mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		rec := do(t, CreateUser(db), http.MethodPost, "/api/users",
			CreateUserRequest{Email: "ops@fleetwatch.local", Password: "x", Name: "Operador", Role: models.RoleOperator})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("driver role is not a dashboard role", func(t *testing.T) {
		rec := do(t, CreateUser(db), http.MethodPost, "/api/users",
			CreateUserRequest{Email: "d@x.y", Password: "x", Name: "D", Role: "driver"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}
