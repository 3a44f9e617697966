package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"fleetwatch-backend/internal/models"
	"fleetwatch-backend/internal/monitor"
	"fleetwatch-backend/pkg/utils"
)

// ViewerHeader identifies a dashboard viewer when dismissals are per viewer
const ViewerHeader = "X-Viewer-ID"

// Broadcaster refreshes live viewers of a fleet after a change
type Broadcaster interface {
	BroadcastFleet(ctx context.Context, fleetID string)
}

type DismissRequest struct {
	Unit string `json:"unit"`
}

type DismissResponse struct {
	OK        bool   `json:"ok"`
	Dismissed int    `json:"dismissed"`
	Kind      string `json:"kind"`
}

// ListFleets returns the monitored fleets
func ListFleets(engine *monitor.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fleets := engine.Fleets()
		out := make([]models.FleetSummary, 0, len(fleets))
		for i := range fleets {
			if fleets[i].Enabled {
				out = append(out, fleets[i].ToSummary())
			}
		}
		utils.JSON(w, http.StatusOK, out)
	}
}

// GetLegend returns the display state color legend
func GetLegend() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		utils.JSON(w, http.StatusOK, models.Legend())
	}
}

// GetDashboard renders the dashboard for one viewer
func GetDashboard(engine *monitor.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fleetID := chi.URLParam(r, "fleet")
		onRoute, _ := strconv.ParseBool(r.URL.Query().Get("on_route"))

		d, err := engine.Dashboard(r.Context(), fleetID, r.Header.Get(ViewerHeader), onRoute)
		if err != nil {
			log.Printf("❌ Dashboard for %s failed: %v", fleetID, err)
			utils.Error(w, http.StatusInternalServerError, "Failed to build dashboard")
			return
		}
		utils.JSON(w, http.StatusOK, d)
	}
}

// DismissAlert hides one unit's alert
func DismissAlert(engine *monitor.Engine, hub Broadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fleetID := chi.URLParam(r, "fleet")
		kind := models.AlertKind(chi.URLParam(r, "kind"))

		var req DismissRequest
		if err := utils.DecodeJSON(r, &req); err != nil {
			utils.Error(w, http.StatusBadRequest, err.Error())
			return
		}

		err := engine.Dismiss(r.Context(), fleetID, r.Header.Get(ViewerHeader), kind, strings.TrimSpace(req.Unit))
		if err != nil {
			respondEngineError(w, err)
			return
		}

		if hub != nil {
			hub.BroadcastFleet(r.Context(), fleetID)
		}
		utils.JSON(w, http.StatusOK, DismissResponse{OK: true, Dismissed: 1, Kind: string(kind)})
	}
}

// DismissAllAlerts hides every pending alert of a kind
func DismissAllAlerts(engine *monitor.Engine, hub Broadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fleetID := chi.URLParam(r, "fleet")
		kind := models.AlertKind(chi.URLParam(r, "kind"))

		n, err := engine.DismissAll(r.Context(), fleetID, r.Header.Get(ViewerHeader), kind)
		if err != nil {
			respondEngineError(w, err)
			return
		}

		if hub != nil {
			hub.BroadcastFleet(r.Context(), fleetID)
		}
		utils.JSON(w, http.StatusOK, DismissResponse{OK: true, Dismissed: n, Kind: string(kind)})
	}
}

// ListEvents returns the most recent event log entries for a fleet
func ListEvents(engine *monitor.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fleetID := chi.URLParam(r, "fleet")
		if _, ok := engine.Fleet(fleetID); !ok {
			utils.Error(w, http.StatusNotFound, "Fleet not found")
			return
		}

		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				utils.Error(w, http.StatusBadRequest, "limit must be a non-negative integer")
				return
			}
			limit = n
		}

		utils.JSON(w, http.StatusOK, engine.Events(fleetID, limit))
	}
}

func respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, monitor.ErrUnknownFleet):
		utils.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, monitor.ErrInvalidAlertKind), errors.Is(err, monitor.ErrUnitRequired):
		utils.Error(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("❌ Dismissal failed: %v", err)
		utils.Error(w, http.StatusInternalServerError, "Failed to update dismissals")
	}
}
