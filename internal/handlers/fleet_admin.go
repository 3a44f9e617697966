package handlers

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"

	"fleetwatch-backend/internal/config"
	"fleetwatch-backend/internal/database"
	"fleetwatch-backend/internal/models"
	"fleetwatch-backend/internal/monitor"
	"fleetwatch-backend/pkg/utils"
)

// Refresher schedules an out-of-band poll for a fleet
type Refresher interface {
	Trigger(fleetID string)
}

type SnapshotInvalidator interface {
	Invalidate(fleetID string)
}

// PutFleet creates or replaces a fleet's unit list and zones.
// Tracker memory for units that stay in the fleet is kept.
func PutFleet(engine *monitor.Engine, db *sqlx.DB, cache SnapshotInvalidator, refresher Refresher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var fleet models.Fleet
		if err := utils.DecodeJSON(r, &fleet); err != nil {
			utils.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		fleet.ID = chi.URLParam(r, "fleet")
		config.NormalizeFleet(&fleet)

		if err := config.ValidateFleet(fleet); err != nil {
			utils.Error(w, http.StatusUnprocessableEntity, err.Error())
			return
		}

		if db != nil {
			if err := database.UpsertFleet(r.Context(), db, fleet); err != nil {
				log.Printf("❌ Error saving fleet %s: %v", fleet.ID, err)
				utils.Error(w, http.StatusInternalServerError, "Failed to save fleet")
				return
			}
		}

		engine.AddFleet(fleet)
		if cache != nil {
			cache.Invalidate(fleet.ID)
		}
		if refresher != nil {
			refresher.Trigger(fleet.ID)
		}

		log.Printf("✅ Fleet %s saved (%d units, %d zones)", fleet.ID, len(fleet.UnitIDs), fleet.Zones.Count())
		utils.JSON(w, http.StatusOK, fleet.ToSummary())
	}
}
