package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/jmoiron/sqlx"

	"fleetwatch-backend/internal/config"
	"fleetwatch-backend/internal/database"
	"fleetwatch-backend/internal/middleware"
	"fleetwatch-backend/pkg/utils"
)

type SettingsResponse struct {
	Thresholds config.Thresholds `json:"thresholds"`
	Version    int64             `json:"version"`
}

func GetSettings(settings *config.Settings) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		utils.JSON(w, http.StatusOK, SettingsResponse{
			Thresholds: settings.Get(),
			Version:    settings.Version(),
		})
	}
}

// UpdateSettings applies a partial threshold update. Listeners registered on
// the settings take care of cache invalidation and the immediate refresh.
// The database is optional; when present the new thresholds are persisted.
func UpdateSettings(settings *config.Settings, db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch config.ThresholdsPatch
		if err := utils.DecodeJSON(r, &patch); err != nil {
			utils.Error(w, http.StatusBadRequest, err.Error())
			return
		}

		th, err := settings.Update(patch)
		if err != nil {
			if errors.Is(err, config.ErrInvalidSettings) {
				utils.Error(w, http.StatusUnprocessableEntity, err.Error())
				return
			}
			utils.Error(w, http.StatusInternalServerError, "Failed to update settings")
			return
		}

		if user, ok := middleware.GetUserFromContext(r); ok {
			log.Printf("⚙️  Thresholds updated by %s: %+v", user.Email, th)
		}

		if db != nil {
			if err := database.SaveThresholds(r.Context(), db, th); err != nil {
				log.Printf("⚠️  Thresholds applied but not persisted: %v", err)
			}
		}

		utils.JSON(w, http.StatusOK, SettingsResponse{Thresholds: th, Version: settings.Version()})
	}
}
