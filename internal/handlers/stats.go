package handlers

import (
	"net/http"
	"time"

	"fleetwatch-backend/pkg/utils"
)

// StatsSource contributes one section to the stats payload
type StatsSource func() interface{}

// GetStats reports runtime statistics from every registered source
func GetStats(sources map[string]StatsSource) http.HandlerFunc {
	started := time.Now()
	return func(w http.ResponseWriter, r *http.Request) {
		out := map[string]interface{}{
			"uptime_seconds": int(time.Since(started).Seconds()),
		}
		for name, src := range sources {
			out[name] = src()
		}
		utils.JSON(w, http.StatusOK, out)
	}
}

// Health reports liveness
func Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		utils.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
