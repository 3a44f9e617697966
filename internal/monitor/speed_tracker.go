package monitor

import (
	"time"

	"fleetwatch-backend/internal/models"
)

// MinSpeedEpisodeMinutes filters out GPS spikes: shorter episodes are not logged
const MinSpeedEpisodeMinutes = 0.166

type SpeedPhase int

const (
	SpeedNormal SpeedPhase = iota
	SpeedSpeeding
)

// SpeedState is the per-unit speeding machine. Since and Peak are only
// meaningful while Phase is SpeedSpeeding.
type SpeedState struct {
	Phase SpeedPhase
	Since time.Time
	Peak  float64
}

type SpeedResult struct {
	Speeding bool
	// Started is true on the observation that opened the episode
	Started bool
	// Ended is true when an open episode closed, logged or not
	Ended           bool
	Logged          bool
	DurationMinutes float64
	PeakKph         float64
}

// Open reports whether a speeding episode is in progress
func (s SpeedState) Open() bool {
	return s.Phase == SpeedSpeeding
}

// Observe advances the machine. A unit is speeding when it is at or above the
// threshold and out of HQ.
func (s *SpeedState) Observe(u models.ClassifiedUnit, now time.Time, thresholdKph float64) SpeedResult {
	if u.SpeedKph >= thresholdKph && u.OutOfHQ() {
		res := SpeedResult{Speeding: true}
		if s.Phase != SpeedSpeeding {
			s.Phase = SpeedSpeeding
			s.Since = now
			s.Peak = 0
			res.Started = true
		}
		if u.SpeedKph > s.Peak {
			s.Peak = u.SpeedKph
		}
		res.PeakKph = s.Peak
		return res
	}

	if s.Phase != SpeedSpeeding {
		return SpeedResult{}
	}

	res := SpeedResult{
		Ended:           true,
		DurationMinutes: now.Sub(s.Since).Minutes(),
		PeakKph:         s.Peak,
	}
	res.Logged = res.DurationMinutes >= MinSpeedEpisodeMinutes
	*s = SpeedState{Phase: SpeedNormal}
	return res
}
