package monitor

import (
	"time"

	"fleetwatch-backend/internal/config"
	"fleetwatch-backend/internal/models"
)

// MovingSpeedKph is the speed above which a unit counts as moving
const MovingSpeedKph = 1.0

type StopPhase int

const (
	StopMoving StopPhase = iota
	StopStopped
	StopArmed
)

func (p StopPhase) String() string {
	switch p {
	case StopMoving:
		return "moving"
	case StopStopped:
		return "stopped"
	case StopArmed:
		return "stop_armed"
	default:
		return "unknown"
	}
}

// StopState is the per-unit stop machine.
//
//	Moving  -> Stopped   speed drops to MovingSpeedKph or below
//	Stopped -> StopArmed stopped longer than the threshold while out of HQ
//	any     -> Moving    speed above MovingSpeedKph; an armed stop is logged
//
// LastMoveTime equals the observation time exactly when the unit is moving.
type StopState struct {
	Phase        StopPhase
	LastMoveTime time.Time
	ArmedMinutes float64
}

// StopResult is what one observation did to the machine
type StopResult struct {
	Moving       bool
	StopDuration time.Duration
	// Armed is true only on the observation that armed the alert
	Armed bool
	// Ended is true when an armed stop was closed by movement
	Ended        bool
	EndedMinutes float64
}

// Seed initializes the machine on first sight of a unit
func (s *StopState) Seed(now time.Time) {
	*s = StopState{Phase: StopMoving, LastMoveTime: now}
}

// Observe advances the machine with one classified sample
func (s *StopState) Observe(u models.ClassifiedUnit, now time.Time, thresholdMinutes float64, policy config.StopLogPolicy) StopResult {
	if u.SpeedKph > MovingSpeedKph {
		res := StopResult{Moving: true}
		if s.Phase == StopArmed {
			res.Ended = true
			res.EndedMinutes = s.ArmedMinutes
			if policy == config.StopLogMove {
				res.EndedMinutes = now.Sub(s.LastMoveTime).Minutes()
			}
		}
		s.Phase = StopMoving
		s.ArmedMinutes = 0
		s.LastMoveTime = now
		return res
	}

	duration := now.Sub(s.LastMoveTime)
	if duration < 0 {
		duration = 0
	}
	res := StopResult{StopDuration: duration}

	if s.Phase == StopMoving {
		s.Phase = StopStopped
	}
	if s.Phase == StopStopped && duration.Minutes() > thresholdMinutes && u.OutOfHQ() {
		s.Phase = StopArmed
		s.ArmedMinutes = duration.Minutes()
		res.Armed = true
	}
	return res
}
