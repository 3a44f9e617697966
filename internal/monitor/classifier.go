package monitor

import (
	"fleetwatch-backend/internal/geo"
	"fleetwatch-backend/internal/models"
)

// Classify derives the display state of one sample. A GPS fault overrides
// every zone flag, then disposal, home base and secondary holding apply in
// that order before falling back to the on-route states.
func Classify(sample models.UnitSample, zones geo.Membership, staleness Staleness) models.ClassifiedUnit {
	u := models.ClassifiedUnit{UnitSample: sample}

	if staleness.IsFault {
		reason := staleness.Reason
		u.IsGPSFault = true
		u.FaultReason = &reason
		u.DisplayState = models.StateGPSFault
		return u
	}

	u.InDisposalSite = zones.InDisposalSite
	u.InHomeBase = zones.InHomeBase && !zones.InDisposalSite
	u.InSecondaryHolding = zones.InSecondaryHolding && !u.InHomeBase && !u.InDisposalSite

	switch {
	case u.InDisposalSite:
		u.DisplayState = models.StateAtDisposal
	case u.InHomeBase && sample.IgnitionOn:
		u.DisplayState = models.StateOnAtBase
	case u.InHomeBase:
		u.DisplayState = models.StateShelteredAtBase
	case u.InSecondaryHolding:
		u.DisplayState = models.StateShelteredSecondary
	case sample.IgnitionOn:
		u.DisplayState = models.StateOnRouteOn
	default:
		u.DisplayState = models.StateOnRouteOff
	}
	return u
}
