package geo

import "fleetwatch-backend/internal/models"

// Membership is the zone classification of a single point
type Membership struct {
	InDisposalSite     bool `json:"in_disposal_site"`
	InHomeBase         bool `json:"in_home_base"`
	InSecondaryHolding bool `json:"in_secondary_holding"`
}

// Any reports whether the point is inside some zone
func (m Membership) Any() bool {
	return m.InDisposalSite || m.InHomeBase || m.InSecondaryHolding
}

// ClassifyZones checks the point against each zone kind in priority order:
// disposal site, home base, secondary holding. The first kind that contains
// the point wins and later kinds are not evaluated, so overlapping zones
// never report more than one membership.
func ClassifyZones(lat, lon float64, zones models.ZoneSet, radiusKm float64) Membership {
	if withinAny(lat, lon, zones.DisposalSites, radiusKm) {
		return Membership{InDisposalSite: true}
	}
	if withinAny(lat, lon, zones.HomeBase, radiusKm) {
		return Membership{InHomeBase: true}
	}
	if withinAny(lat, lon, zones.SecondaryHolding, radiusKm) {
		return Membership{InSecondaryHolding: true}
	}
	return Membership{}
}

func withinAny(lat, lon float64, centers []models.Zone, radiusKm float64) bool {
	for _, c := range centers {
		if HaversineKm(lat, lon, c.Latitude, c.Longitude) <= radiusKm {
			return true
		}
	}
	return false
}
