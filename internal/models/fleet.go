package models

type ZoneKind string

const (
	ZoneHomeBase         ZoneKind = "home_base"
	ZoneSecondaryHolding ZoneKind = "secondary_holding"
	ZoneDisposalSite     ZoneKind = "disposal_site"
)

func (k ZoneKind) IsValid() bool {
	return k == ZoneHomeBase || k == ZoneSecondaryHolding || k == ZoneDisposalSite
}

// Zone is a circular geofence center. The radius is shared fleet-wide.
type Zone struct {
	ID        string   `json:"id,omitempty" db:"id"`
	FleetID   string   `json:"-" db:"fleet_id"`
	Kind      ZoneKind `json:"kind,omitempty" db:"kind"`
	Label     string   `json:"label" db:"label"`
	Latitude  float64  `json:"latitude" db:"latitude"`
	Longitude float64  `json:"longitude" db:"longitude"`
}

// ZoneSet groups a fleet's zones by kind
type ZoneSet struct {
	HomeBase         []Zone `json:"home_base"`
	SecondaryHolding []Zone `json:"secondary_holding"`
	DisposalSites    []Zone `json:"disposal_site"`
}

// Count returns the total number of zones across all kinds
func (z ZoneSet) Count() int {
	return len(z.HomeBase) + len(z.SecondaryHolding) + len(z.DisposalSites)
}

// Add places a zone in the slice for its kind
func (z *ZoneSet) Add(zone Zone) {
	switch zone.Kind {
	case ZoneHomeBase:
		z.HomeBase = append(z.HomeBase, zone)
	case ZoneSecondaryHolding:
		z.SecondaryHolding = append(z.SecondaryHolding, zone)
	case ZoneDisposalSite:
		z.DisposalSites = append(z.DisposalSites, zone)
	}
}

// All returns every zone with its kind filled in
func (z ZoneSet) All() []Zone {
	all := make([]Zone, 0, z.Count())
	for _, group := range []struct {
		kind  ZoneKind
		zones []Zone
	}{
		{ZoneHomeBase, z.HomeBase},
		{ZoneSecondaryHolding, z.SecondaryHolding},
		{ZoneDisposalSite, z.DisposalSites},
	} {
		for _, zone := range group.zones {
			zone.Kind = group.kind
			all = append(all, zone)
		}
	}
	return all
}

// Fleet is a named set of units monitored together with its zones
type Fleet struct {
	ID      string   `json:"id" db:"id"`
	Name    string   `json:"name" db:"name"`
	UnitIDs []string `json:"unit_ids"`
	Zones   ZoneSet  `json:"zones"`
	Enabled bool     `json:"enabled" db:"enabled"`
}

// FleetSummary is the public listing of a fleet
type FleetSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UnitCount int    `json:"unit_count"`
	ZoneCount int    `json:"zone_count"`
}

func (f *Fleet) ToSummary() FleetSummary {
	return FleetSummary{
		ID:        f.ID,
		Name:      f.Name,
		UnitCount: len(f.UnitIDs),
		ZoneCount: f.Zones.Count(),
	}
}
