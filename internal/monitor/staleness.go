package monitor

import (
	"fmt"
	"strings"
	"time"
)

// ReportTimeLayout matches provider timestamps such as "Sep 30 2025 12:57PM"
const ReportTimeLayout = "Jan 2 2006 3:04PM"

// Staleness is the GPS fault verdict for one sample
type Staleness struct {
	IsFault    bool
	Reason     string
	AgeMinutes float64
	// Parsed is false when the timestamp could not be evaluated
	Parsed bool
}

// ParseReportTime parses a provider timestamp in loc. The provider pads
// single-digit days with an extra space, so whitespace is collapsed first.
func ParseReportTime(raw string, loc *time.Location) (time.Time, error) {
	normalized := strings.Join(strings.Fields(raw), " ")
	if normalized == "" {
		return time.Time{}, fmt.Errorf("empty report time")
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(ReportTimeLayout, normalized, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse report time %q: %w", raw, err)
	}
	return t, nil
}

// CheckStaleness flags a unit whose last report is older than the
// ignition-dependent threshold. An unparseable timestamp is never a fault.
func CheckStaleness(lastReport string, ignitionOn bool, now time.Time, onMinutes, offMinutes float64, loc *time.Location) Staleness {
	reported, err := ParseReportTime(lastReport, loc)
	if err != nil {
		return Staleness{}
	}

	age := now.Sub(reported).Minutes()
	result := Staleness{AgeMinutes: age, Parsed: true}

	if ignitionOn {
		if age > onMinutes {
			result.IsFault = true
			result.Reason = fmt.Sprintf("Sin reporte hace %d min con motor encendido (umbral %s)",
				int(age), FormatAgeMinutes(onMinutes))
		}
		return result
	}

	if age > offMinutes {
		result.IsFault = true
		result.Reason = fmt.Sprintf("Sin reporte hace %s con motor apagado (umbral %s)",
			FormatAgeMinutes(age), FormatAgeMinutes(offMinutes))
	}
	return result
}
