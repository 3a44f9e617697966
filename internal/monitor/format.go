package monitor

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// DisplayName is the unit name up to the first '-'
func DisplayName(unitName string) string {
	if i := strings.Index(unitName, "-"); i > 0 {
		return strings.TrimSpace(unitName[:i])
	}
	return strings.TrimSpace(unitName)
}

// FormatStopDuration renders a stop timer as "12min 05seg"
func FormatStopDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%dmin %02dseg", total/60, total%60)
}

// FormatAgeMinutes renders minutes as "45 min", or "13h 05min" from one hour up
func FormatAgeMinutes(minutes float64) string {
	m := int(math.Floor(minutes))
	if m < 60 {
		return fmt.Sprintf("%d min", m)
	}
	return fmt.Sprintf("%dh %02dmin", m/60, m%60)
}
