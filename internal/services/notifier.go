package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fleetwatch-backend/internal/models"
)

// Notifier delivers alert notices outside the dashboard
type Notifier interface {
	Notify(ctx context.Context, notice models.AlertNotice) error
}

// MultiNotifier fans a notice out to every configured channel.
// A failing channel does not stop the others.
type MultiNotifier struct {
	notifiers []Notifier
}

func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	m := &MultiNotifier{}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

func (m *MultiNotifier) Len() int {
	return len(m.notifiers)
}

func (m *MultiNotifier) Notify(ctx context.Context, notice models.AlertNotice) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, notice); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NoticeTitle is the short headline used by push and mail channels
func NoticeTitle(n models.AlertNotice) string {
	switch n.Kind {
	case models.AlertSpeed:
		return fmt.Sprintf("🚨 Exceso de velocidad: %s", n.DisplayName)
	default:
		return fmt.Sprintf("🛑 Parada prolongada: %s", n.DisplayName)
	}
}

// NoticeBody describes the event in one or two lines
func NoticeBody(n models.AlertNotice) string {
	var b strings.Builder
	switch n.Kind {
	case models.AlertSpeed:
		fmt.Fprintf(&b, "%s circula a %.0f km/h", n.UnitName, n.SpeedKph)
	default:
		fmt.Fprintf(&b, "%s lleva %.0f min detenida fuera de base", n.UnitName, n.StopMinutes)
	}
	if n.FleetName != "" {
		fmt.Fprintf(&b, " (%s)", n.FleetName)
	}
	if n.LocationText != "" {
		fmt.Fprintf(&b, "\n%s", n.LocationText)
	}
	return b.String()
}
