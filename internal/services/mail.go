package services

import (
	"context"
	"fmt"
	"time"

	"github.com/nikoksr/notify"
	"github.com/nikoksr/notify/service/mail"

	"fleetwatch-backend/internal/models"
)

// MailNotifier emails alert notices to a fixed recipient list over SMTP
type MailNotifier struct {
	host       string
	port       int
	user       string
	password   string
	recipients []string
	loc        *time.Location
}

func NewMailNotifier(host string, port int, user, password string, recipients []string, loc *time.Location) *MailNotifier {
	if loc == nil {
		loc = time.UTC
	}
	return &MailNotifier{
		host:       host,
		port:       port,
		user:       user,
		password:   password,
		recipients: recipients,
		loc:        loc,
	}
}

func (m *MailNotifier) Notify(ctx context.Context, notice models.AlertNotice) error {
	if len(m.recipients) == 0 {
		return nil
	}

	// notify accumulates receivers on a service, so build a fresh one per send
	svc := mail.New(m.user, fmt.Sprintf("%s:%d", m.host, m.port))
	svc.AuthenticateSMTP("", m.user, m.password, m.host)
	svc.AddReceivers(m.recipients...)

	n := notify.New()
	n.UseServices(svc)

	if err := n.Send(ctx, NoticeTitle(notice), MailBody(notice, m.loc)); err != nil {
		return fmt.Errorf("send alert email: %w", err)
	}
	return nil
}

// MailBody renders the plain text email for a notice
func MailBody(n models.AlertNotice, loc *time.Location) string {
	return fmt.Sprintf(
		"%s\n\nFlota: %s\nUnidad: %s (%s)\nPosición: %.6f, %.6f\nHora: %s",
		NoticeBody(n),
		n.FleetName,
		n.UnitName, n.UnitID,
		n.Latitude, n.Longitude,
		n.Time.In(loc).Format("2006-01-02 15:04:05"),
	)
}
