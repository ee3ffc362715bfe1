// FilePath: server/worker/internal/notify/notify.go
package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	nuts "github.com/vaudience/go-nuts"
	mail "github.com/wneessen/go-mail"

	"github.com/vigilhome/vigil_v3/server/worker/internal/config"
	"github.com/vigilhome/vigil_v3/server/worker/internal/errors"
	"github.com/vigilhome/vigil_v3/server/worker/internal/models"
	"github.com/vigilhome/vigil_v3/server/worker/internal/repository"
)

// ChannelEmail is the only delivery channel the worker sends to. Contacts
// on other channels (sms, voice) are handled by the escalation service.
const ChannelEmail = "email"

// mailSender abstracts the SMTP client for tests.
type mailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// EmailNotifier mails a home's emergency contacts about a high-severity
// alert, in descending priority order. Per-contact failures are logged
// and skipped; the notifier only fails when no contact could be reached.
type EmailNotifier struct {
	contacts repository.ContactRepository
	sender   mailSender
	from     string
}

// NewEmailNotifier builds a notifier from SMTP configuration. An empty
// host disables email delivery and yields a NoopNotifier, which keeps
// local and test deployments free of SMTP requirements.
func NewEmailNotifier(cfg config.SMTPConfig, contacts repository.ContactRepository) (Notifier, error) {
	if cfg.Host == "" {
		nuts.L.Infof("[Notify] SMTP host not configured; email notification disabled")
		return &NoopNotifier{}, nil
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(15 * time.Second),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	if cfg.UseTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, errors.NewInternalError("failed to create SMTP client", err)
	}

	return &EmailNotifier{contacts: contacts, sender: client, from: cfg.FromEmail}, nil
}

// Notifier matches the alert writer's notification hook.
type Notifier interface {
	Notify(ctx context.Context, alert *models.Alert, device *models.Device) error
}

func (n *EmailNotifier) Notify(ctx context.Context, alert *models.Alert, device *models.Device) error {
	contacts, err := n.contacts.ListByHome(ctx, alert.HomeID)
	if err != nil {
		return errors.NewDatabaseError("failed to load contacts for notification", err)
	}

	recipients := emailContacts(contacts)
	if len(recipients) == 0 {
		nuts.L.Warnf("[Notify] No email contacts for home %s; alert %s not mailed", alert.HomeID, alert.ID)
		return nil
	}

	subject, body := renderAlertMail(alert, device)

	sent := 0
	for _, contact := range recipients {
		msg := mail.NewMsg()
		if err := msg.From(n.from); err != nil {
			return errors.NewInternalError("invalid sender address", err)
		}
		if err := msg.To(contact.Value); err != nil {
			nuts.L.Warnf("[Notify] Skipping contact %s with invalid address: %v", contact.ID, err)
			continue
		}
		msg.Subject(subject)
		msg.SetBodyString(mail.TypeTextHTML, body)

		if err := n.sender.DialAndSendWithContext(ctx, msg); err != nil {
			nuts.L.Errorf("[Notify] Failed to mail contact %s for alert %s: %v", contact.ID, alert.ID, err)
			continue
		}
		sent++
		nuts.L.Infof("[Notify] Mailed contact %s (priority %d) for alert %s", contact.Name, contact.Priority, alert.ID)
	}

	if sent == 0 {
		return errors.NewInternalError(fmt.Sprintf("failed to notify any of %d contacts", len(recipients)), nil)
	}
	return nil
}

// emailContacts filters to the email channel, preserving the repository's
// priority ordering.
func emailContacts(contacts []*models.Contact) []*models.Contact {
	out := make([]*models.Contact, 0, len(contacts))
	for _, c := range contacts {
		if c.Channel == ChannelEmail && c.Value != "" {
			out = append(out, c)
		}
	}
	return out
}

func renderAlertMail(alert *models.Alert, device *models.Device) (subject, body string) {
	subject = fmt.Sprintf("VigilHome alert: %s detected", alert.Type)

	location := "an unknown location"
	if device != nil {
		location = device.Name
		if device.RoomID != nil {
			location = fmt.Sprintf("%s (room %s)", device.Name, *device.RoomID)
		}
	}

	var b strings.Builder
	b.WriteString("<html><body>")
	b.WriteString(fmt.Sprintf("<h2>%s</h2>", html.EscapeString(alert.Type)))
	b.WriteString(fmt.Sprintf("<p>A <b>%s severity</b> sound event was detected by %s at %s.</p>",
		html.EscapeString(alert.Severity),
		html.EscapeString(location),
		alert.CreatedAt.Format(time.RFC1123)))
	b.WriteString(fmt.Sprintf("<p>Detection confidence: %.0f%%</p>", alert.Score*100))
	b.WriteString(fmt.Sprintf("<p>Alert reference: <code>%s</code></p>", html.EscapeString(alert.ID)))
	b.WriteString("<p>Please check on the resident or open the VigilHome app for details.</p>")
	b.WriteString("</body></html>")
	return subject, b.String()
}

// NoopNotifier drops notifications. Used when SMTP is not configured.
type NoopNotifier struct{}

func (n *NoopNotifier) Notify(ctx context.Context, alert *models.Alert, device *models.Device) error {
	nuts.L.Debugf("[Notify] Dropping notification for alert %s (notifier disabled)", alert.ID)
	return nil
}
