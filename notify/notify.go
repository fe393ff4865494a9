// Package notify sends reminder email through SendGrid.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/Srishyl/MediMate/dbtypes"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	fromName    = "MediMate Team"
	fromAddress = "bot@medimate.dev"
)

// EmailNotifier implements engine.Notifier over a SendGrid client.
type EmailNotifier struct {
	sendgridClient *sendgrid.Client
}

func NewEmailNotifier(sendgridClient *sendgrid.Client) *EmailNotifier {
	return &EmailNotifier{
		sendgridClient: sendgridClient,
	}
}

type doseReminderParams struct {
	Name            string
	PillName        string
	Dosage          string
	TimeOfDay       string
	RemainingPills  int64
	ExpiryDate      string
	DaysUntilExpiry int64
	LowOnPills      bool
	ExpiringSoon    bool
}

const doseReminderText = `
<h2>Time to Take Your Medication</h2>
<p>Hello {{.Name}},</p>
<p>It's time to take your medication:</p>
<ul>
  <li><strong>Medication:</strong> {{.PillName}}</li>
  <li><strong>Dosage:</strong> {{.Dosage}}</li>
  <li><strong>Time:</strong> {{.TimeOfDay}}</li>
  <li><strong>Remaining Pills:</strong> {{.RemainingPills}}</li>
  <li><strong>Expiry Date:</strong> {{.ExpiryDate}}</li>
</ul>
{{if .LowOnPills}}<p style="color: red;">&#9888; You are running low on pills! Please refill your prescription.</p>{{end}}
{{if .ExpiringSoon}}<p style="color: red;">&#9888; Your medication will expire in {{.DaysUntilExpiry}} days!</p>{{end}}
<p>Please take your medication as prescribed.</p>
<p>Best regards,<br>MediMate Team</p>
`

var doseReminderTemplate = template.Must(template.New("dose").Parse(doseReminderText))

type refillAlertParams struct {
	Name           string
	PillName       string
	RemainingPills int64
}

const refillAlertText = `
<h2>Low on Medication</h2>
<p>Hello {{.Name}},</p>
<p>You are running low on your medication:</p>
<ul>
  <li><strong>Medication:</strong> {{.PillName}}</li>
  <li><strong>Remaining Pills:</strong> {{.RemainingPills}}</li>
</ul>
<p>Please refill your prescription soon to avoid running out.</p>
<p>Best regards,<br>MediMate Team</p>
`

var refillAlertTemplate = template.Must(template.New("refill").Parse(refillAlertText))

type expiryAlertParams struct {
	Name            string
	PillName        string
	ExpiryDate      string
	DaysUntilExpiry int64
}

const expiryAlertText = `
<h2>Medication Expiring Soon</h2>
<p>Hello {{.Name}},</p>
<p>Your medication will expire soon:</p>
<ul>
  <li><strong>Medication:</strong> {{.PillName}}</li>
  <li><strong>Expiry Date:</strong> {{.ExpiryDate}}</li>
  <li><strong>Days Until Expiry:</strong> {{.DaysUntilExpiry}}</li>
</ul>
<p>Please check your medication and replace if necessary.</p>
<p>Best regards,<br>MediMate Team</p>
`

var expiryAlertTemplate = template.Must(template.New("expiry").Parse(expiryAlertText))

// SendDoseReminder emails the it's-time-to-take-your-medication message,
// with warning banners when the supply is low or the pack expires soon.
func (n *EmailNotifier) SendDoseReminder(ctx context.Context, user *dbtypes.User, schedule *dbtypes.Schedule, daysUntilExpiry int64, lowOnPills, expiringSoon bool) error {
	return n.send(ctx, user, "MediMate: Time to Take Your Medication", doseReminderTemplate, &doseReminderParams{
		Name:            displayName(user),
		PillName:        schedule.PillName,
		Dosage:          schedule.Dosage,
		TimeOfDay:       schedule.TimeOfDay,
		RemainingPills:  schedule.RemainingPills,
		ExpiryDate:      schedule.ExpiryDate,
		DaysUntilExpiry: daysUntilExpiry,
		LowOnPills:      lowOnPills,
		ExpiringSoon:    expiringSoon,
	})
}

// SendRefillAlert emails the one-shot low-supply notice.
func (n *EmailNotifier) SendRefillAlert(ctx context.Context, user *dbtypes.User, schedule *dbtypes.Schedule) error {
	return n.send(ctx, user, "MediMate: Low on Medication", refillAlertTemplate, &refillAlertParams{
		Name:           displayName(user),
		PillName:       schedule.PillName,
		RemainingPills: schedule.RemainingPills,
	})
}

// SendExpiryAlert emails the one-shot expiring-soon notice.
func (n *EmailNotifier) SendExpiryAlert(ctx context.Context, user *dbtypes.User, schedule *dbtypes.Schedule, daysUntilExpiry int64) error {
	return n.send(ctx, user, "MediMate: Medication Expiring Soon", expiryAlertTemplate, &expiryAlertParams{
		Name:            displayName(user),
		PillName:        schedule.PillName,
		ExpiryDate:      schedule.ExpiryDate,
		DaysUntilExpiry: daysUntilExpiry,
	})
}

func displayName(user *dbtypes.User) string {
	if user.Name != "" {
		return user.Name
	}
	return "User"
}

func (n *EmailNotifier) send(ctx context.Context, user *dbtypes.User, subject string, tmpl *template.Template, params any) error {
	message := mail.NewV3Mail()
	message.From = mail.NewEmail(fromName, fromAddress)
	message.Subject = subject

	personalization := mail.NewPersonalization()
	personalization.To = append(personalization.To, mail.NewEmail(user.Name, user.Email))
	message.Personalizations = append(message.Personalizations, personalization)

	htmlContent := &bytes.Buffer{}
	if err := tmpl.Execute(htmlContent, params); err != nil {
		return fmt.Errorf("while templating email content: %w", err)
	}

	message.Content = append(message.Content, mail.NewContent("text/html", htmlContent.String()))

	resp, err := n.sendgridClient.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("while sending mail through SendGrid: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("non-2XX response while sending mail through Sendgrid: %d %s", resp.StatusCode, resp.Body)
	}

	return nil
}
