package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/figures-solutions/leadchat/internal/leads"
	"github.com/figures-solutions/leadchat/pkg/logging"
)

// LeadNotifier emails the business owner when a chat visitor submits their
// contact info. It implements leads.Notifier.
type LeadNotifier struct {
	email      EmailSender
	recipients []string
	logger     *logging.Logger
}

// NewLeadNotifier creates a notifier sending to recipients. It returns nil when
// there is no sender or no recipient, which leads.Service treats as disabled.
func NewLeadNotifier(email EmailSender, recipients []string, logger *logging.Logger) *LeadNotifier {
	var to []string
	for _, r := range recipients {
		if r = strings.TrimSpace(r); r != "" {
			to = append(to, r)
		}
	}
	if email == nil || len(to) == 0 {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &LeadNotifier{email: email, recipients: to, logger: logger.Component("notify")}
}

// NotifyNewLead sends one email per recipient. Every recipient is attempted;
// the failures are joined.
func (n *LeadNotifier) NotifyNewLead(ctx context.Context, rec leads.ContactRecord, res *leads.SubmissionResult) error {
	if n == nil {
		return nil
	}
	msg := buildLeadEmail(rec, res)

	var errs []error
	for _, to := range n.recipients {
		msg.To = to
		if err := n.email.Send(ctx, msg); err != nil {
			n.logger.Error("notify: failed to send lead email", "error", err, "to", to)
			errs = append(errs, err)
			continue
		}
		n.logger.Info("notify: lead email sent", "to", to, "record_id", recordID(res))
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: lead email: %w", errors.Join(errs...))
	}
	return nil
}

func buildLeadEmail(rec leads.ContactRecord, res *leads.SubmissionResult) EmailMessage {
	interest := rec.ServiceType
	switch interest {
	case "":
		interest = "not specified"
	case leads.ServiceTypeContact:
		interest = "asked to talk directly"
	}
	submitted := time.Now().UTC()
	if res != nil && !res.Timestamp.IsZero() {
		submitted = res.Timestamp
	}
	link := "not generated"
	if res.HasLink() {
		link = res.TallyFormLink
	}

	subject := fmt.Sprintf("🌿 New lead - %s", rec.Name)
	body := fmt.Sprintf(`%s left their contact info in the website chat.

Name: %s
Email: %s
Phone: %s
Interest: %s
Survey link: %s
Airtable record: %s
Submitted: %s`, rec.Name, rec.Name, rec.Email, rec.Phone, interest, link, recordID(res),
		submitted.Format("January 2, 2006 at 3:04 PM MST"))

	row := func(label, value string) string {
		return fmt.Sprintf(`  <tr><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;"><strong>%s:</strong></td><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;">%s</td></tr>
`, label, value)
	}
	var rows strings.Builder
	rows.WriteString(row("Name", html.EscapeString(rec.Name)))
	rows.WriteString(row("Email", fmt.Sprintf(`<a href="mailto:%[1]s">%[1]s</a>`, html.EscapeString(rec.Email))))
	rows.WriteString(row("Phone", fmt.Sprintf(`<a href="tel:%s">%s</a>`, html.EscapeString(leads.CleanPhone(rec.Phone)), html.EscapeString(rec.Phone))))
	rows.WriteString(row("Interest", html.EscapeString(interest)))
	if res.HasLink() {
		rows.WriteString(row("Survey", fmt.Sprintf(`<a href="%[1]s">%[1]s</a>`, html.EscapeString(res.TallyFormLink))))
	}

	htmlBody := fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;">
<h2 style="color: #16a34a;">🌿 New website lead</h2>
<p><strong>%s</strong> left their contact info in the website chat.</p>
<table style="border-collapse: collapse; margin: 20px 0;">
%s</table>
</div>`, html.EscapeString(rec.Name), rows.String())

	return EmailMessage{
		Subject:     subject,
		Body:        body,
		HTML:        htmlBody,
		ReplyTo:     rec.Email,
		ReplyToName: rec.Name,
	}
}

func recordID(res *leads.SubmissionResult) string {
	if res == nil || res.RecordID == "" {
		return "unknown"
	}
	return res.RecordID
}

var _ leads.Notifier = (*LeadNotifier)(nil)
