package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/figures-solutions/leadchat/pkg/logging"
)

// DefaultFromName is the sender name used when none is configured.
const DefaultFromName = "Figures Solutions"

var (
	// ErrEmailNotConfigured is returned by a sender built without a client.
	ErrEmailNotConfigured = errors.New("notify: email provider not configured")
	// ErrNoRecipient is returned for a message without a To address.
	ErrNoRecipient = errors.New("notify: email has no recipient")
)

// EmailSender delivers one email. SendGrid, SES and the stub implement it.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is one lead notification. Replies go to the visitor.
type EmailMessage struct {
	To      string
	ToName  string
	Subject string
	Body    string
	HTML    string

	ReplyTo     string
	ReplyToName string
}

func (m EmailMessage) validate() error {
	if strings.TrimSpace(m.To) == "" {
		return ErrNoRecipient
	}
	return nil
}

// htmlOrText is the HTML part, or the plain body when no HTML was rendered.
func (m EmailMessage) htmlOrText() string {
	if m.HTML != "" {
		return m.HTML
	}
	return m.Body
}

// DeliveryError reports a provider that refused or failed a message.
type DeliveryError struct {
	Provider string
	Status   int
	Err      error
}

func (e *DeliveryError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("notify: %s delivery failed: %v", e.Provider, e.Err)
	default:
		return fmt.Sprintf("notify: %s rejected message with status %d", e.Provider, e.Status)
	}
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// fromIdentity is the From identity shared by the providers.
type fromIdentity struct {
	Email string
	Name  string
}

func newFromIdentity(email, name string) fromIdentity {
	if strings.TrimSpace(name) == "" {
		name = DefaultFromName
	}
	return fromIdentity{Email: email, Name: name}
}

func (f fromIdentity) String() string {
	return fmt.Sprintf("%s <%s>", f.Name, f.Email)
}

type sendgridClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridConfig holds the SendGrid API key and From identity.
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// SendGridSender delivers through the SendGrid v3 mail API.
type SendGridSender struct {
	client sendgridClient
	from   fromIdentity
	logger *logging.Logger
}

// NewSendGridSender returns nil when no API key is set.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SendGridSender{
		client: sendgrid.NewSendClient(cfg.APIKey),
		from:   newFromIdentity(cfg.FromEmail, cfg.FromName),
		logger: logger.Component("sendgrid"),
	}
}

func (s *SendGridSender) message(msg EmailMessage) *mail.SGMailV3 {
	m := mail.NewSingleEmail(
		mail.NewEmail(s.from.Name, s.from.Email),
		msg.Subject,
		mail.NewEmail(msg.ToName, msg.To),
		msg.Body,
		msg.htmlOrText(),
	)
	if msg.ReplyTo != "" {
		m.SetReplyTo(mail.NewEmail(msg.ReplyToName, msg.ReplyTo))
	}
	return m
}

// Send hands msg to SendGrid. Any status of 400 or above is a DeliveryError.
func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s.client == nil {
		return ErrEmailNotConfigured
	}
	if err := msg.validate(); err != nil {
		return err
	}

	resp, err := s.client.SendWithContext(ctx, s.message(msg))
	if err != nil {
		s.logger.Error("lead email not delivered", "to", msg.To, "error", err)
		return &DeliveryError{Provider: "sendgrid", Err: err}
	}
	if resp.StatusCode >= 400 {
		s.logger.Error("lead email rejected", "to", msg.To, "status", resp.StatusCode, "body", resp.Body)
		return &DeliveryError{Provider: "sendgrid", Status: resp.StatusCode}
	}

	s.logger.Info("lead email accepted", "to", msg.To, "status", resp.StatusCode)
	return nil
}

// StubEmailSender logs messages instead of sending them.
type StubEmailSender struct {
	logger *logging.Logger
}

func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger.Component("email-stub")}
}

func (s *StubEmailSender) Send(_ context.Context, msg EmailMessage) error {
	if err := msg.validate(); err != nil {
		return err
	}
	s.logger.Info("email delivery disabled; dropping lead email", "to", msg.To, "subject", msg.Subject, "reply_to", msg.ReplyTo)
	return nil
}

var (
	_ EmailSender = (*SendGridSender)(nil)
	_ EmailSender = (*StubEmailSender)(nil)
)
