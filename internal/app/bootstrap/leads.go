package bootstrap

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/figures-solutions/leadchat/internal/airtable"
	"github.com/figures-solutions/leadchat/internal/chat"
	appconfig "github.com/figures-solutions/leadchat/internal/config"
	"github.com/figures-solutions/leadchat/internal/leads"
	"github.com/figures-solutions/leadchat/internal/notify"
	"github.com/figures-solutions/leadchat/internal/observability/metrics"
	"github.com/figures-solutions/leadchat/pkg/logging"
)

// BuildEmailSender returns the configured sender, or nil when lead emails are
// disabled. awsCfg is only consulted for the ses provider.
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) notify.EmailSender {
	if cfg == nil || strings.TrimSpace(cfg.NotifyEmailTo) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	switch cfg.EmailProvider {
	case "ses":
		if awsCfg == nil {
			logger.Warn("ses email provider selected without aws config; lead emails disabled")
			return nil
		}
		return notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger)
	case "stub":
		return notify.NewStubEmailSender(logger)
	default:
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger)
		if sender == nil {
			logger.Warn("SENDGRID_API_KEY not set; lead emails disabled")
			return nil
		}
		return sender
	}
}

// LeadStack is the submission side of the server.
type LeadStack struct {
	// Service backs POST /api/airtable/contact and the admin listing.
	Service *leads.Service
	// Chat is what chat sessions submit through: Service, or a
	// RemoteSubmitter when CONTACT_ENDPOINT_URL points elsewhere.
	Chat chat.Submitter
}

// BuildLeadStack wires the Airtable client, submission log and notifier.
func BuildLeadStack(cfg *appconfig.Config, repo leads.Repository, email notify.EmailSender, m *metrics.LeadMetrics, logger *logging.Logger) LeadStack {
	if logger == nil {
		logger = logging.Default()
	}

	var upstream leads.Upstream
	if cfg.AirtableConfigured() {
		upstream = airtable.NewClient(airtable.Config{
			BaseURL:   cfg.AirtableBaseURL,
			APIKey:    cfg.AirtableAPIKey,
			BaseID:    cfg.AirtableBaseID,
			TableName: cfg.AirtableTableName,
			Timeout:   cfg.AirtableTimeout,
		}, logger, airtable.WithMetrics(m))
	} else {
		logger.Warn("airtable credentials missing; contact submissions will fail")
	}

	opts := []leads.ServiceOption{leads.WithMetrics(m)}
	if repo != nil {
		opts = append(opts, leads.WithRepository(repo))
	}
	if notifier := notify.NewLeadNotifier(email, splitList(cfg.NotifyEmailTo), logger); notifier != nil {
		opts = append(opts, leads.WithNotifier(notifier))
	}
	svc := leads.NewService(upstream, logger, opts...)

	stack := LeadStack{Service: svc, Chat: svc}
	if cfg.ContactEndpointURL != "" {
		logger.Info("chat submissions forwarded", "endpoint", cfg.ContactEndpointURL)
		stack.Chat = leads.NewRemoteSubmitter(cfg.ContactEndpointURL, cfg.AirtableTimeout, logger)
	}
	return stack
}

// BuildEngines loads every embedded script plus an optional file script. The
// configured default script comes first.
func BuildEngines(cfg *appconfig.Config, submitter chat.Submitter, m *metrics.LeadMetrics, logger *logging.Logger) ([]*chat.Engine, error) {
	scripts := []*chat.Script{}
	for _, name := range []string{chat.ScriptServiceFirst, chat.ScriptContactFirst} {
		s, err := chat.LoadScript(name)
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, s)
	}
	if cfg.ChatScriptPath != "" {
		s, err := chat.LoadScriptFile(cfg.ChatScriptPath)
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, s)
	}

	engines := make([]*chat.Engine, 0, len(scripts))
	found := false
	for _, s := range scripts {
		e := chat.NewEngine(s, submitter, logger,
			chat.WithContactInfo(cfg.OwnerName, cfg.FallbackPhone),
			chat.WithEngineMetrics(m),
		)
		if s.Name == cfg.ChatScript {
			found = true
			engines = append([]*chat.Engine{e}, engines...)
			continue
		}
		engines = append(engines, e)
	}
	if !found && cfg.ChatScript != "" {
		return nil, fmt.Errorf("bootstrap: CHAT_SCRIPT %q not loaded", cfg.ChatScript)
	}
	return engines, nil
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
