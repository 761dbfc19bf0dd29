// Package chat implements the lead-capture conversation: a scripted state
// machine that walks a visitor from a first message to a submitted
// ContactRecord.
package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/figures-solutions/leadchat/internal/intent"
	"github.com/figures-solutions/leadchat/internal/leads"
	"github.com/figures-solutions/leadchat/internal/observability/metrics"
	"github.com/figures-solutions/leadchat/pkg/logging"
)

// ErrNotStarted is returned by Handle for a session Start was never called on.
var ErrNotStarted = errors.New("chat: session not started")

// Default placeholder values.
const (
	DefaultOwner = "Christopher"
	DefaultPhone = "(616) 228-5159"
)

// Turn results recorded in metrics.
const (
	resultIgnored      = "ignored"
	resultReply        = "reply"
	resultInvalid      = "invalid"
	resultSubmitted    = "submitted"
	resultNotFound     = "not_found"
	resultSubmitFailed = "submit_failed"
)

// Submitter turns a finished ContactRecord into an upstream record.
// leads.Service and leads.RemoteSubmitter both satisfy it.
type Submitter interface {
	Submit(ctx context.Context, rec leads.ContactRecord) (*leads.SubmissionResult, error)
}

// Engine runs sessions against a script. It holds no per-session state and is
// safe for concurrent use; callers serialize turns of the same session.
type Engine struct {
	script     *Script
	classifier *intent.Classifier
	submitter  Submitter
	owner      string
	phone      string
	metrics    *metrics.LeadMetrics
	logger     *logging.Logger
	now        func() time.Time
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithClassifier replaces the default keyword classifier.
func WithClassifier(c *intent.Classifier) EngineOption {
	return func(e *Engine) {
		if c != nil {
			e.classifier = c
		}
	}
}

// WithContactInfo sets the owner name and fallback phone used in replies.
func WithContactInfo(owner, phone string) EngineOption {
	return func(e *Engine) {
		if owner != "" {
			e.owner = owner
		}
		if phone != "" {
			e.phone = phone
		}
	}
}

// WithEngineMetrics records turns and session starts.
func WithEngineMetrics(m *metrics.LeadMetrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithEngineClock overrides time.Now.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an engine. A nil submitter makes every submission fail
// with the script's failure line.
func NewEngine(script *Script, submitter Submitter, logger *logging.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	e := &Engine{
		script:    script,
		submitter: submitter,
		owner:     DefaultOwner,
		phone:     DefaultPhone,
		logger:    logger.Component("chat"),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.classifier == nil {
		e.classifier = intent.Default()
	}
	e.classifier = e.classifier.WithContactKeywords(e.owner)
	return e
}

// Script returns the script the engine runs.
func (e *Engine) Script() *Script { return e.script }

// NewSession creates a session bound to the engine's script.
func (e *Engine) NewSession() *Session {
	return NewSession(e.script.Name, e.now())
}

// Start greets the visitor and moves the session to the script's start phase.
// Starting an already started session is a no-op.
func (e *Engine) Start(s *Session) *Turn {
	if s.Phase != PhaseReady {
		return &Turn{Phase: s.Phase, Messages: []Message{}}
	}
	mark := s.Transcript.Len()
	e.say(s, e.script.Greeting...)
	s.Phase = e.script.StartPhase
	s.UpdatedAt = e.now()
	e.metrics.ObserveSessionStarted(e.script.Name)
	e.logger.Debug("chat session started", "session_id", s.ID, "phase", s.Phase)
	return &Turn{Phase: s.Phase, Messages: s.Transcript.Since(mark)}
}

// Handle processes one visitor message. Whitespace-only input is ignored.
// Submission failures are reported in the returned messages, not as errors.
func (e *Engine) Handle(ctx context.Context, s *Session, text string) (*Turn, error) {
	if s == nil || s.Phase == PhaseReady {
		return nil, ErrNotStarted
	}
	text = strings.TrimSpace(text)
	if text == "" {
		e.metrics.ObserveTurn(string(s.Phase), resultIgnored)
		return &Turn{Phase: s.Phase, Messages: []Message{}}, nil
	}

	before := s.Phase
	s.Transcript.Append(Message{Text: text, Origin: OriginUser}, e.now())
	mark := s.Transcript.Len()

	var (
		fieldErr *FieldError
		result   string
	)
	switch s.Phase {
	case PhaseWelcome:
		result = e.handleWelcome(s, text)
	case PhaseCollectingName:
		fieldErr, result = e.handleName(s, text)
	case PhaseCollectingEmail:
		fieldErr, result = e.handleEmail(s, text)
	case PhaseCollectingPhone:
		fieldErr, result = e.handlePhone(ctx, s, text)
	default:
		result = e.handleComplete(s, text)
	}

	s.UpdatedAt = e.now()
	e.metrics.ObserveTurn(string(before), result)
	return &Turn{Phase: s.Phase, Messages: s.Transcript.Since(mark), FieldError: fieldErr}, nil
}

func (e *Engine) handleWelcome(s *Session, text string) string {
	res := e.classifier.Classify(text)
	w := e.script.Welcome
	switch res.Welcome() {
	case intent.KindUncertainty:
		e.say(s, w.Uncertainty...)
	case intent.KindExploration:
		e.say(s, w.Exploration...)
	case intent.KindContact:
		s.Contact.ServiceType = leads.ServiceTypeContact
		e.say(s, w.Contact...)
		s.Phase = PhaseCollectingName
	case intent.KindService:
		s.Contact.ServiceType = res.Service
		e.say(s, e.script.ServiceLine(res.Service))
		e.say(s, w.AskName...)
		s.Phase = PhaseCollectingName
	default:
		e.say(s, w.Fallback...)
	}
	return resultReply
}

func (e *Engine) handleName(s *Session, text string) (*FieldError, string) {
	if !leads.ValidateName(text) {
		return &FieldError{Field: leads.FieldName, Message: e.script.Errors.Name}, resultInvalid
	}
	s.Contact.Name = text
	s.Phase = PhaseCollectingEmail
	e.say(s, e.script.Accepted.Name...)
	return nil, resultReply
}

func (e *Engine) handleEmail(s *Session, text string) (*FieldError, string) {
	if !leads.ValidateEmail(text) {
		return &FieldError{Field: leads.FieldEmail, Message: e.script.Errors.Email}, resultInvalid
	}
	s.Contact.Email = text
	s.Phase = PhaseCollectingPhone
	e.say(s, e.script.Accepted.Email...)
	return nil, resultReply
}

func (e *Engine) handlePhone(ctx context.Context, s *Session, text string) (*FieldError, string) {
	if !leads.ValidatePhone(text) {
		return &FieldError{Field: leads.FieldPhone, Message: e.script.Errors.Phone}, resultInvalid
	}
	s.Contact.Phone = text
	e.say(s, e.script.Accepted.Phone...)
	return nil, e.submit(ctx, s)
}

func (e *Engine) submit(ctx context.Context, s *Session) string {
	lines := e.script.Submission
	rec := s.Contact

	if e.submitter == nil {
		e.logger.Error("chat submission skipped: no submitter configured", "session_id", s.ID)
		e.say(s, lines.Failure)
		return resultSubmitFailed
	}

	res, err := e.submitter.Submit(ctx, rec)
	switch {
	case err == nil:
	case errors.Is(err, leads.ErrRecordNotFound):
		var nf *leads.NotFoundError
		if errors.As(err, &nf) {
			s.RecordID = nf.RecordID
		}
		e.logger.Warn("chat submission created but not found", "session_id", s.ID, "record_id", s.RecordID)
		s.Submitted = true
		s.Phase = PhaseComplete
		e.say(s, lines.NotFound...)
		return resultNotFound
	default:
		e.logger.Error("chat submission failed", "session_id", s.ID, "error", err)
		e.say(s, lines.Failure)
		return resultSubmitFailed
	}

	s.Submitted = true
	s.RecordID = res.RecordID
	s.SurveyLink = res.TallyFormLink
	s.Phase = PhaseComplete

	vars := e.vars(s)
	if res.ClientName != "" {
		vars.Name = res.ClientName
	}
	e.sayWith(s, vars, lines.Thanks)
	if res.HasLink() {
		e.say(s, lines.LinkIntro)
		s.Transcript.Append(Message{
			Text:    vars.Render(lines.LinkText),
			Origin:  OriginBot,
			IsLink:  true,
			LinkURL: res.TallyFormLink,
		}, e.now())
	} else {
		e.say(s, lines.NoLink)
	}
	if rec.ServiceType == leads.ServiceTypeContact || e.classifier.IsContact(rec.ServiceType) {
		e.say(s, lines.ClosingContact)
	} else {
		e.say(s, lines.ClosingDefault)
	}
	e.logger.Info("chat submission complete", "session_id", s.ID, "record_id", s.RecordID, "has_link", res.HasLink())
	return resultSubmitted
}

func (e *Engine) handleComplete(s *Session, text string) string {
	c := e.script.Complete
	var lines []string
	switch e.classifier.Classify(text).FollowUp() {
	case intent.KindContact:
		lines = c.Contact
	case intent.KindService:
		lines = c.Service
	case intent.KindUncertainty:
		lines = c.Uncertainty
	}
	if len(lines) == 0 {
		lines = []string{c.GeneralSuffix}
		if len(c.General) > 0 {
			lines = []string{c.General[s.FollowUps%len(c.General)], c.GeneralSuffix}
		}
		s.FollowUps++
	}
	e.say(s, lines...)
	return resultReply
}

func (e *Engine) vars(s *Session) Vars {
	return Vars{Name: s.Contact.Name, Owner: e.owner, Phone: e.phone}
}

func (e *Engine) say(s *Session, lines ...string) {
	e.sayWith(s, e.vars(s), lines...)
}

func (e *Engine) sayWith(s *Session, vars Vars, lines ...string) {
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		s.Transcript.Append(Message{Text: vars.Render(line), Origin: OriginBot}, e.now())
	}
}
