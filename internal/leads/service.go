package leads

import (
	"context"
	"errors"
	"time"

	"github.com/figures-solutions/leadchat/internal/airtable"
	"github.com/figures-solutions/leadchat/internal/observability/metrics"
	"github.com/figures-solutions/leadchat/pkg/logging"
)

// Upstream is the record-keeping service contract used by Service.
type Upstream interface {
	CreateRecord(ctx context.Context, fields airtable.Fields) (*airtable.Record, error)
	FindByEmail(ctx context.Context, email string) ([]airtable.Record, error)
}

// Notifier tells a human about a new lead.
type Notifier interface {
	NotifyNewLead(ctx context.Context, rec ContactRecord, res *SubmissionResult) error
}

// Service performs the create-then-lookup submission against the upstream service.
type Service struct {
	upstream Upstream
	repo     Repository
	notifier Notifier
	metrics  *metrics.LeadMetrics
	logger   *logging.Logger
	now      func() time.Time
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithRepository records every attempt in repo.
func WithRepository(repo Repository) ServiceOption {
	return func(s *Service) { s.repo = repo }
}

// WithNotifier sends a notification after each successful submission.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) { s.notifier = n }
}

// WithMetrics counts submissions by outcome.
func WithMetrics(m *metrics.LeadMetrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a submission service. A nil upstream makes every Submit
// fail with ErrNotConfigured.
func NewService(upstream Upstream, logger *logging.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		upstream: upstream,
		logger:   logger.Component("leads"),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit creates the record upstream, then reads it back by email to pick up
// the generated survey link. There is no retry: every failure ends the attempt.
func (s *Service) Submit(ctx context.Context, rec ContactRecord) (*SubmissionResult, error) {
	if err := rec.Validate(); err != nil {
		s.finish(ctx, rec, OutcomeInvalid, nil)
		return nil, err
	}
	if s.upstream == nil {
		return nil, ErrNotConfigured
	}

	s.logger.Info("creating contact record", "email", rec.Email, "service_type", rec.ServiceType)
	created, err := s.upstream.CreateRecord(ctx, airtable.Fields{
		airtable.FieldClientName: rec.Name,
		airtable.FieldEmail:      rec.Email,
		airtable.FieldPhone:      rec.Phone,
	})
	if err != nil {
		upErr := upstreamError(OpCreate, err)
		s.logger.Error("contact record create failed", "error", err, "status", upErr.Status, "details", upErr.Details)
		s.finish(ctx, rec, OutcomeCreateFailed, nil)
		return nil, upErr
	}
	s.logger.Info("created contact record", "record_id", created.ID)

	found, err := s.upstream.FindByEmail(ctx, rec.Email)
	if err != nil {
		upErr := upstreamError(OpLookup, err)
		s.logger.Error("contact record lookup failed", "error", err, "record_id", created.ID, "status", upErr.Status, "details", upErr.Details)
		s.finish(ctx, rec, OutcomeLookupFailed, &SubmissionResult{RecordID: created.ID})
		return nil, upErr
	}
	if len(found) == 0 {
		s.logger.Warn("contact record not visible after creation", "record_id", created.ID)
		s.finish(ctx, rec, OutcomeNotFound, &SubmissionResult{RecordID: created.ID})
		return nil, &NotFoundError{RecordID: created.ID, Email: rec.Email}
	}

	result := &SubmissionResult{
		Success:       true,
		RecordID:      created.ID,
		ClientName:    rec.Name,
		TallyFormLink: pickRecord(found, created.ID).Fields.String(airtable.FieldTallyLink),
		Timestamp:     s.now(),
	}
	outcome := OutcomeCreated
	if !result.HasLink() {
		outcome = OutcomeNoLink
	}
	s.logger.Info("contact submission complete", "record_id", result.RecordID, "has_link", result.HasLink())
	s.finish(ctx, rec, outcome, result)

	if s.notifier != nil {
		if err := s.notifier.NotifyNewLead(ctx, rec, result); err != nil {
			s.logger.Warn("lead notification failed", "error", err, "record_id", result.RecordID)
		}
	}
	return result, nil
}

// RecentSubmissions lists the audit trail, newest first.
func (s *Service) RecentSubmissions(ctx context.Context, limit int) ([]*Submission, error) {
	if s.repo == nil {
		return []*Submission{}, nil
	}
	return s.repo.ListRecent(ctx, limit)
}

func (s *Service) finish(ctx context.Context, rec ContactRecord, outcome Outcome, res *SubmissionResult) {
	s.metrics.ObserveSubmission(string(outcome))
	if s.repo == nil {
		return
	}
	sub := &Submission{
		Name:        rec.Name,
		Email:       rec.Email,
		Phone:       rec.Phone,
		ServiceType: rec.ServiceType,
		Outcome:     outcome,
		CreatedAt:   s.now(),
	}
	if res != nil {
		sub.RecordID = res.RecordID
		sub.TallyFormLink = res.TallyFormLink
	}
	if err := s.repo.Record(ctx, sub); err != nil {
		s.logger.Warn("failed to record submission", "error", err, "outcome", outcome)
	}
}

func upstreamError(op Op, err error) *UpstreamError {
	out := &UpstreamError{Op: op, Err: err, Details: err.Error()}
	var apiErr *airtable.APIError
	if errors.As(err, &apiErr) {
		out.Status = apiErr.StatusCode
		out.Details = apiErr.Body
	}
	return out
}

// pickRecord returns the record with the given id, or the first one.
func pickRecord(found []airtable.Record, id string) airtable.Record {
	for _, r := range found {
		if r.ID == id {
			return r
		}
	}
	return found[0]
}
