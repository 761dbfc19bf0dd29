package leads

import (
	"strings"
	"time"
)

// ServiceTypeContact marks a lead that asked to talk to a person rather than
// naming a service.
const ServiceTypeContact = "contact"

// ContactRecord is the lead contact info collected by the chat widget.
type ContactRecord struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	ServiceType string `json:"serviceType,omitempty"`
}

// Validate checks the record the same way the contact endpoint does.
func (r ContactRecord) Validate() error {
	if strings.TrimSpace(r.Name) == "" || strings.TrimSpace(r.Email) == "" || strings.TrimSpace(r.Phone) == "" {
		return &ValidationError{Field: FieldRequired, Message: msgMissingFields}
	}
	if !ValidateEmail(r.Email) {
		return &ValidationError{Field: FieldEmail, Message: msgInvalidEmail}
	}
	if !ValidatePhone(r.Phone) {
		return &ValidationError{Field: FieldPhone, Message: msgInvalidPhone}
	}
	return nil
}

// SubmissionResult is what a Submitter reports back once the record exists
// upstream.
type SubmissionResult struct {
	Success       bool      `json:"success"`
	RecordID      string    `json:"recordId"`
	ClientName    string    `json:"clientName"`
	TallyFormLink string    `json:"tallyFormLink,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// HasLink reports whether the upstream service generated a survey link.
func (r *SubmissionResult) HasLink() bool {
	return r != nil && strings.TrimSpace(r.TallyFormLink) != ""
}

// Outcome labels a submission attempt in the audit log and metrics.
type Outcome string

const (
	OutcomeCreated      Outcome = "created"
	OutcomeNoLink       Outcome = "created_no_link"
	OutcomeCreateFailed Outcome = "create_failed"
	OutcomeLookupFailed Outcome = "lookup_failed"
	OutcomeNotFound     Outcome = "not_found"
	OutcomeInvalid      Outcome = "invalid"
)

// Submission is one audit row describing a submission attempt.
type Submission struct {
	ID            string    `json:"id"`
	RecordID      string    `json:"record_id,omitempty"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	ServiceType   string    `json:"service_type,omitempty"`
	Outcome       Outcome   `json:"outcome"`
	TallyFormLink string    `json:"tally_form_link,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
