package chat

import (
	"time"

	"github.com/google/uuid"

	"github.com/figures-solutions/leadchat/internal/leads"
)

// Session is one conversation: its phase, the contact info collected so far
// and the transcript. It is serialized as JSON by the session stores.
type Session struct {
	ID         string              `json:"id"`
	Script     string              `json:"script"`
	Phase      Phase               `json:"phase"`
	Contact    leads.ContactRecord `json:"contact"`
	Transcript Transcript          `json:"transcript"`
	Submitted  bool                `json:"submitted"`
	RecordID   string              `json:"record_id,omitempty"`
	SurveyLink string              `json:"survey_link,omitempty"`
	FollowUps  int                 `json:"follow_ups"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// NewSession returns a session in PhaseReady.
func NewSession(script string, now time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Script:    script,
		Phase:     PhaseReady,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// FieldError is a field-specific validation message for the input box. It is
// not part of the transcript.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Turn is the result of one Start or Handle call.
type Turn struct {
	Phase      Phase       `json:"phase"`
	Messages   []Message   `json:"messages"`
	FieldError *FieldError `json:"field_error,omitempty"`
}
