package leads

import (
	"errors"
	"fmt"
)

var (
	// ErrUpstreamCreate is matched by errors.Is when the create call failed.
	ErrUpstreamCreate = errors.New("failed to create contact record")

	// ErrUpstreamLookup is matched by errors.Is when the lookup call failed.
	ErrUpstreamLookup = errors.New("failed to retrieve record details")

	// ErrRecordNotFound is returned when the created row is not visible to the lookup.
	ErrRecordNotFound = errors.New("record not found after creation")

	// ErrNotConfigured is returned by a Service without an upstream client.
	ErrNotConfigured = errors.New("leads: upstream not configured")
)

// Field names used by ValidationError.
const (
	FieldRequired = "required"
	FieldName     = "name"
	FieldEmail    = "email"
	FieldPhone    = "phone"
)

const (
	msgMissingFields = "Missing required fields"
	msgInvalidEmail  = "Invalid email format"
	msgInvalidPhone  = "Invalid phone format"
)

// ValidationError reports a missing or malformed contact field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("leads: %s: %s", e.Field, e.Message)
}

// Op identifies which upstream call failed.
type Op string

const (
	OpCreate Op = "create"
	OpLookup Op = "lookup"
)

// UpstreamError wraps a failed call against the record-keeping service.
// Details holds the upstream response body, when one was read.
type UpstreamError struct {
	Op      Op
	Status  int
	Details string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("leads: upstream %s failed (status %d): %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("leads: upstream %s failed: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Is lets callers match on the operation with ErrUpstreamCreate/ErrUpstreamLookup.
func (e *UpstreamError) Is(target error) bool {
	switch target {
	case ErrUpstreamCreate:
		return e.Op == OpCreate
	case ErrUpstreamLookup:
		return e.Op == OpLookup
	}
	return false
}

// NotFoundError is returned when create succeeded but the lookup returned no rows.
// The row exists upstream under RecordID.
type NotFoundError struct {
	RecordID string
	Email    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("leads: %v (record %s)", ErrRecordNotFound, e.RecordID)
}

func (e *NotFoundError) Unwrap() error { return ErrRecordNotFound }
