package airtable

import (
	"errors"
	"fmt"
	"strings"
)

// Field names in the Clients table.
const (
	FieldClientName = "Client Name"
	FieldEmail      = "Email"
	FieldPhone      = "Phone"
	FieldTallyLink  = "Unique Tally Form Link"
)

// ErrEmptyResponse is returned when a create call succeeds without echoing a record.
var ErrEmptyResponse = errors.New("airtable: response contained no records")

// Fields is the column-name keyed payload of a record.
type Fields map[string]any

// String returns the field as a string, or "" when absent or not a string.
func (f Fields) String(name string) string {
	v, ok := f[name]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// Record is a single table row.
type Record struct {
	ID          string `json:"id,omitempty"`
	CreatedTime string `json:"createdTime,omitempty"`
	Fields      Fields `json:"fields"`
}

type recordsEnvelope struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset,omitempty"`
}

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("airtable API returned %d: %s", e.StatusCode, e.Body)
}
