package leads

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/figures-solutions/leadchat/pkg/logging"
)

const (
	msgMethodNotAllowed = "Method not allowed"
	msgNotFound         = "Record not found after creation"
	msgCreateFailed     = "Failed to create contact record"
	msgLookupFailed     = "Failed to retrieve record details"
	msgInternal         = "Internal server error"
	msgProcessFailed    = "Failed to process contact submission"
	msgSuccess          = "Contact created and Tally form retrieved successfully"
)

// RequiredFields lists the fields a contact submission must carry.
var RequiredFields = []string{"name", "email", "phone"}

// ContactSubmitter is what the endpoint needs from the submission layer.
type ContactSubmitter interface {
	Submit(ctx context.Context, rec ContactRecord) (*SubmissionResult, error)
}

// CreateContactRequest is the endpoint's JSON body.
type CreateContactRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// ContactResponse is the 200 body.
type ContactResponse struct {
	Success       bool    `json:"success"`
	Message       string  `json:"message"`
	RecordID      string  `json:"recordId"`
	ClientName    string  `json:"clientName"`
	TallyFormLink *string `json:"tallyFormLink"`
	Timestamp     string  `json:"timestamp"`
}

// ErrorResponse is every non-200 body.
type ErrorResponse struct {
	Error    string   `json:"error"`
	Required []string `json:"required,omitempty"`
	Details  string   `json:"details,omitempty"`
	Message  string   `json:"message,omitempty"`
}

// Response is a transport-neutral result of Endpoint.Process. A nil Body
// means an empty response body.
type Response struct {
	Status int
	Body   any
}

// CORSHeaders are sent with every contact endpoint response.
func CORSHeaders() map[string]string {
	return map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Headers": "Content-Type",
		"Access-Control-Allow-Methods": "GET, POST, PUT, DELETE, OPTIONS",
	}
}

// Endpoint implements POST /api/airtable/contact independent of the transport
// (chi handler or API Gateway Lambda).
type Endpoint struct {
	submitter     ContactSubmitter
	exposeDetails bool
	logger        *logging.Logger
}

// NewEndpoint creates the endpoint. exposeDetails controls whether upstream
// response bodies are returned to callers; keep it off in production.
func NewEndpoint(submitter ContactSubmitter, exposeDetails bool, logger *logging.Logger) *Endpoint {
	if logger == nil {
		logger = logging.Default()
	}
	return &Endpoint{
		submitter:     submitter,
		exposeDetails: exposeDetails,
		logger:        logger.Component("contact_endpoint"),
	}
}

// Process handles one request.
func (e *Endpoint) Process(ctx context.Context, method string, body []byte) Response {
	switch method {
	case http.MethodOptions:
		return Response{Status: http.StatusOK}
	case http.MethodPost:
	default:
		return Response{Status: http.StatusMethodNotAllowed, Body: ErrorResponse{Error: msgMethodNotAllowed}}
	}

	var req CreateContactRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			e.logger.Error("failed to decode contact submission", "error", err)
			return Response{Status: http.StatusInternalServerError, Body: ErrorResponse{Error: msgInternal, Message: msgProcessFailed}}
		}
	}

	rec := ContactRecord{Name: req.Name, Email: req.Email, Phone: req.Phone}
	if err := rec.Validate(); err != nil {
		return e.validationResponse(err)
	}

	result, err := e.submitter.Submit(ctx, rec)
	if err != nil {
		return e.errorResponse(err)
	}

	var link *string
	if result.HasLink() {
		l := result.TallyFormLink
		link = &l
	}
	ts := result.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return Response{Status: http.StatusOK, Body: ContactResponse{
		Success:       true,
		Message:       msgSuccess,
		RecordID:      result.RecordID,
		ClientName:    result.ClientName,
		TallyFormLink: link,
		Timestamp:     ts.UTC().Format(time.RFC3339Nano),
	}}
}

func (e *Endpoint) validationResponse(err error) Response {
	var verr *ValidationError
	if !errors.As(err, &verr) {
		return e.errorResponse(err)
	}
	if verr.Field == FieldRequired {
		return Response{Status: http.StatusBadRequest, Body: ErrorResponse{Error: msgMissingFields, Required: RequiredFields}}
	}
	return Response{Status: http.StatusBadRequest, Body: ErrorResponse{Error: verr.Message}}
}

func (e *Endpoint) errorResponse(err error) Response {
	var (
		verr  *ValidationError
		upErr *UpstreamError
	)
	switch {
	case errors.As(err, &verr):
		return e.validationResponse(err)
	case errors.Is(err, ErrRecordNotFound):
		return Response{Status: http.StatusNotFound, Body: ErrorResponse{Error: msgNotFound}}
	case errors.As(err, &upErr):
		msg := msgCreateFailed
		if upErr.Op == OpLookup {
			msg = msgLookupFailed
		}
		resp := ErrorResponse{Error: msg}
		if e.exposeDetails {
			resp.Details = upErr.Details
		}
		return Response{Status: http.StatusInternalServerError, Body: resp}
	default:
		e.logger.Error("contact submission error", "error", err)
		return Response{Status: http.StatusInternalServerError, Body: ErrorResponse{Error: msgInternal, Message: msgProcessFailed}}
	}
}
