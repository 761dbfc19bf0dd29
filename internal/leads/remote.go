package leads

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/figures-solutions/leadchat/pkg/logging"
)

// ContactPath is the route of the contact endpoint.
const ContactPath = "/api/airtable/contact"

// RemoteSubmitter submits records through a deployed contact endpoint, the
// way the browser widget does.
type RemoteSubmitter struct {
	httpClient *http.Client
	endpoint   string
	logger     *logging.Logger
}

// NewRemoteSubmitter targets baseURL + ContactPath.
func NewRemoteSubmitter(baseURL string, timeout time.Duration, logger *logging.Logger) *RemoteSubmitter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RemoteSubmitter{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   strings.TrimRight(baseURL, "/") + ContactPath,
		logger:     logger.Component("remote_submitter"),
	}
}

// Submit posts the record and maps the endpoint's status codes back onto the
// package's error types.
func (s *RemoteSubmitter) Submit(ctx context.Context, rec ContactRecord) (*SubmissionResult, error) {
	payload, err := json.Marshal(CreateContactRequest{Name: rec.Name, Email: rec.Email, Phone: rec.Phone})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Op: OpCreate, Err: fmt.Errorf("http request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusOK {
		var ok ContactResponse
		if err := json.Unmarshal(body, &ok); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		res := &SubmissionResult{
			Success:    ok.Success,
			RecordID:   ok.RecordID,
			ClientName: ok.ClientName,
		}
		if ok.TallyFormLink != nil {
			res.TallyFormLink = *ok.TallyFormLink
		}
		if ts, err := time.Parse(time.RFC3339Nano, ok.Timestamp); err == nil {
			res.Timestamp = ts
		}
		return res, nil
	}

	var errBody ErrorResponse
	_ = json.Unmarshal(body, &errBody)
	s.logger.Warn("contact endpoint returned error", "status", resp.StatusCode, "error", errBody.Error)

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return nil, remoteValidationError(errBody.Error)
	case http.StatusNotFound:
		return nil, &NotFoundError{Email: rec.Email}
	}

	op := OpCreate
	if errBody.Error == msgLookupFailed {
		op = OpLookup
	}
	cause := errors.New(errBody.Error)
	if errBody.Error == "" {
		cause = fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil, &UpstreamError{Op: op, Status: resp.StatusCode, Details: errBody.Details, Err: cause}
}

func remoteValidationError(msg string) *ValidationError {
	switch msg {
	case msgInvalidEmail:
		return &ValidationError{Field: FieldEmail, Message: msg}
	case msgInvalidPhone:
		return &ValidationError{Field: FieldPhone, Message: msg}
	default:
		return &ValidationError{Field: FieldRequired, Message: msgMissingFields}
	}
}
