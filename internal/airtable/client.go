package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/figures-solutions/leadchat/internal/observability/metrics"
	"github.com/figures-solutions/leadchat/pkg/logging"
)

const (
	defaultBaseURL = "https://api.airtable.com"
	defaultTimeout = 15 * time.Second
	maxLoggedBody  = 300
)

// Config identifies the table the client writes to.
type Config struct {
	BaseURL   string
	APIKey    string
	BaseID    string
	TableName string
	Timeout   time.Duration
}

// Client wraps the two Airtable REST calls used for lead capture.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	baseID     string
	table      string
	logger     *logging.Logger
	metrics    *metrics.LeadMetrics
	tracer     trace.Tracer
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client (tests, custom transports).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithMetrics records per-call latency.
func WithMetrics(m *metrics.LeadMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient constructs an Airtable client.
func NewClient(cfg Config, logger *logging.Logger, opts ...Option) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.APIKey,
		baseID:     cfg.BaseID,
		table:      cfg.TableName,
		logger:     logger.Component("airtable"),
		tracer:     otel.Tracer("leadchat.internal.airtable"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateRecord inserts one row and returns it as echoed by Airtable.
func (c *Client) CreateRecord(ctx context.Context, fields Fields) (*Record, error) {
	ctx, span := c.tracer.Start(ctx, "airtable.create_record")
	defer span.End()

	body := recordsEnvelope{Records: []Record{{Fields: fields}}}
	var out recordsEnvelope
	if err := c.doJSON(ctx, "create", http.MethodPost, c.tablePath(), body, &out); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create record: %w", err)
	}
	if len(out.Records) == 0 || out.Records[0].ID == "" {
		span.RecordError(ErrEmptyResponse)
		return nil, fmt.Errorf("create record: %w", ErrEmptyResponse)
	}
	span.SetAttributes(attribute.String("airtable.record_id", out.Records[0].ID))
	return &out.Records[0], nil
}

// FindByEmail returns the rows whose Email column equals email. Only the
// first page is read.
func (c *Client) FindByEmail(ctx context.Context, email string) ([]Record, error) {
	ctx, span := c.tracer.Start(ctx, "airtable.find_by_email")
	defer span.End()

	q := url.Values{}
	q.Set("filterByFormula", EmailFormula(email))
	path := c.tablePath() + "?" + q.Encode()

	var out recordsEnvelope
	if err := c.doJSON(ctx, "lookup", http.MethodGet, path, nil, &out); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("find by email: %w", err)
	}
	span.SetAttributes(attribute.Int("airtable.records", len(out.Records)))
	return out.Records, nil
}

// EmailFormula builds ({Email}='value') with the value quoted for Airtable's
// formula language.
func EmailFormula(email string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(email)
	return "({" + FieldEmail + "}='" + escaped + "')"
}

func (c *Client) tablePath() string {
	return fmt.Sprintf("/v0/%s/%s", url.PathEscape(c.baseID), url.PathEscape(c.table))
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, body interface{}, out interface{}) error {
	endpoint := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveUpstream(op, "error", time.Since(start).Seconds())
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveUpstream(op, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(respBody)
		logged := msg
		if len(logged) > maxLoggedBody {
			logged = logged[:maxLoggedBody]
		}
		c.logger.Warn("airtable API non-2xx response", "op", op, "status", resp.StatusCode, "body", logged)
		return &APIError{StatusCode: resp.StatusCode, Body: msg}
	}

	if len(respBody) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
