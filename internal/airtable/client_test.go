package airtable

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/figures-solutions/leadchat/internal/observability/metrics"
	"github.com/figures-solutions/leadchat/pkg/logging"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewClient(Config{
		BaseURL:   ts.URL,
		APIKey:    "pat-test",
		BaseID:    "appBase",
		TableName: "Clients",
	}, logging.New("error"), WithMetrics(metrics.NewLeadMetrics(prometheus.NewRegistry())))
}

func TestCreateRecord_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v0/appBase/Clients", r.URL.Path)
		assert.Equal(t, "Bearer pat-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		raw, _ := io.ReadAll(r.Body)
		var body struct {
			Records []struct {
				Fields map[string]string `json:"fields"`
			} `json:"records"`
		}
		require.NoError(t, json.Unmarshal(raw, &body))
		require.Len(t, body.Records, 1)
		assert.Equal(t, "Jane Doe", body.Records[0].Fields["Client Name"])
		assert.Equal(t, "jane@example.com", body.Records[0].Fields["Email"])
		assert.Equal(t, "6162285159", body.Records[0].Fields["Phone"])

		_, _ = w.Write([]byte(`{"records":[{"id":"recABC","createdTime":"2026-01-01T00:00:00.000Z","fields":{"Client Name":"Jane Doe"}}]}`))
	})

	rec, err := client.CreateRecord(context.Background(), Fields{
		FieldClientName: "Jane Doe",
		FieldEmail:      "jane@example.com",
		FieldPhone:      "6162285159",
	})
	require.NoError(t, err)
	assert.Equal(t, "recABC", rec.ID)
	assert.Equal(t, "Jane Doe", rec.Fields.String(FieldClientName))
}

func TestCreateRecord_HTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":{"type":"INVALID_VALUE_FOR_COLUMN"}}`))
	})

	_, err := client.CreateRecord(context.Background(), Fields{FieldEmail: "x@y.z"})
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "INVALID_VALUE_FOR_COLUMN")
}

func TestCreateRecord_EmptyRecords(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"records":[]}`))
	})

	_, err := client.CreateRecord(context.Background(), Fields{})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestCreateRecord_InvalidJSON(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"records":[`))
	})

	_, err := client.CreateRecord(context.Background(), Fields{})
	require.Error(t, err)
}

func TestFindByEmail_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v0/appBase/Clients", r.URL.Path)
		assert.Equal(t, "({Email}='jane@example.com')", r.URL.Query().Get("filterByFormula"))
		assert.Empty(t, r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"records":[{"id":"recABC","fields":{"Email":"jane@example.com","Unique Tally Form Link":" https://tally.so/r/abc?id=recABC "}}]}`))
	})

	records, err := client.FindByEmail(context.Background(), "jane@example.com")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "https://tally.so/r/abc?id=recABC", records[0].Fields.String(FieldTallyLink))
}

func TestFindByEmail_NoRecords(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"records":[]}`))
	})

	records, err := client.FindByEmail(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFindByEmail_HTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream failed", http.StatusBadGateway)
	})

	_, err := client.FindByEmail(context.Background(), "jane@example.com")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
}

func TestEmailFormula_Escapes(t *testing.T) {
	assert.Equal(t, `({Email}='o\'brien@example.com')`, EmailFormula("o'brien@example.com"))
	assert.Equal(t, `({Email}='a\\b@example.com')`, EmailFormula(`a\b@example.com`))
}

func TestFieldsString(t *testing.T) {
	f := Fields{"a": "x", "b": 3, "c": nil}
	assert.Equal(t, "x", f.String("a"))
	assert.Equal(t, "", f.String("b"))
	assert.Equal(t, "", f.String("c"))
	assert.Equal(t, "", f.String("missing"))
}

func TestClient_ContextCancelled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		_, _ = w.Write([]byte(`{"records":[]}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.FindByEmail(ctx, "jane@example.com")
	require.Error(t, err)
}
