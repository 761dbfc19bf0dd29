package leads

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/figures-solutions/leadchat/pkg/logging"
)

const maxContactBody = 64 << 10

// Handler handles HTTP requests for lead submissions
type Handler struct {
	endpoint *Endpoint
	service  *Service
	logger   *logging.Logger
}

// NewHandler creates a new leads handler. service may be nil when the audit
// listing is not exposed.
func NewHandler(endpoint *Endpoint, service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		endpoint: endpoint,
		service:  service,
		logger:   logger,
	}
}

// SubmitContact handles /api/airtable/contact for every method so OPTIONS and
// 405 answers carry the endpoint's CORS headers.
func (h *Handler) SubmitContact(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxContactBody))
	if err != nil {
		h.logger.Error("failed to read request body", "error", err)
		writeResponse(w, Response{Status: http.StatusInternalServerError, Body: ErrorResponse{Error: msgInternal, Message: msgProcessFailed}})
		return
	}
	writeResponse(w, h.endpoint.Process(r.Context(), r.Method, body))
}

// ListSubmissionsResponse is the response for listing submissions
type ListSubmissionsResponse struct {
	Submissions []*Submission `json:"submissions"`
	Count       int           `json:"count"`
	Limit       int           `json:"limit"`
}

// ListSubmissions handles GET /admin/submissions requests
func (h *Handler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if v, err := strconv.Atoi(limitStr); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}
	if h.service == nil {
		http.Error(w, "submission log unavailable", http.StatusServiceUnavailable)
		return
	}

	subs, err := h.service.RecentSubmissions(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list submissions", "error", err)
		http.Error(w, "failed to list submissions", http.StatusInternalServerError)
		return
	}
	if subs == nil {
		subs = []*Submission{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ListSubmissionsResponse{
		Submissions: subs,
		Count:       len(subs),
		Limit:       limit,
	})
}

func writeResponse(w http.ResponseWriter, resp Response) {
	for k, v := range CORSHeaders() {
		w.Header().Set(k, v)
	}
	if resp.Body == nil {
		w.WriteHeader(resp.Status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	_ = json.NewEncoder(w).Encode(resp.Body)
}
