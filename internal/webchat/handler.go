package webchat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"golang.org/x/net/websocket"

	"github.com/figures-solutions/leadchat/internal/chat"
	"github.com/figures-solutions/leadchat/pkg/logging"
)

// ErrBusy is returned when a turn for the same session is still running.
var ErrBusy = errors.New("webchat: session is processing another message")

// ErrUnknownScript is returned when a session asks for a script no engine runs.
var ErrUnknownScript = errors.New("webchat: unknown script")

const maxBody = 16 << 10

// Handler serves the chat widget over HTTP and WebSocket.
type Handler struct {
	engines       map[string]*chat.Engine
	defaultScript string
	store         chat.SessionStore
	locks         *turnLocks
	logger        *logging.Logger

	mu    sync.RWMutex
	conns map[string]*wsConn // sessionID -> active connection

	// unsaved holds sessions whose last store write failed. They are served
	// from here until a later write succeeds.
	unsavedMu sync.Mutex
	unsaved   map[string][]byte
}

type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) send(msg OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return websocket.JSON.Send(c.conn, msg)
}

// InboundMessage is what the widget sends over the socket.
type InboundMessage struct {
	Type string `json:"type"` // "message", "ping"
	Text string `json:"text"`
}

// OutboundMessage is what we send to the widget over the socket.
type OutboundMessage struct {
	Type       string           `json:"type"` // "session", "history", "message", "pong", "error"
	SessionID  string           `json:"session_id,omitempty"`
	Phase      chat.Phase       `json:"phase,omitempty"`
	Messages   []chat.Message   `json:"messages,omitempty"`
	FieldError *chat.FieldError `json:"field_error,omitempty"`
	Text       string           `json:"text,omitempty"`
}

// SessionResponse is returned when a session is created or read.
type SessionResponse struct {
	SessionID string         `json:"session_id"`
	Script    string         `json:"script"`
	Phase     chat.Phase     `json:"phase"`
	Submitted bool           `json:"submitted"`
	Messages  []chat.Message `json:"messages"`
}

// TurnResponse is returned for one visitor message.
type TurnResponse struct {
	SessionID  string           `json:"session_id"`
	Phase      chat.Phase       `json:"phase"`
	Messages   []chat.Message   `json:"messages"`
	FieldError *chat.FieldError `json:"field_error,omitempty"`
}

// NewHandler creates a web chat handler. The first engine's script is the
// default for new sessions.
func NewHandler(store chat.SessionStore, logger *logging.Logger, engines ...*chat.Engine) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if store == nil {
		store = chat.NewMemoryStore(chat.DefaultSessionTTL)
	}
	h := &Handler{
		engines: make(map[string]*chat.Engine, len(engines)),
		store:   store,
		locks:   newTurnLocks(),
		logger:  logger.Component("webchat"),
		conns:   make(map[string]*wsConn),
		unsaved: make(map[string][]byte),
	}
	for _, e := range engines {
		name := e.Script().Name
		if h.defaultScript == "" {
			h.defaultScript = name
		}
		h.engines[name] = e
	}
	return h
}

// StartSession creates, greets and stores a new session.
func (h *Handler) StartSession(ctx context.Context, script string) (*chat.Session, *chat.Turn, error) {
	if script == "" {
		script = h.defaultScript
	}
	engine, ok := h.engines[script]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownScript, script)
	}
	s := engine.NewSession()
	turn := engine.Start(s)
	if err := h.store.Save(ctx, s); err != nil {
		return nil, nil, err
	}
	h.logger.Info("webchat: session started", "session_id", s.ID, "script", script)
	return s, turn, nil
}

// Turn runs one visitor message against a stored session. Turns of the same
// session never overlap: a second concurrent call gets ErrBusy. A failed store
// write does not fail the turn; the session is kept in process and written
// again on the next turn, so a completed submission is never repeated.
func (h *Handler) Turn(ctx context.Context, sessionID, text string) (*chat.Turn, error) {
	if !h.locks.tryAcquire(sessionID) {
		return nil, ErrBusy
	}
	defer h.locks.release(sessionID)

	s, err := h.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	engine, ok := h.engines[s.Script]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScript, s.Script)
	}
	turn, err := engine.Handle(ctx, s, text)
	if err != nil {
		return nil, err
	}
	h.save(ctx, s)
	return turn, nil
}

// load prefers an unsaved snapshot over the store.
func (h *Handler) load(ctx context.Context, sessionID string) (*chat.Session, error) {
	h.unsavedMu.Lock()
	data, ok := h.unsaved[sessionID]
	h.unsavedMu.Unlock()
	if !ok {
		return h.store.Get(ctx, sessionID)
	}
	var s chat.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("webchat: decode unsaved session: %w", err)
	}
	return &s, nil
}

func (h *Handler) save(ctx context.Context, s *chat.Session) {
	err := h.store.Save(ctx, s)

	h.unsavedMu.Lock()
	defer h.unsavedMu.Unlock()
	if err != nil {
		h.logger.Error("webchat: session save failed; keeping it in process", "session_id", s.ID, "phase", s.Phase, "submitted", s.Submitted, "error", err)
		data, encErr := json.Marshal(s)
		if encErr != nil {
			h.logger.Error("webchat: encode unsaved session", "session_id", s.ID, "error", encErr)
			return
		}
		h.unsaved[s.ID] = data
		return
	}
	delete(h.unsaved, s.ID)
}

// CreateSession handles POST /api/chat/sessions.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Script string `json:"script"`
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	s, turn, err := h.StartSession(r.Context(), req.Script)
	if err != nil {
		h.writeTurnError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, SessionResponse{
		SessionID: s.ID,
		Script:    s.Script,
		Phase:     turn.Phase,
		Messages:  turn.Messages,
	})
}

// PostMessage handles POST /api/chat/sessions/{id}/messages.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	turn, err := h.Turn(r.Context(), sessionID, req.Text)
	if err != nil {
		h.writeTurnError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TurnResponse{
		SessionID:  sessionID,
		Phase:      turn.Phase,
		Messages:   turn.Messages,
		FieldError: turn.FieldError,
	})
}

// GetSession handles GET /api/chat/sessions/{id}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeTurnError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{
		SessionID: s.ID,
		Script:    s.Script,
		Phase:     s.Phase,
		Submitted: s.Submitted,
		Messages:  s.Transcript.All(),
	})
}

// HandleWebSocket upgrades to WebSocket and handles real-time messaging.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	ctx := r.Context()
	wsc := &wsConn{conn: conn}

	s, err := h.openSession(ctx, r.URL.Query().Get("session"), r.URL.Query().Get("script"))
	if err != nil {
		h.logger.Warn("webchat: could not open session", "error", err)
		_ = wsc.send(OutboundMessage{Type: "error", Text: err.Error()})
		return
	}

	_ = wsc.send(OutboundMessage{Type: "session", SessionID: s.ID, Phase: s.Phase})
	_ = wsc.send(OutboundMessage{Type: "history", SessionID: s.ID, Phase: s.Phase, Messages: s.Transcript.All()})

	h.mu.Lock()
	h.conns[s.ID] = wsc
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		if h.conns[s.ID] == wsc {
			delete(h.conns, s.ID)
		}
		h.mu.Unlock()
	}()

	h.logger.Info("webchat: connection opened", "session_id", s.ID)

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("webchat: connection closed", "session_id", s.ID, "error", err)
			return
		}

		switch msg.Type {
		case "ping":
			_ = wsc.send(OutboundMessage{Type: "pong"})
		case "message":
			turn, err := h.Turn(ctx, s.ID, msg.Text)
			if err != nil {
				h.logger.Warn("webchat: turn failed", "session_id", s.ID, "error", err)
				_ = wsc.send(OutboundMessage{Type: "error", SessionID: s.ID, Text: publicError(err)})
				continue
			}
			_ = wsc.send(OutboundMessage{
				Type:       "message",
				SessionID:  s.ID,
				Phase:      turn.Phase,
				Messages:   turn.Messages,
				FieldError: turn.FieldError,
			})
		}
	}
}

// openSession resumes sessionID or starts a new session when it is empty or
// expired.
func (h *Handler) openSession(ctx context.Context, sessionID, script string) (*chat.Session, error) {
	if sessionID != "" {
		s, err := h.load(ctx, sessionID)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, chat.ErrSessionNotFound) {
			return nil, err
		}
	}
	s, _, err := h.StartSession(ctx, script)
	return s, err
}

// ActiveConnections returns the number of open sockets.
func (h *Handler) ActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Handler) writeTurnError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, chat.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrBusy):
		status = http.StatusConflict
	case errors.Is(err, ErrUnknownScript), errors.Is(err, chat.ErrNotStarted):
		status = http.StatusBadRequest
	default:
		h.logger.Error("webchat: request failed", "error", err)
	}
	writeError(w, status, publicError(err))
}

func publicError(err error) string {
	switch {
	case errors.Is(err, chat.ErrSessionNotFound):
		return "session not found"
	case errors.Is(err, ErrBusy):
		return "still working on your last message"
	case errors.Is(err, ErrUnknownScript):
		return err.Error()
	default:
		return "Sorry, something went wrong. Please try again."
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// turnLocks marks sessions with a turn in flight.
type turnLocks struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

func newTurnLocks() *turnLocks {
	return &turnLocks{busy: make(map[string]struct{})}
}

func (l *turnLocks) tryAcquire(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, held := l.busy[id]; held {
		return false
	}
	l.busy[id] = struct{}{}
	return true
}

func (l *turnLocks) release(id string) {
	l.mu.Lock()
	delete(l.busy, id)
	l.mu.Unlock()
}
