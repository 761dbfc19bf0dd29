package webchat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/figures-solutions/leadchat/internal/chat"
	"github.com/figures-solutions/leadchat/internal/leads"
	"github.com/figures-solutions/leadchat/pkg/logging"
)

// blockingSubmitter holds Submit open until release is closed.
type blockingSubmitter struct {
	mu      sync.Mutex
	calls   []leads.ContactRecord
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSubmitter) Submit(_ context.Context, rec leads.ContactRecord) (*leads.SubmissionResult, error) {
	b.mu.Lock()
	b.calls = append(b.calls, rec)
	b.mu.Unlock()
	if b.entered != nil {
		b.entered <- struct{}{}
		<-b.release
	}
	return &leads.SubmissionResult{Success: true, RecordID: "recNEW", ClientName: rec.Name, TallyFormLink: "https://tally.so/r/x"}, nil
}

// flakyStore fails the next Save when failNext is set.
type flakyStore struct {
	*chat.MemoryStore
	mu       sync.Mutex
	failNext bool
}

func (f *flakyStore) Save(ctx context.Context, s *chat.Session) error {
	f.mu.Lock()
	fail := f.failNext
	f.failNext = false
	f.mu.Unlock()
	if fail {
		return errors.New("redis: connection refused")
	}
	return f.MemoryStore.Save(ctx, s)
}

func newTestHandler(t *testing.T, sub chat.Submitter) (*Handler, http.Handler) {
	t.Helper()
	return newTestHandlerWithStore(t, sub, chat.NewMemoryStore(time.Hour))
}

func newTestHandlerWithStore(t *testing.T, sub chat.Submitter, store chat.SessionStore) (*Handler, http.Handler) {
	t.Helper()
	logger := logging.New("error")
	var engines []*chat.Engine
	for _, name := range []string{chat.ScriptServiceFirst, chat.ScriptContactFirst} {
		script, err := chat.LoadScript(name)
		require.NoError(t, err)
		engines = append(engines, chat.NewEngine(script, sub, logger))
	}
	h := NewHandler(store, logger, engines...)

	r := chi.NewRouter()
	r.Post("/api/chat/sessions", h.CreateSession)
	r.Get("/api/chat/sessions/{id}", h.GetSession)
	r.Post("/api/chat/sessions/{id}/messages", h.PostMessage)
	r.Get("/api/chat/ws", h.HandleWebSocket)
	return h, r
}

func doJSON(t *testing.T, router http.Handler, method, path, body string, out any) int {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w.Code
}

func createSession(t *testing.T, router http.Handler, body string) SessionResponse {
	t.Helper()
	var resp SessionResponse
	require.Equal(t, http.StatusCreated, doJSON(t, router, http.MethodPost, "/api/chat/sessions", body, &resp))
	return resp
}

func say(t *testing.T, router http.Handler, id, text string) (int, TurnResponse) {
	t.Helper()
	payload, _ := json.Marshal(map[string]string{"text": text})
	var resp TurnResponse
	code := doJSON(t, router, http.MethodPost, "/api/chat/sessions/"+id+"/messages", string(payload), &resp)
	return code, resp
}

func TestCreateSession_DefaultScript(t *testing.T) {
	_, router := newTestHandler(t, &blockingSubmitter{})
	resp := createSession(t, router, "")
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, chat.ScriptServiceFirst, resp.Script)
	assert.Equal(t, chat.PhaseWelcome, resp.Phase)
	assert.Len(t, resp.Messages, 2)
}

func TestCreateSession_ContactFirst(t *testing.T) {
	_, router := newTestHandler(t, &blockingSubmitter{})
	resp := createSession(t, router, `{"script":"contact_first"}`)
	assert.Equal(t, chat.PhaseCollectingName, resp.Phase)
}

func TestCreateSession_UnknownScript(t *testing.T) {
	_, router := newTestHandler(t, &blockingSubmitter{})
	code := doJSON(t, router, http.MethodPost, "/api/chat/sessions", `{"script":"pirate"}`, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestPostMessage_FullConversation(t *testing.T) {
	sub := &blockingSubmitter{}
	_, router := newTestHandler(t, sub)
	id := createSession(t, router, "").SessionID

	code, turn := say(t, router, id, "I need a website")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, chat.PhaseCollectingName, turn.Phase)

	_, turn = say(t, router, id, "J")
	require.NotNil(t, turn.FieldError)
	assert.Equal(t, "name", turn.FieldError.Field)
	assert.Empty(t, turn.Messages)

	say(t, router, id, "Jane Doe")
	say(t, router, id, "jane@example.com")
	_, turn = say(t, router, id, "6162285159")
	assert.Equal(t, chat.PhaseComplete, turn.Phase)

	var link *chat.Message
	for i := range turn.Messages {
		if turn.Messages[i].IsLink {
			link = &turn.Messages[i]
		}
	}
	require.NotNil(t, link)
	assert.Equal(t, "https://tally.so/r/x", link.LinkURL)
	require.Len(t, sub.calls, 1)

	var session SessionResponse
	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodGet, "/api/chat/sessions/"+id, "", &session))
	assert.Equal(t, chat.PhaseComplete, session.Phase)
	assert.True(t, session.Submitted)
	assert.Equal(t, chat.OriginUser, session.Messages[2].Origin)
}

func TestPostMessage_UnknownSession(t *testing.T) {
	_, router := newTestHandler(t, &blockingSubmitter{})
	code, _ := say(t, router, "missing", "hello")
	assert.Equal(t, http.StatusNotFound, code)

	code = doJSON(t, router, http.MethodGet, "/api/chat/sessions/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPostMessage_ErrorBodies(t *testing.T) {
	sub := &blockingSubmitter{entered: make(chan struct{}), release: make(chan struct{})}
	_, router := newTestHandler(t, sub)

	var missing map[string]any
	assert.Equal(t, http.StatusNotFound, doJSON(t, router, http.MethodPost, "/api/chat/sessions/missing/messages", `{"text":"hi"}`, &missing))
	assert.IsType(t, "", missing["error"])

	id := createSession(t, router, "").SessionID
	say(t, router, id, "website")
	code, turn := say(t, router, id, "J")
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, turn.FieldError)
	assert.Equal(t, "name", turn.FieldError.Field)
	assert.NotEmpty(t, turn.FieldError.Message)

	say(t, router, id, "Jane Doe")
	say(t, router, id, "jane@example.com")
	done := make(chan struct{})
	go func() {
		defer close(done)
		req := httptest.NewRequest(http.MethodPost, "/api/chat/sessions/"+id+"/messages", strings.NewReader(`{"text":"6162285159"}`))
		router.ServeHTTP(httptest.NewRecorder(), req)
	}()
	<-sub.entered

	var busy map[string]any
	assert.Equal(t, http.StatusConflict, doJSON(t, router, http.MethodPost, "/api/chat/sessions/"+id+"/messages", `{"text":"6162285159"}`, &busy))
	assert.IsType(t, "", busy["error"])
	_, hasFieldError := busy["field_error"]
	assert.False(t, hasFieldError)

	close(sub.release)
	<-done
}

func TestPostMessage_SaveFailureDoesNotResubmit(t *testing.T) {
	sub := &blockingSubmitter{}
	store := &flakyStore{MemoryStore: chat.NewMemoryStore(time.Hour)}
	_, router := newTestHandlerWithStore(t, sub, store)
	id := createSession(t, router, "").SessionID
	for _, in := range []string{"website", "Jane Doe", "jane@example.com"} {
		say(t, router, id, in)
	}

	store.mu.Lock()
	store.failNext = true
	store.mu.Unlock()
	code, turn := say(t, router, id, "6162285159")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, chat.PhaseComplete, turn.Phase)

	stale, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, stale.Submitted)

	var session SessionResponse
	require.Equal(t, http.StatusOK, doJSON(t, router, http.MethodGet, "/api/chat/sessions/"+id, "", &session))
	assert.True(t, session.Submitted)

	code, turn = say(t, router, id, "6162285159")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, chat.PhaseComplete, turn.Phase)
	assert.Len(t, sub.calls, 1)

	saved, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, saved.Submitted)
	assert.Equal(t, chat.PhaseComplete, saved.Phase)
}

func TestPostMessage_BadBody(t *testing.T) {
	_, router := newTestHandler(t, &blockingSubmitter{})
	id := createSession(t, router, "").SessionID
	code := doJSON(t, router, http.MethodPost, "/api/chat/sessions/"+id+"/messages", "{", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestPostMessage_OverlappingTurnRejected(t *testing.T) {
	sub := &blockingSubmitter{entered: make(chan struct{}), release: make(chan struct{})}
	_, router := newTestHandler(t, sub)
	id := createSession(t, router, "").SessionID
	for _, in := range []string{"website", "Jane Doe", "jane@example.com"} {
		say(t, router, id, in)
	}

	done := make(chan TurnResponse)
	go func() {
		payload := `{"text":"6162285159"}`
		req := httptest.NewRequest(http.MethodPost, "/api/chat/sessions/"+id+"/messages", strings.NewReader(payload))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		var resp TurnResponse
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
		done <- resp
	}()

	<-sub.entered
	code, _ := say(t, router, id, "6162285159")
	assert.Equal(t, http.StatusConflict, code)

	close(sub.release)
	first := <-done
	assert.Equal(t, chat.PhaseComplete, first.Phase)
	assert.Len(t, sub.calls, 1)
}

func TestWebSocket_Conversation(t *testing.T) {
	h, router := newTestHandler(t, &blockingSubmitter{})
	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/chat/ws"
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	require.NoError(t, err)
	defer conn.Close()

	var sessionMsg, history OutboundMessage
	require.NoError(t, websocket.JSON.Receive(conn, &sessionMsg))
	assert.Equal(t, "session", sessionMsg.Type)
	require.NotEmpty(t, sessionMsg.SessionID)
	require.NoError(t, websocket.JSON.Receive(conn, &history))
	assert.Equal(t, "history", history.Type)
	assert.Len(t, history.Messages, 2)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "ping"}))
	var pong OutboundMessage
	require.NoError(t, websocket.JSON.Receive(conn, &pong))
	assert.Equal(t, "pong", pong.Type)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "message", Text: "What can you do?"}))
	var reply OutboundMessage
	require.NoError(t, websocket.JSON.Receive(conn, &reply))
	assert.Equal(t, "message", reply.Type)
	assert.Equal(t, chat.PhaseWelcome, reply.Phase)
	assert.Len(t, reply.Messages, 3)

	assert.Eventually(t, func() bool { return h.ActiveConnections() == 1 }, time.Second, 10*time.Millisecond)
}

func TestWebSocket_ResumesSession(t *testing.T) {
	_, router := newTestHandler(t, &blockingSubmitter{})
	id := createSession(t, router, "").SessionID
	say(t, router, id, "automation")

	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/chat/ws?session=" + id
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	require.NoError(t, err)
	defer conn.Close()

	var sessionMsg, history OutboundMessage
	require.NoError(t, websocket.JSON.Receive(conn, &sessionMsg))
	assert.Equal(t, id, sessionMsg.SessionID)
	assert.Equal(t, chat.PhaseCollectingName, sessionMsg.Phase)
	require.NoError(t, websocket.JSON.Receive(conn, &history))
	assert.Len(t, history.Messages, 5)
}
