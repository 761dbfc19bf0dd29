package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/figures-solutions/leadchat/internal/http/middleware"
	"github.com/figures-solutions/leadchat/internal/leads"
	"github.com/figures-solutions/leadchat/internal/webchat"
	"github.com/figures-solutions/leadchat/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	LeadsHandler   *leads.Handler
	ChatHandler    *webchat.Handler
	MetricsHandler http.Handler

	AdminAuthSecret    string
	CORSAllowedOrigins []string

	// Per-IP limit for the public write endpoints. Zero disables it.
	RateLimitRPS   float64
	RateLimitBurst int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	limit := func(next http.Handler) http.Handler { return next }
	if cfg.RateLimitRPS > 0 {
		limit = httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.Logger)
	}

	// The contact endpoint answers CORS itself, including OPTIONS and 405.
	// contactCORS covers responses written before the handler runs.
	if cfg.LeadsHandler != nil {
		r.With(contactCORS, limit).HandleFunc(leads.ContactPath, cfg.LeadsHandler.SubmitContact)
	}

	r.Group(func(api chi.Router) {
		if len(cfg.CORSAllowedOrigins) > 0 {
			api.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
		}
		api.Get("/api/ping", ping)
		if cfg.ChatHandler != nil {
			api.With(limit).Route("/api/chat", func(chat chi.Router) {
				chat.Post("/sessions", cfg.ChatHandler.CreateSession)
				chat.Get("/sessions/{id}", cfg.ChatHandler.GetSession)
				chat.Post("/sessions/{id}/messages", cfg.ChatHandler.PostMessage)
				chat.Get("/ws", cfg.ChatHandler.HandleWebSocket)
				chat.Options("/*", preflight)
			})
		}
	})

	if cfg.AdminAuthSecret != "" && cfg.LeadsHandler != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret, cfg.Logger))
			admin.Get("/submissions", cfg.LeadsHandler.ListSubmissions)
		})
	}

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func preflight(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func ping(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"message": "pong"})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}

func contactCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range leads.CORSHeaders() {
			w.Header().Set(k, v)
		}
		next.ServeHTTP(w, r)
	})
}
