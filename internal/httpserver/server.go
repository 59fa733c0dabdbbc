// internal/httpserver/server.go
//
// HTTP server wiring for the riddle service.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs, access log).
//   - Public endpoints: "/", "/health".
//   - Game endpoints under /game (one controller per session cookie).
//   - Daily riddle lookup under /riddles, image labels under /labels.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so the session cookie works).
//   - The WebSocket timer route is mounted outside the handler timeout.

package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/riddler/internal/riddles"
	"github.com/robalobadob/riddler/internal/store"
)

// DailyCatalog picks the riddle of the day.
type DailyCatalog interface {
	SelectDaily(t riddles.Tier, date time.Time, salt string) (riddles.Question, bool)
}

// Options carries everything the server needs besides the session store.
type Options struct {
	ClientOrigin   string
	SessionSecret  string
	DailySalt      string
	Catalog        DailyCatalog
	Labeler        Labeler       // nil disables POST /labels
	HandlerTimeout time.Duration // bounds JSON handlers; must exceed the oracle timeout
	TickInterval   time.Duration // WebSocket timer frame period
	Now            func() time.Time
}

// Server bundles router, session store and options.
type Server struct {
	r        *chi.Mux
	store    store.Store
	opts     Options
	key      []byte // session cookie signing key
	upgrader websocket.Upgrader
}

// New constructs a Server, installs middleware, and registers routes.
func New(st store.Store, opts Options) (*Server, error) {
	if opts.ClientOrigin == "" {
		opts.ClientOrigin = "http://localhost:5173"
	}
	if opts.HandlerTimeout <= 0 {
		opts.HandlerTimeout = 45 * time.Second
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	key, err := deriveSessionKey(opts.SessionSecret)
	if err != nil {
		return nil, err
	}

	s := &Server{r: chi.NewRouter(), store: st, opts: opts, key: key}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(requestLogger)   // one zerolog line per request
	s.r.Use(chimw.Recoverer) // recover from panics
	s.r.Use(jsonContentType) // default JSON responses
	s.r.Use(s.cors)          // credentials-friendly CORS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"service": "riddler",
			"endpoints": []string{
				"/health", "GET /game/state", "POST /game/difficulty", "POST /game/select",
				"POST /game/ask", "POST /game/answer", "POST /game/reset", "GET /game/timer (ws)",
				"GET /riddles/daily", "POST /labels",
			},
		})
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "sessions": s.store.Len()})
	})

	// Game endpoints, keyed by the session cookie
	s.r.Group(func(r chi.Router) {
		r.Use(s.withSession)
		r.Get("/game/timer", s.handleTimer)
		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(opts.HandlerTimeout))
			s.mountGame(r)
		})
	})

	s.r.With(chimw.Timeout(opts.HandlerTimeout)).Get("/riddles/daily", s.handleDaily)
	s.r.With(chimw.Timeout(opts.HandlerTimeout)).Post("/labels", s.handleLabels)

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})

	return s, nil
}

// Start serves HTTP on addr until ctx is cancelled, then drains in-flight
// requests for up to ten seconds.
func (s *Server) Start(ctx context.Context, addr string) error {
	hs := &http.Server{
		Addr:              addr,
		Handler:           s.r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- hs.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.opts.ClientOrigin
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkOrigin(r *http.Request) bool {
	o := r.Header.Get("Origin")
	return o == "" || o == s.opts.ClientOrigin
}

// requestLogger writes one access log line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", time.Since(start)).
			Str("reqId", chimw.GetReqID(r.Context())).
			Msg("http")
	})
}

// ------------------------------- small util --------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("encode response")
	}
}
