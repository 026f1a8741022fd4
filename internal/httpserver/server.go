// internal/httpserver/server.go
//
// HTTP server wiring for the word-guessing backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs, access log).
//   - Public endpoints: "/", "/health".
//   - Player endpoints: GET/PUT /player (write-once name preference).
//   - Game endpoints: /game/new, /game/state, /game/guess, /game/hint/*.
//   - Event stream: GET /game/events (Server-Sent Events of session callbacks).
//   - Session tokens (JWT in cookie or bearer header), per-IP rate limiting,
//     idle session sweeping.
//
// Notes:
//   - Each player gets one game.Session held in the store; the token carries its ID.
//   - The SSE route is mounted outside the timeout group so streams stay open.

package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordguess/internal/config"
	"github.com/robalobadob/wordguess/internal/game"
	"github.com/robalobadob/wordguess/internal/store"
	"github.com/robalobadob/wordguess/internal/ticker"
	"github.com/robalobadob/wordguess/internal/words"
)

// requestTimeout bounds every non-streaming handler.
const requestTimeout = 15 * time.Second

// PlayerStore is the player-name preference.
type PlayerStore interface {
	PlayerName(ctx context.Context) (string, bool, error)
	EnsurePlayerName(ctx context.Context, name string) (string, error)
}

// Deps are the collaborators a Server needs.
type Deps struct {
	Store   store.Store
	Players PlayerStore
	Words   words.Source
	Timer   ticker.Timer
	Config  config.Config
}

// Server bundles router, session registry, and collaborators.
type Server struct {
	r       *chi.Mux
	store   store.Store
	players PlayerStore
	words   words.Source
	timer   ticker.Timer
	cfg     config.Config
	hub     *hub
	limits  *limiters
}

// New constructs a Server, installs middleware, and registers routes.
func New(d Deps) *Server {
	s := &Server{
		r:       chi.NewRouter(),
		store:   d.Store,
		players: d.Players,
		words:   d.Words,
		timer:   d.Timer,
		cfg:     d.Config,
		hub:     newHub(),
		limits:  newLimiters(d.Config.RateLimitRPS, d.Config.RateLimitBurst),
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(accessLog)
	s.r.Use(chimw.Recoverer)
	s.r.Use(jsonContentType)
	s.r.Use(s.cors)

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"wordguess","endpoints":["/health","/player","POST /game/new","POST /game/guess","POST /game/hint/{letter,length,tip}","GET /game/state","GET /game/events"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	// Streaming: no handler timeout.
	s.r.With(s.withSession).Get("/game/events", s.handleEvents)

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(requestTimeout))
		s.mountPlayer(r)
		s.mountGame(r)
	})

	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not_found","path":"`+r.URL.Path+`"}`, http.StatusNotFound)
	})

	return s
}

// Router exposes the internal router (used by main and tests).
func (s *Server) Router() chi.Router { return s.r }

// RunSweeper closes idle sessions and forgets idle rate limiters every interval
// until ctx is cancelled.
func (s *Server) RunSweeper(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			s.sweep(ctx, now)
		}
	}
}

func (s *Server) sweep(ctx context.Context, now time.Time) {
	cutoff := now.Add(-s.cfg.SessionTTL)
	ids := s.store.Sweep(ctx, cutoff)
	for _, id := range ids {
		s.hub.drop(id)
	}
	n := s.limits.sweep(cutoff)
	if len(ids) > 0 || n > 0 {
		log.Info().Int("sessions", len(ids)).Int("limiters", n).Msg("swept idle state")
	}
}

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
	origin := s.cfg.ClientOrigin
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// accessLog writes one structured line per request.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			log.Info().
				Str("reqId", chimw.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("took", time.Since(start)).
				Msg("request")
		}()
		next.ServeHTTP(ww, r)
	})
}

// ------------------------------ helpers ------------------------------------

type errorRes struct {
	Error string         `json:"error"`
	State *game.Snapshot `json:"state,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errorRes{Error: code})
}
