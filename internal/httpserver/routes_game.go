// internal/httpserver/routes_game.go
//
// HTTP routes for a player's game session:
//   - POST /game/new          → create a session (or reset the current one) and fetch a word
//   - GET  /game/state        → current snapshot
//   - POST /game/guess        → submit a whole-word guess
//   - POST /game/hint/letter  → occurrences of a letter (costs 5)
//   - POST /game/hint/length  → word length (costs 5)
//   - POST /game/hint/tip     → rhyming tip, after 5 attempts (costs 5)
//
// Everything except /game/new requires a session token.

package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordguess/internal/game"
	"github.com/robalobadob/wordguess/internal/words"
)

func (s *Server) mountGame(r chi.Router) {
	r.With(s.rateLimit).Post("/game/new", s.handleNewGame)

	r.Group(func(r chi.Router) {
		r.Use(s.withSession)
		r.Get("/game/state", s.handleState)

		r.Group(func(r chi.Router) {
			r.Use(s.rateLimit)
			r.Post("/game/guess", s.handleGuess)
			r.Post("/game/hint/letter", s.handleLetterHint)
			r.Post("/game/hint/length", s.handleLengthHint)
			r.Post("/game/hint/tip", s.handleTip)
		})
	})
}

// newSession builds a session whose events feed the hub.
func (s *Server) newSession(sid string) *game.Session {
	return game.NewSession(s.words, s.timer,
		game.WithListener(s.hub.publisher(sid)),
		game.WithLogger(log.With().Str("session", sid).Logger()),
	)
}

// -----------------------------------------------------------------------------
// /game/new

type newGameRes struct {
	Token string        `json:"token"`
	State game.Snapshot `json:"state"`
}

type newGameErrRes struct {
	Error string        `json:"error"`
	Token string        `json:"token"`
	State game.Snapshot `json:"state"`
}

// handleNewGame resets the caller's session or creates one, then waits for the word.
// A failed fetch answers 502 but keeps the session so the client can retry.
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	sid, sess, ok := s.lookupSession(r)
	var res <-chan error
	if ok {
		res = sess.ResetRound()
	} else {
		sid = uuid.NewString()
		sess = s.newSession(sid)
		if err := s.store.Save(r.Context(), sid, sess); err != nil {
			sess.Close()
			writeError(w, http.StatusInternalServerError, "session_store_failed")
			return
		}
		res = sess.StartRound()
		log.Info().Str("session", sid).Msg("session created")
	}

	tok, exp, err := s.signToken(sid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_failed")
		return
	}
	s.setSessionCookie(w, tok, exp)

	select {
	case err = <-res:
	case <-r.Context().Done():
		err = r.Context().Err()
	}
	if err != nil && !errors.Is(err, game.ErrStaleRound) {
		log.Warn().Err(err).Str("session", sid).Msg("word fetch failed")
		writeJSON(w, http.StatusBadGateway, newGameErrRes{
			Error: "word_fetch_failed",
			Token: tok,
			State: sess.Snapshot(),
		})
		return
	}
	writeJSON(w, http.StatusOK, newGameRes{Token: tok, State: sess.Snapshot()})
}

// -----------------------------------------------------------------------------
// /game/state

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	_, sess := sessionFrom(r.Context())
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// -----------------------------------------------------------------------------
// /game/guess

type guessReq struct {
	Guess string `json:"guess"`
}

type guessRes struct {
	Outcome game.GuessOutcome `json:"outcome"`
	State   game.Snapshot     `json:"state"`
	Error   string            `json:"error,omitempty"` // next-round fetch failed; outcome still holds
}

// handleGuess applies a guess. When the round ends, the reply waits for the
// next word so the returned state is already the new round. A failed fetch
// keeps the 200 and sets error=word_fetch_failed.
func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request) {
	sid, sess := sessionFrom(r.Context())

	var p guessReq
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}
	out, err := sess.SubmitGuess(p.Guess)
	if err != nil {
		writeGameError(w, sess, err)
		return
	}
	res := guessRes{Outcome: out}
	if out.Won || out.Lost {
		if err := sess.WaitRound(r.Context()); isFetchError(err) {
			log.Warn().Err(err).Str("session", sid).Msg("next word fetch failed")
			res.Error = "word_fetch_failed"
		}
	}
	res.State = sess.Snapshot()
	writeJSON(w, http.StatusOK, res)
}

// -----------------------------------------------------------------------------
// /game/hint/*

type letterReq struct {
	Letter string `json:"letter"`
}

type letterRes struct {
	Letter string        `json:"letter"`
	Count  int           `json:"count"`
	State  game.Snapshot `json:"state"`
}

type lengthRes struct {
	Length int           `json:"length"`
	State  game.Snapshot `json:"state"`
}

type tipRes struct {
	Rhyme string        `json:"rhyme"`
	State game.Snapshot `json:"state"`
}

func (s *Server) handleLetterHint(w http.ResponseWriter, r *http.Request) {
	_, sess := sessionFrom(r.Context())

	var p letterReq
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}
	n, err := sess.LetterCount(p.Letter)
	if err != nil {
		writeGameError(w, sess, err)
		return
	}
	writeJSON(w, http.StatusOK, letterRes{Letter: p.Letter, Count: n, State: sess.Snapshot()})
}

func (s *Server) handleLengthHint(w http.ResponseWriter, r *http.Request) {
	_, sess := sessionFrom(r.Context())
	n, err := sess.WordLength()
	if err != nil {
		writeGameError(w, sess, err)
		return
	}
	writeJSON(w, http.StatusOK, lengthRes{Length: n, State: sess.Snapshot()})
}

func (s *Server) handleTip(w http.ResponseWriter, r *http.Request) {
	_, sess := sessionFrom(r.Context())
	rhyme, err := sess.Tip()
	if err != nil {
		writeGameError(w, sess, err)
		return
	}
	writeJSON(w, http.StatusOK, tipRes{Rhyme: rhyme, State: sess.Snapshot()})
}

// -----------------------------------------------------------------------------
// errors

// gameErrorStatus maps session errors to HTTP status and error code.
func gameErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, game.ErrEmptyInput):
		return http.StatusBadRequest, "empty_input"
	case errors.Is(err, game.ErrInvalidLetter):
		return http.StatusBadRequest, "invalid_letter"
	case errors.Is(err, game.ErrTipLocked):
		return http.StatusConflict, "tip_locked"
	case errors.Is(err, game.ErrNoActiveRound):
		return http.StatusConflict, "no_active_round"
	case errors.Is(err, game.ErrSessionClosed):
		return http.StatusGone, "session_closed"
	case isFetchError(err):
		return http.StatusBadGateway, "word_fetch_failed"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func isFetchError(err error) bool {
	return errors.Is(err, words.ErrNetwork) || errors.Is(err, words.ErrParse)
}

func writeGameError(w http.ResponseWriter, sess *game.Session, err error) {
	status, code := gameErrorStatus(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("game operation failed")
	}
	snap := sess.Snapshot()
	writeJSON(w, status, errorRes{Error: code, State: &snap})
}
