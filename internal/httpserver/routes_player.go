// internal/httpserver/routes_player.go
//
// Player name preference:
//   - GET /player → stored name, or 404 name_required on first launch
//   - PUT /player → store the name once; later calls return the existing value

package httpserver

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type playerRes struct {
	Name string `json:"name"`
}

type playerReq struct {
	Name string `json:"name"`
}

func (s *Server) mountPlayer(r chi.Router) {
	r.Get("/player", s.handleGetPlayer)
	r.With(s.rateLimit).Put("/player", s.handlePutPlayer)
}

// handleGetPlayer returns the stored name, or 404 name_required on first launch.
func (s *Server) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	name, ok, err := s.players.PlayerName(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("read player name")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "name_required")
		return
	}
	writeJSON(w, http.StatusOK, playerRes{Name: name})
}

// handlePutPlayer stores the name once; later calls return the existing value.
func (s *Server) handlePutPlayer(w http.ResponseWriter, r *http.Request) {
	var p playerReq
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}
	name, err := s.players.EnsurePlayerName(r.Context(), strings.TrimSpace(p.Name))
	if err != nil {
		log.Error().Err(err).Msg("store player name")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, playerRes{Name: name})
}
