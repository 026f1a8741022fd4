// internal/httpserver/events.go
//
// Fan-out of session events to Server-Sent Events streams.
// Each session's listener publishes into the hub; every open
// /game/events stream for that session receives a copy. Slow
// subscribers miss events rather than stall the session.

package httpserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordguess/internal/game"
)

const (
	subscriberBuffer = 32
	keepAlive        = 15 * time.Second
)

// eventSnapshot is sent once when a stream opens.
const eventSnapshot game.EventKind = "snapshot"

type hub struct {
	mu   sync.Mutex
	subs map[string]map[chan game.Event]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[chan game.Event]struct{})}
}

// publisher returns a session listener that forwards into the hub.
func (h *hub) publisher(sid string) func(game.Event) {
	return func(ev game.Event) { h.publish(sid, ev) }
}

func (h *hub) publish(sid string, ev game.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[sid] {
		select {
		case ch <- ev:
		default:
			log.Debug().Str("session", sid).Str("kind", string(ev.Kind)).Msg("subscriber full; event dropped")
		}
	}
}

// subscribe registers a stream for sid. The returned cancel is idempotent.
func (h *hub) subscribe(sid string) (<-chan game.Event, func()) {
	ch := make(chan game.Event, subscriberBuffer)
	h.mu.Lock()
	set, ok := h.subs[sid]
	if !ok {
		set = make(map[chan game.Event]struct{})
		h.subs[sid] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		set := h.subs[sid]
		if _, ok := set[ch]; !ok {
			return
		}
		delete(set, ch)
		close(ch)
		if len(set) == 0 {
			delete(h.subs, sid)
		}
	}
}

// drop closes every stream of sid.
func (h *hub) drop(sid string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[sid] {
		close(ch)
	}
	delete(h.subs, sid)
}

// handleEvents streams session events as text/event-stream.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sid, sess := sessionFrom(r.Context())
	fl, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported")
		return
	}

	ch, cancel := s.hub.subscribe(sid)
	defer cancel()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	_ = writeSSE(w, game.Event{Kind: eventSnapshot, Snapshot: sess.Snapshot()})
	fl.Flush()

	ka := time.NewTicker(keepAlive)
	defer ka.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := writeSSE(w, ev); err != nil {
				return
			}
			fl.Flush()
		case <-ka.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
			fl.Flush()
		}
	}
}

func writeSSE(w io.Writer, ev game.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, b)
	return err
}
