package httpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/robalobadob/wordguess/internal/config"
	"github.com/robalobadob/wordguess/internal/game"
	"github.com/robalobadob/wordguess/internal/store"
	"github.com/robalobadob/wordguess/internal/ticker"
	"github.com/robalobadob/wordguess/internal/words"
)

// scriptedWords replays errs then words; once exhausted it keeps returning "frog".
type scriptedWords struct {
	mu      sync.Mutex
	errs    []error
	words   []string
	lengths []int
}

func (f *scriptedWords) FetchWord(_ context.Context, length int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lengths = append(f.lengths, length)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return "", err
	}
	if len(f.words) > 0 {
		w := f.words[0]
		f.words = f.words[1:]
		return w, nil
	}
	return "frog", nil
}

func (f *scriptedWords) requested() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.lengths...)
}

type stillTimer struct{}

type stillHandle struct{}

func (stillTimer) Start(func()) ticker.Handle { return stillHandle{} }
func (stillHandle) Stop()                     {}

type memPlayers struct {
	mu   sync.Mutex
	name string
}

func (p *memPlayers) PlayerName(context.Context) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.name, p.name != "", nil
}

func (p *memPlayers) EnsurePlayerName(_ context.Context, name string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.name == "" {
		if name == "" {
			name = "Player1"
		}
		p.name = name
	}
	return p.name, nil
}

func testConfig() config.Config {
	return config.Config{
		JWTSecret:      "test-secret",
		SessionTTL:     time.Hour,
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
		ClientOrigin:   "http://localhost:5173",
	}
}

func newTestServer(t *testing.T, src words.Source, cfg config.Config) *Server {
	t.Helper()
	return New(Deps{
		Store:   store.NewMemoryStore(),
		Players: &memPlayers{},
		Words:   src,
		Timer:   stillTimer{},
		Config:  cfg,
	})
}

func do(t *testing.T, s *Server, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func newGame(t *testing.T, s *Server, token string) newGameRes {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/game/new", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /game/new: %d %s", rec.Code, rec.Body.String())
	}
	return decode[newGameRes](t, rec)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &scriptedWords{}, testConfig())
	rec := do(t, s, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok":true`) {
		t.Errorf("Unexpected health response: %d %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestPlayerNameIsWriteOnce(t *testing.T) {
	s := newTestServer(t, &scriptedWords{}, testConfig())

	rec := do(t, s, http.MethodGet, "/player", "", "")
	if rec.Code != http.StatusNotFound || decode[errorRes](t, rec).Error != "name_required" {
		t.Fatalf("Expected 404 name_required, got %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodPut, "/player", `{"name":"  Ada "}`, "")
	if got := decode[playerRes](t, rec).Name; got != "Ada" {
		t.Errorf("PUT /player stored %q, want Ada", got)
	}
	rec = do(t, s, http.MethodPut, "/player", `{"name":"Grace"}`, "")
	if got := decode[playerRes](t, rec).Name; got != "Ada" {
		t.Errorf("Second PUT changed name to %q", got)
	}
	rec = do(t, s, http.MethodGet, "/player", "", "")
	if got := decode[playerRes](t, rec).Name; rec.Code != http.StatusOK || got != "Ada" {
		t.Errorf("GET /player = %d %q", rec.Code, got)
	}

	if rec := do(t, s, http.MethodPut, "/player", `{`, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("Malformed body: got %d", rec.Code)
	}
}

func TestGameFlow(t *testing.T) {
	src := &scriptedWords{}
	s := newTestServer(t, src, testConfig())

	rec := do(t, s, http.MethodPost, "/game/new", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /game/new: %d %s", rec.Code, rec.Body.String())
	}
	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			cookie = c
		}
	}
	if cookie == nil || !cookie.HttpOnly {
		t.Fatalf("Expected HttpOnly %s cookie, got %v", sessionCookieName, rec.Result().Cookies())
	}
	ng := decode[newGameRes](t, rec)
	if ng.State.Status != game.StatusInProgress || ng.State.Score != 100 || ng.State.Level != 1 {
		t.Fatalf("Unexpected initial state: %+v", ng.State)
	}
	tok := ng.Token

	rec = do(t, s, http.MethodPost, "/game/guess", `{"guess":"cat"}`, tok)
	g := decode[guessRes](t, rec)
	if rec.Code != http.StatusOK || g.Outcome.Won || g.Outcome.Score != 90 || g.Outcome.Attempts != 1 {
		t.Fatalf("Wrong guess: %d %+v", rec.Code, g)
	}

	rec = do(t, s, http.MethodPost, "/game/hint/letter", `{"letter":"o"}`, tok)
	lr := decode[letterRes](t, rec)
	if lr.Count != 1 || lr.State.Score != 85 {
		t.Errorf("Letter hint: %+v", lr)
	}

	rec = do(t, s, http.MethodPost, "/game/hint/length", "", tok)
	if ln := decode[lengthRes](t, rec); ln.Length != 4 || ln.State.Score != 80 {
		t.Errorf("Length hint: %+v", ln)
	}

	cases := []struct {
		path, body string
		status     int
		code       string
	}{
		{"/game/hint/tip", "", http.StatusConflict, "tip_locked"},
		{"/game/hint/letter", `{"letter":"ab"}`, http.StatusBadRequest, "invalid_letter"},
		{"/game/guess", `{"guess":"   "}`, http.StatusBadRequest, "empty_input"},
		{"/game/guess", `not json`, http.StatusBadRequest, "bad_request"},
	}
	for _, tc := range cases {
		rec := do(t, s, http.MethodPost, tc.path, tc.body, tok)
		if rec.Code != tc.status || decode[errorRes](t, rec).Error != tc.code {
			t.Errorf("%s %s: got %d %s, want %d %s", tc.path, tc.body, rec.Code, rec.Body.String(), tc.status, tc.code)
		}
	}

	rec = do(t, s, http.MethodPost, "/game/guess", `{"guess":"FROG"}`, tok)
	g = decode[guessRes](t, rec)
	if !g.Outcome.Won || g.Outcome.Word != "frog" || g.Outcome.Score != 80 || g.Outcome.Attempts != 2 {
		t.Fatalf("Winning guess: %+v", g.Outcome)
	}
	if g.State.Level != 2 || g.State.Status != game.StatusInProgress || g.State.Score != 100 {
		t.Errorf("State after win: %+v", g.State)
	}
	if g.State.LastResult != game.StatusRoundWon || g.State.Revealed != "frog" {
		t.Errorf("Previous round not recorded: %+v", g.State)
	}
	if got := src.requested(); len(got) != 2 || got[0] != 5 || got[1] != 6 {
		t.Errorf("Requested lengths = %v, want [5 6]", got)
	}

	rec = do(t, s, http.MethodGet, "/game/state", "", tok)
	if st := decode[game.Snapshot](t, rec); st.Level != 2 || st.Attempts != 0 {
		t.Errorf("GET /game/state: %+v", st)
	}
}

func TestNewGameFetchFailureKeepsSession(t *testing.T) {
	src := &scriptedWords{errs: []error{fmt.Errorf("%w: connection refused", words.ErrNetwork)}}
	s := newTestServer(t, src, testConfig())

	rec := do(t, s, http.MethodPost, "/game/new", "", "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("Expected 502, got %d %s", rec.Code, rec.Body.String())
	}
	res := decode[newGameErrRes](t, rec)
	if res.Error != "word_fetch_failed" || res.Token == "" || res.State.Status != game.StatusAwaitingWord {
		t.Fatalf("Unexpected failure body: %+v", res)
	}

	rec = do(t, s, http.MethodPost, "/game/guess", `{"guess":"frog"}`, res.Token)
	if rec.Code != http.StatusConflict || decode[errorRes](t, rec).Error != "no_active_round" {
		t.Errorf("Guess without word: %d %s", rec.Code, rec.Body.String())
	}

	ng := newGame(t, s, res.Token)
	if ng.State.Status != game.StatusInProgress {
		t.Errorf("Retry did not start a round: %+v", ng.State)
	}
	first, _ := s.parseToken(res.Token)
	second, _ := s.parseToken(ng.Token)
	if first == "" || first != second {
		t.Errorf("Retry created a new session: %q vs %q", first, second)
	}
}

func TestGuessReportsNextWordFetchFailure(t *testing.T) {
	src := &scriptedWords{}
	s := newTestServer(t, src, testConfig())
	ng := newGame(t, s, "")

	src.mu.Lock()
	src.errs = []error{fmt.Errorf("%w: connection refused", words.ErrNetwork)}
	src.mu.Unlock()

	rec := do(t, s, http.MethodPost, "/game/guess", `{"guess":"frog"}`, ng.Token)
	if rec.Code != http.StatusOK {
		t.Fatalf("Winning guess: %d %s", rec.Code, rec.Body.String())
	}
	g := decode[guessRes](t, rec)
	if !g.Outcome.Won || g.Outcome.Word != "frog" {
		t.Errorf("Outcome should stand, got %+v", g.Outcome)
	}
	if g.Error != "word_fetch_failed" {
		t.Errorf("Expected error word_fetch_failed, got %q", g.Error)
	}
	if g.State.Status != game.StatusAwaitingWord || g.State.Level != 2 {
		t.Errorf("Expected level 2 awaiting a word, got %+v", g.State)
	}

	// Retry on the same session fetches the level-2 word.
	if ng := newGame(t, s, ng.Token); ng.State.Status != game.StatusInProgress || ng.State.Level != 2 {
		t.Errorf("Retry after failed fetch: %+v", ng.State)
	}

	// A successful next fetch leaves the error field empty.
	rec = do(t, s, http.MethodPost, "/game/guess", `{"guess":"frog"}`, ng.Token)
	if g := decode[guessRes](t, rec); g.Error != "" || g.State.Status != game.StatusInProgress {
		t.Errorf("Unexpected reply after successful fetch: %+v", g)
	}
}

func TestSessionRequired(t *testing.T) {
	s := newTestServer(t, &scriptedWords{}, testConfig())

	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{SID: "x"}).
		SignedString([]byte("other-secret"))
	if err != nil {
		t.Fatal(err)
	}
	orphan, _, err := s.signToken("no-such-session")
	if err != nil {
		t.Fatal(err)
	}

	for name, tok := range map[string]string{
		"missing": "",
		"garbage": "not-a-jwt",
		"foreign": foreign,
		"orphan":  orphan,
	} {
		rec := do(t, s, http.MethodGet, "/game/state", "", tok)
		if rec.Code != http.StatusUnauthorized || decode[errorRes](t, rec).Error != "no_session" {
			t.Errorf("%s token: got %d %s", name, rec.Code, rec.Body.String())
		}
	}
}

func TestCookieAuthenticates(t *testing.T) {
	s := newTestServer(t, &scriptedWords{}, testConfig())
	ng := newGame(t, s, "")

	req := httptest.NewRequest(http.MethodGet, "/game/state", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: ng.Token})
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Cookie auth failed: %d %s", rec.Code, rec.Body.String())
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRPS, cfg.RateLimitBurst = 1, 1
	s := newTestServer(t, &scriptedWords{}, cfg)

	if rec := do(t, s, http.MethodPut, "/player", `{"name":"Ada"}`, ""); rec.Code != http.StatusOK {
		t.Fatalf("First request: %d", rec.Code)
	}
	rec := do(t, s, http.MethodPut, "/player", `{"name":"Ada"}`, "")
	if rec.Code != http.StatusTooManyRequests || decode[errorRes](t, rec).Error != "rate_limited" {
		t.Errorf("Expected 429 rate_limited, got %d %s", rec.Code, rec.Body.String())
	}
	// Reads are not limited.
	if rec := do(t, s, http.MethodGet, "/player", "", ""); rec.Code != http.StatusOK {
		t.Errorf("GET /player limited: %d", rec.Code)
	}
}

func TestSweepClosesIdleSessions(t *testing.T) {
	s := newTestServer(t, &scriptedWords{}, testConfig())
	ng := newGame(t, s, "")

	s.sweep(context.Background(), time.Now().Add(2*time.Hour))

	if rec := do(t, s, http.MethodGet, "/game/state", "", ng.Token); rec.Code != http.StatusUnauthorized {
		t.Errorf("Swept session still reachable: %d", rec.Code)
	}
	s.limits.mu.Lock()
	n := len(s.limits.m)
	s.limits.mu.Unlock()
	if n != 0 {
		t.Errorf("Expected limiters swept, %d left", n)
	}
}

func TestEventsStream(t *testing.T) {
	s := newTestServer(t, &scriptedWords{}, testConfig())
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/game/new", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	var ng newGameRes
	err = json.NewDecoder(resp.Body).Decode(&ng)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}

	stream, err := http.Get(srv.URL + "/game/events?token=" + ng.Token)
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Body.Close()
	if ct := stream.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	events := make(chan string, 64)
	go func() {
		defer close(events)
		sc := bufio.NewScanner(stream.Body)
		for sc.Scan() {
			if name, ok := strings.CutPrefix(sc.Text(), "event: "); ok {
				events <- name
			}
		}
	}()

	next := func() string {
		t.Helper()
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatal("stream closed")
			}
			return ev
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for event")
		}
		return ""
	}

	if ev := next(); ev != string(eventSnapshot) {
		t.Fatalf("First event = %q, want snapshot", ev)
	}

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/game/guess", strings.NewReader(`{"guess":"cat"}`))
	req.Header.Set("Authorization", "Bearer "+ng.Token)
	gr, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	gr.Body.Close()

	// Round-start events may still be in flight; the guess ends with score then word_hint.
	var prev string
	for ev := next(); ev != string(game.EventWordHint); ev = next() {
		prev = ev
	}
	if prev != string(game.EventScore) {
		t.Errorf("Event before word_hint = %q, want score", prev)
	}
}

func TestHubCancelAfterDrop(t *testing.T) {
	h := newHub()
	ch, cancel := h.subscribe("a")
	h.publish("a", game.Event{Kind: game.EventTick})
	if ev := <-ch; ev.Kind != game.EventTick {
		t.Errorf("Got %q", ev.Kind)
	}
	h.drop("a")
	if _, ok := <-ch; ok {
		t.Error("Expected channel closed by drop")
	}
	cancel() // must not panic on a closed channel
	h.publish("a", game.Event{Kind: game.EventTick})
}
