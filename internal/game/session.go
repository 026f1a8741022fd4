// internal/game/session.go
//
// Session state machine for a single player.
// Responsibilities:
//   - Fetch a word per round (length 4+level) through an injected words.Source.
//   - Apply guesses and paid hints to score/attempts.
//   - Run the round clock through an injected ticker.Timer.
//   - Track transitions: awaiting_word → in_progress → round_won/round_lost → awaiting_word.
//
// Concurrency:
//   - Every mutation happens under s.mu.
//   - Word fetches run in their own goroutine and re-enter through s.mu; a result is
//     applied only if the round it was fetched for is still current.
//   - Ticks re-enter the same way and count only for the live timer handle.
//   - Events are queued under the lock and handed to the listener, in order, by a
//     single dispatcher goroutine; a listener may call back into the session.

package game

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/robalobadob/wordguess/internal/ticker"
	"github.com/robalobadob/wordguess/internal/words"
)

// Option configures a Session.
type Option func(*Session)

// WithListener registers the presentation callback.
func WithListener(fn func(Event)) Option {
	return func(s *Session) { s.listener = fn }
}

// WithLogger sets the session logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithLevel sets the starting level. Values below StartLevel are ignored.
func WithLevel(level int) Option {
	return func(s *Session) {
		if level >= StartLevel {
			s.level = level
		}
	}
}

// fetch tracks one in-flight word request.
type fetch struct {
	done chan struct{}
	err  error
}

// Session owns all mutable game state for one player.
type Session struct {
	mu       sync.Mutex
	src      words.Source
	timer    ticker.Timer
	listener func(Event)
	log      zerolog.Logger

	ctx    context.Context // parent of every fetch; cancelled by Close
	cancel context.CancelFunc

	target     string
	score      int
	attempts   int
	level      int
	elapsed    int
	status     Status
	round      uint64
	lastResult Status
	revealed   string

	handle   ticker.Handle
	timerGen uint64

	inflight    *fetch
	cancelFetch context.CancelFunc
	closed      bool

	queue []Event
	cond  *sync.Cond // signals the dispatcher; uses mu
}

// NewSession builds a session in the awaiting_word state. Call StartRound to begin.
func NewSession(src words.Source, timer ticker.Timer, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		src:    src,
		timer:  timer,
		log:    zerolog.Nop(),
		ctx:    ctx,
		cancel: cancel,
		score:  StartScore,
		level:  StartLevel,
		status: StatusAwaitingWord,
	}
	s.cond = sync.NewCond(&s.mu)
	for _, o := range opts {
		o(s)
	}
	if s.listener != nil {
		go s.dispatch()
	}
	return s
}

// StartRound requests a new word for the current level and returns immediately.
// The channel receives one value and is closed: nil once the round is in progress,
// the fetch error if it failed (status stays awaiting_word), or ErrStaleRound if
// another round was started before the fetch completed.
func (s *Session) StartRound() <-chan error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startRoundLocked()
}

// ResetRound abandons the current round and starts a new one at the same level.
func (s *Session) ResetRound() <-chan error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resetLocked()
}

// WaitRound blocks until the most recent word fetch has finished and returns its result.
func (s *Session) WaitRound(ctx context.Context) error {
	s.mu.Lock()
	f := s.inflight
	s.mu.Unlock()
	if f == nil {
		return nil
	}
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitGuess checks text against the target word.
func (s *Session) SubmitGuess(text string) (GuessOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	guess := strings.ToLower(strings.TrimSpace(text))
	if guess == "" {
		s.emit(EventNotice, "Enter a guess!")
		return GuessOutcome{}, ErrEmptyInput
	}
	if err := s.requireRoundLocked(); err != nil {
		return GuessOutcome{}, err
	}

	s.attempts++
	if guess == s.target {
		s.stopTimerLocked()
		s.status = StatusRoundWon
		s.lastResult, s.revealed = StatusRoundWon, s.target
		out := GuessOutcome{
			Won:            true,
			Word:           s.target,
			Score:          s.score,
			Attempts:       s.attempts,
			ElapsedSeconds: s.elapsed,
		}
		s.log.Info().Uint64("round", s.round).Int("level", s.level).
			Int("attempts", s.attempts).Int("elapsed", s.elapsed).Msg("round won")
		s.emit(EventRoundWon, fmt.Sprintf("Correct! Word was '%s'. Time: %ds", s.target, s.elapsed))
		s.winLocked()
		return out, nil
	}

	s.score -= CostWrongGuess
	s.status = StatusInProgress
	out := GuessOutcome{Score: s.score, Attempts: s.attempts, ElapsedSeconds: s.elapsed}
	s.emitScore()
	s.emit(EventWordHint, fmt.Sprintf("Wrong guess! Attempts: %d", s.attempts))
	if word, over := s.checkGameOverLocked(); over {
		out.Lost, out.Word = true, word
	}
	return out, nil
}

// LetterCount reports how often letter occurs in the target word.
func (s *Session) LetterCount(letter string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := singleLetter(letter)
	if !ok {
		s.emit(EventNotice, "Enter a single letter!")
		return 0, ErrInvalidLetter
	}
	if err := s.requireRoundLocked(); err != nil {
		return 0, err
	}

	s.score -= CostLetterCount
	n := strings.Count(s.target, string(r))
	s.emitScore()
	s.emit(EventWordHint, fmt.Sprintf("'%c' appears %d times.", r, n))
	s.checkGameOverLocked()
	return n, nil
}

// WordLength reports the length of the target word.
func (s *Session) WordLength() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireRoundLocked(); err != nil {
		return 0, err
	}
	s.score -= CostWordLength
	n := utf8.RuneCountInString(s.target)
	s.emitScore()
	s.emit(EventWordHint, fmt.Sprintf("Word has %d letters.", n))
	s.checkGameOverLocked()
	return n, nil
}

// Tip returns a word rhyming with the target. Unlocks after TipUnlockAttempts.
func (s *Session) Tip() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireRoundLocked(); err != nil {
		return "", err
	}
	if s.attempts < TipUnlockAttempts {
		s.emit(EventNotice, fmt.Sprintf("Available after %d attempts!", TipUnlockAttempts))
		return "", ErrTipLocked
	}
	s.score -= CostTip
	rhyme := RhymeFor(s.target)
	s.emitScore()
	s.emit(EventWordHint, fmt.Sprintf("Tip: Rhymes with '%s'", rhyme))
	s.checkGameOverLocked()
	return rhyme, nil
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Close stops the timer and discards any in-flight fetch. Later StartRound
// calls fail with ErrSessionClosed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.stopTimerLocked()
	s.round++
	s.cancel()
	s.cond.Broadcast()
}

// ---------------------------------------------------------------------------

// dispatch delivers queued events until the session is closed and drained.
func (s *Session) dispatch() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		evs := s.queue
		s.queue = nil
		done := s.closed && len(evs) == 0
		s.mu.Unlock()

		if done {
			return
		}
		for _, ev := range evs {
			s.listener(ev)
		}
	}
}

func (s *Session) emit(kind EventKind, text string) {
	if s.listener == nil || s.closed {
		return
	}
	s.queue = append(s.queue, Event{Kind: kind, Text: text, Snapshot: s.snapshotLocked()})
	s.cond.Signal()
}

func (s *Session) emitScore() {
	s.emit(EventScore, fmt.Sprintf("Score: %d (Attempts: %d)", s.score, s.attempts))
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		Level:          s.level,
		Score:          s.score,
		Attempts:       s.attempts,
		ElapsedSeconds: s.elapsed,
		Status:         s.status,
		Round:          s.round,
		LastResult:     s.lastResult,
		Revealed:       s.revealed,
	}
}

func (s *Session) requireRoundLocked() error {
	if s.status != StatusInProgress || s.target == "" {
		return ErrNoActiveRound
	}
	return nil
}

// startRoundLocked bumps the round identity and launches the word fetch.
func (s *Session) startRoundLocked() <-chan error {
	res := make(chan error, 1)
	if s.closed {
		res <- ErrSessionClosed
		close(res)
		return res
	}

	s.stopTimerLocked()
	if s.cancelFetch != nil {
		s.cancelFetch()
		s.cancelFetch = nil
	}
	s.round++
	s.status = StatusAwaitingWord
	s.target = ""

	round, length := s.round, BaseWordLength+s.level
	ctx, cancel := context.WithCancel(s.ctx)
	f := &fetch{done: make(chan struct{})}
	s.cancelFetch, s.inflight = cancel, f

	s.log.Debug().Uint64("round", round).Int("level", s.level).Int("length", length).Msg("fetching word")
	go func() {
		defer cancel()
		word, err := s.src.FetchWord(ctx, length)
		err = s.applyWord(round, word, err)
		f.err = err
		close(f.done)
		res <- err
		close(res)
	}()
	return res
}

// applyWord installs a fetched word if round is still current.
func (s *Session) applyWord(round uint64, word string, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || round != s.round {
		s.log.Debug().Uint64("round", round).Uint64("current", s.round).Msg("discarding stale word fetch")
		return ErrStaleRound
	}
	s.cancelFetch = nil

	if err == nil {
		word = strings.ToLower(strings.TrimSpace(word))
		if word == "" {
			err = fmt.Errorf("%w: empty word", words.ErrParse)
		}
	}
	if err != nil {
		s.log.Warn().Err(err).Uint64("round", round).Int("level", s.level).Msg("word fetch failed")
		s.emit(EventFetchFailed, "Error fetching word. Try again.")
		return err
	}

	s.target = word
	s.status = StatusInProgress
	s.attempts = 0
	s.score = StartScore
	s.elapsed = 0
	s.startTimerLocked()

	s.log.Info().Uint64("round", round).Int("level", s.level).Msg("round started")
	s.emit(EventRoundStarted, fmt.Sprintf("Guess the word! (Level %d)", s.level))
	s.emitScore()
	return nil
}

// resetLocked restores round defaults and fetches a word at the current level.
func (s *Session) resetLocked() <-chan error {
	s.stopTimerLocked()
	s.score = StartScore
	s.attempts = 0
	return s.startRoundLocked()
}

func (s *Session) winLocked() {
	s.level++
	s.emit(EventNotice, "Level Up! New word incoming...")
	s.resetLocked()
}

// checkGameOverLocked ends the round when score or attempts are exhausted and
// starts the next one at the same level. It returns the revealed word.
func (s *Session) checkGameOverLocked() (string, bool) {
	if s.score > 0 && s.attempts < MaxAttempts {
		return "", false
	}
	s.stopTimerLocked()
	s.status = StatusRoundLost
	word := s.target
	s.lastResult, s.revealed = StatusRoundLost, word

	s.log.Info().Uint64("round", s.round).Int("level", s.level).
		Int("score", s.score).Int("attempts", s.attempts).Msg("game over")
	s.emit(EventGameOver, fmt.Sprintf("Game Over! Word was '%s'. Starting new game...", word))
	s.resetLocked()
	return word, true
}

// startTimerLocked replaces any live timer with a fresh one.
func (s *Session) startTimerLocked() {
	s.stopTimerLocked()
	s.timerGen++
	gen := s.timerGen
	s.handle = s.timer.Start(func() { s.tick(gen) })
}

func (s *Session) stopTimerLocked() {
	if s.handle == nil {
		return
	}
	s.handle.Stop()
	s.handle = nil
}

// tick advances the clock if gen still identifies the live timer.
func (s *Session) tick(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil || gen != s.timerGen || s.status != StatusInProgress {
		return
	}
	s.elapsed++
	s.emit(EventTick, fmt.Sprintf("Time: %ds", s.elapsed))
}

// singleLetter accepts exactly one alphabetic rune and returns it lowercased.
func singleLetter(in string) (rune, bool) {
	if utf8.RuneCountInString(in) != 1 {
		return 0, false
	}
	r, _ := utf8.DecodeRuneInString(in)
	if !unicode.IsLetter(r) {
		return 0, false
	}
	return unicode.ToLower(r), true
}
