// internal/game/types.go
//
// Core type definitions for the word-guessing session.
// Defines:
//   - Status: lifecycle of a single round.
//   - Snapshot: read-only view handed to the presentation layer.
//   - GuessOutcome: result of a submitted guess.
//   - Event: presentation callbacks emitted by a Session.
//   - Error kinds returned by Session operations.

package game

import "errors"

// Scoring and round parameters.
const (
	StartScore        = 100 // score at the beginning of every round
	StartLevel        = 1   // level of a fresh session
	MaxAttempts       = 10  // attempts that end the round
	TipUnlockAttempts = 5   // attempts needed before the rhyme tip is available
	BaseWordLength    = 4   // requested word length is BaseWordLength+level

	CostWrongGuess  = 10
	CostLetterCount = 5
	CostWordLength  = 5
	CostTip         = 5
)

// Status represents where a round is in its lifecycle.
//   - "awaiting_word": a word fetch is pending or has failed.
//   - "in_progress":   a word is loaded and the timer is running.
//   - "round_won":     the word was guessed.
//   - "round_lost":    score or attempts ran out.
type Status string

const (
	StatusAwaitingWord Status = "awaiting_word"
	StatusInProgress   Status = "in_progress"
	StatusRoundWon     Status = "round_won"
	StatusRoundLost    Status = "round_lost"
)

// Error kinds. All of them are recoverable: the session is left valid.
var (
	ErrEmptyInput    = errors.New("empty input")
	ErrInvalidLetter = errors.New("invalid letter")
	ErrTipLocked     = errors.New("tip locked")
	ErrNoActiveRound = errors.New("no active round")
	ErrStaleRound    = errors.New("stale round")
	ErrSessionClosed = errors.New("session closed")
)

// Snapshot is a copy of the session state at one point in time.
type Snapshot struct {
	Level          int    `json:"level"`
	Score          int    `json:"score"`
	Attempts       int    `json:"attempts"`
	ElapsedSeconds int    `json:"elapsedSeconds"`
	Status         Status `json:"status"`
	Round          uint64 `json:"round"`
	LastResult     Status `json:"lastResult,omitempty"` // outcome of the previous round
	Revealed       string `json:"revealed,omitempty"`   // previous round's word, once it ended
}

// GuessOutcome is returned by SubmitGuess.
type GuessOutcome struct {
	Won            bool   `json:"won"`
	Lost           bool   `json:"lost"`
	Word           string `json:"word,omitempty"` // set when the round ended
	Score          int    `json:"score"`
	Attempts       int    `json:"attempts"`
	ElapsedSeconds int    `json:"elapsedSeconds"`
}

// EventKind names a presentation callback.
type EventKind string

const (
	EventRoundStarted EventKind = "round_started"
	EventFetchFailed  EventKind = "fetch_failed"
	EventWordHint     EventKind = "word_hint"
	EventScore        EventKind = "score"
	EventTick         EventKind = "tick"
	EventNotice       EventKind = "notice"
	EventRoundWon     EventKind = "round_won"
	EventGameOver     EventKind = "game_over"
)

// Event is delivered to the session listener after each state change.
type Event struct {
	Kind     EventKind `json:"kind"`
	Text     string    `json:"text,omitempty"`
	Snapshot Snapshot  `json:"snapshot"`
}
