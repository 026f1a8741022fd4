// internal/prefs/store.go
//
// Player preferences backed by the prefs table.
// The only preference today is the player name: read at startup and written
// once when absent. Later writes keep the stored value.

package prefs

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

const (
	KeyPlayerName     = "player_name"
	DefaultPlayerName = "Player1"
)

// Store reads and writes preference rows.
type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// PlayerName returns the stored name and whether one exists.
func (s *Store) PlayerName(ctx context.Context) (string, bool, error) {
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM prefs WHERE key=?`, KeyPlayerName,
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return name, true, nil
}

// EnsurePlayerName stores name if no name is set yet and returns the stored value.
// An empty name falls back to DefaultPlayerName.
func (s *Store) EnsurePlayerName(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultPlayerName
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO prefs(key, value) VALUES(?, ?)`, KeyPlayerName, name,
	); err != nil {
		return "", err
	}
	stored, _, err := s.PlayerName(ctx)
	return stored, err
}
