// Package session persists the currently logged-in user between CLI
// invocations.
package session

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/valutatrade/hub/internal/domain"
	"github.com/valutatrade/hub/internal/storage/fsjson"
)

// Session is the logged-in user written to the session file.
type Session struct {
	UserID     int       `json:"user_id"`
	Username   string    `json:"username"`
	LoggedInAt time.Time `json:"logged_in_at"`
}

// Store reads and writes the session file.
type Store struct {
	path string
}

// NewStore builds a store over the session file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Current returns the active session, or nil when nobody is logged in.
func (s *Store) Current() (*Session, error) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, &domain.StorageError{Op: "read", Path: s.path, Err: err}
	}

	var sess Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, &domain.StorageError{Op: "decode", Path: s.path, Err: err}
	}
	if sess.UserID <= 0 {
		return nil, nil
	}

	return &sess, nil
}

// Save atomically replaces the session file.
func (s *Store) Save(sess Session) error {
	if sess.LoggedInAt.IsZero() {
		sess.LoggedInAt = time.Now().UTC().Truncate(time.Second)
	}
	return fsjson.WriteAtomic(s.path, sess)
}

// Clear logs out by removing the session file.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &domain.StorageError{Op: "remove", Path: s.path, Err: err}
	}
	return nil
}
