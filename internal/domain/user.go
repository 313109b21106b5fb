package domain

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 4

// User is a registered account. The password is stored as a bcrypt hash.
type User struct {
	ID           int
	Username     string
	PasswordHash string
	RegisteredAt time.Time
}

// NewUser validates credentials and hashes the password.
func NewUser(id int, username, password string) (*User, error) {
	if id <= 0 {
		return nil, NewValidationError("user_id must be a positive integer, got %d", id)
	}
	name := strings.TrimSpace(username)
	if name == "" {
		return nil, NewValidationError("username must not be empty")
	}
	if len(password) < minPasswordLen {
		return nil, NewValidationError("password must be at least %d characters", minPasswordLen)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	return &User{
		ID:           id,
		Username:     name,
		PasswordHash: string(hash),
		RegisteredAt: time.Now().UTC().Truncate(time.Second),
	}, nil
}

// VerifyPassword reports whether the candidate matches the stored hash.
func (u *User) VerifyPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}
