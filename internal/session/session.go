// Package session owns the process-wide credential and the gate every
// authenticated request passes through.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/webstorage/storectl/internal/constants"
	"github.com/webstorage/storectl/internal/logging"
)

// ErrNotAuthenticated is returned when an authenticated call is attempted without a token.
var ErrNotAuthenticated = errors.New("not authenticated")

// Session holds the bearer token. It is read by every gated call and written
// only by login, logout and the gate's authorization handling.
type Session struct {
	mu     sync.RWMutex
	token  string
	epoch  uint64 // bumped on every Set/Clear
	store  Store
	logger *logging.Logger
}

// New initialises a session from the token persisted in store, if any.
func New(store Store, logger *logging.Logger) (*Session, error) {
	s := &Session{store: store, logger: logger}
	token, ok, err := store.Get(constants.SessionTokenKey)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if ok {
		s.token = token
	}
	return s, nil
}

// Token returns the current token, or "" when absent.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// IsAuthenticated reports whether a token is present. The server stays the
// authority on whether it is still valid.
func (s *Session) IsAuthenticated() bool {
	return s.Token() != ""
}

// snapshot returns the token together with the epoch it belongs to.
func (s *Session) snapshot() (string, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.epoch
}

// Set stores a new token in memory and in the store.
func (s *Session) Set(token string) error {
	s.mu.Lock()
	s.token = token
	s.epoch++
	s.mu.Unlock()

	if err := s.store.Set(constants.SessionTokenKey, token); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// Clear drops the token. The in-memory value is cleared even if the store
// write fails, so every reader sees the session end immediately.
func (s *Session) Clear() error {
	s.mu.Lock()
	s.token = ""
	s.epoch++
	s.mu.Unlock()

	if err := s.store.Delete(constants.SessionTokenKey); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// clearIfCurrent clears the session only if it is still at epoch. A 401 for a
// request sent with an older token must not end a newer login.
func (s *Session) clearIfCurrent(epoch uint64) bool {
	s.mu.Lock()
	if s.epoch != epoch || s.token == "" {
		s.mu.Unlock()
		return false
	}
	s.token = ""
	s.epoch++
	s.mu.Unlock()

	if err := s.store.Delete(constants.SessionTokenKey); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to remove stored token")
	}
	return true
}

// Claims is the subset of token claims shown to the user.
type Claims struct {
	UserID    int64
	ExpiresAt time.Time // zero if the token carries no exp
}

// Expired reports whether the token's exp claim has passed.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// Claims decodes the token without verifying its signature. The result is for
// display only.
func (s *Session) Claims() (Claims, error) {
	token := s.Token()
	if token == "" {
		return Claims{}, ErrNotAuthenticated
	}

	mapClaims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mapClaims); err != nil {
		return Claims{}, fmt.Errorf("decode token: %w", err)
	}

	var claims Claims
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	if id, ok := mapClaims["id"].(float64); ok {
		claims.UserID = int64(id)
	}
	return claims, nil
}
