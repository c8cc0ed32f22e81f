// Package session holds the admin bearer credential with an explicit Init/Set/Clear lifecycle.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"refdash/internal/apperr"
)

// TokenKey is the cursor key the credential is persisted under.
const TokenKey = "session:token"

// ErrNoCredential is wrapped by the AuthError returned when no token is held.
var ErrNoCredential = errors.New("no credential")

// ErrExpired is wrapped by the AuthError returned for a JWT past its exp claim.
var ErrExpired = errors.New("credential expired")

// Store persists the credential between CLI runs.
type Store interface {
	SaveCursor(ctx context.Context, key, value string) error
	LoadCursor(ctx context.Context, key string) (string, error)
	DeleteCursor(ctx context.Context, key string) error
}

// Session is passed to every API-calling component at construction.
// It is safe for concurrent use.
type Session struct {
	mu      sync.RWMutex
	token   string
	store   Store
	logger  *zap.Logger
	nowFn   func() time.Time
	onClear []func()
}

// New creates an empty session. store may be nil for a memory-only session.
func New(store Store, logger *zap.Logger) *Session {
	return &Session{store: store, logger: logger, nowFn: time.Now}
}

// Init loads a previously persisted credential, if any.
func (s *Session) Init(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	tok, err := s.store.LoadCursor(ctx, TokenKey)
	if err != nil {
		// nothing persisted yet
		s.logger.Debug("no persisted credential", zap.Error(err))
		return nil
	}
	s.mu.Lock()
	s.token = tok
	s.mu.Unlock()
	return nil
}

// Set stores a freshly issued credential and persists it.
func (s *Session) Set(ctx context.Context, token string) error {
	if token == "" {
		return apperr.AuthError(ErrNoCredential, "empty token")
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	if s.store != nil {
		if err := s.store.SaveCursor(ctx, TokenKey, token); err != nil {
			return err
		}
	}
	return nil
}

// Token returns the credential for the Authorization header.
// It fails with an AuthError when none is held or when a JWT credential has expired,
// so callers never send a request that is bound to be rejected.
func (s *Session) Token() (string, error) {
	s.mu.RLock()
	tok := s.token
	now := s.nowFn()
	s.mu.RUnlock()
	if tok == "" {
		return "", apperr.AuthError(ErrNoCredential, "not logged in")
	}
	if exp, ok := expiry(tok); ok && !now.Before(exp) {
		return "", apperr.AuthError(ErrExpired, "session expired, please login again")
	}
	return tok, nil
}

// Authenticated reports whether a usable credential is held.
func (s *Session) Authenticated() bool {
	_, err := s.Token()
	return err == nil
}

// OnClear registers fn to run whenever the credential is cleared.
func (s *Session) OnClear(fn func()) {
	s.mu.Lock()
	s.onClear = append(s.onClear, fn)
	s.mu.Unlock()
}

// Clear drops the credential in memory and in the store.
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	had := s.token != ""
	s.token = ""
	hooks := append([]func(){}, s.onClear...)
	s.mu.Unlock()

	var err error
	if s.store != nil {
		err = s.store.DeleteCursor(ctx, TokenKey)
	}
	if had {
		s.logger.Info("credential cleared")
	}
	for _, fn := range hooks {
		fn()
	}
	return err
}

// expiry extracts the exp claim of a JWT without verifying its signature;
// the server verifies, the client only avoids sending stale tokens.
// Opaque tokens report ok=false.
func expiry(tok string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
