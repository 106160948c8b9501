// Package auth gates admin operations behind a password sign-in.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_storefront/internal/kvstore"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

type session struct {
	User     string    `json:"user"`
	IssuedAt time.Time `json:"issuedAt"`
}

// Sessions issues opaque admin tokens. Tokens live in the key-value store
// and expire after ttl.
type Sessions struct {
	store        *kvstore.Store
	user         string
	passwordHash []byte
	ttl          time.Duration
	log          *zap.Logger
}

func NewSessions(store *kvstore.Store, user, passwordHash string, ttl time.Duration, log *zap.Logger) *Sessions {
	return &Sessions{
		store:        store.WithNamespace("auth"),
		user:         user,
		passwordHash: []byte(passwordHash),
		ttl:          ttl,
		log:          log,
	}
}

func tokenKey(token string) string { return "session:" + token }

// SignIn checks the credentials and returns a new token.
func (s *Sessions) SignIn(ctx context.Context, user, password string) (string, error) {
	if len(s.passwordHash) == 0 {
		return "", ErrInvalidCredentials
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.user)) == 1
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)); err != nil || !userOK {
		s.log.Info("admin sign-in rejected", zap.String("user", user))
		return "", ErrInvalidCredentials
	}

	token := rand.Text()
	if err := kvstore.Set(ctx, s.store, tokenKey(token), session{User: user, IssuedAt: time.Now().UTC()}, s.ttl); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

func (s *Sessions) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.store.Delete(ctx, tokenKey(token))
}

// Valid reports whether token belongs to a live session.
func (s *Sessions) Valid(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	return kvstore.Get[*session](ctx, s.store, tokenKey(token), nil) != nil
}

// HashPassword returns the bcrypt hash to configure as the admin password.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}
