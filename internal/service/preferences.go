package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/go_storefront/internal/kvstore"
)

const preferencesKey = "preferences"

// Preferences are per-buyer settings remembered between visits.
type Preferences struct {
	City        string `json:"city,omitempty"`
	Sector      string `json:"sector,omitempty"`
	SeenWelcome bool   `json:"seenWelcome"`
}

type PreferencesService struct {
	store *kvstore.Store
	ttl   time.Duration
}

func NewPreferencesService(store *kvstore.Store, ttl time.Duration) *PreferencesService {
	return &PreferencesService{store: store, ttl: ttl}
}

func (s *PreferencesService) ns(sessionID string) *kvstore.Store {
	return s.store.WithNamespace("prefs:" + sessionID)
}

// Get returns zero preferences for unknown or expired sessions.
func (s *PreferencesService) Get(ctx context.Context, sessionID string) (Preferences, error) {
	if sessionID == "" {
		return Preferences{}, ErrInvalidSession
	}
	return kvstore.Get(ctx, s.ns(sessionID), preferencesKey, Preferences{}), nil
}

// Save stores prefs and restarts their expiry.
func (s *PreferencesService) Save(ctx context.Context, sessionID string, prefs Preferences) error {
	if sessionID == "" {
		return ErrInvalidSession
	}
	if err := kvstore.Set(ctx, s.ns(sessionID), preferencesKey, prefs, s.ttl); err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}
