package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store reads and writes enveloped JSON values through a Backend. Views
// created with WithNamespace share the backend, notifier and subscribers.
type Store struct {
	backend  Backend
	notifier Notifier
	hub      *hub
	ns       string
	log      *zap.Logger
	now      func() time.Time
}

type Option func(*Store)

// WithNotifier propagates changes to other processes sharing the backend.
func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		hub:     newHub(uuid.NewString()),
		log:     zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithNamespace returns a view whose keys are prefixed with "ns:".
func (s *Store) WithNamespace(ns string) *Store {
	view := *s
	view.ns = ns
	return &view
}

func (s *Store) Namespace() string {
	return s.ns
}

func (s *Store) fullKey(key string) string {
	if s.ns == "" {
		return key
	}
	return s.ns + ":" + key
}

// Get returns the value stored under key, or def when the key is missing,
// expired or unreadable. Expired and unreadable entries are deleted.
func Get[T any](ctx context.Context, s *Store, key string, def T) T {
	v, err := Load(ctx, s, key, def)
	if err != nil {
		return def
	}
	return v
}

// Load is Get for callers that must not mistake a failed read for a
// missing key: backend errors are returned, while missing, expired and
// corrupt entries still yield def.
func Load[T any](ctx context.Context, s *Store, key string, def T) (T, error) {
	full := s.fullKey(key)
	raw, ok, err := s.load(ctx, full)
	if err != nil {
		return def, fmt.Errorf("read %q: %w", full, err)
	}
	if !ok {
		return def, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		s.log.Warn("kvstore entry has unexpected shape, discarding",
			zap.String("key", full), zap.Error(err))
		s.discard(ctx, full)
		return def, nil
	}
	return v, nil
}

// Set stores value under key, expiring after ttl (zero for never), then
// notifies subscribers of the key. On error nothing is notified.
func Set[T any](ctx context.Context, s *Store, key string, value T, ttl time.Duration) error {
	data, err := encodeEnvelope(value, ttl, s.now())
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return s.write(ctx, s.fullKey(key), data, ttl)
}

// Watch calls fn with the decoded value of key after every change, or with
// def once the key is gone. The returned func cancels the subscription.
func Watch[T any](s *Store, key string, def T, fn func(T)) func() {
	full := s.fullKey(key)
	return s.hub.subscribe(full, func(raw json.RawMessage, ok bool) {
		if !ok {
			fn(def)
			return
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			s.log.Warn("kvstore change has unexpected shape", zap.String("key", full), zap.Error(err))
			fn(def)
			return
		}
		fn(v)
	})
}

// Subscribe registers a raw listener for key.
func (s *Store) Subscribe(key string, fn Listener) func() {
	return s.hub.subscribe(s.fullKey(key), fn)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	full := s.fullKey(key)
	if err := s.backend.Delete(ctx, full); err != nil {
		return fmt.Errorf("delete %q: %w", full, err)
	}
	s.hub.dispatch(full, nil, false)
	s.publish(ctx, full)
	return nil
}

// Run applies change notifications published by other processes until ctx
// is done. Without a notifier it just waits for ctx.
func (s *Store) Run(ctx context.Context) error {
	if s.notifier == nil {
		<-ctx.Done()
		return nil
	}
	return s.notifier.Listen(ctx, func(c Change) {
		if c.Origin == s.hub.origin || !s.hub.has(c.Key) {
			return
		}
		raw, ok, err := s.load(ctx, c.Key)
		if err != nil {
			return
		}
		s.hub.dispatch(c.Key, raw, ok)
	})
}

func (s *Store) load(ctx context.Context, full string) (json.RawMessage, bool, error) {
	data, err := s.backend.Get(ctx, full)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		s.log.Warn("kvstore read failed", zap.String("key", full), zap.Error(err))
		return nil, false, err
	}

	raw, err := decodeEnvelope(data, s.now())
	switch {
	case errors.Is(err, errExpired):
		s.discard(ctx, full)
		return nil, false, nil
	case err != nil:
		s.log.Warn("kvstore entry is corrupt, discarding", zap.String("key", full), zap.Error(err))
		s.discard(ctx, full)
		return nil, false, nil
	}
	return raw, true, nil
}

func (s *Store) write(ctx context.Context, full string, data []byte, ttl time.Duration) error {
	if err := s.backend.Set(ctx, full, data, ttl); err != nil {
		s.log.Warn("kvstore write failed", zap.String("key", full), zap.Error(err))
		return fmt.Errorf("write %q: %w", full, err)
	}

	raw, err := decodeEnvelope(data, s.now())
	if err == nil {
		s.hub.dispatch(full, raw, true)
	}
	s.publish(ctx, full)
	return nil
}

func (s *Store) discard(ctx context.Context, full string) {
	if err := s.backend.Delete(ctx, full); err != nil {
		s.log.Warn("kvstore delete of stale entry failed", zap.String("key", full), zap.Error(err))
	}
}

func (s *Store) publish(ctx context.Context, full string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, Change{Key: full, Origin: s.hub.origin}); err != nil {
		s.log.Warn("kvstore change notification failed", zap.String("key", full), zap.Error(err))
	}
}
