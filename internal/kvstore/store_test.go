package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID  string `json:"id"`
	Qty int    `json:"qty"`
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type failingBackend struct {
	*MemoryBackend
	setErr error
	getErr error
}

func (f *failingBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.MemoryBackend.Get(ctx, key)
}

func (f *failingBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.MemoryBackend.Set(ctx, key, value, ttl)
}

func setupStore(t *testing.T) (*Store, *MemoryBackend, *fakeClock) {
	backend := NewMemoryBackend()
	t.Cleanup(backend.Close)
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	return New(backend, WithClock(clock.Now)), backend, clock
}

func TestStore_RoundTrip(t *testing.T) {
	s, _, _ := setupStore(t)
	ctx := context.Background()

	in := []item{{ID: "a", Qty: 2}, {ID: "b", Qty: 1}}
	require.NoError(t, Set(ctx, s, "cart", in, 0))

	out := Get(ctx, s, "cart", []item(nil))
	assert.Equal(t, in, out)
}

func TestStore_MissingReturnsDefault(t *testing.T) {
	s, _, _ := setupStore(t)
	got := Get(context.Background(), s, "nope", "fallback")
	assert.Equal(t, "fallback", got)
}

func TestLoad_ReturnsBackendError(t *testing.T) {
	backend := &failingBackend{MemoryBackend: NewMemoryBackend()}
	t.Cleanup(backend.Close)
	s := New(backend)
	ctx := context.Background()
	require.NoError(t, Set(ctx, s, "cart", []item{{ID: "a", Qty: 1}}, 0))

	backend.getErr = errors.New("i/o timeout")
	got, err := Load(ctx, s, "cart", []item(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "i/o timeout")
	assert.Nil(t, got)

	backend.getErr = nil
	got, err = Load(ctx, s, "cart", []item(nil))
	require.NoError(t, err)
	assert.Equal(t, []item{{ID: "a", Qty: 1}}, got)
}

func TestLoad_MissingAndCorruptYieldDefault(t *testing.T) {
	s, backend, _ := setupStore(t)
	ctx := context.Background()

	got, err := Load(ctx, s, "nope", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, got)

	require.NoError(t, backend.Set(ctx, "bad", []byte(`{"meta":{"version":1`), 0))
	got, err = Load(ctx, s, "bad", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func TestStore_AlwaysWritesEnvelope(t *testing.T) {
	s, backend, clock := setupStore(t)
	ctx := context.Background()

	require.NoError(t, Set(ctx, s, "plain", 42, 0))
	require.NoError(t, Set(ctx, s, "timed", "x", time.Hour))

	raw, err := backend.Get(ctx, "plain")
	require.NoError(t, err)
	assert.JSONEq(t, `{"meta":{"version":1,"expiresAt":null},"value":42}`, string(raw))

	raw, err = backend.Get(ctx, "timed")
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	require.NotNil(t, env.Meta.ExpiresAt)
	assert.Equal(t, clock.Now().Add(time.Hour).UnixMilli(), *env.Meta.ExpiresAt)
}

func TestStore_ExpiredEntryIsDeleted(t *testing.T) {
	s, backend, clock := setupStore(t)
	ctx := context.Background()

	require.NoError(t, Set(ctx, s, "city", "Santiago", 30*24*time.Hour))
	assert.Equal(t, "Santiago", Get(ctx, s, "city", ""))

	clock.Advance(30*24*time.Hour + time.Millisecond)
	assert.Equal(t, "default", Get(ctx, s, "city", "default"))

	_, err := backend.Get(ctx, "city")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_CorruptEntryIsDeleted(t *testing.T) {
	s, backend, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, "cart", []byte(`{"meta":{"version":1`), 0))
	assert.Equal(t, []item{}, Get(ctx, s, "cart", []item{}))

	_, err := backend.Get(ctx, "cart")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_WrongShapeIsDeleted(t *testing.T) {
	s, backend, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, Set(ctx, s, "cart", "not a list", 0))
	assert.Nil(t, Get(ctx, s, "cart", []item(nil)))

	_, err := backend.Get(ctx, "cart")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_UnknownVersionTreatedAsCorrupt(t *testing.T) {
	s, backend, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, "k", []byte(`{"meta":{"version":9,"expiresAt":null},"value":1}`), 0))
	assert.Equal(t, 0, Get(ctx, s, "k", 0))
}

func TestStore_BareValueAccepted(t *testing.T) {
	s, backend, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, "cart", []byte(`[{"id":"a","qty":3}]`), 0))
	assert.Equal(t, []item{{ID: "a", Qty: 3}}, Get(ctx, s, "cart", []item(nil)))
}

func TestStore_Namespace(t *testing.T) {
	s, backend, _ := setupStore(t)
	ctx := context.Background()

	prefs := s.WithNamespace("prefs:abc")
	require.NoError(t, Set(ctx, prefs, "city", "Lima", 0))

	_, err := backend.Get(ctx, "prefs:abc:city")
	require.NoError(t, err)
	assert.Equal(t, "", Get(ctx, s, "city", ""))
	assert.Equal(t, "Lima", Get(ctx, prefs, "city", ""))
}

func TestStore_WatchFanOut(t *testing.T) {
	s, _, _ := setupStore(t)
	ctx := context.Background()
	ns := s.WithNamespace("session:1")

	var badge, drawer []item
	cancelBadge := Watch(ns, "cart", []item(nil), func(v []item) { badge = v })
	cancelDrawer := Watch(s.WithNamespace("session:1"), "cart", []item(nil), func(v []item) { drawer = v })
	defer cancelDrawer()

	want := []item{{ID: "a", Qty: 1}}
	require.NoError(t, Set(ctx, ns, "cart", want, 0))
	assert.Equal(t, want, badge, "listeners are notified synchronously")
	assert.Equal(t, want, drawer)

	cancelBadge()
	require.NoError(t, Set(ctx, ns, "cart", []item{{ID: "b", Qty: 2}}, 0))
	assert.Equal(t, want, badge)
	assert.Equal(t, []item{{ID: "b", Qty: 2}}, drawer)

	require.NoError(t, ns.Delete(ctx, "cart"))
	assert.Nil(t, drawer)
}

func TestStore_WriteFailureDoesNotNotify(t *testing.T) {
	backend := &failingBackend{MemoryBackend: NewMemoryBackend(), setErr: errors.New("quota exceeded")}
	t.Cleanup(backend.Close)
	s := New(backend)

	called := false
	cancel := Watch(s, "cart", 0, func(int) { called = true })
	defer cancel()

	err := Set(context.Background(), s, "cart", 1, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.False(t, called)
}

func TestStore_ListenerMayWrite(t *testing.T) {
	s, _, _ := setupStore(t)
	ctx := context.Background()

	cancel := Watch(s, "a", 0, func(v int) {
		require.NoError(t, Set(ctx, s, "b", v*10, 0))
	})
	defer cancel()

	require.NoError(t, Set(ctx, s, "a", 3, 0))
	assert.Equal(t, 30, Get(ctx, s, "b", 0))
}

func TestStore_RunWithoutNotifierStopsOnCancel(t *testing.T) {
	s, _, _ := setupStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
