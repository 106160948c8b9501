package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

func setupTestMongo(t *testing.T) *MongoBackend {
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	b, err := DialMongo(ctx, MongoConfig{URI: uri, Database: "testdb"})
	require.NoError(t, err)
	t.Cleanup(func() { b.Close(context.Background()) })
	return b
}

func TestMongoBackend_CRUD(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	b := setupTestMongo(t)
	ctx := context.Background()

	_, err := b.Get(ctx, "session:1:cart")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, b.Set(ctx, "session:1:cart", []byte(`[1]`), 0))
	require.NoError(t, b.Set(ctx, "session:1:cart", []byte(`[1,2]`), time.Hour))

	data, err := b.Get(ctx, "session:1:cart")
	require.NoError(t, err)
	assert.Equal(t, `[1,2]`, string(data))

	require.NoError(t, b.Delete(ctx, "session:1:cart"))
	_, err = b.Get(ctx, "session:1:cart")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMongoBackend_StoreRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	s := New(setupTestMongo(t))
	ctx := context.Background()

	in := []item{{ID: "p1", Qty: 2}}
	require.NoError(t, Set(ctx, s.WithNamespace("session:x"), "cart", in, 0))
	assert.Equal(t, in, Get(ctx, s.WithNamespace("session:x"), "cart", []item(nil)))
}
