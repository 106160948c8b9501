package service

import (
	"context"
	"testing"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBuildSnapshot_RequiresCompanyAndItems(t *testing.T) {
	items := []domain.CartLineItem{line("p1", "v1", 10)}
	items[0].Quantity = 1

	_, err := BuildSnapshot(items, nil, time.Now())
	assert.ErrorIs(t, err, ErrCompanyInfoNotLoaded)

	company := testCompany
	_, err = BuildSnapshot(nil, &company, time.Now())
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestBuildSnapshot_UnaffectedByLaterCartChanges(t *testing.T) {
	store, _ := newTestStore(t)
	c := openCart(t, NewCartService(store, zap.NewNop()), "s1")
	ctx := context.Background()
	require.NoError(t, c.AddItem(ctx, line("p1", "v1", 10), 2))
	require.NoError(t, c.AddItem(ctx, line("p2", "v1", 5), 1))

	company := testCompany
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snap, err := BuildSnapshot(c.Items(), &company, now)
	require.NoError(t, err)

	require.NoError(t, c.UpdateQuantity(ctx, "p1", "v1", 7))
	require.NoError(t, c.RemoveItem(ctx, "p2", "v1"))
	company.Name = "Renamed"

	require.Len(t, snap.Items, 2)
	assert.Equal(t, 2, snap.Items[0].Quantity)
	assert.Equal(t, "25.00", snap.Total.StringFixed(2))
	assert.Equal(t, "Tienda Sol", snap.CompanyInfo.Name)
	assert.Equal(t, now, snap.CreatedAt)
	assert.NotEqual(t, uuid.Nil, snap.ID)
}

func TestSnapshotStore_SaveLoadDiscard(t *testing.T) {
	store, _ := newTestStore(t)
	snaps := NewSnapshotStore(store, 30*time.Minute)
	ctx := context.Background()

	items := []domain.CartLineItem{line("p1", "v1", 10)}
	items[0].Quantity = 3
	company := testCompany
	snap, err := BuildSnapshot(items, &company, time.Now().UTC().Truncate(time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, snaps.Save(ctx, "s1", snap))

	got, err := snaps.Load(ctx, "s1", snap.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, got.ID)
	assert.True(t, snap.Total.Equal(got.Total))
	assert.Equal(t, snap.CompanyInfo, got.CompanyInfo)

	_, err = snaps.Load(ctx, "other-session", snap.ID)
	assert.ErrorIs(t, err, ErrSnapshotNotFound)

	require.NoError(t, snaps.Discard(ctx, "s1", snap.ID))
	_, err = snaps.Load(ctx, "s1", snap.ID)
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}
