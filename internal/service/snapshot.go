package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/kvstore"
	"github.com/google/uuid"
)

// BuildSnapshot freezes items into an order document. The snapshot owns a
// copy of the lines, so later cart edits never change it.
func BuildSnapshot(items []domain.CartLineItem, company *domain.CompanyInfo, now time.Time) (*domain.OrderSnapshot, error) {
	if company == nil {
		return nil, ErrCompanyInfoNotLoaded
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	frozen := domain.CloneItems(items)
	return &domain.OrderSnapshot{
		ID:          uuid.New(),
		Items:       frozen,
		Total:       domain.CartTotal(frozen),
		CompanyInfo: *company,
		CreatedAt:   now,
	}, nil
}

// SnapshotStore holds snapshots between generation and send or cancel.
type SnapshotStore struct {
	store *kvstore.Store
	ttl   time.Duration
}

func NewSnapshotStore(store *kvstore.Store, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{store: store, ttl: ttl}
}

func snapshotKey(id uuid.UUID) string {
	return "snapshot:" + id.String()
}

func (s *SnapshotStore) Save(ctx context.Context, sessionID string, snap *domain.OrderSnapshot) error {
	if err := kvstore.Set(ctx, sessionStore(s.store, sessionID), snapshotKey(snap.ID), snap, s.ttl); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *SnapshotStore) Load(ctx context.Context, sessionID string, id uuid.UUID) (*domain.OrderSnapshot, error) {
	snap := kvstore.Get[*domain.OrderSnapshot](ctx, sessionStore(s.store, sessionID), snapshotKey(id), nil)
	if snap == nil {
		return nil, ErrSnapshotNotFound
	}
	return snap, nil
}

// Discard drops a snapshot the buyer cancelled or already sent.
func (s *SnapshotStore) Discard(ctx context.Context, sessionID string, id uuid.UUID) error {
	return sessionStore(s.store, sessionID).Delete(ctx, snapshotKey(id))
}
