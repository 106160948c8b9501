package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/kvstore"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const cartLoadTimeout = 5 * time.Second

type CartService struct {
	store *kvstore.Store
	log   *zap.Logger
	sfg   singleflight.Group // collapses concurrent rehydrates of one session
}

func NewCartService(store *kvstore.Store, log *zap.Logger) *CartService {
	return &CartService{store: store, log: log}
}

func sessionStore(store *kvstore.Store, sessionID string) *kvstore.Store {
	return store.WithNamespace("session:" + sessionID)
}

// Open rehydrates the cart of sessionID. Callers must Close the handle.
// A failed read returns ErrCartUnavailable, never an empty cart, so the
// stored lines cannot be overwritten by a mutation on a blank handle.
func (s *CartService) Open(ctx context.Context, sessionID string) (*Cart, error) {
	if sessionID == "" {
		return nil, ErrInvalidSession
	}
	ns := sessionStore(s.store, sessionID)

	// the shared read must not fail for every joined caller when the
	// first caller's request is cancelled
	ch := s.sfg.DoChan(sessionID, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cartLoadTimeout)
		defer cancel()
		return kvstore.Load(loadCtx, ns, cartKey, []domain.CartLineItem{})
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		s.log.Warn("cart read failed", zap.String("session", sessionID), zap.Error(res.Err))
		return nil, fmt.Errorf("%w: %w", ErrCartUnavailable, res.Err)
	}
	items := domain.CloneItems(res.Val.([]domain.CartLineItem))

	return newCart(ns, s.log, items), nil
}
