package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_storefront/internal/kvstore"
	"github.com/google/uuid"
)

var ErrPreviewNotFound = errors.New("preview not found or expired")

const previewNamespace = "preview"

// PreviewStore keeps rendered documents for a short time so that they can
// be opened by id.
type PreviewStore struct {
	store *kvstore.Store
	ttl   time.Duration
}

func NewPreviewStore(store *kvstore.Store, ttl time.Duration) *PreviewStore {
	return &PreviewStore{store: store.WithNamespace(previewNamespace), ttl: ttl}
}

// Put stores doc and returns its handle.
func (p *PreviewStore) Put(ctx context.Context, doc *Document) (string, error) {
	id := uuid.NewString()
	if err := kvstore.Set(ctx, p.store, id, doc, p.ttl); err != nil {
		return "", fmt.Errorf("store preview: %w", err)
	}
	return id, nil
}

func (p *PreviewStore) Get(ctx context.Context, id string) (*Document, error) {
	doc := kvstore.Get[*Document](ctx, p.store, id, nil)
	if doc == nil {
		return nil, ErrPreviewNotFound
	}
	return doc, nil
}
