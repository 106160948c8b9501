package document

import (
	"errors"
	"fmt"

	"github.com/fjod/go_storefront/internal/domain"
	"go.uber.org/zap"
)

var (
	ErrEmptySnapshot = errors.New("snapshot has no items")
	ErrNoStrategy    = errors.New("no document strategy succeeded")
)

// Strategy turns a snapshot into PDF bytes.
type Strategy interface {
	Name() string
	Render(snap *domain.OrderSnapshot) ([]byte, error)
}

type Document struct {
	Bytes    []byte
	FileName string
	Strategy string
}

// Renderer tries its strategies in order and returns the first document
// produced. A panicking strategy counts as a failed one.
type Renderer struct {
	strategies []Strategy
	log        *zap.Logger
}

// NewRenderer uses the structured strategy with raster fallback unless
// strategies are given.
func NewRenderer(log *zap.Logger, strategies ...Strategy) *Renderer {
	if len(strategies) == 0 {
		strategies = []Strategy{StructuredStrategy{}, RasterStrategy{}}
	}
	return &Renderer{strategies: strategies, log: log}
}

func (r *Renderer) Render(snap *domain.OrderSnapshot) (*Document, error) {
	if snap == nil || len(snap.Items) == 0 {
		return nil, ErrEmptySnapshot
	}

	var errs []error
	for _, s := range r.strategies {
		data, err := safeRender(s, snap)
		if err == nil {
			return &Document{Bytes: data, FileName: FileName(snap.CompanyInfo.Name), Strategy: s.Name()}, nil
		}
		r.log.Warn("document strategy failed, trying next",
			zap.String("strategy", s.Name()),
			zap.String("snapshot_id", snap.ID.String()),
			zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}
	return nil, fmt.Errorf("%w: %w", ErrNoStrategy, errors.Join(errs...))
}

func safeRender(s Strategy, snap *domain.OrderSnapshot) (data []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			data, err = nil, fmt.Errorf("panic: %v", p)
		}
	}()
	return s.Render(snap)
}
