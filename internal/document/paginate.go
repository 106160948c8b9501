package document

import (
	"errors"
	"fmt"
)

var ErrInvalidPageHeight = errors.New("page height must be positive")

// Band is a horizontal slice of a tall rendered surface that fits on one page.
type Band struct {
	Offset int
	Height int
}

// Paginate slices contentHeight into consecutive bands of at most pageHeight.
// The bands cover [0, contentHeight) exactly; only the last may be shorter.
// Zero content yields no bands.
func Paginate(contentHeight, pageHeight int) ([]Band, error) {
	if pageHeight <= 0 {
		return nil, ErrInvalidPageHeight
	}
	if contentHeight < 0 {
		return nil, fmt.Errorf("content height %d is negative", contentHeight)
	}

	bands := make([]Band, 0, (contentHeight+pageHeight-1)/pageHeight)
	for offset := 0; offset < contentHeight; offset += pageHeight {
		bands = append(bands, Band{Offset: offset, Height: min(pageHeight, contentHeight-offset)})
	}
	return bands, nil
}
