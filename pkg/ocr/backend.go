package ocr

import (
	"context"
	"image"
)

// Layout is the text layout a recognition backend should assume for a crop.
type Layout int

const (
	LayoutUniformBlock Layout = iota
	LayoutAuto
	LayoutSingleLine
	LayoutSingleWord
)

func (l Layout) String() string {
	switch l {
	case LayoutUniformBlock:
		return "block"
	case LayoutAuto:
		return "auto"
	case LayoutSingleLine:
		return "line"
	case LayoutSingleWord:
		return "word"
	}
	return "unknown"
}

// Recognition is one backend answer. Confidence is in 0..100 when the
// backend reports it, otherwise 0.
type Recognition struct {
	Text       string
	Confidence float64
}

// Backend recognizes text in a single crop. Implementations must be safe for
// concurrent use; regions of one page may be recognized in parallel.
type Backend interface {
	Recognize(ctx context.Context, img image.Image, layout Layout) (Recognition, error)
}

// PriceReader is implemented by backends that can be narrowed to the
// characters a price can contain. The narrowed backend reads price regions.
type PriceReader interface {
	PriceBackend() Backend
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, img image.Image, layout Layout) (Recognition, error)

func (f BackendFunc) Recognize(ctx context.Context, img image.Image, layout Layout) (Recognition, error) {
	return f(ctx, img, layout)
}
