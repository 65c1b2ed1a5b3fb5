// Package tesseract implements the ocr.Backend contract with gosseract.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"catalogscan/pkg/ocr"
)

// Backend runs Tesseract on in-memory crops. A fresh client is created per
// call, so one Backend may be shared by all region workers.
type Backend struct {
	Language string
	// Whitelist restricts recognized characters when non-empty.
	Whitelist string
	// Confidence enables a second word-level pass to report mean confidence.
	Confidence bool
}

func New(language string) *Backend {
	if language == "" {
		language = "eng"
	}
	return &Backend{Language: language}
}

// PriceWhitelist is every character a price region may hold.
const PriceWhitelist = "0123456789$."

// PriceBackend returns a copy of b restricted to PriceWhitelist.
func (b *Backend) PriceBackend() ocr.Backend {
	pb := *b
	pb.Whitelist = PriceWhitelist
	return &pb
}

// PageSegMode maps a layout assumption to Tesseract's page segmentation mode.
func PageSegMode(l ocr.Layout) gosseract.PageSegMode {
	switch l {
	case ocr.LayoutSingleLine:
		return gosseract.PSM_SINGLE_LINE
	case ocr.LayoutSingleWord:
		return gosseract.PSM_SINGLE_WORD
	case ocr.LayoutAuto:
		return gosseract.PSM_AUTO
	default:
		return gosseract.PSM_SINGLE_BLOCK
	}
}

func (b *Backend) Recognize(ctx context.Context, img image.Image, layout ocr.Layout) (ocr.Recognition, error) {
	if err := ctx.Err(); err != nil {
		return ocr.Recognition{}, err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return ocr.Recognition{}, fmt.Errorf("encode crop: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()
	if err := client.SetLanguage(b.Language); err != nil {
		return ocr.Recognition{}, fmt.Errorf("set language %s: %w", b.Language, err)
	}
	if err := client.SetPageSegMode(PageSegMode(layout)); err != nil {
		return ocr.Recognition{}, fmt.Errorf("set psm: %w", err)
	}
	if b.Whitelist != "" {
		if err := client.SetWhitelist(b.Whitelist); err != nil {
			return ocr.Recognition{}, fmt.Errorf("set whitelist: %w", err)
		}
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return ocr.Recognition{}, fmt.Errorf("set image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return ocr.Recognition{}, fmt.Errorf("tesseract text: %w", err)
	}
	rec := ocr.Recognition{Text: strings.TrimSpace(text)}
	if b.Confidence && rec.Text != "" {
		if boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD); err == nil && len(boxes) > 0 {
			sum := 0.0
			for _, box := range boxes {
				sum += box.Confidence
			}
			rec.Confidence = sum / float64(len(boxes))
		}
	}
	return rec, nil
}

// Version reports the linked Tesseract version.
func Version() string {
	client := gosseract.NewClient()
	defer client.Close()
	return client.Version()
}
