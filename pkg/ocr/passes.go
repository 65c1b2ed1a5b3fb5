package ocr

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/disintegration/imaging"

	"catalogscan/pkg/logger"
)

// RecognizerOptions configures the multi-pass recognition of one region.
type RecognizerOptions struct {
	// Crops are enlarged by these factors before recognition.
	ProductScale float64
	PriceScale   float64
	// Layouts are tried in order for each kind.
	ProductLayouts []Layout
	PriceLayouts   []Layout
	// Timeout is the soft budget of a single backend call; a call that
	// overruns is abandoned and counts as empty.
	Timeout time.Duration
	Scorer  Scorer
	// PriceBackend, when set, reads price regions instead of the main backend.
	PriceBackend Backend
}

func DefaultRecognizerOptions() RecognizerOptions {
	return RecognizerOptions{
		ProductScale:   1.5,
		PriceScale:     2.0,
		ProductLayouts: []Layout{LayoutUniformBlock, LayoutAuto},
		PriceLayouts:   []Layout{LayoutSingleLine, LayoutSingleWord, LayoutUniformBlock},
		Timeout:        20 * time.Second,
		Scorer:         LongestScorer{},
	}
}

// RecognitionResult is the winning text for one region. Text is empty when
// every attempt came back empty or failed.
type RecognitionResult struct {
	Region        Region
	Text          string
	SourceVariant string
	Attempts      int
}

type Recognizer struct {
	backend Backend
	opts    RecognizerOptions
}

func NewRecognizer(backend Backend, opts RecognizerOptions) *Recognizer {
	def := DefaultRecognizerOptions()
	if opts.ProductScale <= 0 {
		opts.ProductScale = def.ProductScale
	}
	if opts.PriceScale <= 0 {
		opts.PriceScale = def.PriceScale
	}
	if len(opts.ProductLayouts) == 0 {
		opts.ProductLayouts = def.ProductLayouts
	}
	if len(opts.PriceLayouts) == 0 {
		opts.PriceLayouts = def.PriceLayouts
	}
	if opts.Scorer == nil {
		opts.Scorer = def.Scorer
	}
	return &Recognizer{backend: backend, opts: opts}
}

type variant struct {
	name string
	img  image.Image
}

// Recognize runs every layout over both image variants of the region and
// returns the attempt chosen by the scorer. Failures never escape: a failed
// or timed out attempt is logged and contributes nothing.
func (r *Recognizer) Recognize(ctx context.Context, p *Prepared, region Region) RecognitionResult {
	log := logger.WithComponent("recognizer")
	res := RecognitionResult{Region: region}
	rect := region.Rect().Intersect(p.Bounds())
	if rect.Empty() {
		return res
	}

	backend := r.backend
	scale, layouts := r.opts.ProductScale, r.opts.ProductLayouts
	if region.Kind == KindPrice {
		scale, layouts = r.opts.PriceScale, r.opts.PriceLayouts
		if r.opts.PriceBackend != nil {
			backend = r.opts.PriceBackend
		}
	}
	variants := []variant{
		{name: "gray", img: enlarge(imaging.Crop(p.Gray, rect), scale)},
		{name: "binary", img: enlarge(imaging.Crop(p.Binary, rect), scale)},
	}

	var attempts []Attempt
	for _, layout := range layouts {
		for _, v := range variants {
			if ctx.Err() != nil {
				return res
			}
			res.Attempts++
			rec, err := r.call(ctx, backend, v.img, layout)
			if err != nil {
				err = &RecognitionError{Op: "recognize " + v.name + "/" + layout.String(), Region: region, Err: err}
				log.Debug().Err(err).Msg("attempt skipped")
				continue
			}
			text := normalizeOCRText(rec.Text)
			if text == "" {
				continue
			}
			attempts = append(attempts, Attempt{Variant: v.name, Layout: layout, Text: text, Confidence: rec.Confidence})
		}
	}
	best, ok := r.opts.Scorer.Best(attempts)
	if !ok {
		return res
	}
	res.Text = best.Text
	res.SourceVariant = best.Source()
	log.Debug().Str("region", region.String()).Str("source", res.SourceVariant).
		Str("text", snippet(res.Text, 60)).Msg("recognized")
	return res
}

// call runs one backend request under the soft timeout. Panics from native
// bindings are turned into errors so one bad crop cannot take down the page.
func (r *Recognizer) call(ctx context.Context, backend Backend, img image.Image, layout Layout) (Recognition, error) {
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}
	type result struct {
		rec Recognition
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if v := recover(); v != nil {
				ch <- result{err: fmt.Errorf("backend panic: %v", v)}
			}
		}()
		rec, err := backend.Recognize(ctx, img, layout)
		ch <- result{rec: rec, err: err}
	}()
	select {
	case out := <-ch:
		return out.rec, out.err
	case <-ctx.Done():
		return Recognition{}, ctx.Err()
	}
}

func enlarge(img *image.NRGBA, scale float64) image.Image {
	if scale == 1 {
		return img
	}
	w := int(float64(img.Bounds().Dx())*scale + 0.5)
	if w < 1 {
		w = 1
	}
	return imaging.Resize(img, w, 0, imaging.CatmullRom)
}
