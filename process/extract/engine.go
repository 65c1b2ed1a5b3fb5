package extract

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"catalogscan/models"
	"catalogscan/pkg/logger"
	"catalogscan/pkg/ocr"
)

// Engine turns one page into products and problematic items.
type Engine struct {
	Pre           *ocr.Preprocessor
	Detector      ocr.RegionDetector
	Recognizer    *ocr.Recognizer
	Normalizer    *ocr.Normalizer
	Parser        *ocr.PriceParser
	Matcher       *ocr.Matcher
	MinNameLength int
	// Workers bounds concurrent region recognition within a page; 1 is sequential.
	Workers int
}

// regionText is what a recognized region contributes before matching.
type regionText struct {
	region ocr.Region
	raw    string
	name   string
	price  ocr.PriceCandidate
	priced bool
}

// ProcessPage never fails: decode and preprocessing errors become a single
// "Processing error" item and recognition errors leave the region empty.
// When ctx is cancelled mid-page the result is partial and must not be committed.
func (e *Engine) ProcessPage(ctx context.Context, page Page) models.PageResult {
	log := logger.WithComponent("extract").With().Int("page", page.Number).Logger()
	start := time.Now()
	res := models.PageResult{Page: page.Number, Source: page.Source()}

	img, err := page.Load()
	if err != nil {
		derr := &ocr.ImageDecodeError{Page: page.Number, Path: page.Path, Err: err}
		log.Warn().Err(derr).Msg("page skipped")
		res.Problematic = append(res.Problematic, processingError(res.Source, derr))
		return res
	}
	prepared, err := e.Pre.Prepare(img)
	if err != nil {
		derr := &ocr.ImageDecodeError{Page: page.Number, Path: page.Path, Err: err}
		log.Warn().Err(derr).Msg("page skipped")
		res.Problematic = append(res.Problematic, processingError(res.Source, derr))
		return res
	}
	res.Warnings = prepared.Warnings

	regions := e.Detector.Detect(prepared)
	res.Regions = len(regions)
	texts := e.recognizeAll(ctx, prepared, regions)
	if ctx.Err() != nil {
		return res
	}
	res.Products, res.Problematic = e.resolve(res.Source, texts)

	log.Info().Int("regions", len(regions)).Int("products", len(res.Products)).
		Int("problematic", len(res.Problematic)).Dur("took", time.Since(start)).Msg("page done")
	return res
}

// recognizeAll runs the recognizer over every region on a bounded pool and
// returns the parsed texts in region order.
func (e *Engine) recognizeAll(ctx context.Context, p *ocr.Prepared, regions []ocr.Region) []regionText {
	out := make([]regionText, len(regions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, e.Workers))
	for i, r := range regions {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			rec := e.Recognizer.Recognize(gctx, p, r)
			rt := regionText{region: r, raw: rec.Text}
			rt.price, rt.priced = e.Parser.Parse(rec.Text)
			if r.Kind == ocr.KindProduct {
				rt.name = e.Normalizer.Normalize(rec.Text)
			}
			out[i] = rt
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// resolve derives records from the recognized regions. A product region
// with a usable name and its own price is a product; with a name but no
// price it is immediately a "Product without price". A price, from a price
// region or from a product region whose name is unusable, is attached to
// the nearest product region within the cutoff, provided that region
// carries a usable name.
func (e *Engine) resolve(source string, texts []regionText) ([]models.Product, []models.ProblematicItem) {
	var (
		products []models.Product
		problems []models.ProblematicItem
		cands    []ocr.Region
		candIdx  []int
	)
	for i, t := range texts {
		if t.region.Kind == ocr.KindProduct {
			cands = append(cands, t.region)
			candIdx = append(candIdx, i)
		}
	}

	for i, t := range texts {
		if t.raw == "" {
			continue
		}
		if t.region.Kind == ocr.KindProduct {
			usable := ocr.Usable(t.name, e.MinNameLength)
			switch {
			case usable && t.priced:
				products = append(products, models.Product{Name: t.name, Price: t.price.Value, Source: source})
				continue
			case usable:
				problems = append(problems, models.ProblematicItem{
					Reason: models.ReasonProductWithoutPrice, RawText: t.name, Source: source,
				})
				continue
			case !t.priced:
				continue
			}
		} else if !t.priced {
			continue
		}

		if name, ok := e.nearestName(t.region, i, cands, candIdx, texts); ok {
			products = append(products, models.Product{Name: name, Price: t.price.Value, Source: source})
			continue
		}
		problems = append(problems, models.ProblematicItem{
			Reason: models.ReasonPriceWithoutProduct, RawText: t.price.Value.Dollars(), Source: source,
		})
	}
	return products, problems
}

func (e *Engine) nearestName(price ocr.Region, self int, cands []ocr.Region, candIdx []int, texts []regionText) (string, bool) {
	if len(cands) == 0 {
		return "", false
	}
	regions, index := cands, candIdx
	for j, idx := range candIdx {
		if idx == self {
			regions = append(append([]ocr.Region{}, cands[:j]...), cands[j+1:]...)
			index = append(append([]int{}, candIdx[:j]...), candIdx[j+1:]...)
			break
		}
	}
	k, dist, ok := e.Matcher.Nearest(price, regions)
	if !ok {
		log := logger.WithComponent("extract")
		log.Debug().Str("region", price.String()).Float64("distance", dist).
			Err(ocr.ErrNoNearbyMatch).Msg("orphan price")
		return "", false
	}
	name := texts[index[k]].name
	if !ocr.Usable(name, e.MinNameLength) {
		return "", false
	}
	return name, true
}

func processingError(source string, err error) models.ProblematicItem {
	return models.ProblematicItem{Reason: models.ReasonProcessingError, RawText: err.Error(), Source: source}
}

// Describe is a one-line summary for logs and the report command.
func Describe(res models.PageResult) string {
	return fmt.Sprintf("%s: %d regions, %d products, %d problematic",
		res.Source, res.Regions, len(res.Products), len(res.Problematic))
}
