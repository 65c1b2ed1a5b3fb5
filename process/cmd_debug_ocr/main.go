package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"catalogscan/pkg/config"
	"catalogscan/pkg/ocr"
	"catalogscan/pkg/ocr/cvregion"
	"catalogscan/pkg/ocr/tesseract"
	"catalogscan/process/extract"
)

// Prints what every detected region of one page reads as, then the
// products and problematic items the page would contribute to a run.
func main() {
	in := flag.String("in", "", "page image")
	profile := flag.String("profile", "", "YAML profile")
	flag.Parse()
	if *in == "" {
		log.Fatal("-in is required")
	}
	cfg, err := config.LoadWithProfile(*profile)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	var finder ocr.BoxFinder
	if cfg.RegionFinder == "opencv" {
		finder = cvregion.Finder{}
	}
	backend := tesseract.New(cfg.OCRLanguage)
	backend.Confidence = cfg.Scorer == "confidence"
	engine, err := extract.New(cfg, backend, finder)
	if err != nil {
		log.Fatalf("engine: %v", err)
	}

	page := extract.FilePage(1, *in, cfg.Mode)
	img, err := page.Load()
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	p, err := engine.Pre.Prepare(img)
	if err != nil {
		log.Fatalf("prepare: %v", err)
	}
	ctx := context.Background()
	for _, r := range engine.Detector.Detect(p) {
		res := engine.Recognizer.Recognize(ctx, p, r)
		price, ok := engine.Parser.Parse(res.Text)
		priceStr := "-"
		if ok {
			priceStr = fmt.Sprintf("%s (%s)", price.Value.Dollars(), price.Rule)
		}
		fmt.Printf("%s attempts=%d src=%s price=%s\n  raw=%q\n", r, res.Attempts, res.SourceVariant, priceStr, res.Text)
		if r.Kind == ocr.KindProduct {
			name := engine.Normalizer.Normalize(res.Text)
			fmt.Printf("  name=%q usable=%v\n", name, ocr.Usable(name, engine.MinNameLength))
		}
	}

	out := engine.ProcessPage(ctx, page)
	fmt.Println(extract.Describe(out))
	for _, pr := range out.Products {
		fmt.Printf("%s|%s|%s\n", pr.Name, pr.Price.Dollars(), pr.Source)
	}
	for _, it := range out.Problematic {
		fmt.Println(it.Line())
	}
}
