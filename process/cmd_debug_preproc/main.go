package main

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"catalogscan/models"
	"catalogscan/pkg/config"
	"catalogscan/pkg/ocr"
	"catalogscan/pkg/ocr/cvregion"
)

// Writes <name>.debug.gray.png, <name>.debug.binary.png and
// <name>.debug.regions.png for one page image.
func main() {
	in := flag.String("in", "", "page image")
	out := flag.String("out", "", "output directory (default: next to the image)")
	profile := flag.String("profile", "", "YAML profile")
	flag.Parse()
	if *in == "" {
		log.Fatal("-in is required")
	}

	cfg, err := config.LoadWithProfile(*profile)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	img, err := imaging.Open(*in, imaging.AutoOrientation(true))
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	p, err := ocr.NewPreprocessor(cfg.PreprocessConfig()).Prepare(img)
	if err != nil {
		log.Fatalf("prepare: %v", err)
	}
	for _, w := range p.Warnings {
		log.Printf("warning: %s", w)
	}

	var det ocr.RegionDetector = ocr.TemplateDetector{Zones: cfg.Template}
	if cfg.Mode == models.ModePages {
		var finder ocr.BoxFinder
		if cfg.RegionFinder == "opencv" {
			finder = cvregion.Finder{}
		}
		det = ocr.ContourDetector{Floors: cfg.Floors, Finder: finder}
	}
	regions := det.Detect(p)

	dir := *out
	if dir == "" {
		dir = filepath.Dir(*in)
	}
	base := strings.TrimSuffix(filepath.Base(*in), filepath.Ext(*in))
	outputs := map[string]string{
		"gray":    filepath.Join(dir, base+".debug.gray.png"),
		"binary":  filepath.Join(dir, base+".debug.binary.png"),
		"regions": filepath.Join(dir, base+".debug.regions.png"),
	}
	if err := imaging.Save(p.Gray, outputs["gray"]); err != nil {
		log.Fatalf("save gray: %v", err)
	}
	if err := imaging.Save(p.Binary, outputs["binary"]); err != nil {
		log.Fatalf("save binary: %v", err)
	}
	if err := imaging.Save(ocr.Overlay(p.Gray, regions, 2), outputs["regions"]); err != nil {
		log.Fatalf("save overlay: %v", err)
	}

	products, prices := 0, 0
	for _, r := range regions {
		if r.Kind == ocr.KindProduct {
			products++
		} else {
			prices++
		}
	}
	fmt.Printf("size=%v resized=%v product_regions=%d price_regions=%d\n", p.Bounds().Size(), p.Resized, products, prices)
	for _, k := range []string{"gray", "binary", "regions"} {
		fmt.Println(outputs[k])
	}
}
