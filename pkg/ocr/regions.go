package ocr

import (
	"fmt"
	"image"

	"catalogscan/pkg/logger"
)

// RegionKind tags a region as product text or price text.
type RegionKind string

const (
	KindProduct RegionKind = "product"
	KindPrice   RegionKind = "price"
)

// Region is a pixel rectangle of one prepared page.
type Region struct {
	X, Y          int
	Width, Height int
	Kind          RegionKind
}

func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

func (r Region) Area() int { return r.Width * r.Height }

func (r Region) String() string {
	return fmt.Sprintf("%s[%d,%d %dx%d]", r.Kind, r.X, r.Y, r.Width, r.Height)
}

// RegionDetector turns a prepared page into candidate regions.
type RegionDetector interface {
	Detect(p *Prepared) []Region
}

// Zone is a rectangle in percent of image width/height: X1,Y1 top-left, X2,Y2 bottom-right.
type Zone struct {
	X1 float64 `yaml:"x1"`
	Y1 float64 `yaml:"y1"`
	X2 float64 `yaml:"x2"`
	Y2 float64 `yaml:"y2"`
}

func (z Zone) Valid() bool {
	in := func(v float64) bool { return v >= 0 && v <= 100 }
	return in(z.X1) && in(z.Y1) && in(z.X2) && in(z.Y2) && z.X2 > z.X1 && z.Y2 > z.Y1
}

// TemplateZones is the fixed screenshot layout used in template mode.
type TemplateZones struct {
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
	Product []Zone `yaml:"product_zones"`
	Price   []Zone `yaml:"price_zones"`
}

// DefaultTemplate is the single-product flyer tile: name on the left,
// regular and sale price stacked on the right.
func DefaultTemplate() TemplateZones {
	return TemplateZones{
		Width:   1876,
		Height:  355,
		Product: []Zone{{X1: 5, Y1: 10, X2: 60, Y2: 90}},
		Price: []Zone{
			{X1: 60, Y1: 10, X2: 95, Y2: 45},
			{X1: 60, Y1: 55, X2: 95, Y2: 90},
		},
	}
}

// TemplateDetector scales percentage zones to the prepared image size.
type TemplateDetector struct {
	Zones TemplateZones
}

func (d TemplateDetector) Detect(p *Prepared) []Region {
	b := p.Bounds()
	return d.Zones.Regions(b.Dx(), b.Dy())
}

// Regions scales the zones to a w x h image, product zones first.
func (t TemplateZones) Regions(w, h int) []Region {
	var out []Region
	for _, z := range t.Product {
		out = append(out, zoneToRegion(z, w, h, KindProduct))
	}
	for _, z := range t.Price {
		out = append(out, zoneToRegion(z, w, h, KindPrice))
	}
	return out
}

func zoneToRegion(z Zone, w, h int, kind RegionKind) Region {
	x1 := int(float64(w) * z.X1 / 100)
	y1 := int(float64(h) * z.Y1 / 100)
	x2 := int(float64(w) * z.X2 / 100)
	y2 := int(float64(h) * z.Y2 / 100)
	return Region{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1, Kind: kind}
}

// SizeFloors are the contour strategy's classification thresholds.
// A box is a product candidate when strictly wider and taller than the
// product floor, otherwise a price candidate when strictly larger than the price floor.
type SizeFloors struct {
	ProductWidth  int     `yaml:"product_width"`
	ProductHeight int     `yaml:"product_height"`
	PriceWidth    int     `yaml:"price_width"`
	PriceHeight   int     `yaml:"price_height"`
	MaxAspect     float64 `yaml:"max_aspect"`
	MaxAreaFrac   float64 `yaml:"max_area_frac"`
}

func DefaultFloors() SizeFloors {
	return SizeFloors{
		ProductWidth:  50,
		ProductHeight: 20,
		PriceWidth:    5,
		PriceHeight:   5,
		MaxAspect:     60,
		MaxAreaFrac:   0.9,
	}
}

// Classify returns the kind for a bounding box of a page with the given area,
// or false when the box is degenerate or below both floors.
func (f SizeFloors) Classify(r image.Rectangle, pageArea int) (RegionKind, bool) {
	w, h := r.Dx(), r.Dy()
	if w < 2 || h < 2 {
		return "", false
	}
	long, short := float64(max(w, h)), float64(min(w, h))
	if f.MaxAspect > 0 && long/short > f.MaxAspect {
		return "", false
	}
	if f.MaxAreaFrac > 0 && pageArea > 0 && float64(w*h) > f.MaxAreaFrac*float64(pageArea) {
		return "", false
	}
	switch {
	case w > f.ProductWidth && h > f.ProductHeight:
		return KindProduct, true
	case w > f.PriceWidth && h > f.PriceHeight:
		return KindPrice, true
	}
	return "", false
}

// BoxFinder extracts connected-component bounding boxes from a binary page
// (black foreground on white).
type BoxFinder interface {
	Boxes(bin *image.Gray) ([]image.Rectangle, error)
}

// ContourDetector classifies connected components by size.
type ContourDetector struct {
	Floors SizeFloors
	Finder BoxFinder
}

func (d ContourDetector) Detect(p *Prepared) []Region {
	finder := d.Finder
	if finder == nil {
		finder = LabelFinder{}
	}
	boxes, err := finder.Boxes(p.Binary)
	if err != nil {
		log := logger.WithComponent("regions")
		log.Warn().Err(err).Msg("component extraction failed; page yields no regions")
		return nil
	}
	b := p.Bounds()
	pageArea := b.Dx() * b.Dy()
	var out []Region
	for _, r := range boxes {
		r = r.Intersect(b)
		kind, ok := d.Floors.Classify(r, pageArea)
		if !ok {
			continue
		}
		out = append(out, Region{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy(), Kind: kind})
	}
	return out
}
