package ocr

import (
	"image"
	"image/color"
	"sort"
	"testing"
)

func TestClassifyProductFloor(t *testing.T) {
	f := DefaultFloors()
	page := 1000 * 1000

	kind, ok := f.Classify(image.Rect(0, 0, 40, 25), page)
	if ok && kind == KindProduct {
		t.Fatalf("40x25 must not pass the product floor")
	}
	if !ok || kind != KindPrice {
		t.Fatalf("40x25 expected price candidate got %q ok=%v", kind, ok)
	}

	kind, ok = f.Classify(image.Rect(0, 0, 60, 25), page)
	if !ok || kind != KindProduct {
		t.Fatalf("60x25 expected product got %q ok=%v", kind, ok)
	}
}

func TestClassifyDiscardsDegenerate(t *testing.T) {
	f := DefaultFloors()
	page := 1000 * 1000
	cases := []image.Rectangle{
		image.Rect(0, 0, 0, 0),
		image.Rect(0, 0, 1, 100),   // one pixel wide
		image.Rect(0, 0, 300, 3),   // aspect 100
		image.Rect(0, 0, 5, 5),     // not above the price floor
		image.Rect(0, 0, 990, 990), // covers the page
	}
	for _, r := range cases {
		if kind, ok := f.Classify(r, page); ok {
			t.Fatalf("%v expected discard got %q", r, kind)
		}
	}
}

func TestTemplateDetectorScalesZones(t *testing.T) {
	p := &Prepared{
		Gray:   image.NewGray(image.Rect(0, 0, 1876, 355)),
		Binary: image.NewGray(image.Rect(0, 0, 1876, 355)),
	}
	regions := TemplateDetector{Zones: DefaultTemplate()}.Detect(p)
	if len(regions) != 3 {
		t.Fatalf("expected 3 regions got %d", len(regions))
	}
	prod := regions[0]
	if prod.Kind != KindProduct || prod.X != 93 || prod.Y != 35 || prod.Width != 1032 || prod.Height != 284 {
		t.Fatalf("unexpected product region %v", prod)
	}
	for _, r := range regions[1:] {
		if r.Kind != KindPrice {
			t.Fatalf("expected price region got %v", r)
		}
	}
	if regions[1].Y >= regions[2].Y {
		t.Fatalf("price zones out of order: %v %v", regions[1], regions[2])
	}
}

func whiteGray(w, h int) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = 255
	}
	return g
}

func fill(g *image.Gray, r image.Rectangle) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			g.SetGray(x, y, color.Gray{Y: 0})
		}
	}
}

func TestContourDetectorWithLabelFinder(t *testing.T) {
	bin := whiteGray(400, 200)
	fill(bin, image.Rect(10, 10, 110, 50))    // 100x40 text block
	fill(bin, image.Rect(200, 100, 220, 115)) // 20x15 price token
	fill(bin, image.Rect(300, 150, 301, 151)) // speck
	p := &Prepared{Gray: bin, Binary: bin}

	regions := ContourDetector{Floors: DefaultFloors(), Finder: LabelFinder{}}.Detect(p)
	if len(regions) != 2 {
		t.Fatalf("expected 2 regions got %v", regions)
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i].X < regions[j].X })
	want := []Region{
		{X: 10, Y: 10, Width: 100, Height: 40, Kind: KindProduct},
		{X: 200, Y: 100, Width: 20, Height: 15, Kind: KindPrice},
	}
	for i := range want {
		if regions[i] != want[i] {
			t.Fatalf("region %d: expected %v got %v", i, want[i], regions[i])
		}
	}
}

func TestLabelFinderMergesGlyphsOnALine(t *testing.T) {
	bin := whiteGray(200, 60)
	// three "glyphs" 4px apart merge under the default 6px horizontal dilation
	fill(bin, image.Rect(10, 20, 20, 35))
	fill(bin, image.Rect(24, 20, 34, 35))
	fill(bin, image.Rect(38, 20, 48, 35))
	boxes, err := LabelFinder{}.Boxes(bin)
	if err != nil {
		t.Fatalf("boxes: %v", err)
	}
	if len(boxes) != 1 || boxes[0] != image.Rect(10, 20, 48, 35) {
		t.Fatalf("expected one merged box got %v", boxes)
	}

	boxes, _ = LabelFinder{DilateX: -1, DilateY: -1}.Boxes(bin)
	if len(boxes) != 3 {
		t.Fatalf("expected 3 boxes without dilation got %v", boxes)
	}
}
