package ocr

import "testing"

func TestNearestRespectsCutoff(t *testing.T) {
	price := Region{X: 0, Y: 0, Width: 40, Height: 20, Kind: KindPrice}
	products := []Region{
		{X: 240, Y: 320, Width: 200, Height: 40, Kind: KindProduct}, // 400 away
		{X: 30, Y: 40, Width: 200, Height: 40, Kind: KindProduct},   // 50 away
	}

	i, d, ok := NewMatcher(300).Nearest(price, products)
	if !ok || i != 1 || d != 50 {
		t.Fatalf("cutoff 300: expected index 1 at 50 got %d at %v ok=%v", i, d, ok)
	}

	if i, d, ok := NewMatcher(40).Nearest(price, products); ok {
		t.Fatalf("cutoff 40: expected no match got %d at %v", i, d)
	}
}

func TestNearestNoCandidates(t *testing.T) {
	if _, _, ok := NewMatcher(0).Nearest(Region{Kind: KindPrice}, nil); ok {
		t.Fatalf("expected no match without products")
	}
}

func TestNearestTieKeepsFirst(t *testing.T) {
	price := Region{X: 100, Y: 100}
	products := []Region{{X: 100, Y: 130}, {X: 130, Y: 100}}
	if i, _, _ := NewMatcher(300).Nearest(price, products); i != 0 {
		t.Fatalf("expected first of equidistant regions got %d", i)
	}
}
