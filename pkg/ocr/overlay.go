package ocr

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

var (
	ProductColor = color.NRGBA{R: 0, G: 160, B: 0, A: 255}
	PriceColor   = color.NRGBA{R: 220, G: 0, B: 0, A: 255}
)

// Overlay returns a copy of img with every region outlined, green for
// product regions and red for price regions.
func Overlay(img image.Image, regions []Region, thickness int) *image.NRGBA {
	out := imaging.Clone(img)
	if thickness < 1 {
		thickness = 1
	}
	for _, r := range regions {
		c := PriceColor
		if r.Kind == KindProduct {
			c = ProductColor
		}
		outline(out, r.Rect().Intersect(out.Bounds()), thickness, c)
	}
	return out
}

func outline(img *image.NRGBA, r image.Rectangle, t int, c color.NRGBA) {
	if r.Empty() {
		return
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if x-r.Min.X < t || r.Max.X-1-x < t || y-r.Min.Y < t || r.Max.Y-1-y < t {
				img.SetNRGBA(x, y, c)
			}
		}
	}
}
