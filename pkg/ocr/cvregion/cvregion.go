// Package cvregion finds text blocks with OpenCV contours.
package cvregion

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Finder implements ocr.BoxFinder with Dilate + FindContours + BoundingRect.
type Finder struct {
	// Kernel is the dilation structuring element size; zero means 13x5.
	Kernel image.Point
}

func (f Finder) Boxes(bin *image.Gray) ([]image.Rectangle, error) {
	src, err := gocv.ImageGrayToMatGray(bin)
	if err != nil {
		return nil, fmt.Errorf("gray to mat: %w", err)
	}
	defer src.Close()

	// contours are traced on white blobs; pages are black text on white
	inverted := gocv.NewMat()
	defer inverted.Close()
	gocv.BitwiseNot(src, &inverted)

	k := f.Kernel
	if k.X <= 0 || k.Y <= 0 {
		k = image.Pt(13, 5)
	}
	kernel := gocv.GetStructuringElement(gocv.MorphRect, k)
	defer kernel.Close()

	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Dilate(inverted, &dilated, kernel)

	contours := gocv.FindContours(dilated, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	off := bin.Bounds().Min
	boxes := make([]image.Rectangle, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		rect := gocv.BoundingRect(contours.At(i))
		boxes = append(boxes, rect.Add(off))
	}
	return boxes, nil
}
