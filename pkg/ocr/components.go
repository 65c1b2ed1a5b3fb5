package ocr

import "image"

// LabelFinder finds text blocks by dilating the foreground and labelling
// 8-connected components. Dilation is wider than it is tall so glyphs of one
// line merge into a single block without joining neighbouring lines. Boxes
// cover the undilated foreground pixels of each component.
type LabelFinder struct {
	// Dilation radii. Zero for both means 6x2; negative disables a direction.
	DilateX int
	DilateY int
}

func (f LabelFinder) Boxes(bin *image.Gray) ([]image.Rectangle, error) {
	rx, ry := f.DilateX, f.DilateY
	if rx == 0 && ry == 0 {
		rx, ry = 6, 2
	}
	b := bin.Bounds()
	w, h := b.Dx(), b.Dy()
	mask := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			mask[y*w+x] = bin.Pix[bin.PixOffset(x+b.Min.X, y+b.Min.Y)] < 128
		}
	}
	fg := mask
	mask = dilateMask(mask, w, h, rx, ry)

	seen := make([]bool, w*h)
	var boxes []image.Rectangle
	queue := make([]int, 0, 64)
	for start := range mask {
		if !mask[start] || seen[start] {
			continue
		}
		minX, minY, maxX, maxY := w, h, -1, -1
		seen[start] = true
		queue = append(queue[:0], start)
		for len(queue) > 0 {
			i := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			x, y := i%w, i/w
			if fg[i] {
				minX, maxX = min(minX, x), max(maxX, x)
				minY, maxY = min(minY, y), max(maxY, y)
			}
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					x2, y2 := x+dx, y+dy
					if x2 < 0 || y2 < 0 || x2 >= w || y2 >= h {
						continue
					}
					j := y2*w + x2
					if mask[j] && !seen[j] {
						seen[j] = true
						queue = append(queue, j)
					}
				}
			}
		}
		if maxX < 0 {
			continue
		}
		boxes = append(boxes, image.Rect(minX+b.Min.X, minY+b.Min.Y, maxX+1+b.Min.X, maxY+1+b.Min.Y))
	}
	return boxes, nil
}

// dilateMask applies a separable box dilation with radii rx, ry.
func dilateMask(mask []bool, w, h, rx, ry int) []bool {
	out := mask
	if rx > 0 {
		next := make([]bool, w*h)
		for y := 0; y < h; y++ {
			dilateLine(out, next, y*w, 1, w, rx)
		}
		out = next
	}
	if ry > 0 {
		next := make([]bool, w*h)
		for x := 0; x < w; x++ {
			dilateLine(out, next, x, w, h, ry)
		}
		out = next
	}
	return out
}

// dilateLine dilates n cells of src starting at off with the given stride,
// keeping a running count of set cells inside the window [i-r, i+r].
func dilateLine(src, dst []bool, off, stride, n, r int) {
	count := 0
	for i := 0; i <= r && i < n; i++ {
		if src[off+i*stride] {
			count++
		}
	}
	for i := 0; i < n; i++ {
		if i > 0 {
			if add := i + r; add < n && src[off+add*stride] {
				count++
			}
			if drop := i - r - 1; drop >= 0 && src[off+drop*stride] {
				count--
			}
		}
		dst[off+i*stride] = count > 0
	}
}
