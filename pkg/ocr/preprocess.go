package ocr

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"catalogscan/pkg/logger"
)

// PreprocessConfig controls how a page bitmap is normalized before detection.
type PreprocessConfig struct {
	MaxDimension    int
	Contrast        float64
	ThresholdWindow int
	ThresholdBias   int
	// Template, when set, enables template-size validation before resizing.
	Template *TemplateZones
	// TemplateTolerance is the relative size deviation allowed before a forced resize.
	TemplateTolerance float64
}

// DefaultPreprocessConfig returns the values tuned against flyer screenshots.
func DefaultPreprocessConfig() PreprocessConfig {
	return PreprocessConfig{
		MaxDimension:      2400,
		Contrast:          1.5,
		ThresholdWindow:   11,
		ThresholdBias:     2,
		TemplateTolerance: 0.2,
	}
}

// Prepared holds both image variants produced for one page.
// Gray is the contrast-stretched grayscale image, Binary its denoised
// adaptive threshold. Both share the same bounds starting at (0,0).
type Prepared struct {
	Gray     *image.Gray
	Binary   *image.Gray
	Resized  bool
	Warnings []string
}

// Bounds returns the pixel bounds regions are expressed in.
func (p *Prepared) Bounds() image.Rectangle { return p.Gray.Bounds() }

type Preprocessor struct {
	cfg PreprocessConfig
}

func NewPreprocessor(cfg PreprocessConfig) *Preprocessor {
	def := DefaultPreprocessConfig()
	if cfg.MaxDimension <= 0 {
		cfg.MaxDimension = def.MaxDimension
	}
	if cfg.Contrast <= 0 {
		cfg.Contrast = def.Contrast
	}
	if cfg.ThresholdWindow <= 0 {
		cfg.ThresholdWindow = def.ThresholdWindow
	}
	if cfg.TemplateTolerance <= 0 {
		cfg.TemplateTolerance = def.TemplateTolerance
	}
	return &Preprocessor{cfg: cfg}
}

// Prepare returns new grayscale and binary buffers for img. img is not modified.
func (p *Preprocessor) Prepare(img image.Image) (*Prepared, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("prepare: empty bitmap: %w", ErrImageDecode)
	}
	log := logger.WithComponent("preprocess")
	out := &Prepared{}
	src := img

	if t := p.cfg.Template; t != nil && t.Width > 0 && t.Height > 0 {
		w, h := src.Bounds().Dx(), src.Bounds().Dy()
		dw := math.Abs(float64(w-t.Width)) / float64(t.Width)
		dh := math.Abs(float64(h-t.Height)) / float64(t.Height)
		if dw > p.cfg.TemplateTolerance || dh > p.cfg.TemplateTolerance {
			src = imaging.Resize(src, t.Width, t.Height, imaging.Lanczos)
			out.Resized = true
			msg := fmt.Sprintf("%v: got %dx%d, resized to %dx%d", ErrTemplateMismatch, w, h, t.Width, t.Height)
			out.Warnings = append(out.Warnings, msg)
			log.Warn().Int("width", w).Int("height", h).Msg("image resized to template size")
		}
	}

	b := src.Bounds()
	if b.Dx() > p.cfg.MaxDimension || b.Dy() > p.cfg.MaxDimension {
		src = imaging.Fit(src, p.cfg.MaxDimension, p.cfg.MaxDimension, imaging.Lanczos)
		out.Resized = true
		log.Debug().Int("from_w", b.Dx()).Int("from_h", b.Dy()).
			Int("to_w", src.Bounds().Dx()).Int("to_h", src.Bounds().Dy()).Msg("downscaled")
	}

	gray := imaging.Grayscale(src)
	if p.cfg.Contrast != 1 {
		gray = stretchContrast(gray, p.cfg.Contrast)
	}
	out.Gray = toGray(gray)
	bin := adaptiveThreshold(out.Gray, p.cfg.ThresholdWindow, p.cfg.ThresholdBias)
	out.Binary = despeckle(bin)
	return out, nil
}

// stretchContrast scales every channel by alpha and clamps, like convertScaleAbs with beta 0.
func stretchContrast(img *image.NRGBA, alpha float64) *image.NRGBA {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: clamp8(float64(c.R) * alpha),
			G: clamp8(float64(c.G) * alpha),
			B: clamp8(float64(c.B) * alpha),
			A: c.A,
		}
	})
}

func clamp8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// toGray copies a grayscale NRGBA into a single channel buffer anchored at (0,0).
func toGray(img *image.NRGBA) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < b.Dx(); x++ {
			out.Pix[y*out.Stride+x] = row[x*4]
		}
	}
	return out
}

// adaptiveThreshold performs a mean adaptive threshold using an integral image.
// Pixels darker than (local mean - bias) become black (0), the rest white (255).
func adaptiveThreshold(img *image.Gray, window int, bias int) *image.Gray {
	if window < 3 {
		window = 3
	}
	if window%2 == 0 {
		window++
	}
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	half := window / 2
	// ints has a zero row and column so window sums need no edge cases.
	iw := w + 1
	ints := make([]int, iw*(h+1))
	for y := 0; y < h; y++ {
		rowSum := 0
		for x := 0; x < w; x++ {
			rowSum += int(img.Pix[y*img.Stride+x])
			ints[(y+1)*iw+x+1] = ints[y*iw+x+1] + rowSum
		}
	}
	for y := 0; y < h; y++ {
		y0, y1 := max(y-half, 0), min(y+half, h-1)
		for x := 0; x < w; x++ {
			x0, x1 := max(x-half, 0), min(x+half, w-1)
			sum := ints[(y1+1)*iw+x1+1] - ints[y0*iw+x1+1] - ints[(y1+1)*iw+x0] + ints[y0*iw+x0]
			mean := sum / ((x1 - x0 + 1) * (y1 - y0 + 1))
			var v uint8 = 255
			if int(img.Pix[y*img.Stride+x]) < mean-bias {
				v = 0
			}
			out.Pix[y*out.Stride+x] = v
		}
	}
	return out
}

// despeckle whitens black pixels with fewer than two black 8-neighbours.
// Isolated dots go away; glyph strokes, which always have neighbours, survive.
func despeckle(img *image.Gray) *image.Gray {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	out := image.NewGray(img.Bounds())
	copy(out.Pix, img.Pix)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if img.Pix[y*img.Stride+x] != 0 {
				continue
			}
			n := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					x2, y2 := x+dx, y+dy
					if x2 < 0 || y2 < 0 || x2 >= w || y2 >= h {
						continue
					}
					if img.Pix[y2*img.Stride+x2] == 0 {
						n++
					}
				}
			}
			if n < 2 {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}
