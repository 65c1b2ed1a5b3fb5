package ocr

import "math"

// DefaultMatchDistance is the top-left to top-left cutoff in pixels.
const DefaultMatchDistance = 300.0

// Matcher pairs an orphan price region with the closest product region.
type Matcher struct {
	cutoff float64
}

func NewMatcher(cutoff float64) *Matcher {
	if cutoff <= 0 {
		cutoff = DefaultMatchDistance
	}
	return &Matcher{cutoff: cutoff}
}

// Nearest returns the index of the product region whose top-left corner is
// closest to the price region's, with the distance. ok is false when there
// are no candidates or the closest one lies beyond the cutoff. Equal
// distances keep the earlier region.
func (m *Matcher) Nearest(price Region, products []Region) (int, float64, bool) {
	best, bestDist := -1, math.Inf(1)
	for i, p := range products {
		d := distance(price, p)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 || bestDist > m.cutoff {
		return -1, bestDist, false
	}
	return best, bestDist, true
}

func distance(a, b Region) float64 {
	return math.Hypot(float64(a.X-b.X), float64(a.Y-b.Y))
}
