package ocr

import (
	"fmt"

	"catalogscan/models"
)

// PriceBounds is the inclusive range a parsed price must fall in.
type PriceBounds struct {
	Min models.Price
	Max models.Price
}

// DefaultPriceBounds is [0.01, 1000.00].
func DefaultPriceBounds() PriceBounds {
	return PriceBounds{Min: 1, Max: 100000}
}

// Check rejects amounts outside the bounds with ErrPriceOutOfRange.
func (b PriceBounds) Check(p models.Price) error {
	if p < b.Min || p > b.Max {
		return fmt.Errorf("%s not in [%s, %s]: %w", p, b.Min, b.Max, ErrPriceOutOfRange)
	}
	return nil
}
