package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Price is a monetary amount in the smallest currency unit (cents).
type Price int64

// PriceFromFloat rounds a parsed decimal to whole cents.
func PriceFromFloat(v float64) Price {
	return Price(math.Round(v * 100))
}

// maxPriceValue keeps the cents conversion well inside int64.
const maxPriceValue = 1e15

// ParsePrice accepts "3.50", "$3.50" or "3" and returns the amount in cents.
// Non-finite values and amounts beyond 1e15 are rejected.
func ParsePrice(s string) (Price, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	if s == "" {
		return 0, fmt.Errorf("empty price")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", s, err)
	}
	if math.IsNaN(v) || math.Abs(v) > maxPriceValue {
		return 0, fmt.Errorf("parse price %q: out of range", s)
	}
	return PriceFromFloat(v), nil
}

// String renders the amount with exactly two decimal digits, e.g. "8.00".
func (p Price) String() string {
	sign := ""
	v := int64(p)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Dollars renders the amount as it appears in the products table, e.g. "$8.00".
func (p Price) Dollars() string {
	return "$" + p.String()
}

// Product is one resolved catalog line.
type Product struct {
	Name   string `json:"name"`
	Price  Price  `json:"price_cents"`
	Source string `json:"source"`
}

// Key is the deduplication key: lowercase name with all whitespace removed.
func (p Product) Key() string {
	return strings.Join(strings.Fields(strings.ToLower(p.Name)), "")
}

// Reasons recorded on problematic items.
const (
	ReasonPriceWithoutProduct = "Price without product"
	ReasonProductWithoutPrice = "Product without price"
	ReasonProcessingError     = "Processing error"
)

// ProblematicItem is a record that could not be resolved into a Product.
type ProblematicItem struct {
	Reason  string `json:"reason"`
	RawText string `json:"raw_text"`
	Source  string `json:"source"`
}

// Line renders the item the way it is written to the problematic items log.
// Line breaks in the raw text are flattened so every item stays on one line.
func (p ProblematicItem) Line() string {
	raw := strings.Join(strings.Fields(p.RawText), " ")
	return fmt.Sprintf("%s - %s: %s", p.Source, p.Reason, raw)
}
