package ocr

import (
	"errors"
	"regexp"
	"testing"

	"catalogscan/models"
)

func TestParseSavingsSubtractsFromRegular(t *testing.T) {
	p := NewPriceParser(DefaultPriceBounds())
	for _, text := range []string{
		"SAVE $2.00 Lindt Excellence $10.00",
		"Was $10.00 SAVE $2.00",
		"save $2.00\n$10.00 ea",
	} {
		c, ok := p.Parse(text)
		if !ok {
			t.Fatalf("%q: no price", text)
		}
		if c.Value != 800 || c.Value.String() != "8.00" {
			t.Fatalf("%q: expected 8.00 got %s (rule %s)", text, c.Value, c.Rule)
		}
		if c.Rule != "savings" || c.PatternRank != 1 {
			t.Fatalf("%q: expected savings rank 1 got %s rank %d", text, c.Rule, c.PatternRank)
		}
	}
}

func TestParseNegativeSavingsFallsThrough(t *testing.T) {
	p := NewPriceParser(DefaultPriceBounds())
	c, ok := p.Parse("SAVE $20.00 $5.00")
	if !ok {
		t.Fatalf("expected a price")
	}
	if c.Value != 2000 || c.Rule != "symbol-before" {
		t.Fatalf("expected 20.00 via symbol-before got %s via %s", c.Value, c.Rule)
	}
}

func TestParseCascadeOrder(t *testing.T) {
	p := NewPriceParser(DefaultPriceBounds())
	cases := []struct {
		in   string
		want models.Price
		rule string
	}{
		{"$3.50", 350, "symbol-before"},
		{"$ 12", 1200, "symbol-before"},
		{"3.50$", 350, "symbol-after"},
		{"2.99 each", 299, "bare-decimal"},
		{"Only 7 left", 700, "bare-integer"},
		// out-of-range hit on a rule skips to the next rule, not the next match
		{"$1500 then 12.50", 1250, "bare-decimal"},
	}
	for _, tc := range cases {
		c, ok := p.Parse(tc.in)
		if !ok {
			t.Fatalf("%q: no price", tc.in)
		}
		if c.Value != tc.want || c.Rule != tc.rule {
			t.Fatalf("%q: expected %s via %s got %s via %s", tc.in, tc.want, tc.rule, c.Value, c.Rule)
		}
	}
}

func TestParseNoPrice(t *testing.T) {
	p := NewPriceParser(DefaultPriceBounds())
	for _, in := range []string{"", "   ", "Fresh Bread", "$1500.00 and 4.99", "$0.00", "$99999999999999999999999"} {
		if c, ok := p.Parse(in); ok {
			t.Fatalf("%q: expected no price got %s via %s", in, c.Value, c.Rule)
		}
	}
}

func TestParseResultsStayInBoundsWithTwoDecimals(t *testing.T) {
	p := NewPriceParser(DefaultPriceBounds())
	two := regexp.MustCompile(`^\d+\.\d{2}$`)
	inputs := []string{
		"$0.01", "$1000", "$1000.01", "999.99$", "7", "0.5", "$3.5 ea",
		"SAVE $1 $1.01", "Milk 2L 4.2", "12345", "$ 0", "Special 9.9 $",
	}
	for _, in := range inputs {
		c, ok := p.Parse(in)
		if !ok {
			continue
		}
		if c.Value < 1 || c.Value > 100000 {
			t.Fatalf("%q: %s out of bounds", in, c.Value)
		}
		if !two.MatchString(c.Value.String()) {
			t.Fatalf("%q: %q is not two-decimal", in, c.Value.String())
		}
	}
}

func TestParseConfigurableBounds(t *testing.T) {
	p := NewPriceParser(PriceBounds{Min: 100, Max: 500})
	if _, ok := p.Parse("$0.50"); ok {
		t.Fatalf("0.50 below configured minimum accepted")
	}
	if c, ok := p.Parse("$4.99"); !ok || c.Value != 499 {
		t.Fatalf("expected 4.99 got %v ok=%v", c.Value, ok)
	}
}

func TestBoundsCheckError(t *testing.T) {
	err := DefaultPriceBounds().Check(100001)
	if !errors.Is(err, ErrPriceOutOfRange) {
		t.Fatalf("expected ErrPriceOutOfRange got %v", err)
	}
	if err := DefaultPriceBounds().Check(100000); err != nil {
		t.Fatalf("1000.00 should be inclusive: %v", err)
	}
}
