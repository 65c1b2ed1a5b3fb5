package models

import (
	"strings"
	"testing"
)

func TestParsePrice(t *testing.T) {
	cases := map[string]Price{"3.50": 350, "$3.50": 350, " $ 8 ": 800, "12": 1200}
	for in, want := range cases {
		got, err := ParsePrice(in)
		if err != nil || got != want {
			t.Fatalf("ParsePrice(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
}

func TestParsePriceRejectsHugeAndNonFinite(t *testing.T) {
	for _, in := range []string{"99999999999999999999999", "1e300", "Inf", "NaN", ""} {
		if p, err := ParsePrice(in); err == nil {
			t.Fatalf("ParsePrice(%q) accepted as %s", in, p)
		}
	}
	if _, err := ParsePrice(strings.Repeat("9", 15)); err != nil {
		t.Fatalf("15-digit amount rejected: %v", err)
	}
}

func TestPriceString(t *testing.T) {
	if got := Price(800).Dollars(); got != "$8.00" {
		t.Fatalf("expected $8.00 got %s", got)
	}
	if got := Price(-25).String(); got != "-0.25" {
		t.Fatalf("expected -0.25 got %s", got)
	}
}
