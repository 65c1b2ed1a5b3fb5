package ocr

import "testing"

func TestNormalizeProductText(t *testing.T) {
	n := NewNormalizer(DefaultNoise())
	cases := []struct{ in, want string }{
		{"PROMOTED Fresh Full Cream Milk $3.50", "Fresh Full Cream Milk"},
		{"ONLY AT the freezer Frozen Peas 2.50 per kg", "Frozen Peas"},
		{"Tim Tam Original (Arnotts)", "Tim Tam Original"},
		{"12 Free Range Eggs 6", "Free Range Eggs"},
		{"Cat needs Food", "Cat Food"},
		{"Apples 2-3.50 kg", "Apples Kg"},
		{"  sliced   bread!!  ", "Sliced Bread"},
		{"Café Crème Brûlée $5.99", "Café Crème Brûlée"},
		{"Jalapeño Poppers™", "Jalapeño Poppers"},
		{"$4.00", ""},
		{"SAVE", ""},
	}
	for _, tc := range cases {
		if got := n.Normalize(tc.in); got != tc.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeWordsOnlyOnBoundaries(t *testing.T) {
	n := NewNormalizer(DefaultNoise())
	// "ne" and "at" are noise words but must not eat into real words
	if got := n.Normalize("Bone Broth Oat Bars"); got != "Bone Broth Oat Bars" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestNoiseListOverride(t *testing.T) {
	noise, err := ParseNoise([]byte("phrases:\n  - limited edition\nwords:\n  - new\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	n := NewNormalizer(noise)
	if got := n.Normalize("NEW Limited Edition Choc Chip Cookies"); got != "Choc Chip Cookies" {
		t.Fatalf("unexpected %q", got)
	}
	// the default list no longer applies
	if got := n.Normalize("Promoted Choc Chip Cookies"); got != "Promoted Choc Chip Cookies" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestLoadNoiseDefault(t *testing.T) {
	noise, err := LoadNoise("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(noise.Phrases) == 0 || len(noise.Words) == 0 {
		t.Fatalf("embedded noise list is empty: %+v", noise)
	}
	if _, err := LoadNoise("does-not-exist.yaml"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestUsable(t *testing.T) {
	if Usable("Milk", 5) {
		t.Fatalf("4 chars should fail a 5 minimum")
	}
	if !Usable("Bread", 5) {
		t.Fatalf("5 chars should pass a 5 minimum")
	}
	if Usable("Bread Roll", 11) || !Usable("Frozen Peas", 10) {
		t.Fatalf("page-scan minimum not applied")
	}
}
