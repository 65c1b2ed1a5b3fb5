package ocr

import "unicode/utf8"

// Attempt is one non-empty recognition of a region under a variant and layout.
type Attempt struct {
	Variant    string
	Layout     Layout
	Text       string
	Confidence float64
}

// Source names the variant/layout combination that produced the attempt.
func (a Attempt) Source() string { return a.Variant + "/" + a.Layout.String() }

// Scorer picks the winning attempt. Attempts arrive in the order they were made.
type Scorer interface {
	Best(attempts []Attempt) (Attempt, bool)
}

// LongestScorer keeps the longest text; ties go to the first seen.
type LongestScorer struct{}

func (LongestScorer) Best(attempts []Attempt) (Attempt, bool) {
	var best Attempt
	bestLen := 0
	for _, a := range attempts {
		if n := utf8.RuneCountInString(a.Text); n > bestLen {
			best, bestLen = a, n
		}
	}
	return best, bestLen > 0
}

// ConfidenceScorer keeps the attempt with the highest backend confidence,
// falling back to length and then order. Useful with backends that report
// per-word confidences.
type ConfidenceScorer struct{}

func (ConfidenceScorer) Best(attempts []Attempt) (Attempt, bool) {
	var best Attempt
	found := false
	for _, a := range attempts {
		if a.Text == "" {
			continue
		}
		if !found {
			best, found = a, true
			continue
		}
		if a.Confidence > best.Confidence ||
			(a.Confidence == best.Confidence && utf8.RuneCountInString(a.Text) > utf8.RuneCountInString(best.Text)) {
			best = a
		}
	}
	return best, found
}
