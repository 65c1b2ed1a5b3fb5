package ocr

import (
	"regexp"
	"strings"

	"catalogscan/models"
	"catalogscan/pkg/logger"
)

// PriceCandidate is a validated price found in text.
type PriceCandidate struct {
	Value    models.Price
	RawMatch string
	// PatternRank is the 1-based position of the rule that matched.
	PatternRank int
	Rule        string
}

// PriceRule finds at most one amount in text. Rules do not check bounds.
type PriceRule interface {
	Name() string
	Find(text string) (value models.Price, raw string, ok bool)
}

// PatternRule takes the first match of Re; group 1 holds the amount.
type PatternRule struct {
	Label string
	Re    *regexp.Regexp
}

func (r PatternRule) Name() string { return r.Label }

func (r PatternRule) Find(text string) (models.Price, string, bool) {
	m := r.Re.FindStringSubmatch(text)
	if len(m) < 2 {
		return 0, "", false
	}
	v, err := models.ParsePrice(m[1])
	if err != nil {
		return 0, "", false
	}
	return v, m[0], true
}

// SavingsRule handles "SAVE $X ... $Y" flyers: the sale price is Y - X,
// where Y is the first amount left after the savings phrase is removed.
type SavingsRule struct {
	Save   *regexp.Regexp
	Amount *regexp.Regexp
}

func (r SavingsRule) Name() string { return "savings" }

func (r SavingsRule) Find(text string) (models.Price, string, bool) {
	sm := r.Save.FindStringSubmatch(text)
	if len(sm) < 2 {
		return 0, "", false
	}
	saved, err := models.ParsePrice(sm[1])
	if err != nil {
		return 0, "", false
	}
	rest := strings.ReplaceAll(text, sm[0], " ")
	am := r.Amount.FindStringSubmatch(rest)
	if len(am) < 2 {
		return 0, "", false
	}
	regular, err := models.ParsePrice(am[1])
	if err != nil {
		return 0, "", false
	}
	return regular - saved, sm[0] + " " + am[0], true
}

// DefaultPriceRules is the cascade in priority order.
func DefaultPriceRules() []PriceRule {
	return []PriceRule{
		SavingsRule{
			Save:   regexp.MustCompile(`(?i)SAVE.*?\$(\d+\.?\d{0,2})`),
			Amount: regexp.MustCompile(`\$(\d+\.?\d{0,2})`),
		},
		PatternRule{Label: "symbol-before", Re: regexp.MustCompile(`\$\s*(\d+\.?\d{0,2})`)},
		PatternRule{Label: "symbol-after", Re: regexp.MustCompile(`(\d+\.?\d{0,2})\s*\$`)},
		PatternRule{Label: "each", Re: regexp.MustCompile(`(?i)\$(\d+\.?\d{0,2})\s*(?:ea|each)?`)},
		PatternRule{Label: "bare-decimal", Re: regexp.MustCompile(`(\d+\.\d{1,2})`)},
		PatternRule{Label: "bare-integer", Re: regexp.MustCompile(`(\d+)`)},
	}
}

// PriceParser evaluates its rules top to bottom; the first in-bounds hit wins.
// An out-of-range hit moves on to the next rule, not the next match.
type PriceParser struct {
	bounds PriceBounds
	rules  []PriceRule
}

func NewPriceParser(bounds PriceBounds, rules ...PriceRule) *PriceParser {
	if bounds.Max == 0 {
		bounds = DefaultPriceBounds()
	}
	if len(rules) == 0 {
		rules = DefaultPriceRules()
	}
	return &PriceParser{bounds: bounds, rules: rules}
}

func (p *PriceParser) Parse(text string) (PriceCandidate, bool) {
	if strings.TrimSpace(text) == "" {
		return PriceCandidate{}, false
	}
	for i, rule := range p.rules {
		v, raw, ok := rule.Find(text)
		if !ok {
			continue
		}
		if err := p.bounds.Check(v); err != nil {
			log := logger.WithComponent("price")
			log.Trace().Err(err).Str("rule", rule.Name()).Msg("candidate rejected")
			continue
		}
		return PriceCandidate{Value: v, RawMatch: raw, PatternRank: i + 1, Rule: rule.Name()}, true
	}
	return PriceCandidate{}, false
}
