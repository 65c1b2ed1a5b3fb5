package ocr

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed noise.yaml
var defaultNoise []byte

// NoiseList is the boilerplate removed from product text.
type NoiseList struct {
	Phrases []string `yaml:"phrases"`
	Words   []string `yaml:"words"`
}

// DefaultNoise returns the embedded noise list.
func DefaultNoise() NoiseList {
	n, err := ParseNoise(defaultNoise)
	if err != nil {
		panic(fmt.Sprintf("embedded noise list: %v", err))
	}
	return n
}

func ParseNoise(data []byte) (NoiseList, error) {
	var n NoiseList
	if err := yaml.Unmarshal(data, &n); err != nil {
		return NoiseList{}, fmt.Errorf("parse noise list: %w", err)
	}
	return n, nil
}

// LoadNoise reads a noise list file; an empty path yields the embedded default.
func LoadNoise(path string) (NoiseList, error) {
	if path == "" {
		return DefaultNoise(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return NoiseList{}, fmt.Errorf("read noise list: %w", err)
	}
	return ParseNoise(data)
}

var (
	reBrand       = regexp.MustCompile(`\([^)]*\)`)
	reEmbedPrice  = regexp.MustCompile(`\$?\s*\d+\.?\d{0,2}\s*(?:per\s*kg)?`)
	reRangeDash   = regexp.MustCompile(`\d+\s*-\s*\d+\.?\d{0,2}`)
	reRangePrice  = regexp.MustCompile(`\d+\.?\d{0,2}\s*-\s*\$?\d+\.?\d{0,2}`)
	reSpaces      = regexp.MustCompile(`\s+`)
	reNameChars   = regexp.MustCompile(`[^\p{L}\p{N}_\s\-.]`)
	reLeadNumeric = regexp.MustCompile(`^\d+\s*`)
	reTailNumeric = regexp.MustCompile(`\s*\d+$`)
)

// Normalizer turns raw product-region text into a display name.
type Normalizer struct {
	phrases []string
	words   *regexp.Regexp
}

func NewNormalizer(noise NoiseList) *Normalizer {
	n := &Normalizer{}
	for _, p := range noise.Phrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			n.phrases = append(n.phrases, p)
		}
	}
	var quoted []string
	for _, w := range noise.Words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			quoted = append(quoted, regexp.QuoteMeta(w))
		}
	}
	if len(quoted) > 0 {
		n.words = regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
	}
	return n
}

// Normalize lowercases, strips noise, embedded prices and symbols, then
// title-cases the remaining words. It returns "" when nothing usable is left.
func (n *Normalizer) Normalize(text string) string {
	s := strings.ToLower(text)
	s = reBrand.ReplaceAllString(s, " ")
	for _, p := range n.phrases {
		s = strings.ReplaceAll(s, p, " ")
	}
	if n.words != nil {
		s = n.words.ReplaceAllString(s, " ")
	}
	// ranges first so "2-3.50" is not left as a dangling "2-"
	s = reRangePrice.ReplaceAllString(s, " ")
	s = reRangeDash.ReplaceAllString(s, " ")
	s = reEmbedPrice.ReplaceAllString(s, " ")
	s = reSpaces.ReplaceAllString(s, " ")
	s = reNameChars.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)

	// Caser is stateful; one per call keeps Normalize safe across workers.
	caser := cases.Title(language.English)
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = caser.String(w)
	}
	s = strings.Join(words, " ")

	s = reLeadNumeric.ReplaceAllString(s, "")
	s = reTailNumeric.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Usable reports whether a normalized name meets the minimum length.
func Usable(name string, minLen int) bool {
	return name != "" && len([]rune(name)) >= minLen
}
