package extract

import (
	"catalogscan/models"
	"catalogscan/pkg/config"
	"catalogscan/pkg/ocr"
)

// New wires an Engine from configuration. finder is only used in page-scan
// mode; nil selects the built-in labelling.
func New(cfg *config.Config, backend ocr.Backend, finder ocr.BoxFinder) (*Engine, error) {
	noise, err := cfg.NoiseList()
	if err != nil {
		return nil, err
	}
	var det ocr.RegionDetector
	if cfg.Mode == models.ModeTemplate {
		det = ocr.TemplateDetector{Zones: cfg.Template}
	} else {
		det = ocr.ContourDetector{Floors: cfg.Floors, Finder: finder}
	}
	opts := ocr.DefaultRecognizerOptions()
	opts.Timeout = cfg.RecognizeTimeout
	opts.Scorer = cfg.RecognitionScorer()
	if pr, ok := backend.(ocr.PriceReader); ok {
		opts.PriceBackend = pr.PriceBackend()
	}
	return &Engine{
		Pre:           ocr.NewPreprocessor(cfg.PreprocessConfig()),
		Detector:      det,
		Recognizer:    ocr.NewRecognizer(backend, opts),
		Normalizer:    ocr.NewNormalizer(noise),
		Parser:        ocr.NewPriceParser(cfg.PriceBounds()),
		Matcher:       ocr.NewMatcher(cfg.MaxMatchDistance),
		MinNameLength: cfg.NameMinLength(),
		Workers:       cfg.Workers,
	}, nil
}
