package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"catalogscan/models"
	"catalogscan/pkg/logger"
	"catalogscan/pkg/ocr"
)

type Config struct {
	// Extraction
	Mode             string
	MaxDimension     int
	Contrast         float64
	ThresholdWindow  int
	ThresholdBias    int
	MaxMatchDistance float64
	PriceMin         float64
	PriceMax         float64
	MinNameLength    int // 0 = mode default
	Workers          int
	RecognizeTimeout time.Duration
	Template         ocr.TemplateZones
	Floors           ocr.SizeFloors

	// Recognition
	OCRBackend   string // tesseract, vision
	OCRLanguage  string
	RegionFinder string // label, opencv
	Scorer       string // longest, confidence

	// Output and persistence
	OutputDir string
	Store     string // file, postgres
	DBDSN     string
	NoiseFile string
	Noise     *ocr.NoiseList // inline list from a profile

	// API
	JWTSecret string
	APIAddr   string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string

	Profile string
}

// Profile is the YAML file selected by CATALOG_PROFILE or --profile.
// Unset fields keep the environment/default value.
type Profile struct {
	Mode             string             `yaml:"mode"`
	Scorer           string             `yaml:"scorer"`
	MaxDimension     *int               `yaml:"max_dimension"`
	Contrast         *float64           `yaml:"contrast"`
	ThresholdWindow  *int               `yaml:"threshold_window"`
	ThresholdBias    *int               `yaml:"threshold_bias"`
	MaxMatchDistance *float64           `yaml:"max_match_distance"`
	PriceMin         *float64           `yaml:"price_min"`
	PriceMax         *float64           `yaml:"price_max"`
	MinNameLength    *int               `yaml:"min_name_length"`
	Workers          *int               `yaml:"workers"`
	Template         *ocr.TemplateZones `yaml:"template"`
	Floors           *ocr.SizeFloors    `yaml:"region_floors"`
	Noise            *ocr.NoiseList     `yaml:"noise"`
}

// Load reads .env (if present), the environment and the profile named by CATALOG_PROFILE.
func Load() (*Config, error) {
	return LoadWithProfile("")
}

// LoadWithProfile is Load with an explicit profile path taking precedence over CATALOG_PROFILE.
func LoadWithProfile(profile string) (*Config, error) {
	_ = godotenv.Load()

	p := &envParser{}
	config := &Config{
		Mode:             getEnv("CATALOG_MODE", models.ModePages),
		MaxDimension:     p.int("CATALOG_MAX_DIMENSION", 2400),
		Contrast:         p.float("CATALOG_CONTRAST", 1.5),
		ThresholdWindow:  p.int("CATALOG_THRESHOLD_WINDOW", 11),
		ThresholdBias:    p.int("CATALOG_THRESHOLD_BIAS", 2),
		MaxMatchDistance: p.float("CATALOG_MAX_MATCH_DISTANCE", ocr.DefaultMatchDistance),
		PriceMin:         p.float("CATALOG_PRICE_MIN", 0.01),
		PriceMax:         p.float("CATALOG_PRICE_MAX", 1000.00),
		MinNameLength:    p.int("CATALOG_MIN_NAME_LENGTH", 0),
		Workers:          p.int("CATALOG_WORKERS", 1),
		RecognizeTimeout: p.duration("CATALOG_RECOGNIZE_TIMEOUT", 20*time.Second),
		Template:         ocr.DefaultTemplate(),
		Floors:           ocr.DefaultFloors(),
		OCRBackend:       getEnv("CATALOG_OCR_BACKEND", "tesseract"),
		OCRLanguage:      getEnv("CATALOG_OCR_LANGUAGE", "eng"),
		RegionFinder:     getEnv("CATALOG_REGION_FINDER", "label"),
		Scorer:           getEnv("CATALOG_SCORER", "longest"),
		OutputDir:        getEnv("CATALOG_OUTPUT_DIR", "."),
		Store:            getEnv("CATALOG_STORE", "file"),
		DBDSN:            getEnv("DB_DSN", ""),
		NoiseFile:        getEnv("CATALOG_NOISE_FILE", ""),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		APIAddr:          getEnv("CATALOG_API_ADDR", ":8081"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:    getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:        getEnv("LOG_OUTPUT", "stderr"),
		Profile:          profile,
	}
	if p.err != nil {
		return nil, fmt.Errorf("config: %w", p.err)
	}
	if config.Profile == "" {
		config.Profile = os.Getenv("CATALOG_PROFILE")
	}
	if config.Profile != "" {
		if err := config.applyProfile(config.Profile); err != nil {
			return nil, err
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

func (c *Config) applyProfile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read profile: %w", err)
	}
	// nested blocks decode over the current values, so a partial block
	// only changes the keys it names
	template, floors := c.Template, c.Floors
	p := Profile{Template: &template, Floors: &floors}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("parse profile %s: %w", path, err)
	}
	if p.Mode != "" {
		c.Mode = p.Mode
	}
	if p.Scorer != "" {
		c.Scorer = p.Scorer
	}
	setInt(&c.MaxDimension, p.MaxDimension)
	setFloat(&c.Contrast, p.Contrast)
	setInt(&c.ThresholdWindow, p.ThresholdWindow)
	setInt(&c.ThresholdBias, p.ThresholdBias)
	setFloat(&c.MaxMatchDistance, p.MaxMatchDistance)
	setFloat(&c.PriceMin, p.PriceMin)
	setFloat(&c.PriceMax, p.PriceMax)
	setInt(&c.MinNameLength, p.MinNameLength)
	setInt(&c.Workers, p.Workers)
	if p.Template != nil {
		c.Template = *p.Template
	}
	if p.Floors != nil {
		c.Floors = *p.Floors
	}
	if p.Noise != nil {
		c.Noise = p.Noise
	}
	return nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Mode != models.ModePages && c.Mode != models.ModeTemplate {
		return fmt.Errorf("CATALOG_MODE must be %q or %q, got %q", models.ModePages, models.ModeTemplate, c.Mode)
	}
	if c.MaxDimension <= 0 {
		return fmt.Errorf("CATALOG_MAX_DIMENSION must be positive")
	}
	if c.Contrast <= 0 {
		return fmt.Errorf("CATALOG_CONTRAST must be positive")
	}
	if c.ThresholdWindow <= 0 {
		return fmt.Errorf("CATALOG_THRESHOLD_WINDOW must be positive")
	}
	if c.MaxMatchDistance <= 0 {
		return fmt.Errorf("CATALOG_MAX_MATCH_DISTANCE must be positive")
	}
	if c.PriceMin < 0 || c.PriceMax <= 0 || c.PriceMin > c.PriceMax {
		return fmt.Errorf("price bounds [%.2f, %.2f] are invalid", c.PriceMin, c.PriceMax)
	}
	if c.MinNameLength < 0 {
		return fmt.Errorf("CATALOG_MIN_NAME_LENGTH must not be negative")
	}
	f := c.Floors
	if f.ProductWidth <= 0 || f.ProductHeight <= 0 || f.PriceWidth <= 0 || f.PriceHeight <= 0 {
		return fmt.Errorf("region floors must be positive: %+v", f)
	}
	if f.MaxAspect <= 0 || f.MaxAreaFrac <= 0 || f.MaxAreaFrac > 1 {
		return fmt.Errorf("region floors need max_aspect > 0 and max_area_frac in (0, 1]: %+v", f)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("CATALOG_WORKERS must be at least 1")
	}
	if c.Template.Width <= 0 || c.Template.Height <= 0 {
		return fmt.Errorf("template dimensions must be positive")
	}
	if len(c.Template.Product) == 0 || len(c.Template.Price) == 0 {
		return fmt.Errorf("template needs at least one product zone and one price zone")
	}
	for _, z := range append(append([]ocr.Zone{}, c.Template.Product...), c.Template.Price...) {
		if !z.Valid() {
			return fmt.Errorf("template zone %+v outside 0..100", z)
		}
	}
	switch c.OCRBackend {
	case "tesseract", "vision":
	default:
		return fmt.Errorf("CATALOG_OCR_BACKEND must be tesseract or vision, got %q", c.OCRBackend)
	}
	switch c.RegionFinder {
	case "label", "opencv":
	default:
		return fmt.Errorf("CATALOG_REGION_FINDER must be label or opencv, got %q", c.RegionFinder)
	}
	switch c.Scorer {
	case "longest", "confidence":
	default:
		return fmt.Errorf("CATALOG_SCORER must be longest or confidence, got %q", c.Scorer)
	}
	switch c.Store {
	case "file":
	case "postgres":
		if c.DBDSN == "" {
			return fmt.Errorf("DB_DSN is required when CATALOG_STORE=postgres")
		}
	default:
		return fmt.Errorf("CATALOG_STORE must be file or postgres, got %q", c.Store)
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

// NameMinLength is the configured minimum or the mode default (5 template, 10 pages).
func (c *Config) NameMinLength() int {
	if c.MinNameLength > 0 {
		return c.MinNameLength
	}
	if c.Mode == models.ModeTemplate {
		return 5
	}
	return 10
}

func (c *Config) PreprocessConfig() ocr.PreprocessConfig {
	pc := ocr.PreprocessConfig{
		MaxDimension:    c.MaxDimension,
		Contrast:        c.Contrast,
		ThresholdWindow: c.ThresholdWindow,
		ThresholdBias:   c.ThresholdBias,
	}
	if c.Mode == models.ModeTemplate {
		t := c.Template
		pc.Template = &t
	}
	return pc
}

// RecognitionScorer picks the attempt scorer named by CATALOG_SCORER.
func (c *Config) RecognitionScorer() ocr.Scorer {
	if c.Scorer == "confidence" {
		return ocr.ConfidenceScorer{}
	}
	return ocr.LongestScorer{}
}

func (c *Config) PriceBounds() ocr.PriceBounds {
	return ocr.PriceBounds{Min: models.PriceFromFloat(c.PriceMin), Max: models.PriceFromFloat(c.PriceMax)}
}

// NoiseList resolves the noise list: profile inline list, then CATALOG_NOISE_FILE, then the embedded default.
func (c *Config) NoiseList() (ocr.NoiseList, error) {
	if c.Noise != nil {
		return *c.Noise, nil
	}
	return ocr.LoadNoise(c.NoiseFile)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envParser keeps the first parse error so Load can report it once.
type envParser struct {
	err error
}

func (p *envParser) int(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("%s: %w", key, err)
	}
	return n
}

func (p *envParser) float(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("%s: %w", key, err)
	}
	return f
}

func (p *envParser) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("%s: %w", key, err)
	}
	return d
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}
