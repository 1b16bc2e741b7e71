package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// HistoryInMemory as HISTORY_DB keeps recent scans in memory instead of a database file.
const HistoryInMemory = ":memory:"

// Detector backends.
const (
	DetectorYOLO   = "yolo"
	DetectorRemote = "remote"
	DetectorOllama = "ollama"
)

type Config struct {
	Port string

	Detector      string
	ModelPath     string
	ModelClasses  string // optional class file, one name per line
	InferenceURL  string
	OllamaURL     string
	OllamaModel   string
	InputSize     int
	TileSize      int // 0 disables tiling
	Workers       int
	Confidence    float32
	NMSThreshold  float32
	DetectTimeout time.Duration

	MaxUploadMB        int
	RateLimitPerMinute int // 0 disables rate limiting
	AllowedOrigins     []string
	HistoryDB          string
	ChipValues         map[string]float64

	TelegramToken string
}

// Load reads .env (if any) and the environment, and validates the result.
func Load() (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	var errs []error
	cfg := &Config{
		Port:          getString("PORT", "8000"),
		Detector:      strings.ToLower(getString("DETECTOR", DetectorYOLO)),
		ModelPath:     getString("MODEL_PATH", "models/chips.onnx"),
		ModelClasses:  os.Getenv("MODEL_CLASSES"),
		InferenceURL:  os.Getenv("INFERENCE_URL"),
		OllamaURL:     getString("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:   getString("OLLAMA_MODEL", "llava"),
		InputSize:     getInt("MODEL_INPUT_SIZE", 640, &errs),
		TileSize:      getInt("TILE_SIZE", 0, &errs),
		Workers:       getInt("INFERENCE_WORKERS", 1, &errs),
		Confidence:    getFloat32("CONFIDENCE_THRESHOLD", 0.5, &errs),
		NMSThreshold:  getFloat32("NMS_THRESHOLD", 0.45, &errs),
		DetectTimeout: getDuration("DETECT_TIMEOUT", 30*time.Second, &errs),

		MaxUploadMB:        getInt("MAX_UPLOAD_MB", 20, &errs),
		RateLimitPerMinute: getInt("RATE_LIMIT_PER_MINUTE", 0, &errs),
		AllowedOrigins:     getList("ALLOWED_ORIGINS", []string{"*"}),
		HistoryDB:          os.Getenv("HISTORY_DB"),
		TelegramToken:      os.Getenv("TELEGRAM_TOKEN"),
	}

	values, err := ParseChipValues(os.Getenv("CHIP_VALUES"))
	if err != nil {
		errs = append(errs, err)
	}
	cfg.ChipValues = values

	if len(errs) == 0 {
		errs = append(errs, cfg.Validate())
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and the settings each detector backend needs.
func (c *Config) Validate() error {
	var errs []error
	switch c.Detector {
	case DetectorYOLO:
		if c.ModelPath == "" {
			errs = append(errs, errors.New("MODEL_PATH is required for the yolo detector"))
		}
	case DetectorRemote:
		if c.InferenceURL == "" {
			errs = append(errs, errors.New("INFERENCE_URL is required for the remote detector"))
		}
	case DetectorOllama:
		if c.OllamaURL == "" || c.OllamaModel == "" {
			errs = append(errs, errors.New("OLLAMA_URL and OLLAMA_MODEL are required for the ollama detector"))
		}
	default:
		errs = append(errs, fmt.Errorf("DETECTOR must be one of yolo, remote, ollama (got %q)", c.Detector))
	}
	// written as negations so NaN fails too
	if !(c.Confidence >= 0 && c.Confidence <= 1) {
		errs = append(errs, fmt.Errorf("CONFIDENCE_THRESHOLD must be within [0,1] (got %v)", c.Confidence))
	}
	if !(c.NMSThreshold > 0 && c.NMSThreshold <= 1) {
		errs = append(errs, fmt.Errorf("NMS_THRESHOLD must be within (0,1] (got %v)", c.NMSThreshold))
	}
	if c.InputSize < 32 {
		errs = append(errs, fmt.Errorf("MODEL_INPUT_SIZE must be at least 32 (got %d)", c.InputSize))
	}
	if c.TileSize < 0 {
		errs = append(errs, fmt.Errorf("TILE_SIZE must not be negative (got %d)", c.TileSize))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("INFERENCE_WORKERS must be at least 1 (got %d)", c.Workers))
	}
	if c.DetectTimeout < 0 {
		errs = append(errs, fmt.Errorf("DETECT_TIMEOUT must not be negative (got %v)", c.DetectTimeout))
	}
	if c.MaxUploadMB < 1 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_MB must be at least 1 (got %d)", c.MaxUploadMB))
	}
	if c.RateLimitPerMinute < 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative (got %d)", c.RateLimitPerMinute))
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Errorf("PORT must be a number (got %q)", c.Port))
	}
	return errors.Join(errs...)
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// MaxUploadBytes is the request body limit for image uploads.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// ParseChipValues parses "Red Chip=5,Blue Chip=10". An empty string gives an empty map.
func ParseChipValues(s string) (map[string]float64, error) {
	values := map[string]float64{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		label, raw, ok := strings.Cut(pair, "=")
		label = strings.TrimSpace(label)
		if !ok || label == "" {
			return nil, fmt.Errorf("CHIP_VALUES: expected label=value, got %q", pair)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || !(v >= 0) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("CHIP_VALUES: bad value for %q: %q", label, raw)
		}
		values[label] = v
	}
	return values, nil
}

func getString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func getInt(key string, def int, errs *[]error) int {
	v := getString(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return def
	}
	return n
}

func getFloat32(key string, def float32, errs *[]error) float32 {
	v := getString(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		*errs = append(*errs, fmt.Errorf("%s: %q is not a finite number", key, v))
		return def
	}
	return float32(f)
}

// getDuration accepts Go durations ("45s") or plain seconds ("45").
func getDuration(key string, def time.Duration, errs *[]error) time.Duration {
	v := getString(key, "")
	if v == "" {
		return def
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not a duration", key, v))
		return def
	}
	return d
}

func getList(key string, def []string) []string {
	v := getString(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
