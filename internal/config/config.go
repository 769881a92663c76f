// Package config holds the runtime configuration of the vision MCP server.
//
// Values are resolved in three layers: built-in defaults, an optional YAML
// file, then environment variables. The resolved Config is passed explicitly
// to the components that need it; nothing reads the environment later.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultHost           = "0.0.0.0"
	DefaultPort           = 8080
	DefaultLogLevel       = "info"
	DefaultDetectorURL    = "https://api-inference.huggingface.co/models"
	DefaultDetectionModel = "google/owlvit-base-patch32"
	DefaultLanguage       = "eng"
	DefaultRequestTimeout = time.Hour
	DefaultFetchTimeout   = 60 * time.Second
	DefaultMaxBodyBytes   = 32 << 20
)

// Config is the fully resolved server configuration.
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	Detector DetectorConfig `yaml:"detector"`
	OCR      OCRConfig      `yaml:"ocr"`
	Cache    CacheConfig    `yaml:"cache"`

	// RequestTimeout bounds a single tool invocation, including long PDF jobs.
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// FetchTimeout bounds downloading a remote image or PDF.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	// Workers is the size of the inference worker pool shared by both transports.
	Workers int `yaml:"workers"`
	// MaxBodyBytes caps HTTP request bodies.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// DetectorConfig points at the zero-shot object detection inference endpoint.
type DetectorConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Token        string `yaml:"token"`
	DefaultModel string `yaml:"default_model"`
}

// OCRConfig holds Tesseract settings.
type OCRConfig struct {
	Languages      []string `yaml:"languages"`
	TessdataPrefix string   `yaml:"tessdata_prefix"`
}

// CacheConfig enables the OCR result cache when Path is set.
type CacheConfig struct {
	Path string `yaml:"path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Host:     DefaultHost,
		Port:     DefaultPort,
		LogLevel: DefaultLogLevel,
		Detector: DetectorConfig{
			Endpoint:     DefaultDetectorURL,
			DefaultModel: DefaultDetectionModel,
		},
		OCR: OCRConfig{
			Languages: []string{DefaultLanguage},
		},
		RequestTimeout: DefaultRequestTimeout,
		FetchTimeout:   DefaultFetchTimeout,
		Workers:        runtime.NumCPU(),
		MaxBodyBytes:   DefaultMaxBodyBytes,
	}
}

// Load resolves the configuration from defaults, the YAML file at path (if
// path is non-empty) and the process environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// lookupFunc matches os.LookupEnv so tests can supply a fake environment.
type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && strings.TrimSpace(v) != "" {
				*dst = strings.TrimSpace(v)
				return
			}
		}
	}

	str(&c.Host, "VISION_MCP_HOST", "HOST")
	str(&c.LogLevel, "VISION_MCP_LOG_LEVEL")
	str(&c.Detector.Endpoint, "VISION_MCP_DETECTOR_URL")
	str(&c.Detector.Token, "VISION_MCP_DETECTOR_TOKEN", "HF_TOKEN")
	str(&c.Detector.DefaultModel, "VISION_MCP_DEFAULT_MODEL")
	str(&c.OCR.TessdataPrefix, "TESSDATA_PREFIX")
	str(&c.Cache.Path, "VISION_MCP_CACHE_PATH")

	var langs string
	str(&langs, "VISION_MCP_OCR_LANGUAGES")
	if langs != "" {
		c.OCR.Languages = SplitList(langs)
	}

	for _, k := range []string{"VISION_MCP_PORT", "PORT"} {
		if v, ok := lookup(k); ok && v != "" {
			port, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", k, v, err)
			}
			c.Port = port
			break
		}
	}
	if v, ok := lookup("VISION_MCP_WORKERS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid VISION_MCP_WORKERS %q: %w", v, err)
		}
		c.Workers = n
	}
	if v, ok := lookup("VISION_MCP_MAX_BODY_BYTES"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid VISION_MCP_MAX_BODY_BYTES %q: %w", v, err)
		}
		c.MaxBodyBytes = n
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"VISION_MCP_REQUEST_TIMEOUT", &c.RequestTimeout},
		{"VISION_MCP_FETCH_TIMEOUT", &c.FetchTimeout},
	}
	for _, d := range durations {
		if v, ok := lookup(d.key); ok && v != "" {
			parsed, err := parseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", d.key, v, err)
			}
			*d.dst = parsed
		}
	}
	return nil
}

// parseDuration accepts Go durations ("90s", "1h") and bare seconds ("3600").
func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request timeout must be positive")
	}
	if c.FetchTimeout <= 0 {
		return errors.New("fetch timeout must be positive")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive, got %d", c.MaxBodyBytes)
	}
	if c.Detector.DefaultModel == "" {
		return errors.New("detector default model must not be empty")
	}
	if len(c.OCR.Languages) == 0 {
		return errors.New("at least one OCR language is required")
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SplitList splits a comma or plus separated list, dropping blanks.
func SplitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '+' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
