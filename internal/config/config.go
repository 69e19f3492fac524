// Package config loads the receiver and capture-client configuration from an
// optional YAML file and the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override; "__" separates levels,
// e.g. ADVISER_SERVER__PORT=8080.
const EnvPrefix = "ADVISER_"

// DefaultFile is read when no path is given. A missing file is not an error.
const DefaultFile = "config.yaml"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	History   HistoryConfig   `koanf:"history"`
	Backend   BackendConfig   `koanf:"backend"`
	OCR       OCRConfig       `koanf:"ocr"`
	Extract   ExtractConfig   `koanf:"extract"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Client    ClientConfig    `koanf:"client"`
}

type ServerConfig struct {
	Host           string        `koanf:"host"`
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	RateLimit      float64       `koanf:"rate_limit"`
	RateBurst      int           `koanf:"rate_burst"`
	MaxBodyBytes   int64         `koanf:"max_body_bytes"`
	StaticDir      string        `koanf:"static_dir"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

type HistoryConfig struct {
	Dir string `koanf:"dir"`
}

type BackendConfig struct {
	Type            string        `koanf:"type"` // openai, anthropic, echo
	APIKey          string        `koanf:"api_key"`
	Model           string        `koanf:"model"`
	BaseURL         string        `koanf:"base_url"`
	Instructions    string        `koanf:"instructions"`
	MaxOutputTokens int           `koanf:"max_output_tokens"`
	Timeout         time.Duration `koanf:"timeout"`
	MaxPromptChars  int           `koanf:"max_prompt_chars"`
}

type OCRConfig struct {
	Enabled       bool   `koanf:"enabled"`
	TesseractPath string `koanf:"tesseract_path"`
	Language      string `koanf:"language"`
	TessdataDir   string `koanf:"tessdata_dir"`
	PSM           int    `koanf:"psm"`
}

type ExtractConfig struct {
	RawImageFallback bool          `koanf:"raw_image_fallback"`
	RawImageMaxChars int           `koanf:"raw_image_max_chars"`
	MaxPixels        int           `koanf:"max_pixels"`
	OCRTimeout       time.Duration `koanf:"ocr_timeout"`
}

type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

// ClientConfig is read by the capture client.
type ClientConfig struct {
	ServerURL    string        `koanf:"server_url"`
	TextTimeout  time.Duration `koanf:"text_timeout"`
	ImageTimeout time.Duration `koanf:"image_timeout"`
}

var defaults = map[string]any{
	"server.host":                 "0.0.0.0",
	"server.port":                 5000,
	"server.request_timeout":      90 * time.Second,
	"server.rate_limit":           2.0,
	"server.rate_burst":           5,
	"server.max_body_bytes":       int64(32 << 20),
	"server.static_dir":           "static",
	"log.level":                   "info",
	"history.dir":                 ".",
	"backend.type":                "openai",
	"backend.timeout":             60 * time.Second,
	"backend.max_prompt_chars":    16000,
	"ocr.enabled":                 true,
	"ocr.tesseract_path":          "tesseract",
	"ocr.language":                "eng",
	"extract.raw_image_fallback":  false,
	"extract.raw_image_max_chars": 8000,
	"extract.max_pixels":          40_000_000,
	"extract.ocr_timeout":         60 * time.Second,
	"telemetry.enabled":           false,
	"telemetry.service_name":      "adviserd",
	"client.server_url":           "http://192.168.1.100:5000/process",
	"client.text_timeout":         30 * time.Second,
	"client.image_timeout":        60 * time.Second,
}

// legacyEnv maps environment names used by earlier releases onto keys.
// They apply only when the key was not set by the file or ADVISER_ env.
var legacyEnv = []struct {
	name string
	key  string
}{
	{"LLM_SERVER_PORT", "server.port"},
	{"LLM_SERVER_URL", "client.server_url"},
	{"OPENAI_MODEL", "backend.model"},
	{"TESSERACT_PATH", "ocr.tesseract_path"},
	{"TESSERECT_PATH", "ocr.tesseract_path"},
}

// Load reads path (or DefaultFile when empty), then the environment, then
// fills defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		path = DefaultFile
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	applyLegacyEnv(k)

	for key, value := range defaults {
		if !k.Exists(key) {
			if err := k.Set(key, value); err != nil {
				return nil, fmt.Errorf("default %s: %w", key, err)
			}
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Backend.APIKey = substituteEnvVars(cfg.Backend.APIKey)
	if cfg.Backend.APIKey == "" {
		cfg.Backend.APIKey = os.Getenv(apiKeyEnv(cfg.Backend.Type))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyLegacyEnv(k *koanf.Koanf) {
	for _, l := range legacyEnv {
		if v := os.Getenv(l.name); v != "" && !k.Exists(l.key) {
			_ = k.Set(l.key, v)
		}
	}
	// LLM_USE_OPENAI=0 selected the local echo backend.
	if os.Getenv("LLM_USE_OPENAI") == "0" && !k.Exists("backend.type") {
		_ = k.Set("backend.type", "echo")
	}
}

func apiKeyEnv(backendType string) string {
	switch backendType {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	}
	return ""
}

// Validate rejects values the receiver cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Backend.Type == "" {
		return fmt.Errorf("backend.type is required")
	}
	if c.Backend.MaxPromptChars <= 0 {
		return fmt.Errorf("backend.max_prompt_chars must be positive")
	}
	if c.Extract.MaxPixels <= 0 {
		return fmt.Errorf("extract.max_pixels must be positive")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a log.level value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level %q: %w", s, err)
	}
	return level, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// substituteEnvVars expands ${VAR} references.
func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}
