package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mlorentedev/reworder/internal/adapter"
)

const envPrefix = "REWORDER_"

// Config holds all application configuration.
type Config struct {
	Port      int    `yaml:"port"`
	APIKey    string `yaml:"api_key"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	SentryDSN string `yaml:"sentry_dsn"`
	// RateLimit is the number of requests per minute allowed per client IP.
	RateLimit int `yaml:"rate_limit"`

	SessionTTL     time.Duration `yaml:"session_ttl"`
	MaxSessions    int           `yaml:"max_sessions"`
	LoadTimeout    time.Duration `yaml:"load_timeout"`
	DiscoverModels bool          `yaml:"discover_models"`

	OllamaURL        string `yaml:"ollama_url"`
	OllamaModel      string `yaml:"ollama_model"`
	OllamaConvention string `yaml:"ollama_convention"`

	LlamaCppURL        string `yaml:"llamacpp_url"`
	LlamaCppModel      string `yaml:"llamacpp_model"`
	LlamaCppConvention string `yaml:"llamacpp_convention"`

	OpenAIBaseURL string `yaml:"openai_base_url"`
	OpenAIAPIKey  string `yaml:"openai_api_key"`
	OpenAIModel   string `yaml:"openai_model"`

	ClaudeAPIKey string `yaml:"claude_api_key"`
	ClaudeModel  string `yaml:"claude_model"`

	GeminiAPIKey string `yaml:"gemini_api_key"`
	GeminiModel  string `yaml:"gemini_model"`

	// Models, when non-empty, replaces the per-backend default descriptors.
	Models []adapter.ModelDescriptor `yaml:"models"`
}

func defaults() Config {
	return Config{
		Port:               8090,
		LogLevel:           "info",
		LogFormat:          "text",
		RateLimit:          60,
		SessionTTL:         30 * time.Minute,
		MaxSessions:        100,
		LoadTimeout:        10 * time.Minute,
		OllamaModel:        "qwen2.5:1.5b",
		OllamaConvention:   string(adapter.ConventionChat),
		LlamaCppConvention: string(adapter.ConventionChat),
		OpenAIModel:        "gpt-4o-mini",
		ClaudeModel:        "claude-sonnet-4-5-20250929",
		GeminiModel:        "gemini-2.0-flash",
	}
}

// Load loads configuration from a YAML file (if path is non-empty),
// then applies REWORDER_* environment overrides.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"API_KEY":             &cfg.APIKey,
		"LOG_LEVEL":           &cfg.LogLevel,
		"LOG_FORMAT":          &cfg.LogFormat,
		"SENTRY_DSN":          &cfg.SentryDSN,
		"OLLAMA_URL":          &cfg.OllamaURL,
		"OLLAMA_MODEL":        &cfg.OllamaModel,
		"OLLAMA_CONVENTION":   &cfg.OllamaConvention,
		"LLAMACPP_URL":        &cfg.LlamaCppURL,
		"LLAMACPP_MODEL":      &cfg.LlamaCppModel,
		"LLAMACPP_CONVENTION": &cfg.LlamaCppConvention,
		"OPENAI_BASE_URL":     &cfg.OpenAIBaseURL,
		"OPENAI_API_KEY":      &cfg.OpenAIAPIKey,
		"OPENAI_MODEL":        &cfg.OpenAIModel,
		"CLAUDE_API_KEY":      &cfg.ClaudeAPIKey,
		"CLAUDE_MODEL":        &cfg.ClaudeModel,
		"GEMINI_API_KEY":      &cfg.GeminiAPIKey,
		"GEMINI_MODEL":        &cfg.GeminiModel,
	}
	for name, dst := range strs {
		if v := os.Getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"PORT":         &cfg.Port,
		"MAX_SESSIONS": &cfg.MaxSessions,
		"RATE_LIMIT":   &cfg.RateLimit,
	}
	for name, dst := range ints {
		if v := os.Getenv(envPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("config: invalid %s%s %q: %w", envPrefix, name, v, err)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"SESSION_TTL":  &cfg.SessionTTL,
		"LOAD_TIMEOUT": &cfg.LoadTimeout,
	}
	for name, dst := range durations {
		if v := os.Getenv(envPrefix + name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("config: invalid %s%s %q: %w", envPrefix, name, v, err)
			}
			*dst = d
		}
	}

	if v := os.Getenv(envPrefix + "DISCOVER_MODELS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: invalid %sDISCOVER_MODELS %q: %w", envPrefix, v, err)
		}
		cfg.DiscoverModels = b
	}
	return nil
}

func (c Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	if c.RateLimit < 1 {
		return fmt.Errorf("config: rate_limit must be positive")
	}
	if c.MaxSessions < 0 {
		return fmt.Errorf("config: max_sessions must not be negative")
	}
	for i, m := range c.Models {
		if m.ID == "" {
			return fmt.Errorf("config: models[%d]: model_id is required", i)
		}
		if m.Provider == "" {
			return fmt.Errorf("config: models[%d] (%s): backend is required", i, m.ID)
		}
	}
	return nil
}
