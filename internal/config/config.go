// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/reviewpilot/internal/ai"
)

// Config holds all application configuration.
type Config struct {
	Port         string
	DBPath       string
	SyncInterval time.Duration

	// MarketplaceTimeout bounds each portal HTTP call.
	MarketplaceTimeout time.Duration

	Generation GenerationConfig
}

// GenerationConfig controls the language-generation service. APIKey here is
// the environment override; the persisted setting is used when it is empty.
type GenerationConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Timeout  time.Duration
	Sampling ai.Sampling
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		DBPath:             getEnv("DB_PATH", "./data/reviewpilot.db"),
		SyncInterval:       time.Duration(getEnvInt("SYNC_INTERVAL_SECONDS", 60)) * time.Second,
		MarketplaceTimeout: time.Duration(getEnvInt("MARKETPLACE_TIMEOUT_SECONDS", 20)) * time.Second,
		Generation: GenerationConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			BaseURL: getEnv("OPENAI_BASE_URL", ai.DefaultBaseURL),
			Model:   getEnv("OPENAI_MODEL", ai.DefaultModel),
			Timeout: time.Duration(getEnvInt("OPENAI_TIMEOUT_SECONDS", 30)) * time.Second,
			Sampling: ai.Sampling{
				Temperature:      getEnvFloat("OPENAI_TEMPERATURE", ai.DefaultTemperature),
				TopP:             getEnvFloat("OPENAI_TOP_P", ai.DefaultTopP),
				PresencePenalty:  getEnvFloat("OPENAI_PRESENCE_PENALTY", ai.DefaultPresencePenalty),
				FrequencyPenalty: getEnvFloat("OPENAI_FREQUENCY_PENALTY", ai.DefaultFrequencyPenalty),
				MaxOutputTokens:  getEnvInt("OPENAI_MAX_OUTPUT_TOKENS", ai.DefaultMaxOutputTokens),
			},
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("SYNC_INTERVAL_SECONDS must be > 0")
	}
	if c.MarketplaceTimeout <= 0 {
		return fmt.Errorf("MARKETPLACE_TIMEOUT_SECONDS must be > 0")
	}
	if c.Generation.Timeout <= 0 {
		return fmt.Errorf("OPENAI_TIMEOUT_SECONDS must be > 0")
	}
	if c.Generation.BaseURL == "" {
		return fmt.Errorf("OPENAI_BASE_URL cannot be empty")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}
