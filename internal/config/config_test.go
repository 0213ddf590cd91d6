package config

import (
	"testing"
	"time"

	"github.com/ashureev/reviewpilot/internal/ai"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.DBPath != "./data/reviewpilot.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.SyncInterval != time.Minute {
		t.Errorf("SyncInterval = %v, want 1m", cfg.SyncInterval)
	}
	if cfg.MarketplaceTimeout != 20*time.Second {
		t.Errorf("MarketplaceTimeout = %v, want 20s", cfg.MarketplaceTimeout)
	}
	if cfg.Generation.APIKey != "" {
		t.Errorf("APIKey = %q, want empty by default", cfg.Generation.APIKey)
	}
	if cfg.Generation.BaseURL != ai.DefaultBaseURL {
		t.Errorf("BaseURL = %q", cfg.Generation.BaseURL)
	}
	if cfg.Generation.Model != ai.DefaultModel {
		t.Errorf("Model = %q", cfg.Generation.Model)
	}
	if cfg.Generation.Sampling.Temperature != ai.DefaultTemperature {
		t.Errorf("Temperature = %v", cfg.Generation.Sampling.Temperature)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_PATH", "/var/lib/reviewpilot/app.db")
	t.Setenv("SYNC_INTERVAL_SECONDS", "120")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_MODEL", "gpt-4o")
	t.Setenv("OPENAI_TEMPERATURE", "0.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.DBPath != "/var/lib/reviewpilot/app.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.SyncInterval != 2*time.Minute {
		t.Errorf("SyncInterval = %v", cfg.SyncInterval)
	}
	if cfg.Generation.APIKey != "sk-test" {
		t.Errorf("APIKey = %q", cfg.Generation.APIKey)
	}
	if cfg.Generation.Model != "gpt-4o" {
		t.Errorf("Model = %q", cfg.Generation.Model)
	}
	if cfg.Generation.Sampling.Temperature != 0.5 {
		t.Errorf("Temperature = %v", cfg.Generation.Sampling.Temperature)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("SYNC_INTERVAL_SECONDS", "0")
	if _, err := Load(); err == nil {
		t.Error("zero sync interval should fail validation")
	}
}

func TestLoadIgnoresUnparseableNumbers(t *testing.T) {
	t.Setenv("SYNC_INTERVAL_SECONDS", "often")
	t.Setenv("OPENAI_TEMPERATURE", "hot")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SyncInterval != time.Minute {
		t.Errorf("SyncInterval = %v, want default on garbage", cfg.SyncInterval)
	}
	if cfg.Generation.Sampling.Temperature != ai.DefaultTemperature {
		t.Errorf("Temperature = %v, want default on garbage", cfg.Generation.Sampling.Temperature)
	}
}

func TestValidate(t *testing.T) {
	valid := &Config{
		Port:               "8080",
		DBPath:             "./app.db",
		SyncInterval:       time.Minute,
		MarketplaceTimeout: 20 * time.Second,
		Generation: GenerationConfig{
			BaseURL: ai.DefaultBaseURL,
			Timeout: 30 * time.Second,
		},
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	broken := *valid
	broken.Generation.BaseURL = ""
	if err := broken.Validate(); err == nil {
		t.Error("empty generation base URL should fail")
	}
}
