package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Agent.Model != DefaultModel {
		t.Errorf("model = %q, want %q", cfg.Agent.Model, DefaultModel)
	}
	if cfg.Agent.MaxTokens != DefaultMaxTokens {
		t.Errorf("maxTokens = %d, want %d", cfg.Agent.MaxTokens, DefaultMaxTokens)
	}
	if cfg.Provider.BaseURL != DefaultBaseURL {
		t.Errorf("baseUrl = %q, want %q", cfg.Provider.BaseURL, DefaultBaseURL)
	}
	if cfg.Debate.Turns != DefaultMaxTurns {
		t.Errorf("maxTurns = %d, want %d", cfg.Debate.Turns, DefaultMaxTurns)
	}
	if cfg.Debate.FactChecking {
		t.Error("fact checking should be disabled by default")
	}
}

func TestLoadConfig_FileAndEnvOverrides(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	dir := filepath.Join(tmpHome, ".rostrum")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	content := `{"agent":{"model":"file-model","maxTokens":512},"provider":{"apiKey":"file-key"},"debate":{"maxTurns":4}}`
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("ROSTRUM_API_KEY", "env-key")
	t.Setenv("ROSTRUM_MAX_TURNS", "2")
	t.Setenv("ROSTRUM_FACT_CHECKING", "true")
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("TAVILY_API_KEY", "tv-key")
	t.Setenv("ROSTRUM_BASE_URL", "")
	t.Setenv("ROSTRUM_TEMPLATE_DIR", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Agent.Model != "file-model" {
		t.Errorf("model = %q, want file-model", cfg.Agent.Model)
	}
	if cfg.Provider.APIKey != "env-key" {
		t.Errorf("apiKey = %q, want env-key (env overrides file)", cfg.Provider.APIKey)
	}
	if cfg.Debate.Turns != 2 {
		t.Errorf("maxTurns = %d, want 2", cfg.Debate.Turns)
	}
	if !cfg.Debate.FactChecking {
		t.Error("fact checking should be enabled via env")
	}
	if cfg.Search.APIKey != "tv-key" {
		t.Errorf("search apiKey = %q, want tv-key", cfg.Search.APIKey)
	}
	// Defaults backfilled for fields the file left out
	if cfg.Provider.BaseURL != DefaultBaseURL {
		t.Errorf("baseUrl = %q, want default", cfg.Provider.BaseURL)
	}
}

func TestLoadConfig_GroqFallbackKey(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("ROSTRUM_API_KEY", "")
	t.Setenv("GROQ_API_KEY", "groq-key")
	t.Setenv("ROSTRUM_MAX_TURNS", "")
	t.Setenv("ROSTRUM_FACT_CHECKING", "")
	t.Setenv("TAVILY_API_KEY", "")
	t.Setenv("ROSTRUM_BASE_URL", "")
	t.Setenv("ROSTRUM_TEMPLATE_DIR", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Provider.APIKey != "groq-key" {
		t.Errorf("apiKey = %q, want groq-key", cfg.Provider.APIKey)
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("ROSTRUM_API_KEY", "")
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("ROSTRUM_MAX_TURNS", "")
	t.Setenv("ROSTRUM_FACT_CHECKING", "")
	t.Setenv("TAVILY_API_KEY", "")
	t.Setenv("ROSTRUM_BASE_URL", "")
	t.Setenv("ROSTRUM_TEMPLATE_DIR", "")

	cfg := DefaultConfig()
	cfg.Agent.Model = "round-trip-model"
	cfg.Debate.Turns = 7

	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig error: %v", err)
	}

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if loaded.Agent.Model != "round-trip-model" {
		t.Errorf("model = %q, want round-trip-model", loaded.Agent.Model)
	}
	if loaded.Debate.Turns != 7 {
		t.Errorf("maxTurns = %d, want 7", loaded.Debate.Turns)
	}
}
