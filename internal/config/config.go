package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	DefaultModel       = "llama3-8b-8192"
	DefaultBaseURL     = "https://api.groq.com/openai/v1"
	DefaultMaxTokens   = 800
	DefaultTemperature = 0.7
	DefaultTopP        = 0.9
	DefaultMaxTurns    = 10
	DefaultRoundTime   = 180
	DefaultFormat      = "structured"
)

type Config struct {
	Agent    AgentConfig    `json:"agent"`
	Provider ProviderConfig `json:"provider"`
	Search   SearchConfig   `json:"search"`
	Debate   DebateConfig   `json:"debate"`
}

type AgentConfig struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"maxTokens"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"topP"`
}

type ProviderConfig struct {
	APIKey  string `json:"apiKey"`
	BaseURL string `json:"baseUrl,omitempty"`
}

type SearchConfig struct {
	APIKey string `json:"apiKey"`
}

type DebateConfig struct {
	Turns        int    `json:"maxTurns"`
	FactChecking bool   `json:"factChecking"`
	TemplateDir  string `json:"templateDir,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			Model:       DefaultModel,
			MaxTokens:   DefaultMaxTokens,
			Temperature: DefaultTemperature,
			TopP:        DefaultTopP,
		},
		Provider: ProviderConfig{
			BaseURL: DefaultBaseURL,
		},
		Debate: DebateConfig{
			Turns: DefaultMaxTurns,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".rostrum")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// DebatesDir is where completed session documents are written.
func DebatesDir() string {
	return filepath.Join(ConfigDir(), "debates")
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if key := os.Getenv("ROSTRUM_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("GROQ_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
	}
	if url := os.Getenv("ROSTRUM_BASE_URL"); url != "" {
		cfg.Provider.BaseURL = url
	}
	if key := os.Getenv("TAVILY_API_KEY"); key != "" && cfg.Search.APIKey == "" {
		cfg.Search.APIKey = key
	}
	if turns := os.Getenv("ROSTRUM_MAX_TURNS"); turns != "" {
		if parsed, err := strconv.Atoi(turns); err == nil && parsed > 0 {
			cfg.Debate.Turns = parsed
		}
	}
	if fc := os.Getenv("ROSTRUM_FACT_CHECKING"); fc != "" {
		if parsed, err := strconv.ParseBool(fc); err == nil {
			cfg.Debate.FactChecking = parsed
		}
	}
	if dir := os.Getenv("ROSTRUM_TEMPLATE_DIR"); dir != "" {
		cfg.Debate.TemplateDir = dir
	}

	if cfg.Agent.Model == "" {
		cfg.Agent.Model = DefaultModel
	}
	if cfg.Agent.MaxTokens <= 0 {
		cfg.Agent.MaxTokens = DefaultMaxTokens
	}
	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = DefaultBaseURL
	}
	if cfg.Debate.Turns <= 0 {
		cfg.Debate.Turns = DefaultMaxTurns
	}

	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
