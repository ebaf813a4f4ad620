// app_config.go holds the top-level application configuration.
//
// Settings are stored in ~/.shelfcare/config.json. A .env file in the
// working directory is loaded next, and environment variables override
// both (DB_HOST, OPENAI_API_KEY, SHELFCARE_PROVIDER, ...).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AIConfig holds the language-model provider selection, credentials and
// the tuning knobs of the question-answering pipeline.
type AIConfig struct {
	Provider  string          `json:"provider"` // "openai", "anthropic", "gemini", "ollama", "placeholder"
	OpenAI    OpenAIConfig    `json:"openai"`
	Anthropic AnthropicConfig `json:"anthropic"`
	Gemini    GeminiConfig    `json:"gemini"`
	Ollama    OllamaConfig    `json:"ollama"`
	Embedding EmbeddingConfig `json:"embedding"`

	TopK           int    `json:"top_k"`
	MaxIterations  int    `json:"max_iterations"`
	StallLimit     int    `json:"stall_limit"`
	EarlyStopping  string `json:"early_stopping"` // "generate" or "force"
	TimeoutSeconds int    `json:"timeout_seconds"`

	// RephraseFallback returns raw rows when the answer rewrite fails.
	RephraseFallback bool     `json:"rephrase_fallback"`
	ExtraDenylist    []string `json:"extra_denylist,omitempty"`
	ExamplesPath     string   `json:"examples_path,omitempty"`
}

// OpenAIConfig holds OpenAI-specific settings. BaseURL allows any
// OpenAI-compatible endpoint.
type OpenAIConfig struct {
	APIKey  string `json:"api_key,omitempty"`
	Model   string `json:"model"`
	BaseURL string `json:"base_url,omitempty"`
}

// AnthropicConfig holds Anthropic-specific settings.
type AnthropicConfig struct {
	APIKey string `json:"api_key,omitempty"`
	Model  string `json:"model"`
}

// GeminiConfig holds Google Gemini-specific settings.
type GeminiConfig struct {
	APIKey string `json:"api_key,omitempty"`
	Model  string `json:"model"`
}

// OllamaConfig holds Ollama-specific settings.
type OllamaConfig struct {
	Host  string `json:"host"`
	Model string `json:"model"`
}

// EmbeddingConfig selects the backend used to embed example questions.
type EmbeddingConfig struct {
	Provider  string `json:"provider"` // "api", "ollama", "local"
	BaseURL   string `json:"base_url,omitempty"`
	APIKey    string `json:"api_key,omitempty"`
	Model     string `json:"model"`
	Dimension int    `json:"dimension,omitempty"`
	TimeoutMs int    `json:"timeout_ms,omitempty"`
	BatchSize int    `json:"batch_size,omitempty"`
}

// ServerConfig configures `shelfcare serve`.
type ServerConfig struct {
	Addr              string `json:"addr"`
	RedisURL          string `json:"redis_url,omitempty"`
	SessionTTLMinutes int    `json:"session_ttl_minutes"`
}

// StoreConfig locates the local SQLite store (embedding cache, run log).
type StoreConfig struct {
	Path     string `json:"path"`
	Disabled bool   `json:"disabled,omitempty"`
}

// AppConfig is the top-level config file structure (~/.shelfcare/config.json).
type AppConfig struct {
	DB       Config       `json:"db"`
	AI       AIConfig     `json:"ai"`
	Server   ServerConfig `json:"server"`
	Store    StoreConfig  `json:"store"`
	LogLevel string       `json:"log_level"`

	dir string
}

// Dir returns the directory the config was loaded from.
func (c *AppConfig) Dir() string { return c.dir }

// DefaultAIConfig returns sensible defaults.
func DefaultAIConfig() AIConfig {
	return AIConfig{
		Provider:  "placeholder",
		OpenAI:    OpenAIConfig{Model: "gpt-4o"},
		Anthropic: AnthropicConfig{Model: "claude-sonnet-4-20250514"},
		Gemini:    GeminiConfig{Model: "gemini-2.0-flash"},
		Ollama: OllamaConfig{
			Host:  "http://localhost:11434",
			Model: "llama3.2",
		},
		Embedding: EmbeddingConfig{
			Provider: "local",
			Model:    "text-embedding-3-small",
		},
		TopK:             3,
		MaxIterations:    20,
		StallLimit:       3,
		EarlyStopping:    "generate",
		TimeoutSeconds:   60,
		RephraseFallback: true,
	}
}

// DefaultDir is ~/.shelfcare, or ./.shelfcare when no home is available.
func DefaultDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".shelfcare"
	}
	return filepath.Join(homeDir, ".shelfcare")
}

// Load reads <dir>/config.json (defaults if not found), then .env, then
// environment variables. An empty dir means DefaultDir().
func Load(dir string) (*AppConfig, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	cfg := defaultAppConfig(dir)

	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config.json: %w", err)
		}
	case !os.IsNotExist(err):
		return nil, err
	}

	// A missing .env is the normal case.
	_ = godotenv.Load()

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to <dir>/config.json.
func Save(cfg *AppConfig) error {
	dir := cfg.dir
	if dir == "" {
		dir = DefaultDir()
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0600)
}

func defaultAppConfig(dir string) *AppConfig {
	return &AppConfig{
		DB: DefaultConfig(),
		AI: DefaultAIConfig(),
		Server: ServerConfig{
			Addr:              ":5000",
			SessionTTLMinutes: 60,
		},
		Store:    StoreConfig{Path: filepath.Join(dir, "shelfcare.db")},
		LogLevel: "info",
		dir:      dir,
	}
}

func applyEnv(cfg *AppConfig) error {
	setString(&cfg.DB.Host, "DB_HOST")
	setString(&cfg.DB.User, "DB_USER")
	setString(&cfg.DB.Password, "DB_PASSWORD")
	setString(&cfg.DB.Database, "DB_NAME")
	setString(&cfg.DB.SSLMode, "DB_SSLMODE")

	setString(&cfg.AI.Provider, "SHELFCARE_PROVIDER")
	setString(&cfg.AI.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&cfg.AI.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setString(&cfg.AI.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	setString(&cfg.AI.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&cfg.AI.Ollama.Host, "OLLAMA_HOST")
	setString(&cfg.AI.Embedding.Provider, "SHELFCARE_EMBEDDING_PROVIDER")
	setString(&cfg.AI.Embedding.Model, "SHELFCARE_EMBEDDING_MODEL")
	setString(&cfg.AI.Embedding.BaseURL, "SHELFCARE_EMBEDDING_BASE_URL")
	setString(&cfg.AI.Embedding.APIKey, "SHELFCARE_EMBEDDING_API_KEY")
	setString(&cfg.AI.EarlyStopping, "SHELFCARE_EARLY_STOPPING")

	setString(&cfg.Server.Addr, "SHELFCARE_HTTP_ADDR")
	setString(&cfg.Server.RedisURL, "SHELFCARE_REDIS_URL")
	setString(&cfg.Store.Path, "SHELFCARE_STORE_PATH")
	setString(&cfg.LogLevel, "SHELFCARE_LOG_LEVEL")

	for key, dst := range map[string]*int{
		"DB_PORT":                  &cfg.DB.Port,
		"DB_POOL_SIZE":             &cfg.DB.PoolSize,
		"DB_MAX_OVERFLOW":          &cfg.DB.MaxOverflow,
		"SHELFCARE_TOP_K":          &cfg.AI.TopK,
		"SHELFCARE_MAX_ITERATIONS": &cfg.AI.MaxIterations,
	} {
		if err := setInt(dst, key); err != nil {
			return err
		}
	}

	// The embedding backend reuses the OpenAI key unless it has its own.
	if cfg.AI.Embedding.APIKey == "" {
		cfg.AI.Embedding.APIKey = cfg.AI.OpenAI.APIKey
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %q is not a number", key, v)
	}
	*dst = n
	return nil
}
