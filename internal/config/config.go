// Package config handles application configuration using Viper.
// Viper supports YAML files, environment variables, and defaults, merged in priority order.
// Go convention: configuration is loaded into structs, not accessed as raw key-value pairs.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration struct. Nested structs organize related settings.
// `mapstructure` tags tell Viper how to map YAML/env keys to struct fields.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Auth      AuthConfig      `mapstructure:"auth"`
	CORS      CORSConfig      `mapstructure:"cors"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Research  ResearchConfig  `mapstructure:"research"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// MaxUploadMB caps the size of an uploaded annual report.
	MaxUploadMB int `mapstructure:"max_upload_mb"`
}

type StorageConfig struct {
	// DatabasePath defaults to ":memory:", so the call ledger lives for the
	// process lifetime only.
	DatabasePath string `mapstructure:"database_path"`
	ExportDir    string `mapstructure:"export_dir"`
}

type AuthConfig struct {
	APIKeys   []string `mapstructure:"api_keys"`
	AdminKeys []string `mapstructure:"admin_keys"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LLMConfig struct {
	// DefaultProvider is connected at startup when its key (if any) resolves.
	// Empty means no provider until the user connects one.
	DefaultProvider string          `mapstructure:"default_provider"`
	SecretsFile     string          `mapstructure:"secrets_file"`
	Anthropic       AnthropicConfig `mapstructure:"anthropic"`
	OpenAI          OpenAIConfig    `mapstructure:"openai"`
	Groq            GroqConfig      `mapstructure:"groq"`
	Gemini          GeminiConfig    `mapstructure:"gemini"`
	Ollama          OllamaConfig    `mapstructure:"ollama"`
}

type AnthropicConfig struct {
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
	BaseURL   string `mapstructure:"base_url"`
}

type OpenAIConfig struct {
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type GroqConfig struct {
	Model         string `mapstructure:"model"`
	BaseURL       string `mapstructure:"base_url"`
	RatePerMinute int    `mapstructure:"rate_per_minute"`
}

type GeminiConfig struct {
	Model string `mapstructure:"model"`
}

type OllamaConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Model          string        `mapstructure:"model"`
	ProbeTimeout   time.Duration `mapstructure:"probe_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Temperature    float64       `mapstructure:"temperature"`
	NumPredict     int           `mapstructure:"num_predict"`
}

type AnalysisConfig struct {
	// CacheFailures keeps failed completions in the section cache, so a
	// revisit shows the old error instead of retrying.
	CacheFailures bool          `mapstructure:"cache_failures"`
	PromptsFile   string        `mapstructure:"prompts_file"`
	CallTimeout   time.Duration `mapstructure:"call_timeout"`
}

type ResearchConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// SetDefaults registers every default on v. Exposed so tests can build a
// Config without touching the filesystem.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_upload_mb", 50)
	v.SetDefault("storage.database_path", ":memory:")
	v.SetDefault("storage.export_dir", "./exports")
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000", "http://localhost:8501"})
	v.SetDefault("llm.default_provider", "")
	v.SetDefault("llm.secrets_file", ".env")
	v.SetDefault("llm.anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("llm.anthropic.max_tokens", 4096)
	v.SetDefault("llm.openai.model", "gpt-4-turbo-preview")
	v.SetDefault("llm.groq.model", "llama-3.3-70b-versatile")
	v.SetDefault("llm.groq.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.groq.rate_per_minute", 30)
	v.SetDefault("llm.gemini.model", "gemini-2.0-flash")
	v.SetDefault("llm.ollama.base_url", "http://localhost:11434")
	v.SetDefault("llm.ollama.model", "llama3.1")
	v.SetDefault("llm.ollama.probe_timeout", 2*time.Second)
	v.SetDefault("llm.ollama.request_timeout", 120*time.Second)
	v.SetDefault("llm.ollama.temperature", 0.3)
	v.SetDefault("llm.ollama.num_predict", 2048)
	v.SetDefault("analysis.cache_failures", false)
	v.SetDefault("analysis.call_timeout", 5*time.Minute)
	v.SetDefault("research.enabled", false)
	v.SetDefault("research.base_url", "https://html.duckduckgo.com/html/")
	v.SetDefault("research.timeout", 10*time.Second)
	v.SetDefault("research.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	v.SetDefault("rate_limit.requests_per_second", 5)
	v.SetDefault("rate_limit.burst", 10)
	v.SetDefault("log.level", "info")
}

// Load reads configuration from a YAML file and environment variables.
// A missing file is fine when configPath is empty: defaults and env are enough.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Read config file (ignore "not found" when no path was given)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// FUNDAMENTALS_ prefix + nested keys: FUNDAMENTALS_SERVER_PORT=9090 → server.port=9090
	v.SetEnvPrefix("FUNDAMENTALS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration built from defaults alone.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	// Defaults always decode; an error here would be a programming mistake.
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("decoding default config: %v", err))
	}
	return &cfg
}

// Address returns the listen address string like "0.0.0.0:8080".
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
