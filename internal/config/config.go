// Package config provides configuration management for thinkgraph.
// It loads settings from environment variables with the THINKGRAPH_ prefix,
// an optional thinkgraph.yaml file, and command-line flags bound by the
// binaries, and provides sensible defaults for all configuration options.
//
// Precedence, highest first: bound flags, environment, config file, defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended (with an underscore) to every configuration key when
// it is read from the environment.
const EnvPrefix = "THINKGRAPH"

// Configuration keys. Each maps to THINKGRAPH_<KEY upper-cased>.
const (
	KeyPort                    = "port"
	KeyHost                    = "host"
	KeyAllowedOrigins          = "allowed_origins"
	KeyRateLimit               = "rate_limit"
	KeyRateBurst               = "rate_burst"
	KeyStorageEngine           = "storage_engine"
	KeyDataPath                = "data_path"
	KeyPostgresDSN             = "postgres_dsn"
	KeyRedisURL                = "redis_url"
	KeyDefaultLibrary          = "default_library"
	KeyOpenAIAPIKey            = "openai_api_key"
	KeyAnthropicAPIKey         = "anthropic_api_key"
	KeyGoogleAPIKey            = "google_api_key"
	KeyOllamaURL               = "ollama_url"
	KeyLLMTimeout              = "llm_timeout"
	KeySecurityMode            = "security_mode"
	KeyAPIToken                = "api_token"
	KeyEnableREST              = "enable_rest"
	KeyEnableWebSocket         = "enable_websocket"
	KeyEnableMetrics           = "enable_metrics"
	KeyEnableTracing           = "enable_tracing"
	KeyDisableReasoningLogging = "disable_reasoning_logging"
	KeyEnv                     = "env"
)

// Storage engines understood by the storage backends package.
const (
	EngineFile     = "file"
	EngineSQLite   = "sqlite"
	EnginePostgres = "postgres"
	EngineRedis    = "redis"
)

// Security modes.
const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

// Config holds all configuration settings for the thinkgraph application.
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	LLM       LLMConfig
	Security  SecurityConfig
	Features  FeaturesConfig
	Reasoning ReasoningConfig

	// Env selects the logger flavour: development or production.
	Env string
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port           int      // Server port (default: 3000)
	Host           string   // Server host (default: 127.0.0.1)
	AllowedOrigins []string // CORS and WebSocket origin patterns (default: none, same-origin only)
	RateLimit      float64  // Requests per second per server (default: 10)
	RateBurst      int      // Burst size for the rate limiter (default: 20)
}

// StorageConfig contains persistence configuration.
type StorageConfig struct {
	StorageEngine  string // Storage engine: file, sqlite, postgres, redis (default: file)
	DataPath       string // Path to data directory (default: ./memory_data)
	PostgresDSN    string // Connection string for the postgres engine
	RedisURL       string // redis:// URL for the redis engine
	DefaultLibrary string // Library loaded on startup (default: cognitive_memory)
}

// LLMConfig contains text generation provider configuration.
type LLMConfig struct {
	OpenAIAPIKey    string        // OpenAI API key
	AnthropicAPIKey string        // Anthropic API key
	GoogleAPIKey    string        // Google Gemini API key
	OllamaURL       string        // Ollama API URL (default: http://localhost:11434)
	Timeout         time.Duration // Per-request provider timeout (default: 60s)
}

// SecurityConfig contains security and authentication settings.
type SecurityConfig struct {
	SecurityMode string // Security mode: development, production (default: development)
	APIToken     string // API authentication token
}

// FeaturesConfig contains feature flags for the HTTP binary.
type FeaturesConfig struct {
	EnableREST      bool // Serve the REST helper endpoints (default: true)
	EnableWebSocket bool // Serve the /ws transport (default: true)
	EnableMetrics   bool // Serve /metrics (default: true)
	EnableTracing   bool // Log finished dispatch spans (default: false)
}

// ReasoningConfig contains reasoning engine settings.
type ReasoningConfig struct {
	DisableLogging bool // Suppress the rendered thought boxes on stderr (default: false)
}

// New returns a viper instance preconfigured with thinkgraph defaults, the
// environment prefix, and the config file search path. Callers may bind flags
// to it before passing it to Load.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	v.SetConfigName("thinkgraph")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".thinkgraph"))
	}
	return v
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyPort, 3000)
	v.SetDefault(KeyHost, "127.0.0.1")
	v.SetDefault(KeyAllowedOrigins, "")
	v.SetDefault(KeyRateLimit, 10.0)
	v.SetDefault(KeyRateBurst, 20)
	v.SetDefault(KeyStorageEngine, EngineFile)
	v.SetDefault(KeyDataPath, "./memory_data")
	v.SetDefault(KeyPostgresDSN, "")
	v.SetDefault(KeyRedisURL, "redis://localhost:6379/0")
	v.SetDefault(KeyDefaultLibrary, "cognitive_memory")
	v.SetDefault(KeyOpenAIAPIKey, "")
	v.SetDefault(KeyAnthropicAPIKey, "")
	v.SetDefault(KeyGoogleAPIKey, "")
	v.SetDefault(KeyOllamaURL, "http://localhost:11434")
	v.SetDefault(KeyLLMTimeout, "60s")
	v.SetDefault(KeySecurityMode, ModeDevelopment)
	v.SetDefault(KeyAPIToken, "")
	v.SetDefault(KeyEnableREST, true)
	v.SetDefault(KeyEnableWebSocket, true)
	v.SetDefault(KeyEnableMetrics, true)
	v.SetDefault(KeyEnableTracing, false)
	v.SetDefault(KeyDisableReasoningLogging, false)
	v.SetDefault(KeyEnv, ModeDevelopment)
}

// Load reads the optional config file into v and builds a validated Config.
// A missing config file is not an error. A nil v uses New().
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = New()
	}

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           getInt(v, KeyPort, 3000),
			Host:           v.GetString(KeyHost),
			AllowedOrigins: getList(v, KeyAllowedOrigins),
			RateLimit:      getFloat(v, KeyRateLimit, 10),
			RateBurst:      getInt(v, KeyRateBurst, 20),
		},
		Storage: StorageConfig{
			StorageEngine:  strings.ToLower(v.GetString(KeyStorageEngine)),
			DataPath:       v.GetString(KeyDataPath),
			PostgresDSN:    v.GetString(KeyPostgresDSN),
			RedisURL:       v.GetString(KeyRedisURL),
			DefaultLibrary: v.GetString(KeyDefaultLibrary),
		},
		LLM: LLMConfig{
			OpenAIAPIKey:    v.GetString(KeyOpenAIAPIKey),
			AnthropicAPIKey: v.GetString(KeyAnthropicAPIKey),
			GoogleAPIKey:    v.GetString(KeyGoogleAPIKey),
			OllamaURL:       v.GetString(KeyOllamaURL),
			Timeout:         getDuration(v, KeyLLMTimeout, 60*time.Second),
		},
		Security: SecurityConfig{
			SecurityMode: v.GetString(KeySecurityMode),
			APIToken:     v.GetString(KeyAPIToken),
		},
		Features: FeaturesConfig{
			EnableREST:      getBool(v, KeyEnableREST, true),
			EnableWebSocket: getBool(v, KeyEnableWebSocket, true),
			EnableMetrics:   getBool(v, KeyEnableMetrics, true),
			EnableTracing:   getBool(v, KeyEnableTracing, false),
		},
		Reasoning: ReasoningConfig{
			DisableLogging: getBool(v, KeyDisableReasoningLogging, false),
		},
		Env: v.GetString(KeyEnv),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Server.Port)
	}
	switch c.Storage.StorageEngine {
	case EngineFile, EngineSQLite:
		if c.Storage.DataPath == "" {
			return errors.New("config: data path is required")
		}
	case EnginePostgres:
		if c.Storage.PostgresDSN == "" {
			return errors.New("config: postgres engine requires THINKGRAPH_POSTGRES_DSN")
		}
	case EngineRedis:
		if c.Storage.RedisURL == "" {
			return errors.New("config: redis engine requires THINKGRAPH_REDIS_URL")
		}
	default:
		return fmt.Errorf("config: unknown storage engine %q", c.Storage.StorageEngine)
	}
	if c.Storage.DefaultLibrary == "" {
		return errors.New("config: default library is required")
	}
	if c.Security.RequiresToken() && c.Security.APIToken == "" {
		return errors.New("config: production security mode requires THINKGRAPH_API_TOKEN")
	}
	return nil
}

// RequiresToken reports whether HTTP callers must present the API token.
func (s SecurityConfig) RequiresToken() bool {
	return s.SecurityMode == ModeProduction
}

// getInt returns the integer value of key, or the default if the stored value
// cannot be parsed as an integer.
func getInt(v *viper.Viper, key string, defaultValue int) int {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return defaultValue
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	return defaultValue
}

// getFloat returns the float value of key, or the default if unparseable.
func getFloat(v *viper.Viper, key string, defaultValue float64) float64 {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return defaultValue
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return defaultValue
}

// getBool recognizes "true", "1", "yes" as true and "false", "0", "no" as
// false (case-insensitive). Anything else yields the default.
func getBool(v *viper.Viper, key string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(v.GetString(key))) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return defaultValue
}

// getDuration parses a Go duration string, falling back to the default.
func getDuration(v *viper.Viper, key string, defaultValue time.Duration) time.Duration {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	return defaultValue
}

// getList accepts either a YAML list or a comma-separated string.
func getList(v *viper.Viper, key string) []string {
	var items []string
	if list, ok := v.Get(key).([]interface{}); ok {
		for _, item := range list {
			items = append(items, fmt.Sprint(item))
		}
	} else {
		items = strings.Split(v.GetString(key), ",")
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
