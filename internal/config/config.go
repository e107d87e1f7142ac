package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config wraps the application configuration.
type Config struct {
	v *viper.Viper
}

// New loads configuration from the usual locations, with environment
// variable overrides under the PHISH_TRIAGE prefix.
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/phish-triage/")
	v.AddConfigPath("$HOME/.phish-triage")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvPrefix("PHISH_TRIAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromViper wraps an existing Viper instance.
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a Viper instance carrying only the defaults.
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	// External analyzer defaults; "none" keeps scans purely local.
	v.SetDefault("llm.provider", "none")

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model_name", "gpt-4")
	v.SetDefault("openai.max_tokens", 1000)
	v.SetDefault("openai.temperature", 0.1)
	v.SetDefault("openai.top_p", 0.9)
	v.SetDefault("openai.max_body_size", 4096)

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", "gemini-pro")
	v.SetDefault("gemini.max_tokens", 1000)
	v.SetDefault("gemini.temperature", 0.1)
	v.SetDefault("gemini.top_p", 0.9)
	v.SetDefault("gemini.max_body_size", 4096)

	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.model_id", "anthropic.claude-v2")
	v.SetDefault("bedrock.max_tokens", 1000)
	v.SetDefault("bedrock.temperature", 0.1)
	v.SetDefault("bedrock.top_p", 0.9)
	v.SetDefault("bedrock.max_body_size", 4096)

	// Triage defaults. The keyword lists extend the built-in rule
	// tables; they never replace them.
	v.SetDefault("triage.allowed_domains", []string{})
	v.SetDefault("triage.urgency_keywords", []string{})
	v.SetDefault("triage.phishing_keywords", []string{})
	v.SetDefault("triage.jitter_seed", 0)

	// Domain intel defaults
	v.SetDefault("intel.enabled", false)
	v.SetDefault("intel.min_age_days", 30)

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.cleanup_frequency", "1h")
	v.SetDefault("cache.sqlite_path", "/data/verdict_cache.db")
	v.SetDefault("cache.mysql_dsn", "user:password@tcp(localhost:3306)/phish_triage?parseTime=true")

	// HTTP gateway defaults
	v.SetDefault("server.http.enabled", true)
	v.SetDefault("server.http.listen_address", "0.0.0.0:8080")

	// SMTP filter defaults
	v.SetDefault("server.smtp.enabled", false)
	v.SetDefault("server.smtp.listen_address", "0.0.0.0:10025")
	v.SetDefault("server.smtp.block_phishing", false)
	v.SetDefault("server.smtp.relay_address", "127.0.0.1")
	v.SetDefault("server.smtp.relay_port", 10026)
	v.SetDefault("server.smtp.relay_enabled", true)
	v.SetDefault("server.smtp.subject_prefix", "")
	v.SetDefault("server.smtp.modify_subject", false)
	v.SetDefault("server.smtp.headers.verdict", "X-Phish-Verdict")
	v.SetDefault("server.smtp.headers.confidence", "X-Phish-Confidence")
	v.SetDefault("server.smtp.headers.indicators", "X-Phish-Indicators")

	// History defaults
	v.SetDefault("history.max_entries", 500)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetInt64 gets an int64 value from the configuration
func (c *Config) GetInt64(key string) int64 {
	return c.v.GetInt64(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
