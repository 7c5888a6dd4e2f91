package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/phish-detector/")
	v.AddConfigPath("$HOME/.phish-detector")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	// Environment variables
	v.AutomaticEnv()
	v.SetEnvPrefix("PHISHDETECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return &Config{v: v}, nil
}

// NewFromFile loads configuration from an explicit file
func NewFromFile(path string) (*Config, error) {
	v := NewEmptyViper()
	v.SetConfigFile(path)
	v.AutomaticEnv()
	v.SetEnvPrefix("PHISHDETECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Model artifacts
	v.SetDefault("model.path", "model/phishdetect_forest.json")
	v.SetDefault("model.schema_path", "model/schema.json")
	v.SetDefault("model.top_n", 5)

	// Feature tables
	v.SetDefault("features.brands", map[string]string{
		"apple":   "apple.com",
		"yesbank": "yesbank.in",
		"paypal":  "paypal.com",
		"netflix": "netflix.com",
	})
	v.SetDefault("features.shorteners", []string{"bit.ly", "tinyurl.com", "goo.gl", "ow.ly", "t.co", "buff.ly"})
	v.SetDefault("features.keywords", []string{"verify", "update", "login", "urgent", "click", "account", "password"})

	// Server defaults
	v.SetDefault("server.filter_type", "http")
	v.SetDefault("server.http_address", "0.0.0.0:8000")
	v.SetDefault("server.listen_address", "0.0.0.0:10025")
	v.SetDefault("server.forward_address", "localhost:10026")
	v.SetDefault("server.block_phishing", false)
	v.SetDefault("server.block_threshold", 0.9)
	v.SetDefault("server.max_upload_size", 10*1024*1024)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.headers.status", "X-Phish-Status")
	v.SetDefault("server.headers.confidence", "X-Phish-Confidence")
	v.SetDefault("server.headers.reasons", "X-Phish-Reasons")

	// Enrichment defaults
	v.SetDefault("enrichment.enabled", false)
	v.SetDefault("enrichment.timeout", "20s")
	v.SetDefault("enrichment.advisor", "none")

	v.SetDefault("openphish.enabled", true)
	v.SetDefault("openphish.feed_url", "https://openphish.com/feed.txt")
	v.SetDefault("openphish.timeout", "10s")
	v.SetDefault("openphish.refresh", "1h")

	v.SetDefault("virustotal.enabled", false)
	v.SetDefault("virustotal.api_key", "")
	v.SetDefault("virustotal.base_url", "https://www.virustotal.com")
	v.SetDefault("virustotal.timeout", "15s")
	v.SetDefault("virustotal.poll_interval", "15s")
	v.SetDefault("virustotal.max_polls", 2)
	v.SetDefault("virustotal.max_urls", 4)

	// Bedrock defaults
	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.model_id", "anthropic.claude-v2")
	v.SetDefault("bedrock.max_tokens", 1000)
	v.SetDefault("bedrock.temperature", 0.1)
	v.SetDefault("bedrock.top_p", 0.9)
	v.SetDefault("bedrock.max_body_size", 4096)

	// Gemini defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", "gemini-pro")
	v.SetDefault("gemini.max_tokens", 1000)
	v.SetDefault("gemini.temperature", 0.1)
	v.SetDefault("gemini.top_p", 0.9)
	v.SetDefault("gemini.max_body_size", 4096)

	// OpenAI defaults
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model_name", "gpt-4")
	v.SetDefault("openai.max_tokens", 1000)
	v.SetDefault("openai.temperature", 0.1)
	v.SetDefault("openai.top_p", 0.9)
	v.SetDefault("openai.max_body_size", 4096)
	v.SetDefault("openai.base_url", "")

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.cleanup_frequency", "1h")
	v.SetDefault("cache.sqlite_path", "/data/reputation_cache.db")
	v.SetDefault("cache.mysql_dsn", "user:password@tcp(localhost:3306)/phish_detector")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)

	// Dataset and training defaults
	v.SetDefault("dataset.phishing_dir", "sample_emails/phishing")
	v.SetDefault("dataset.legitimate_dir", "sample_emails/legitimate")
	v.SetDefault("dataset.output", "model/email_dataset.csv")
	v.SetDefault("dataset.extensions", []string{".eml", ".mbox"})
	v.SetDefault("dataset.workers", 8)
	v.SetDefault("dataset.seed", 42)

	v.SetDefault("training.trees", 200)
	v.SetDefault("training.max_depth", 0)
	v.SetDefault("training.min_leaf", 1)
	v.SetDefault("training.test_fraction", 0.2)
	v.SetDefault("training.seed", 42)

	v.SetDefault("cli.verbose", false)

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

// GetStringMapString gets a string map value from the configuration
func (c *Config) GetStringMapString(key string) map[string]string {
	return c.v.GetStringMapString(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// durationOr parses a duration key, falling back when it is malformed
func (c *Config) durationOr(key string, fallback time.Duration) time.Duration {
	d, err := c.GetDuration(key)
	if err != nil {
		return fallback
	}
	return d
}

// Set overrides a configuration value
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
