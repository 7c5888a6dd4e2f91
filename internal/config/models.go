package config

import (
	"time"
)

// ModelConfig locates the trained artifacts
type ModelConfig struct {
	Path       string
	SchemaPath string
	TopN       int
}

// FeaturesConfig holds the extractor's lookup tables
type FeaturesConfig struct {
	Brands     map[string]string
	Shorteners []string
	Keywords   []string
}

// HeadersConfig names the headers added by mail filters
type HeadersConfig struct {
	Status     string
	Confidence string
	Reasons    string
}

// ServerConfig represents the serving front ends
type ServerConfig struct {
	FilterType     string
	HTTPAddress    string
	ListenAddress  string
	ForwardAddress string
	BlockPhishing  bool
	BlockThreshold float64
	MaxUploadSize  int
	Debug          bool
	Headers        HeadersConfig
}

// EnrichmentConfig controls the out-of-band lookups
type EnrichmentConfig struct {
	Enabled bool
	Timeout time.Duration
	Advisor string
}

// OpenPhishConfig represents the OpenPhish feed
type OpenPhishConfig struct {
	Enabled bool
	FeedURL string
	Timeout time.Duration
	Refresh time.Duration
}

// VirusTotalConfig represents the VirusTotal API
type VirusTotalConfig struct {
	Enabled      bool
	APIKey       string
	BaseURL      string
	Timeout      time.Duration
	PollInterval time.Duration
	MaxPolls     int
	MaxURLs      int
}

// CacheConfig represents the reputation cache
type CacheConfig struct {
	Type             string
	Enabled          bool
	TTL              time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
}

// DatasetConfig represents dataset construction
type DatasetConfig struct {
	PhishingDir   string
	LegitimateDir string
	Output        string
	Extensions    []string
	Workers       int
	Seed          int64
}

// TrainingConfig represents forest training
type TrainingConfig struct {
	Trees        int
	MaxDepth     int
	MinLeaf      int
	TestFraction float64
	Seed         int64
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GetModel returns the model configuration
func (c *Config) GetModel() ModelConfig {
	return ModelConfig{
		Path:       c.GetString("model.path"),
		SchemaPath: c.GetString("model.schema_path"),
		TopN:       c.GetInt("model.top_n"),
	}
}

// GetFeatures returns the feature table configuration
func (c *Config) GetFeatures() FeaturesConfig {
	return FeaturesConfig{
		Brands:     c.GetStringMapString("features.brands"),
		Shorteners: c.GetStringSlice("features.shorteners"),
		Keywords:   c.GetStringSlice("features.keywords"),
	}
}

// GetServer returns the server configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		FilterType:     c.GetString("server.filter_type"),
		HTTPAddress:    c.GetString("server.http_address"),
		ListenAddress:  c.GetString("server.listen_address"),
		ForwardAddress: c.GetString("server.forward_address"),
		BlockPhishing:  c.GetBool("server.block_phishing"),
		BlockThreshold: c.GetFloat64("server.block_threshold"),
		MaxUploadSize:  c.GetInt("server.max_upload_size"),
		Debug:          c.GetBool("server.debug"),
		Headers: HeadersConfig{
			Status:     c.GetString("server.headers.status"),
			Confidence: c.GetString("server.headers.confidence"),
			Reasons:    c.GetString("server.headers.reasons"),
		},
	}
}

// GetEnrichment returns the enrichment configuration
func (c *Config) GetEnrichment() EnrichmentConfig {
	return EnrichmentConfig{
		Enabled: c.GetBool("enrichment.enabled"),
		Timeout: c.durationOr("enrichment.timeout", 20*time.Second),
		Advisor: c.GetString("enrichment.advisor"),
	}
}

// GetOpenPhish returns the OpenPhish configuration
func (c *Config) GetOpenPhish() OpenPhishConfig {
	return OpenPhishConfig{
		Enabled: c.GetBool("openphish.enabled"),
		FeedURL: c.GetString("openphish.feed_url"),
		Timeout: c.durationOr("openphish.timeout", 10*time.Second),
		Refresh: c.durationOr("openphish.refresh", time.Hour),
	}
}

// GetVirusTotal returns the VirusTotal configuration
func (c *Config) GetVirusTotal() VirusTotalConfig {
	return VirusTotalConfig{
		Enabled:      c.GetBool("virustotal.enabled"),
		APIKey:       c.GetString("virustotal.api_key"),
		BaseURL:      c.GetString("virustotal.base_url"),
		Timeout:      c.durationOr("virustotal.timeout", 15*time.Second),
		PollInterval: c.durationOr("virustotal.poll_interval", 15*time.Second),
		MaxPolls:     c.GetInt("virustotal.max_polls"),
		MaxURLs:      c.GetInt("virustotal.max_urls"),
	}
}

// GetCache returns the cache configuration
func (c *Config) GetCache() CacheConfig {
	return CacheConfig{
		Type:             c.GetString("cache.type"),
		Enabled:          c.GetBool("cache.enabled"),
		TTL:              c.durationOr("cache.ttl", 24*time.Hour),
		CleanupFrequency: c.durationOr("cache.cleanup_frequency", time.Hour),
		SQLitePath:       c.GetString("cache.sqlite_path"),
		MySQLDSN:         c.GetString("cache.mysql_dsn"),
		RedisAddr:        c.GetString("cache.redis_addr"),
		RedisPassword:    c.GetString("cache.redis_password"),
		RedisDB:          c.GetInt("cache.redis_db"),
	}
}

// GetDataset returns the dataset configuration
func (c *Config) GetDataset() DatasetConfig {
	return DatasetConfig{
		PhishingDir:   c.GetString("dataset.phishing_dir"),
		LegitimateDir: c.GetString("dataset.legitimate_dir"),
		Output:        c.GetString("dataset.output"),
		Extensions:    c.GetStringSlice("dataset.extensions"),
		Workers:       c.GetInt("dataset.workers"),
		Seed:          int64(c.GetInt("dataset.seed")),
	}
}

// GetTraining returns the training configuration
func (c *Config) GetTraining() TrainingConfig {
	return TrainingConfig{
		Trees:        c.GetInt("training.trees"),
		MaxDepth:     c.GetInt("training.max_depth"),
		MinLeaf:      c.GetInt("training.min_leaf"),
		TestFraction: c.GetFloat64("training.test_fraction"),
		Seed:         int64(c.GetInt("training.seed")),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}
