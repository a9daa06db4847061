package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the spam detection service configuration
type Config struct {
	// Pretrained artifact locations
	Model ModelConfig `yaml:"model"`

	// HTTP service settings
	Server ServerConfig `yaml:"server"`

	// Where batch result files are written
	Storage StorageConfig `yaml:"storage"`

	// Batch processing settings
	Batch BatchConfig `yaml:"batch"`

	// Optional Redis prediction cache
	Cache CacheConfig `yaml:"cache"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging"`

	// Milter server settings
	Milter MilterConfig `yaml:"milter"`
}

// ModelConfig names the artifact directory and the three files inside it
type ModelConfig struct {
	Dir        string `yaml:"dir"`
	Vectorizer string `yaml:"vectorizer"`
	Scaler     string `yaml:"scaler"`
	Classifier string `yaml:"classifier"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Listen            string   `yaml:"listen"`
	MaxUploadMB       int      `yaml:"max_upload_mb"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
	AllowedOrigins    string   `yaml:"allowed_origins"` // comma separated, "*" = any

	ReadTimeout     string `yaml:"read_timeout"`     // Duration string like "30s"
	WriteTimeout    string `yaml:"write_timeout"`    // Duration string like "60s"
	ShutdownTimeout string `yaml:"shutdown_timeout"` // Duration string like "10s"
}

// StorageConfig contains result file storage settings
type StorageConfig struct {
	ResultsDir string `yaml:"results_dir"`
}

// BatchConfig contains CSV batch settings
type BatchConfig struct {
	PreviewRows   int `yaml:"preview_rows"`   // rows echoed back in the summary
	ProgressEvery int `yaml:"progress_every"` // log progress every N rows, 0 = never
}

// CacheConfig contains Redis prediction cache settings
type CacheConfig struct {
	Enabled     bool   `yaml:"enabled"`
	RedisURL    string `yaml:"redis_url"`
	KeyPrefix   string `yaml:"key_prefix"`
	DatabaseNum int    `yaml:"database_num"`
	TTL         string `yaml:"ttl"` // Duration string like "24h"
	TimeoutMs   int    `yaml:"timeout_ms"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	File   string `yaml:"file"`   // log file path, empty = stderr
	Format string `yaml:"format"` // json, text
}

// MilterConfig contains milter server settings
type MilterConfig struct {
	// Network and address for milter socket
	Network string `yaml:"network"` // "tcp" or "unix"
	Address string `yaml:"address"` // "127.0.0.1:7357" or "/tmp/zpam.sock"

	// Connection settings
	ReadTimeoutMs  int `yaml:"read_timeout_ms"`
	WriteTimeoutMs int `yaml:"write_timeout_ms"`

	// Performance
	MaxBodyBytes            int `yaml:"max_body_bytes"`
	GracefulShutdownTimeout int `yaml:"graceful_shutdown_timeout_ms"`

	// Response modes
	RejectConfidence float64 `yaml:"reject_confidence"` // reject spam at or above this confidence, 0 = never
	RejectMessage    string  `yaml:"reject_message"`

	// Header modifications
	AddSpamHeaders   bool   `yaml:"add_spam_headers"`
	SpamHeaderPrefix string `yaml:"spam_header_prefix"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Dir:        "model",
			Vectorizer: "tfidf_vectoriser.json",
			Scaler:     "scaler.json",
			Classifier: "best_model.json",
		},
		Server: ServerConfig{
			Listen:            ":5001",
			MaxUploadMB:       16,
			AllowedExtensions: []string{"csv"},
			AllowedOrigins:    "*",
			ReadTimeout:       "30s",
			WriteTimeout:      "120s",
			ShutdownTimeout:   "10s",
		},
		Storage: StorageConfig{
			ResultsDir: "uploads",
		},
		Batch: BatchConfig{
			PreviewRows:   10,
			ProgressEvery: 1000,
		},
		Cache: CacheConfig{
			Enabled:     false,
			RedisURL:    "redis://localhost:6379",
			KeyPrefix:   "zpam:predict",
			DatabaseNum: 0,
			TTL:         "24h",
			TimeoutMs:   200,
		},
		Logging: LoggingConfig{
			Level:  "info",
			File:   "",
			Format: "json",
		},
		Milter: MilterConfig{
			Network:                 "tcp",
			Address:                 "127.0.0.1:7357",
			ReadTimeoutMs:           10000,
			WriteTimeoutMs:          10000,
			MaxBodyBytes:            1 << 20,
			GracefulShutdownTimeout: 30000,
			RejectConfidence:        0,
			RejectMessage:           "Message rejected as spam",
			AddSpamHeaders:          true,
			SpamHeaderPrefix:        "X-Spam-",
		},
	}
}

// LoadConfig loads configuration from file, falling back to defaults when path is empty
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath == "" {
		return config, nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// SaveConfig saves configuration to file
func (c *Config) SaveConfig(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides selected settings from the environment
func (c *Config) ApplyEnv() {
	c.Model.Dir = getEnv("ZPAM_MODEL_DIR", c.Model.Dir)
	c.Storage.ResultsDir = getEnv("ZPAM_RESULTS_DIR", c.Storage.ResultsDir)
	c.Logging.Level = getEnv("ZPAM_LOG_LEVEL", c.Logging.Level)

	if port := os.Getenv("PORT"); port != "" {
		c.Server.Listen = ":" + port
	}
	c.Server.Listen = getEnv("ZPAM_LISTEN", c.Server.Listen)
	c.Server.MaxUploadMB = getEnvInt("ZPAM_MAX_UPLOAD_MB", c.Server.MaxUploadMB)

	if url := os.Getenv("ZPAM_REDIS_URL"); url != "" {
		c.Cache.RedisURL = url
		c.Cache.Enabled = true
	}
	c.Cache.Enabled = getEnvBool("ZPAM_CACHE_ENABLED", c.Cache.Enabled)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Model.Dir == "" {
		return fmt.Errorf("model dir cannot be empty")
	}
	if c.Model.Vectorizer == "" || c.Model.Scaler == "" || c.Model.Classifier == "" {
		return fmt.Errorf("model vectorizer, scaler and classifier file names are required")
	}

	if c.Server.Listen == "" {
		return fmt.Errorf("server listen address cannot be empty")
	}
	if c.Server.MaxUploadMB < 1 {
		return fmt.Errorf("server max_upload_mb must be >= 1")
	}
	if len(c.Server.AllowedExtensions) == 0 {
		return fmt.Errorf("server allowed_extensions cannot be empty")
	}
	for name, value := range map[string]string{
		"read_timeout":     c.Server.ReadTimeout,
		"write_timeout":    c.Server.WriteTimeout,
		"shutdown_timeout": c.Server.ShutdownTimeout,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid server %s: %q", name, value)
		}
	}

	if c.Storage.ResultsDir == "" {
		return fmt.Errorf("storage results_dir cannot be empty")
	}

	if c.Batch.PreviewRows < 0 {
		return fmt.Errorf("batch preview_rows must be >= 0")
	}
	if c.Batch.ProgressEvery < 0 {
		return fmt.Errorf("batch progress_every must be >= 0")
	}

	if c.Cache.Enabled {
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("cache redis_url cannot be empty when enabled")
		}
		if _, err := time.ParseDuration(c.Cache.TTL); err != nil {
			return fmt.Errorf("invalid cache ttl: %q", c.Cache.TTL)
		}
		if c.Cache.TimeoutMs < 1 {
			return fmt.Errorf("cache timeout_ms must be >= 1")
		}
	}

	validLevel := false
	for _, level := range []string{"debug", "info", "warn", "error"} {
		if c.Logging.Level == level {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("logging format must be 'json' or 'text'")
	}

	if c.Milter.Network != "tcp" && c.Milter.Network != "unix" {
		return fmt.Errorf("milter network must be 'tcp' or 'unix'")
	}
	if c.Milter.Address == "" {
		return fmt.Errorf("milter address cannot be empty")
	}
	if c.Milter.ReadTimeoutMs < 1000 {
		return fmt.Errorf("milter read_timeout_ms must be >= 1000")
	}
	if c.Milter.WriteTimeoutMs < 1000 {
		return fmt.Errorf("milter write_timeout_ms must be >= 1000")
	}
	if c.Milter.RejectConfidence < 0 || c.Milter.RejectConfidence > 1 {
		return fmt.Errorf("milter reject_confidence must be between 0 and 1")
	}

	return nil
}

// IsAllowedExtension reports whether filename carries one of the configured upload extensions
func (c *Config) IsAllowedExtension(filename string) bool {
	dot := strings.LastIndex(filename, ".")
	if dot < 0 {
		return false
	}
	ext := strings.ToLower(filename[dot+1:])
	for _, allowed := range c.Server.AllowedExtensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

// Duration parses a duration string that Validate has already checked
func Duration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
