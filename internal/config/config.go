package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harun/mindvault/pkg/memory"
)

// Config represents the main mindvault configuration
type Config struct {
	// Storage directory holding memory.db. Relative paths resolve against the home directory.
	StoragePath string `json:"storage_path" mapstructure:"storage_path"`

	// Embedding provider
	Embedding EmbeddingConfig `json:"embedding" mapstructure:"embedding"`

	// Search defaults used by the CLI
	Search SearchConfig `json:"search" mapstructure:"search"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Maintenance schedule
	Maintenance MaintenanceConfig `json:"maintenance" mapstructure:"maintenance"`

	// Metrics endpoint
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Tracing export
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`
}

// EmbeddingConfig holds embedding provider configuration
type EmbeddingConfig struct {
	APIKey string `json:"api_key" mapstructure:"api_key"`
	Model  string `json:"model" mapstructure:"model"`
}

// Enabled reports whether an API key is configured
func (e EmbeddingConfig) Enabled() bool {
	return e.APIKey != ""
}

// SearchConfig holds retrieval defaults
type SearchConfig struct {
	Limit     int `json:"limit" mapstructure:"limit"`
	MaxTokens int `json:"max_tokens" mapstructure:"max_tokens"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	AuditFile string `json:"audit_file" mapstructure:"audit_file"` // memory mutation trail, empty disables
}

// MaintenanceConfig holds the store maintenance schedule
type MaintenanceConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Schedule string `json:"schedule" mapstructure:"schedule"` // five-field cron expression
}

// MetricsConfig holds the prometheus endpoint configuration
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// TracingConfig holds OTLP export configuration
type TracingConfig struct {
	Endpoint    string  `json:"endpoint" mapstructure:"endpoint"`
	Insecure    bool    `json:"insecure" mapstructure:"insecure"`
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		StoragePath: "",
		Embedding: EmbeddingConfig{
			Model: memory.DefaultEmbeddingModel,
		},
		Search: SearchConfig{
			Limit:     memory.DefaultRetrieveLimit,
			MaxTokens: memory.DefaultMaxTokens,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
			Pretty:    true,
		},
		Maintenance: MaintenanceConfig{
			Enabled:  true,
			Schedule: memory.DefaultMaintenanceSchedule,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
		},
		Tracing: TracingConfig{
			SampleRatio: 1,
		},
	}
}

// String returns a JSON representation of the config with secrets masked
func (c *Config) String() string {
	masked := *c
	if masked.Embedding.APIKey != "" {
		masked.Embedding.APIKey = maskSecret(masked.Embedding.APIKey)
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.StoragePath) == "" {
		return fmt.Errorf("storage_path is required")
	}

	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}

	if c.Search.Limit < 1 || c.Search.Limit > memory.MaxRetrieveLimit {
		return fmt.Errorf("search.limit must be between 1 and %d, got %d", memory.MaxRetrieveLimit, c.Search.Limit)
	}
	if c.Search.MaxTokens < 1 {
		return fmt.Errorf("search.max_tokens must be positive, got %d", c.Search.MaxTokens)
	}

	if c.Maintenance.Enabled {
		if err := memory.ValidateSchedule(c.Maintenance.Schedule); err != nil {
			return fmt.Errorf("maintenance.schedule: %w", err)
		}
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics are enabled")
	}

	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be between 0 and 1, got %g", c.Tracing.SampleRatio)
	}

	return nil
}

func maskSecret(s string) string {
	if len(s) <= 8 {
		return "****"
	}
	return s[:3] + "..." + s[len(s)-4:]
}
