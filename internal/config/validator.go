package config

import (
	"fmt"
	"strings"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

var knownEmbeddingModels = []string{
	"text-embedding-3-small",
	"text-embedding-3-large",
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string) error {
	if key == "" {
		return nil // embeddings are optional
	}
	if !strings.HasPrefix(key, "sk-") {
		return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
	}
	return nil
}

// ValidateEmbeddingModel validates an embedding model name
func (v *Validator) ValidateEmbeddingModel(model string) error {
	if model == "" {
		return fmt.Errorf("embedding model cannot be empty")
	}
	for _, known := range knownEmbeddingModels {
		if model == known {
			return nil
		}
	}
	return fmt.Errorf("unknown embedding model: %s (known: %s)", model, strings.Join(knownEmbeddingModels, ", "))
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateConfig reports every problem found, including ones Config.Validate tolerates
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := cfg.Validate(); err != nil {
		errors = append(errors, err)
	}

	if err := v.ValidateAPIKey(cfg.Embedding.APIKey); err != nil {
		errors = append(errors, err)
	}

	if err := v.ValidateEmbeddingModel(cfg.Embedding.Model); err != nil {
		errors = append(errors, err)
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	if cfg.Logging.MaxSize < 0 {
		errors = append(errors, fmt.Errorf("logging.max_size must be >= 0"))
	}
	if cfg.Logging.MaxAge < 0 {
		errors = append(errors, fmt.Errorf("logging.max_age must be >= 0"))
	}

	return errors
}
