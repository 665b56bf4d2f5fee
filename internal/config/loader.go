package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment override, e.g. MINDVAULT_STORAGE_PATH
	EnvPrefix = "MINDVAULT"

	// OpenAIKeyEnv is read when no embedding key is configured
	OpenAIKeyEnv = "OPENAI_API_KEY"

	dirName        = ".mindvault"
	configFileName = "config.json"
	storageDirName = "storage"
)

// Loader handles configuration loading
type Loader struct {
	configPath string
	flags      map[string]*pflag.Flag
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
		flags:      make(map[string]*pflag.Flag),
	}
}

// BindFlag makes a command-line flag override the config key when the flag is set
func (l *Loader) BindFlag(key string, flag *pflag.Flag) {
	if flag != nil {
		l.flags[key] = flag
	}
}

// Load resolves the configuration. Precedence: flag > env > file > default.
func (l *Loader) Load() (*Config, error) {
	configPath, err := l.resolveConfigPath()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("json")
	setDefaults(v, DefaultConfig())

	// Read environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, flag := range l.flags {
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", flag.Name, err)
		}
	}

	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err):
		// Defaults plus overrides
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := validateSchema(data); err != nil {
			return nil, fmt.Errorf("%s: %w", configPath, err)
		}
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal into config struct
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = os.Getenv(OpenAIKeyEnv)
	}

	storagePath, err := ResolveStoragePath(cfg.StoragePath)
	if err != nil {
		return nil, err
	}
	cfg.StoragePath = storagePath

	if cfg.Logging.File, err = expandHome(cfg.Logging.File); err != nil {
		return nil, err
	}
	if cfg.Logging.AuditFile, err = expandHome(cfg.Logging.AuditFile); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes cfg to the config file, creating its directory if needed
func (l *Loader) Save(cfg *Config) error {
	configPath, err := l.resolveConfigPath()
	if err != nil {
		return err
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("json")

	// Set all config values
	v.Set("storage_path", cfg.StoragePath)
	v.Set("embedding", cfg.Embedding)
	v.Set("search", cfg.Search)
	v.Set("logging", cfg.Logging)
	v.Set("maintenance", cfg.Maintenance)
	v.Set("metrics", cfg.Metrics)
	v.Set("tracing", cfg.Tracing)

	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	// The file may hold an API key
	if err := os.Chmod(configPath, 0600); err != nil {
		return fmt.Errorf("failed to restrict config file permissions: %w", err)
	}

	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	path, err := l.resolveConfigPath()
	if err != nil {
		return ""
	}
	return path
}

func (l *Loader) resolveConfigPath() (string, error) {
	if l.configPath != "" {
		return expandHome(l.configPath)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, dirName, configFileName), nil
}

// ResolveStoragePath turns a configured storage path into an absolute directory.
// Empty means ~/.mindvault/storage; relative paths resolve against the home directory.
func ResolveStoragePath(path string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	path = strings.TrimSpace(path)
	switch {
	case path == "":
		return filepath.Join(home, dirName, storageDirName), nil
	case path == "~":
		return home, nil
	case strings.HasPrefix(path, "~/"):
		return filepath.Join(home, path[2:]), nil
	case filepath.IsAbs(path):
		return filepath.Clean(path), nil
	default:
		return filepath.Join(home, path), nil
	}
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// setDefaults registers every key so environment overrides apply even without a config file
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("storage_path", cfg.StoragePath)

	v.SetDefault("embedding.api_key", cfg.Embedding.APIKey)
	v.SetDefault("embedding.model", cfg.Embedding.Model)

	v.SetDefault("search.limit", cfg.Search.Limit)
	v.SetDefault("search.max_tokens", cfg.Search.MaxTokens)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.max_size", cfg.Logging.MaxSize)
	v.SetDefault("logging.max_age", cfg.Logging.MaxAge)
	v.SetDefault("logging.compress", cfg.Logging.Compress)
	v.SetDefault("logging.redaction", cfg.Logging.Redaction)
	v.SetDefault("logging.pretty", cfg.Logging.Pretty)
	v.SetDefault("logging.audit_file", cfg.Logging.AuditFile)

	v.SetDefault("maintenance.enabled", cfg.Maintenance.Enabled)
	v.SetDefault("maintenance.schedule", cfg.Maintenance.Schedule)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.addr", cfg.Metrics.Addr)

	v.SetDefault("tracing.endpoint", cfg.Tracing.Endpoint)
	v.SetDefault("tracing.insecure", cfg.Tracing.Insecure)
	v.SetDefault("tracing.sample_ratio", cfg.Tracing.SampleRatio)
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}
