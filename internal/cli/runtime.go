package cli

import (
	"context"
	"fmt"

	"github.com/harun/mindvault/internal/config"
	"github.com/harun/mindvault/internal/logger"
	"github.com/harun/mindvault/internal/observability"
	"github.com/harun/mindvault/pkg/memory"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// loadConfig loads and validates the effective configuration
func loadConfig(loader *config.Loader) (*config.Config, error) {
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. Console output goes to the command's stderr.
func newLogger(cmd *cobra.Command, cfg *config.Config) (*logger.Logger, error) {
	return logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Output:    cmd.ErrOrStderr(),
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
	})
}

// initAudit opens the audit trail when one is configured. The returned func closes it.
func initAudit(cfg *config.Config) (func(), error) {
	if cfg.Logging.AuditFile == "" {
		return func() {}, nil
	}
	if err := observability.InitAuditLogger(cfg.Logging.AuditFile); err != nil {
		return nil, err
	}
	return func() { observability.CloseAuditLogger() }, nil
}

func openEngine(cfg *config.Config, log zerolog.Logger) (*memory.Engine, error) {
	engine, err := memory.NewEngine(memory.Config{
		StoragePath:       cfg.StoragePath,
		Logger:            log,
		EmbeddingProvider: memory.NewProvider(cfg.Embedding.APIKey, cfg.Embedding.Model),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open memory store: %w", err)
	}
	return engine, nil
}

// withEngine runs fn against an engine opened from the current configuration
func withEngine(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.Config, engine *memory.Engine) error) error {
	cfg, err := loadConfig(newLoader())
	if err != nil {
		return err
	}

	log, err := newLogger(cmd, cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	closeAudit, err := initAudit(cfg)
	if err != nil {
		return err
	}
	defer closeAudit()

	engine, err := openEngine(cfg, log.With().Str("component", "memory").Logger())
	if err != nil {
		return err
	}
	defer engine.Close()

	return fn(cmd.Context(), cfg, engine)
}
