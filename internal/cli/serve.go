package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harun/mindvault/internal/config"
	"github.com/harun/mindvault/internal/mcpserver"
	"github.com/harun/mindvault/internal/observability"
	"github.com/harun/mindvault/internal/tracing"
	"github.com/harun/mindvault/pkg/memory"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the memory tools over MCP stdio",
	Long: `Serve memory_search, memory_add, memory_delete and memory_stats to an MCP client
over stdin/stdout. Logs go to stderr. The embedding provider follows config file changes
without a restart.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	loader := newLoader()
	cfg, err := loadConfig(loader)
	if err != nil {
		return err
	}

	log, err := newLogger(cmd, cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()
	zl := log.GetZerolog()

	closeAudit, err := initAudit(cfg)
	if err != nil {
		return err
	}
	defer closeAudit()

	if err := tracing.InitOpenTelemetry(tracing.Options{
		ServiceName:    "mindvault",
		ServiceVersion: version,
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		SampleRatio:    cfg.Tracing.SampleRatio,
	}); err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tracing.ShutdownOpenTelemetry(ctx); err != nil {
			zl.Warn().Err(err).Msg("Tracing shutdown failed")
		}
	}()

	engine, err := openEngine(cfg, zl.With().Str("component", "memory").Logger())
	if err != nil {
		return err
	}
	defer engine.Close()

	zl.Info().
		Str("storage", engine.Store().Path()).
		Bool("embeddings", cfg.Embedding.Enabled()).
		Msg("Memory store opened")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if watcher := watchEmbeddingConfig(loader, cfg, engine, zl); watcher != nil {
		defer watcher.Stop()
	}

	if cfg.Maintenance.Enabled {
		maintenance, err := memory.NewMaintenance(engine, cfg.Maintenance.Schedule, zl)
		if err != nil {
			return err
		}
		if err := maintenance.Start(); err != nil {
			return err
		}
		defer maintenance.Stop()
	}

	if cfg.Metrics.Enabled {
		srv := startMetricsServer(cfg.Metrics.Addr, zl)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	server, err := mcpserver.New(engine, mcpserver.Options{
		Name:    "mindvault",
		Version: version,
		Logger:  zl.With().Str("component", "mcp").Logger(),
	})
	if err != nil {
		return err
	}

	if err := server.Run(ctx); err != nil {
		return err
	}

	zl.Info().Msg("Shutting down")
	return nil
}

// watchEmbeddingConfig swaps the engine's embedding provider when the key or model changes on disk.
// A nil watcher means the config directory could not be watched.
func watchEmbeddingConfig(loader *config.Loader, cfg *config.Config, engine *memory.Engine, log zerolog.Logger) *config.Watcher {
	current := cfg.Embedding
	watcher, err := config.NewWatcher(loader, log, func(next *config.Config) {
		if next.Embedding == current {
			return
		}
		current = next.Embedding
		engine.SetEmbeddingProvider(memory.NewProvider(current.APIKey, current.Model))
		observability.RecordConfigAudit(context.Background(), "embedding_provider_updated", observability.ActorMCP, map[string]interface{}{
			"enabled": current.Enabled(),
			"model":   current.Model,
		})
		log.Info().
			Bool("embeddings", current.Enabled()).
			Str("model", current.Model).
			Msg("Embedding provider updated")
	})
	if err != nil {
		log.Warn().Err(err).Msg("Config watcher disabled")
		return nil
	}
	return watcher
}

func startMetricsServer(addr string, log zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	return srv
}
