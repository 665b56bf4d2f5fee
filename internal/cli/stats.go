package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/harun/mindvault/internal/config"
	"github.com/harun/mindvault/pkg/memory"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show memory store statistics",
	Long:  `Show the storage location and the number of stored memories by type.`,
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(ctx context.Context, cfg *config.Config, engine *memory.Engine) error {
		stats, err := memory.MemoryStats(ctx, engine)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		label := color.New(color.Bold).SprintFunc()

		fmt.Fprintf(out, "%s %s\n", label("Storage:"), engine.Store().Path())
		fmt.Fprintf(out, "%s %s\n", label("Embeddings:"), embeddingStatus(cfg))
		fmt.Fprintf(out, "%s %d\n", label("Total:"), stats.Total)
		for _, t := range memory.AllTypes {
			fmt.Fprintf(out, "  %-18s %d\n", t, stats.ByType[t])
		}
		return nil
	})
}

func embeddingStatus(cfg *config.Config) string {
	if !cfg.Embedding.Enabled() {
		return color.YellowString("disabled (keyword search only)")
	}
	return color.GreenString("%s", cfg.Embedding.Model)
}
