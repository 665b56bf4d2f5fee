package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/harun/mindvault/internal/config"
	"github.com/harun/mindvault/pkg/memory"
	"github.com/spf13/cobra"
)

var (
	searchLimit     int
	searchTypes     []string
	searchMaxTokens int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search memories",
	Long:  `Search memories with hybrid keyword and vector retrieval and print the compressed context.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "maximum number of memories (default from config)")
	searchCmd.Flags().StringSliceVar(&searchTypes, "type", nil, "restrict to memory type (repeatable)")
	searchCmd.Flags().IntVar(&searchMaxTokens, "max-tokens", 0, "context token budget (default from config)")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	return withEngine(cmd, func(ctx context.Context, cfg *config.Config, engine *memory.Engine) error {
		limit := searchLimit
		if limit == 0 {
			limit = cfg.Search.Limit
		}
		maxTokens := searchMaxTokens
		if maxTokens == 0 {
			maxTokens = cfg.Search.MaxTokens
		}

		result, err := memory.MemorySearch(ctx, engine, memory.MemorySearchParams{
			Query:     query,
			Limit:     limit,
			Types:     searchTypes,
			MaxTokens: maxTokens,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if result.Count == 0 {
			fmt.Fprintln(out, color.YellowString("%s", result.Context))
			return nil
		}

		fmt.Fprintln(out, color.CyanString("%d memories for %q", result.Count, result.Query))
		fmt.Fprintln(out)
		fmt.Fprintln(out, result.Context)
		return nil
	})
}
