package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/harun/mindvault/internal/config"
	"github.com/harun/mindvault/internal/observability"
	"github.com/harun/mindvault/pkg/memory"
	"github.com/spf13/cobra"
)

var (
	addType     string
	addSummary  string
	addTags     []string
	addFileRefs []string
)

var addCmd = &cobra.Command{
	Use:   "add [content]",
	Short: "Store a memory",
	Long: `Store a memory. The content is taken from the arguments, or from stdin when none are given.
Without --summary the first 500 characters of the content are used as the summary.`,
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addType, "type", string(memory.DefaultType), "memory type (session_memory, long_term_memory, project_memory)")
	addCmd.Flags().StringVar(&addSummary, "summary", "", "short summary of the content")
	addCmd.Flags().StringSliceVar(&addTags, "tag", nil, "tag to attach (repeatable)")
	addCmd.Flags().StringSliceVar(&addFileRefs, "file", nil, "related file path (repeatable)")
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	content := strings.Join(args, " ")
	if len(args) == 0 {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read content from stdin: %w", err)
		}
		content = string(data)
	}

	return withEngine(cmd, func(ctx context.Context, _ *config.Config, engine *memory.Engine) error {
		result, err := memory.MemoryAdd(ctx, engine, memory.MemoryAddParams{
			Type:     addType,
			Content:  content,
			Summary:  addSummary,
			Tags:     addTags,
			FileRefs: addFileRefs,
		})
		if err != nil {
			observability.RecordMemoryAudit(ctx, "memory_add", observability.ActorCLI, err, nil)
			return err
		}
		observability.RecordMemoryAudit(ctx, "memory_add", observability.ActorCLI, nil, map[string]interface{}{"id": result.ID})

		fmt.Fprintf(cmd.OutOrStdout(), "%s Stored memory %s\n", color.GreenString("✓"), result.ID)
		return nil
	})
}
