package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/harun/mindvault/internal/config"
	"github.com/harun/mindvault/internal/observability"
	"github.com/harun/mindvault/pkg/memory"
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete memories by id",
	Long:  `Delete memories by id. Unknown ids are ignored.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(ctx context.Context, _ *config.Config, engine *memory.Engine) error {
		result, err := memory.MemoryDelete(ctx, engine, memory.MemoryDeleteParams{IDs: args})
		if err != nil {
			observability.RecordMemoryAudit(ctx, "memory_delete", observability.ActorCLI, err, nil)
			return err
		}
		observability.RecordMemoryAudit(ctx, "memory_delete", observability.ActorCLI, nil, map[string]interface{}{
			"requested": args,
			"deleted":   result.Deleted,
		})

		if result.Deleted == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), color.YellowString("No matching memories"))
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted %d of %d\n", color.GreenString("✓"), result.Deleted, len(args))
		return nil
	})
}
