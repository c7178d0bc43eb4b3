package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/ingestor/internal/control"
	"github.com/vietddude/ingestor/internal/core/domain"
)

var hardReset bool

var resetCursorCmd = &cobra.Command{
	Use:   "reset-cursor [source_id]",
	Short: "Clear the cursor state of a source so the next tick onboards it again",
	Args:  cobra.ExactArgs(1),
	Run:   runResetCursor,
}

func init() {
	resetCursorCmd.Flags().BoolVar(&hardReset, "hard", false, "delete the trigger entirely, including its creation time")
	rootCmd.AddCommand(resetCursorCmd)
}

func runResetCursor(cmd *cobra.Command, args []string) {
	sourceID := domain.SourceID(args[0])
	cfg := loadConfig()

	ctx := context.Background()
	store, err := control.OpenStorage(ctx, *cfg)
	if err != nil {
		slog.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = store.Close()
	}()

	if hardReset {
		err = store.Triggers.Delete(ctx, sourceID)
	} else {
		err = store.Triggers.ResetState(ctx, sourceID)
	}
	if err != nil {
		slog.Error("Failed to reset cursor", "source", sourceID, "error", err)
		os.Exit(1)
	}

	fmt.Printf("Successfully reset cursor for %s\n", sourceID)
}
