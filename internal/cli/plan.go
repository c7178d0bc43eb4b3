package cli

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/ingestor/internal/control"
	"github.com/vietddude/ingestor/internal/core/cursor"
	"github.com/vietddude/ingestor/internal/core/domain"
	"github.com/vietddude/ingestor/internal/infra/storage"
)

var (
	planSteps int
	planEvery time.Duration
	planAt    string
)

var planCmd = &cobra.Command{
	Use:   "plan [source_id]",
	Short: "Print the next windows of a source without dispatching or persisting them",
	Args:  cobra.ExactArgs(1),
	Run:   runPlan,
}

func init() {
	planCmd.Flags().IntVar(&planSteps, "steps", 1, "number of consecutive windows to plan")
	planCmd.Flags().DurationVar(&planEvery, "every", time.Minute, "simulated time between ticks")
	planCmd.Flags().StringVar(&planAt, "at", "", "simulated time of the first tick (RFC3339, default now)")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) {
	sourceID := domain.SourceID(args[0])
	cfg := loadConfig()

	src, ok := cfg.Source(sourceID)
	if !ok {
		slog.Error("Unknown source", "source", sourceID)
		os.Exit(1)
	}

	start := time.Now().UTC()
	if planAt != "" {
		var err error
		if start, err = time.Parse(time.RFC3339, planAt); err != nil {
			slog.Error("Invalid --at", "error", err)
			os.Exit(1)
		}
	}

	strategy, err := cursor.New(src.Strategy)
	if err != nil {
		slog.Error("Invalid strategy", "source", sourceID, "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	store, err := control.OpenStorage(ctx, *cfg)
	if err != nil {
		slog.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = store.Close()
	}()

	trigger, err := store.Triggers.Get(ctx, sourceID)
	switch {
	case errors.Is(err, storage.ErrTriggerNotFound):
		trigger = domain.NewTrigger(sourceID, strategy.Kind(), start)
	case err != nil:
		slog.Error("Failed to load trigger", "source", sourceID, "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cursor.Simulate(strategy, trigger, start, planSteps, planEvery)); err != nil {
		slog.Error("Failed to encode plan", "error", err)
		os.Exit(1)
	}
}
