package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/ingestor/internal/control"
	"github.com/vietddude/ingestor/internal/core/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the persisted cursor state of all sources",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if cfg.Database.URL == "" {
		slog.Warn("No database configured, in-memory state is empty")
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

	triggers, err := store.Triggers.List(ctx)
	if err != nil {
		slog.Error("Failed to list triggers", "error", err)
		os.Exit(1)
	}
	byID := make(map[domain.SourceID]*domain.Trigger, len(triggers))
	for _, t := range triggers {
		byID[t.SourceID] = t
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "SOURCE\tSTRATEGY\tPHASE\tPROGRESS\tLAST FULL SCAN\tFORWARD\tBACKWARD\tLAST LEG\tVERSION")

	for _, src := range cfg.Sources {
		t, ok := byID[src.ID]
		if !ok {
			_, _ = fmt.Fprintf(w, "%s\t%s\tnot started\t-\t-\t-\t-\t-\t-\n", src.ID, src.Strategy.Kind)
			continue
		}
		delete(byID, src.ID)
		printTrigger(w, t, src.Strategy.OnboardingLookback)
	}
	// Triggers of sources no longer in the config.
	for _, t := range triggers {
		if _, ok := byID[t.SourceID]; ok {
			printTrigger(w, t, 0)
		}
	}
	_ = w.Flush()
}

func printTrigger(w *tabwriter.Writer, t *domain.Trigger, lookback time.Duration) {
	lastLeg := "-"
	if t.LastScanType != domain.ScanTypeNone {
		lastLeg = fmt.Sprintf("%s x%d", t.LastScanType, t.LastScanTypeCount)
	}
	_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.0f%%\t%s\t%s\t%s\t%s\t%d\n",
		t.SourceID,
		t.Strategy,
		t.Phase(),
		t.BackfillProgress(lookback)*100,
		formatTime(t.LastFullScan),
		formatTime(t.ForwardCursor),
		formatTime(t.BackwardCursor),
		lastLeg,
		t.Version,
	)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
