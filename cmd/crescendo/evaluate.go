package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/crescendoapp/crescendo/internal/cli"
	"github.com/crescendoapp/crescendo/internal/model"
	"github.com/crescendoapp/crescendo/internal/score"
	"github.com/crescendoapp/crescendo/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate <tenant-id> <user-id>",
		Short: "Score a subject and show their ranks",
		Long: `Run the full scoring pipeline for one (tenant, user) pair: aggregate
settled activity, score both axes plus the composite blend, and report
any rank transition. Rewards for crossed rank boundaries are issued as
part of the run.`,
		Args: cobra.ExactArgs(2),
		RunE: runEvaluate,
	}

	cmd.Flags().Bool("json", false, "Emit the snapshot as JSON instead of styled output")
	_ = viper.BindPFlag("evaluate.json", cmd.Flags().Lookup("json"))

	return cmd
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	tenantID, userID := args[0], args[1]

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	eng := buildEngine(store)

	snapshot, err := eng.Evaluate(ctx, tenantID, userID)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	if viper.GetBool("evaluate.json") {
		return printSnapshotJSON(cmd, snapshot)
	}

	printSnapshot(ctx, cmd, store, tenantID, snapshot)
	return nil
}

func printSnapshot(ctx context.Context, cmd *cobra.Command, store *storage.SQLiteStorage, tenantID string, snapshot *model.Snapshot) {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, cli.FormatTitle(fmt.Sprintf("Contribution scores for tenant %s", tenantID)))
	fmt.Fprintln(out)

	printAxisLine(out, "Economic ", snapshot.Economic.RankName, snapshot.Economic.ColorToken,
		snapshot.Economic.Value, snapshot.Economic.Progress)
	printAxisLine(out, "Resonance", snapshot.Resonance.RankName, snapshot.Resonance.ColorToken,
		snapshot.Resonance.Value, snapshot.Resonance.Progress)
	printAxisLine(out, "Composite", snapshot.Composite.RankName, snapshot.Composite.ColorToken,
		snapshot.Composite.Value, snapshot.Composite.Progress)

	if next := nextCompositeRank(ctx, store, tenantID, snapshot.Composite.Value); next != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, cli.SubtleStyle.Render(next))
	}

	for _, rankUp := range snapshot.RankUps {
		fmt.Fprintln(out)
		msg := fmt.Sprintf("Rank up! Reached level %d", rankUp.Level)
		if rankUp.BadgeRef != "" {
			msg += fmt.Sprintf(" (badge %s)", rankUp.BadgeRef)
		}
		if rankUp.ArtifactRef != "" {
			msg += fmt.Sprintf(" (artifact %s)", rankUp.ArtifactRef)
		}
		fmt.Fprintln(out, cli.FormatSuccess(msg))
	}

	if snapshot.Error != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, cli.FormatWarning("Showing last known scores: "+snapshot.Error))
	}
}

func printAxisLine(out io.Writer, label, rankName, colorToken string, value, progress float64) {
	fmt.Fprintf(out, "  %s  %s  %.0f points, %.0f%% to next rank\n",
		cli.BoldStyle.Render(label),
		cli.RankStyle(colorToken).Render(rankName),
		value,
		progress)
}

// nextCompositeRank resolves the composite score against the tenant's tier
// boundaries and describes the distance to the next rank, or reports the
// terminal state.
func nextCompositeRank(ctx context.Context, store *storage.SQLiteStorage, tenantID string, value float64) string {
	tiers, err := store.GetTierTable(ctx, tenantID, model.AxisComposite)
	if err != nil {
		slog.Warn("failed to load tier table for rank resolution", "tenant", tenantID, "error", err)
		return ""
	}
	if tiers == nil {
		tiers = score.DefaultTierTable(model.AxisComposite)
	}

	thresholds := make([]model.Threshold, 0, len(tiers))
	for _, tier := range tiers {
		thresholds = append(thresholds, model.Threshold{Level: tier.Level, Score: tier.LowerBound})
	}

	resolution := score.Resolve(value, model.SortThresholds(thresholds))
	if resolution.NextLevel == nil {
		return "Top rank reached."
	}

	nextName := ""
	for _, tier := range tiers {
		if tier.Level == *resolution.NextLevel {
			nextName = tier.Name
			break
		}
	}
	return fmt.Sprintf("%.0f points to %s.", resolution.Remaining, nextName)
}

func printSnapshotJSON(cmd *cobra.Command, snapshot *model.Snapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
