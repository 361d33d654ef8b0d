package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/crescendoapp/crescendo/internal/cli"
	"github.com/crescendoapp/crescendo/internal/model"
	"github.com/crescendoapp/crescendo/internal/score"
	"github.com/spf13/cobra"
)

func thresholdsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thresholds",
		Short: "Manage per-tenant rank thresholds",
		Long: `View and configure the tiered rank tables and economic normalization cap
for a tenant. Tenants without configuration use the built-in defaults.`,
	}

	cmd.PersistentFlags().StringP("tenant", "t", "", "Tenant to operate on (required)")
	_ = cmd.MarkPersistentFlagRequired("tenant")

	cmd.AddCommand(thresholdsShowCmd())
	cmd.AddCommand(thresholdsSetCmd())
	cmd.AddCommand(thresholdsCapCmd())

	return cmd
}

// tierConfig is the JSON shape accepted by "thresholds set".
type tierConfig struct {
	Name       string  `json:"name"`
	Color      string  `json:"color"`
	LowerBound float64 `json:"lower_bound"`
	UpperBound float64 `json:"upper_bound"`
	Level      int     `json:"level"`
}

func thresholdsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <axis>",
		Short: "Show a tenant's tier table for an axis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tenantID, _ := cmd.Flags().GetString("tenant")

			axis, err := parseAxis(args[0])
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			tiers, err := store.GetTierTable(ctx, tenantID, axis)
			if err != nil {
				return fmt.Errorf("failed to load tier table: %w", err)
			}

			out := cmd.OutOrStdout()
			source := "configured"
			if tiers == nil {
				tiers = score.DefaultTierTable(axis)
				source = "default"
			}

			fmt.Fprintln(out, cli.FormatTitle(fmt.Sprintf("%s tiers for tenant %s (%s)", axis, tenantID, source)))
			for _, tier := range tiers {
				upper := fmt.Sprintf("%.0f", tier.UpperBound)
				if tier.Level == tiers[len(tiers)-1].Level {
					upper = "∞"
				}
				fmt.Fprintf(out, "  %d. %s  %.0f – %s\n",
					tier.Level,
					cli.RankStyle(tier.ColorToken).Render(tier.Name),
					tier.LowerBound,
					upper)
			}
			return nil
		},
	}
	return cmd
}

func thresholdsSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <axis> <tiers.json>",
		Short: "Replace a tenant's tier table for an axis",
		Long: `Replace the tier table for one axis from a JSON file. The file holds an
array of tiers ordered by level:

  [{"name": "Bronze", "color": "#CD7F32", "lower_bound": 0,
    "upper_bound": 1000, "level": 1}, ...]

Levels must be sequential from 1 and bounds strictly increasing; invalid
tables are rejected without touching the stored configuration.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tenantID, _ := cmd.Flags().GetString("tenant")

			axis, err := parseAxis(args[0])
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[1], err)
			}

			var configs []tierConfig
			if err := json.Unmarshal(data, &configs); err != nil {
				return fmt.Errorf("failed to parse tier file: %w", err)
			}

			table := make(model.TierTable, 0, len(configs))
			for _, c := range configs {
				table = append(table, model.RankTier{
					Name:       c.Name,
					ColorToken: c.Color,
					LowerBound: c.LowerBound,
					UpperBound: c.UpperBound,
					Level:      c.Level,
				})
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.SetTierTable(ctx, tenantID, axis, table); err != nil {
				return fmt.Errorf("failed to store tier table: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(),
				cli.FormatSuccess(fmt.Sprintf("Stored %d %s tiers for tenant %s", len(table), axis, tenantID)))
			return nil
		},
	}
	return cmd
}

func thresholdsCapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cap [value]",
		Short: "Show or set a tenant's economic normalization cap",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tenantID, _ := cmd.Flags().GetString("tenant")

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			out := cmd.OutOrStdout()

			if len(args) == 0 {
				economicCap, err := store.GetEconomicCap(ctx, tenantID)
				if err != nil {
					return fmt.Errorf("failed to load economic cap: %w", err)
				}
				if economicCap == 0 {
					fmt.Fprintf(out, "Tenant %s uses the default economic cap (%.0f)\n",
						tenantID, score.DefaultEconomicCap)
					return nil
				}
				fmt.Fprintf(out, "Tenant %s economic cap: %.0f\n", tenantID, economicCap)
				return nil
			}

			value, err := strconv.ParseFloat(args[0], 64)
			if err != nil || value <= 0 {
				return fmt.Errorf("economic cap must be a positive number, got %q", args[0])
			}

			if err := store.SetEconomicCap(ctx, tenantID, value); err != nil {
				return fmt.Errorf("failed to store economic cap: %w", err)
			}

			fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Set economic cap to %.0f for tenant %s", value, tenantID)))
			return nil
		},
	}
	return cmd
}

func parseAxis(raw string) (model.Axis, error) {
	switch model.Axis(raw) {
	case model.AxisEconomic, model.AxisResonance, model.AxisComposite:
		return model.Axis(raw), nil
	default:
		return "", fmt.Errorf("unknown axis %q (expected economic, resonance, or composite)", raw)
	}
}
