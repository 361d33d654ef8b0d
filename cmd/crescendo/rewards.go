package main

import (
	"fmt"

	"github.com/crescendoapp/crescendo/internal/cli"
	"github.com/crescendoapp/crescendo/internal/model"
	"github.com/spf13/cobra"
)

func rewardsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rewards",
		Short: "Inspect reward distribution records",
		Long:  `Audit the durable record of badge and artifact issuance per subject.`,
	}

	cmd.AddCommand(rewardsListCmd())

	return cmd
}

func rewardsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <tenant-id> <user-id>",
		Short: "List a subject's reward distribution records",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tenantID, userID := args[0], args[1]

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			records, err := store.ListRecords(ctx, userID, tenantID)
			if err != nil {
				return fmt.Errorf("failed to list reward records: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cli.TitleStyle.Render(fmt.Sprintf("%s Rewards for %s in tenant %s", cli.RankIcon, userID, tenantID)))

			if len(records) == 0 {
				fmt.Fprintln(out, cli.SubtleStyle.Render("  No rewards distributed yet."))
				return nil
			}

			for _, record := range records {
				fmt.Fprintf(out, "  Level %d  %s  score %.0f (threshold %.0f)  %s\n",
					record.RankLevel,
					statusLabel(record.Status),
					record.Score,
					record.Threshold,
					record.CreatedAt.Format("2006-01-02 15:04"))

				if record.BadgeRef != "" {
					fmt.Fprintf(out, "    badge    %s\n", record.BadgeRef)
				}
				if record.ArtifactRef != "" {
					fmt.Fprintf(out, "    artifact %s\n", record.ArtifactRef)
				}
				if record.FailureReason != "" {
					fmt.Fprintln(out, cli.SubtleStyle.Render("    "+record.FailureReason))
				}
			}
			return nil
		},
	}
}

func statusLabel(status model.DistributionStatus) string {
	switch status {
	case model.StatusCompleted:
		return cli.SuccessStyle.Render(string(status))
	case model.StatusFailed:
		return cli.ErrorStyle.Render(string(status))
	default:
		return cli.WarningStyle.Render(string(status))
	}
}
