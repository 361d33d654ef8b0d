package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/crescendoapp/crescendo/internal/cli"
	"github.com/crescendoapp/crescendo/internal/common"
	"github.com/crescendoapp/crescendo/internal/notify"
	"github.com/crescendoapp/crescendo/internal/refresh"
	"github.com/crescendoapp/crescendo/internal/service"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <tenant-id> <user-id> [user-id...]",
		Short: "Continuously re-score subjects as activity changes",
		Long: `Watch one or more users of a tenant and re-run the scoring pipeline
whenever their activity changes. With Kafka brokers configured, change
events trigger refreshes immediately; a polling fallback keeps scores
fresh either way. Rank-up rewards are issued as boundaries are crossed.`,
		Args: cobra.MinimumNArgs(2),
		RunE: runWatch,
	}

	cmd.Flags().Duration("interval", refresh.DefaultPollInterval, "Polling fallback interval")
	cmd.Flags().StringSlice("brokers", nil, "Kafka brokers for change events (comma-separated)")
	cmd.Flags().String("topic", "activity-events", "Kafka topic carrying activity change events")
	cmd.Flags().String("group", "crescendo-watch", "Kafka consumer group ID")

	_ = viper.BindPFlag("watch.interval", cmd.Flags().Lookup("interval"))
	_ = viper.BindPFlag("kafka.brokers", cmd.Flags().Lookup("brokers"))
	_ = viper.BindPFlag("kafka.topic", cmd.Flags().Lookup("topic"))
	_ = viper.BindPFlag("kafka.group", cmd.Flags().Lookup("group"))

	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	tenantID, userIDs := args[0], args[1:]

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	eng := buildEngine(store)

	opts := []refresh.Option{refresh.WithPollInterval(viper.GetDuration("watch.interval"))}

	var source service.ChangeSource
	if brokers := viper.GetStringSlice("kafka.brokers"); len(brokers) > 0 {
		if viper.GetString("kafka.topic") == "" {
			return common.NewUserError("kafka.topic must be set when brokers are configured", common.ErrMissingConfig)
		}

		reader := notify.NewKafkaReader(brokers, viper.GetString("kafka.topic"), viper.GetString("kafka.group"))
		source = notify.NewKafkaSource(reader)
		defer func() { _ = source.Close() }()

		slog.Info("Consuming activity change events",
			"brokers", brokers,
			"topic", viper.GetString("kafka.topic"))
		opts = append(opts, refresh.WithChangeSource(source))
	} else {
		slog.Info("No Kafka brokers configured, polling only",
			"interval", viper.GetDuration("watch.interval"))
	}

	coordinator := refresh.NewCoordinator(eng, opts...)

	done := make(chan struct{})
	go func() {
		defer close(done)
		coordinator.Run(ctx)
	}()

	for _, userID := range userIDs {
		coordinator.Watch(ctx, tenantID, userID)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, cli.FormatTitle(fmt.Sprintf("Watching %d subject(s) in tenant %s", len(userIDs), tenantID)))

	for {
		select {
		case <-ctx.Done():
			<-done
			fmt.Fprintln(out, cli.SubtleStyle.Render("Watch stopped."))
			return nil
		case subject := <-coordinator.Snapshots():
			printRefresh(out, subject)
		}
	}
}

func printRefresh(out io.Writer, subject refresh.SubjectSnapshot) {
	snapshot := subject.Snapshot
	stamp := time.Now().Format("15:04:05")

	line := fmt.Sprintf("%s  %s  %s %.0f | %s %.0f | %s %.0f",
		cli.SubtleStyle.Render(stamp),
		cli.BoldStyle.Render(subject.UserID),
		cli.RankStyle(snapshot.Economic.ColorToken).Render(snapshot.Economic.RankName),
		snapshot.Economic.Value,
		cli.RankStyle(snapshot.Resonance.ColorToken).Render(snapshot.Resonance.RankName),
		snapshot.Resonance.Value,
		cli.RankStyle(snapshot.Composite.ColorToken).Render(snapshot.Composite.RankName),
		snapshot.Composite.Value)
	fmt.Fprintln(out, line)

	for _, rankUp := range snapshot.RankUps {
		fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("%s reached level %d", subject.UserID, rankUp.Level)))
	}
	if snapshot.Error != "" {
		fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf("%s: %s", subject.UserID, snapshot.Error)))
	}
}
