package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/crescendoapp/crescendo/internal/cli"
	"github.com/crescendoapp/crescendo/internal/model"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import activity records from a CSV export",
		Long: `Import settled activity records from a ledger CSV export into the local
database. Records are deduplicated by content hash, so re-importing the
same file is safe.

Expected columns: sender,recipient,amount,axis,annotation,created_at
with created_at in RFC 3339 format.`,
		Args: cobra.ExactArgs(1),
		RunE: runImportActivity,
	}

	cmd.Flags().StringP("tenant", "t", "", "Tenant the records belong to (required)")
	cmd.Flags().Bool("dry-run", false, "Parse and validate without saving")
	_ = cmd.MarkFlagRequired("tenant")

	_ = viper.BindPFlag("import.tenant", cmd.Flags().Lookup("tenant"))
	_ = viper.BindPFlag("import.dry_run", cmd.Flags().Lookup("dry-run"))

	return cmd
}

func runImportActivity(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := args[0]
	tenantID := viper.GetString("import.tenant")

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	slog.Info(cli.FormatTitle("Importing activity records"))
	slog.Info("Source", "file", path, "tenant", tenantID)

	records, skipped, err := parseActivityCSV(file, tenantID)
	if err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("Parsed %d records (%d rows skipped)", len(records), skipped))

	if viper.GetBool("import.dry_run") {
		slog.Info(cli.FormatWarning("Dry run mode - not saving to database"))
		return nil
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	bar := progressbar.NewOptions(len(records),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Saving records..."),
	)

	// Save in batches so the progress bar tracks real work.
	const batchSize = 200
	inserted := 0
	for start := 0; start < len(records); start += batchSize {
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}

		n, err := store.SaveActivityRecords(ctx, records[start:end])
		if err != nil {
			return fmt.Errorf("failed to save records: %w", err)
		}
		inserted += n
		_ = bar.Add(end - start)
	}
	fmt.Fprintln(os.Stderr)

	duplicates := len(records) - inserted
	slog.Info(cli.FormatSuccess(fmt.Sprintf("Imported %d records (%d duplicates ignored)", inserted, duplicates)))
	return nil
}

// parseActivityCSV reads ledger rows into activity records. Rows that fail
// to parse are skipped with a warning rather than aborting the import.
func parseActivityCSV(r io.Reader, tenantID string) ([]model.ActivityRecord, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 6
	reader.TrimLeadingSpace = true

	records := make([]model.ActivityRecord, 0)
	skipped := 0
	line := 0

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			slog.Warn("skipping malformed row", "line", line, "error", err)
			skipped++
			continue
		}

		// Header row
		if line == 1 && strings.EqualFold(row[0], "sender") {
			continue
		}

		record, err := parseActivityRow(row, tenantID)
		if err != nil {
			slog.Warn("skipping invalid row", "line", line, "error", err)
			skipped++
			continue
		}
		records = append(records, record)
	}

	if len(records) == 0 && skipped == 0 {
		return nil, 0, fmt.Errorf("no activity rows found")
	}
	return records, skipped, nil
}

func parseActivityRow(row []string, tenantID string) (model.ActivityRecord, error) {
	amount, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
	if err != nil {
		return model.ActivityRecord{}, fmt.Errorf("invalid amount %q: %w", row[2], err)
	}
	if amount < 0 {
		return model.ActivityRecord{}, fmt.Errorf("negative amount %.2f", amount)
	}

	createdAt, err := time.Parse(time.RFC3339, strings.TrimSpace(row[5]))
	if err != nil {
		return model.ActivityRecord{}, fmt.Errorf("invalid created_at %q: %w", row[5], err)
	}

	record := model.ActivityRecord{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		SenderID:   strings.TrimSpace(row[0]),
		ReceiverID: strings.TrimSpace(row[1]),
		Amount:     amount,
		AxisTag:    strings.TrimSpace(row[3]),
		Annotation: row[4],
		CreatedAt:  createdAt,
	}
	if record.SenderID == "" || record.ReceiverID == "" {
		return model.ActivityRecord{}, fmt.Errorf("missing sender or recipient")
	}
	record.Hash = record.GenerateHash()

	return record, nil
}
