package cli

import (
	"fmt"
	"io"
	"time"

	"letterbox/internal/features/newsletters/models"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newSyncCmd(opts *options) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "sync [subscription-id]",
		Short: "Sync one subscription, or all of them, right now",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			syncMode, err := models.ParseSyncMode(mode)
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			feature := a.server.Newsletters()
			if !feature.Enabled() {
				return fmt.Errorf("newsletters feature is disabled")
			}
			scheduler := feature.GetSchedulerService()
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				report, err := scheduler.SyncOne(cmd.Context(), args[0], syncMode)
				if report == nil {
					return err
				}
				printSyncReport(out, report)
				return err
			}

			batch, err := scheduler.SyncAll(cmd.Context(), syncMode)
			if err != nil {
				return err
			}
			for _, report := range batch.Results {
				printSyncReport(out, report)
			}
			fmt.Fprintf(out, "%s new %s across %d subscription(s), %d skipped, %d failed in %s\n",
				humanize.Comma(int64(batch.TotalInserted())),
				plural(batch.TotalInserted(), "entry", "entries"),
				len(batch.Results),
				len(batch.Skipped),
				len(batch.Failed()),
				batch.FinishedAt.Sub(batch.StartedAt).Round(time.Millisecond),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "incremental", "sync mode: full, incremental or latest")
	return cmd
}

func printSyncReport(w io.Writer, report *models.SyncReport) {
	if report.SyncError != "" {
		fmt.Fprintf(w, "%s  FAILED  %s\n", report.SubscriptionID, report.SyncError)
		return
	}
	fmt.Fprintf(w, "%s  %s  parsed %d, new %d, already synced %d\n",
		report.SubscriptionID, report.Mode, report.Parsed, report.InsertedCount(), report.AlreadySynced)
	for _, e := range report.Errors {
		fmt.Fprintf(w, "    error: %s\n", e)
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
