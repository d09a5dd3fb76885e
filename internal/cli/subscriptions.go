package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"letterbox/internal/features/newsletters/models"
	"letterbox/internal/features/newsletters/services"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newSubscriptionsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "subscriptions",
		Aliases: []string{"subs"},
		Short:   "Manage newsletter subscriptions",
	}

	cmd.AddCommand(newSubscriptionsAddCmd(opts))
	cmd.AddCommand(newSubscriptionsListCmd(opts))
	cmd.AddCommand(newSubscriptionsImportCmd(opts))
	return cmd
}

func newSubscriptionsAddCmd(opts *options) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "add <feed-url>",
		Short: "Subscribe to a feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			subs := a.server.Newsletters().GetSubscriptionService()
			sub, err := subs.CreateSubscription(cmd.Context(), &models.SubscriptionCreate{FeedURL: args[0], Title: title})
			if errors.Is(err, services.ErrConflict) {
				return fmt.Errorf("already subscribed to %s", args[0])
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Subscribed %s (%s)\n", sub.FeedURL, sub.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "display title; filled from the feed on first sync when empty")
	return cmd
}

func newSubscriptionsListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List subscriptions with their sync state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			feature := a.server.Newsletters()
			subs, err := feature.GetSubscriptionService().ListSubscriptions(cmd.Context())
			if err != nil {
				return err
			}

			counts := make(map[string]int, len(subs))
			for _, sub := range subs {
				n, err := feature.GetEntryService().CountEntries(cmd.Context(), sub.ID)
				if err != nil {
					return err
				}
				counts[sub.ID] = n
			}

			writeSubscriptionTable(cmd.OutOrStdout(), subs, counts, time.Now())
			return nil
		},
	}
}

func writeSubscriptionTable(w io.Writer, subs []models.Subscription, counts map[string]int, now time.Time) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tENTRIES\tLAST SYNC\tERROR")
	for _, sub := range subs {
		lastSync := "never"
		if sub.LastSyncAt != nil {
			lastSync = humanize.RelTime(*sub.LastSyncAt, now, "ago", "from now")
		}
		syncErr := ""
		if sub.SyncError != nil {
			syncErr = *sub.SyncError
		}
		title := sub.Title
		if title == "" {
			title = sub.FeedURL
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			sub.ID, title, sub.Status, humanize.Comma(int64(counts[sub.ID])), lastSync, syncErr)
	}
	tw.Flush()
}

func newSubscriptionsImportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Subscribe to every feed listed in a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := services.LoadSeedFile(args[0])
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.server.Newsletters().GetSubscriptionService().ImportSubscriptions(cmd.Context(), seed)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imported %d new, %d already subscribed, %d invalid\n",
				len(result.Created), result.Existing, len(result.Invalid))
			for _, u := range result.Invalid {
				fmt.Fprintf(out, "    invalid: %s\n", u)
			}
			return nil
		},
	}
}
