package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/crowdfund/backend/internal/models"
	"github.com/crowdfund/backend/internal/syncer"
	"github.com/crowdfund/backend/internal/ton"
	"github.com/spf13/cobra"
)

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List campaigns with filters, sorting and search",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd)
			if err != nil {
				return err
			}
			category, _ := cmd.Flags().GetString("category")
			status, _ := cmd.Flags().GetString("status")
			sortKey, _ := cmd.Flags().GetString("sort")
			search, _ := cmd.Flags().GetString("search")
			asJSON, _ := cmd.Flags().GetBool("json")

			e.layer.SetFilter(category, status)
			e.layer.SetSort(sortKey)
			e.layer.SetSearch(search)

			campaigns, err := e.layer.View(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(campaigns)
			}
			if len(campaigns) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No campaigns match.")
				return nil
			}
			return printCampaigns(cmd.OutOrStdout(), campaigns, time.Now())
		},
	}

	cmd.Flags().StringP("category", "c", syncer.CategoryAll, "Category filter")
	cmd.Flags().StringP("status", "s", syncer.StatusAll, "Status filter (all, active, completed)")
	cmd.Flags().String("sort", syncer.SortNewest, "Sort key (newest, oldest, target, progress)")
	cmd.Flags().StringP("search", "q", "", "Search title, description and category")
	cmd.Flags().BoolP("json", "j", false, "Output as JSON")

	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats [campaign-id]",
		Short: "Show donor count, average donation and time left",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid campaign id %q", args[0])
			}
			e, err := newEnv(cmd)
			if err != nil {
				return err
			}
			c, err := e.client.Campaign(cmd.Context(), id)
			if err != nil {
				return err
			}
			s, err := e.client.Stats(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Campaign #%d: %s\n", c.ID, c.Title)
			fmt.Fprintln(out, strings.Repeat("=", 40))
			fmt.Fprintf(out, "  Raised:    %s / %s TON (%s)\n", s.AmountCollected.TON(), c.Target.TON(), percent(s.ProgressBps))
			fmt.Fprintf(out, "  Donors:    %d\n", s.DonorCount)
			fmt.Fprintf(out, "  Average:   %s TON\n", s.AverageDonation.TON())
			fmt.Fprintf(out, "  Status:    %s\n", status(&c))
			fmt.Fprintf(out, "  Time left: %s\n", timeLeft(c.Deadline, time.Now()))
			return nil
		},
	}
}

func categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List predefined categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd)
			if err != nil {
				return err
			}
			cats, err := e.client.Categories(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range cats {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-12s %s\n", c.ID, c.Label)
			}
			return nil
		},
	}
}

// watchCmd polls the campaign list and, with --identity, that wallet's
// recent transactions until interrupted.
func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll campaigns and recent transactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd)
			if err != nil {
				return err
			}
			identity, _ := cmd.Flags().GetString("identity")
			interval, _ := cmd.Flags().GetDuration("interval")
			if interval <= 0 {
				interval = e.cfg.SyncPollInterval
			}
			if interval <= 0 {
				interval = 15 * time.Second
			}

			if identity != "" {
				if identity, err = ton.NormalizeIdentity(identity); err != nil {
					return fmt.Errorf("invalid identity: %w", err)
				}
				e.layer.SetIdentity(syncer.Identity{Address: identity, Network: e.cfg.TONNetwork})
			}
			e.layer.SetFilter(syncer.CategoryAll, syncer.StatusActive)
			e.layer.SetSort(syncer.SortProgress)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			poller := syncer.StartPoller(ctx, interval, func(ctx context.Context) {
				if _, err := e.layer.Refresh(ctx); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "refresh failed: %v\n", err)
					return
				}
				campaigns, err := e.layer.View(ctx)
				if err != nil {
					return
				}
				fmt.Fprintf(out, "\n[%s] %d active campaigns\n", time.Now().Format(time.TimeOnly), len(campaigns))
				_ = printCampaigns(out, campaigns, time.Now())

				if identity == "" {
					return
				}
				txs, err := e.client.UserTransactions(ctx, identity, 5)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "transactions failed: %v\n", err)
					return
				}
				printTransactions(out, txs)
			})

			<-ctx.Done()
			poller.Stop()
			return nil
		},
	}

	cmd.Flags().StringP("identity", "i", "", "Wallet address whose transactions to show")
	cmd.Flags().Duration("interval", 0, "Poll interval (default $SYNC_POLL_INTERVAL_SECONDS)")

	return cmd
}

func printTransactions(w io.Writer, txs []models.Transaction) {
	fmt.Fprintln(w, "Recent transactions:")
	if len(txs) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	for _, tx := range txs {
		fmt.Fprintf(w, "  %s  %-17s %12s TON  #%d %s\n",
			time.Unix(tx.Timestamp, 0).Format(time.DateTime),
			tx.Kind,
			tx.Amount.TON(),
			tx.CampaignID,
			tx.CampaignTitle,
		)
	}
}
