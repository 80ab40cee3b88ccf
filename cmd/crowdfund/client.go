package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/crowdfund/backend/internal/apiclient"
	"github.com/crowdfund/backend/internal/config"
	"github.com/crowdfund/backend/internal/models"
	"github.com/crowdfund/backend/internal/richtext"
	"github.com/crowdfund/backend/internal/syncer"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// env bundles what every subcommand needs.
type env struct {
	cfg    *config.Config
	client *apiclient.Client
	layer  *syncer.Layer
	log    *zap.Logger
}

func newEnv(cmd *cobra.Command) (*env, error) {
	cfg := config.Load()

	log := zap.NewNop()
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		log = l
	}

	base := cfg.APIBaseURL
	if v, _ := cmd.Flags().GetString("api"); v != "" {
		base = v
	}

	client := apiclient.New(base, cfg.SyncHTTPTimeout, log)
	layer := syncer.New(client, syncer.Options{
		RetryAttempts:  cfg.SyncRetryAttempts,
		RetryBase:      cfg.SyncRetryBase,
		RefreshTimeout: time.Duration(cfg.SyncRetryAttempts+1) * cfg.SyncHTTPTimeout,
		Logger:         log,
	})
	return &env{cfg: cfg, client: client, layer: layer, log: log}, nil
}

func printCampaigns(w io.Writer, campaigns []models.Campaign, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCATEGORY\tRAISED\tTARGET\tPROGRESS\tSTATUS\tLEFT\tDESCRIPTION")
	for _, c := range campaigns {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			c.ID,
			richtext.Excerpt(c.Title, 32),
			c.Category,
			c.AmountCollected.TON(),
			c.Target.TON(),
			percent(c.ProgressBps()),
			status(&c),
			timeLeft(c.Deadline, now),
			richtext.Excerpt(c.Description, 48),
		)
	}
	return tw.Flush()
}

func percent(bps uint64) string {
	return strconv.FormatUint(bps/100, 10) + "." + fmt.Sprintf("%02d", bps%100) + "%"
}

func status(c *models.Campaign) string {
	switch {
	case c.IsActive() && c.TargetReached:
		return "funded"
	case c.IsActive():
		return "active"
	}
	if closed, ok := c.State.(models.Closed); ok && closed.Reason != "" {
		return "closed:" + closed.Reason
	}
	return "closed"
}

func timeLeft(deadline int64, now time.Time) string {
	d := time.Duration(max(0, deadline-now.Unix())) * time.Second
	switch {
	case d == 0:
		return "-"
	case d >= 48*time.Hour:
		return strconv.Itoa(int(d/(24*time.Hour))) + "d"
	}
	return d.Truncate(time.Minute).String()
}
