package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/crowdfund/backend/internal/config"
	"github.com/crowdfund/backend/internal/db"
	"github.com/crowdfund/backend/internal/repositories"
	"go.uber.org/zap"
)

// The worker never mutates the ledger. It audits the journal written by the
// API and sweeps expired login nonces.
func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Repos
	ledgerRepo := repositories.NewLedgerRepo(pool)
	depositRepo := repositories.NewDepositRepo(pool)
	walletRepo := repositories.NewWalletRepo(pool)

	interval := cfg.AuditInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	log.Info("worker started", zap.Duration("audit_interval", interval))

	// Run jobs on tickers
	auditTicker := time.NewTicker(interval)
	depositTicker := time.NewTicker(1 * time.Minute)
	purgeTicker := time.NewTicker(10 * time.Minute)
	defer auditTicker.Stop()
	defer depositTicker.Stop()
	defer purgeTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	runLedgerAudit(ctx, ledgerRepo, log)

	for {
		select {
		case <-auditTicker.C:
			runLedgerAudit(ctx, ledgerRepo, log)
		case <-depositTicker.C:
			runDepositBacklog(ctx, depositRepo, log)
		case <-purgeTicker.C:
			runPayloadPurge(ctx, walletRepo, log)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

// runLedgerAudit checks collected == donations - withdrawals - refunds for
// every journaled campaign.
func runLedgerAudit(ctx context.Context, repo *repositories.LedgerRepo, log *zap.Logger) {
	rows, err := repo.Balances(ctx)
	if err != nil {
		log.Error("failed to load balances", zap.Error(err))
		return
	}

	mismatched := 0
	for _, b := range rows {
		if b.Balanced() {
			continue
		}
		mismatched++
		want, ok := b.Expected()
		log.Error("ledger balance mismatch",
			zap.Uint64("campaign_id", b.CampaignID),
			zap.Stringer("collected", b.Collected),
			zap.Stringer("expected", want),
			zap.Bool("reconcilable", ok),
			zap.Stringer("donations", b.Donations),
			zap.Stringer("withdrawals", b.Withdrawals),
			zap.Stringer("refunds", b.Refunds),
		)
	}

	// Lazy closure means these are expected; they flip on next access.
	stale, err := repo.StaleOpenCampaigns(ctx, time.Now().Unix())
	if err != nil {
		log.Error("failed to list stale campaigns", zap.Error(err))
	}

	log.Info("ledger audit finished",
		zap.Int("campaigns", len(rows)),
		zap.Int("mismatched", mismatched),
		zap.Int("past_deadline_open", len(stale)),
	)
}

func runDepositBacklog(ctx context.Context, repo *repositories.DepositRepo, log *zap.Logger) {
	pending, err := repo.CountByStatus(ctx, repositories.DepositStatusPending)
	if err != nil {
		log.Error("failed to count pending deposits", zap.Error(err))
		return
	}
	if pending > 0 {
		log.Warn("deposits awaiting application", zap.Int64("pending", pending))
	}

	// A row stays applying only when the API stopped between crediting and
	// resolving it, so it is never retried automatically.
	applying, err := repo.CountByStatus(ctx, repositories.DepositStatusApplying)
	if err != nil {
		log.Error("failed to count applying deposits", zap.Error(err))
		return
	}
	if applying > 0 {
		log.Error("deposits stuck in applying, check the ledger before resolving", zap.Int64("applying", applying))
	}
}

func runPayloadPurge(ctx context.Context, repo *repositories.WalletRepo, log *zap.Logger) {
	n, err := repo.PurgeExpiredPayloads(ctx)
	if err != nil {
		log.Error("failed to purge proof payloads", zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("purged expired proof payloads", zap.Int64("count", n))
	}
}
