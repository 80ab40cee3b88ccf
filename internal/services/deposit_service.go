package services

import (
	"context"
	"fmt"
	"time"

	"github.com/crowdfund/backend/internal/events"
	"github.com/crowdfund/backend/internal/ledger"
	"github.com/crowdfund/backend/internal/models"
	"github.com/crowdfund/backend/internal/repositories"
	"github.com/crowdfund/backend/internal/ton"
	"go.uber.org/zap"
)

const depositSweepBatch = 100

// DepositService turns on-chain transfers recorded by the indexer into
// donations. The deposits table is the queue: a row moves pending -> applying
// -> applied|rejected, and each transaction hash is credited at most once.
type DepositService struct {
	campaigns *CampaignService
	deposits  DepositStore
	log       *zap.Logger
	wake      chan struct{}
}

func NewDepositService(campaigns *CampaignService, deposits DepositStore, log *zap.Logger) *DepositService {
	return &DepositService{
		campaigns: campaigns,
		deposits:  deposits,
		log:       log,
		wake:      make(chan struct{}, 1),
	}
}

// Start sweeps pending deposits every interval until ctx is done. A
// deposit_detected event is applied right away; when that fails the sweeper
// is woken instead. A message lost while the API was down delays a deposit
// but never drops it, since the indexer recorded the row first.
func (s *DepositService) Start(ctx context.Context, sub events.Subscriber, interval time.Duration) error {
	err := sub.Subscribe(ctx, events.StreamDeposits, func(e events.Event) {
		if e.Type != events.EventDepositDetected {
			return
		}
		if err := s.Handle(ctx, e); err != nil {
			s.log.Warn("deposit event not applied, left to the sweep", zap.String("tx_hash", e.String("tx_hash")), zap.Error(err))
			s.Wake()
		}
	})
	if err != nil {
		return err
	}
	go s.run(ctx, interval)
	return nil
}

// Wake asks the sweeper for an early pass. It never blocks.
func (s *DepositService) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *DepositService) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if n, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("deposit sweep failed", zap.Int("processed", n), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-s.wake:
		}
	}
}

// Sweep applies pending deposits in transfer order and returns how many it
// resolved. It stops at the first internal failure; the rest stay pending.
func (s *DepositService) Sweep(ctx context.Context) (int, error) {
	pending, err := s.deposits.Pending(ctx, depositSweepBatch)
	if err != nil {
		return 0, fmt.Errorf("list pending deposits: %w", err)
	}
	for i, d := range pending {
		if err := s.apply(ctx, d); err != nil {
			return i, err
		}
	}
	return len(pending), nil
}

func parseDeposit(e events.Event) (repositories.Deposit, error) {
	d := repositories.Deposit{TxHash: e.String("tx_hash")}
	if d.TxHash == "" {
		return d, fmt.Errorf("deposit event without tx_hash")
	}
	sender, err := ton.NormalizeIdentity(e.String("sender"))
	if err != nil {
		return d, fmt.Errorf("deposit %s: %w", d.TxHash, err)
	}
	d.Sender = sender

	var ok bool
	if d.CampaignID, ok = e.Uint64("campaign_id"); !ok {
		return d, fmt.Errorf("deposit %s: missing campaign_id", d.TxHash)
	}
	amount, ok := e.Uint64("amount")
	if !ok {
		return d, fmt.Errorf("deposit %s: missing amount", d.TxHash)
	}
	d.Amount = models.Amount(amount)
	d.TxLT, _ = e.Uint64("tx_lt")
	return d, nil
}

// Handle applies the deposit carried by one deposit_detected event, recording
// it first when the indexer has not. Redelivery of a resolved deposit is a
// no-op.
func (s *DepositService) Handle(ctx context.Context, e events.Event) error {
	d, err := parseDeposit(e)
	if err != nil {
		return err
	}
	if _, err := s.deposits.Claim(ctx, d); err != nil {
		return fmt.Errorf("claim deposit %s: %w", d.TxHash, err)
	}
	return s.apply(ctx, d)
}

// apply credits one deposit. Business-rule rejections are final and recorded
// on the row; internal failures leave the ledger unchanged, so the row goes
// back to pending and the error is returned.
func (s *DepositService) apply(ctx context.Context, d repositories.Deposit) error {
	acquired, err := s.deposits.Acquire(ctx, d.TxHash)
	if err != nil {
		return fmt.Errorf("acquire deposit %s: %w", d.TxHash, err)
	}
	if !acquired {
		s.log.Debug("deposit already processed", zap.String("tx_hash", d.TxHash))
		return nil
	}

	actor := Actor{Identity: d.Sender, Type: ActorIndexer}
	_, err = s.campaigns.Donate(ctx, actor, d.CampaignID, d.Amount)

	if err != nil && ledger.Code(err) == ledger.CodeInternal {
		if rerr := s.deposits.Release(ctx, d.TxHash, err.Error()); rerr != nil {
			s.log.Error("failed to release deposit, left in applying",
				zap.String("tx_hash", d.TxHash),
				zap.Error(rerr),
			)
		}
		return fmt.Errorf("apply deposit %s: %w", d.TxHash, err)
	}

	status, reason := repositories.DepositStatusApplied, ""
	if err != nil {
		status, reason = repositories.DepositStatusRejected, ledger.Code(err)
		s.log.Warn("deposit rejected, funds need a manual return",
			zap.String("tx_hash", d.TxHash),
			zap.Uint64("campaign_id", d.CampaignID),
			zap.String("sender", d.Sender),
			zap.Stringer("amount", d.Amount),
			zap.Error(err),
		)
	}
	if rerr := s.deposits.Resolve(ctx, d.TxHash, status, reason); rerr != nil {
		return fmt.Errorf("resolve deposit %s: %w", d.TxHash, rerr)
	}

	if err == nil {
		s.log.Info("deposit applied as donation",
			zap.String("tx_hash", d.TxHash),
			zap.Uint64("campaign_id", d.CampaignID),
			zap.String("sender", d.Sender),
			zap.Stringer("amount", d.Amount),
		)
	}
	return nil
}
