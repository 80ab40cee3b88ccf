package ledger

import (
	"context"
	"fmt"

	"github.com/crowdfund/backend/internal/models"
	"go.uber.org/zap"
)

// Refund returns every non-refunded contribution of donor on a campaign that
// closed without reaching its target. A second call fails ErrNothingToRefund.
func (e *Engine) Refund(ctx context.Context, id uint64, donor string) (models.Amount, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.lookup(id)
	if err != nil {
		return 0, err
	}
	now := e.now()
	e.expireLocked(ctx, c, now)

	if c.IsActive() {
		return 0, fmt.Errorf("%w: campaign %d is still active", ErrNotEligible, id)
	}
	if c.TargetReached {
		return 0, fmt.Errorf("%w: campaign %d reached its target", ErrNotEligible, id)
	}

	owed, err := donorBalance(c, donor)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrArithmeticOverflow, err)
	}
	if owed == 0 {
		return 0, fmt.Errorf("%w: no refundable donations on campaign %d", ErrNothingToRefund, id)
	}
	left, err := c.AmountCollected.Sub(owed)
	if err != nil {
		// The owner already withdrew part of the donor's money.
		return 0, fmt.Errorf("%w: owed %s, collected %s", ErrInsufficientFunds, owed, c.AmountCollected)
	}
	refunded, err := c.Refunded.Add(owed)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrArithmeticOverflow, err)
	}

	next := c.Clone()
	for i := range next.Donations {
		if next.Donations[i].Donor == donor {
			next.Donations[i].Refunded = true
		}
	}
	next.AmountCollected = left
	next.Refunded = refunded

	txs := []models.Transaction{
		{Identity: donor, CampaignID: id, CampaignTitle: c.Title, Amount: owed, Timestamp: now, Kind: models.TxKindRefund},
	}
	if _, err := e.commitLocked(ctx, OpRefund, next, txs); err != nil {
		return 0, err
	}

	e.log.Info("donation refunded",
		zap.Uint64("campaign_id", id),
		zap.String("donor", donor),
		zap.Stringer("amount", owed),
	)
	return owed, nil
}
