package ledger

import (
	"context"
	"fmt"

	"github.com/crowdfund/backend/internal/models"
	"go.uber.org/zap"
)

// Withdraw moves collected funds to the owner. It is allowed in any lifecycle
// state, including after the target was reached or the campaign closed.
func (e *Engine) Withdraw(ctx context.Context, id uint64, caller string, amount models.Amount) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.lookup(id)
	if err != nil {
		return err
	}
	now := e.now()
	e.expireLocked(ctx, c, now)

	if caller != c.Owner {
		return fmt.Errorf("%w: only the owner can withdraw", ErrUnauthorized)
	}
	if amount == 0 {
		return fmt.Errorf("%w: amount must be greater than zero", ErrInvalidParameters)
	}
	left, err := c.AmountCollected.Sub(amount)
	if err != nil {
		return fmt.Errorf("%w: requested %s, available %s", ErrInsufficientFunds, amount, c.AmountCollected)
	}
	withdrawn, err := c.Withdrawn.Add(amount)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrArithmeticOverflow, err)
	}

	next := c.Clone()
	next.AmountCollected = left
	next.Withdrawn = withdrawn

	txs := []models.Transaction{
		{Identity: c.Owner, CampaignID: id, CampaignTitle: c.Title, Amount: amount, Timestamp: now, Kind: models.TxKindWithdrawal},
	}
	if _, err := e.commitLocked(ctx, OpWithdraw, next, txs); err != nil {
		return err
	}

	e.log.Info("funds withdrawn",
		zap.Uint64("campaign_id", id),
		zap.String("owner", caller),
		zap.Stringer("amount", amount),
		zap.Stringer("remaining", left),
	)
	return nil
}
