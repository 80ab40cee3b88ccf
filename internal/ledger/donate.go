package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/crowdfund/backend/internal/models"
	"go.uber.org/zap"
)

// Donate records a contribution. Reaching the target sets TargetReached but
// leaves the campaign open.
func (e *Engine) Donate(ctx context.Context, id uint64, donor string, amount models.Amount) (models.DonationReceipt, error) {
	if strings.TrimSpace(donor) == "" {
		return models.DonationReceipt{}, fmt.Errorf("%w: donor is required", ErrInvalidParameters)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.lookup(id)
	if err != nil {
		return models.DonationReceipt{}, err
	}
	now := e.now()
	e.expireLocked(ctx, c, now)

	if !c.IsActive() {
		return models.DonationReceipt{}, fmt.Errorf("%w: campaign %d", ErrInactive, id)
	}
	if amount == 0 || amount < c.MinContribution {
		return models.DonationReceipt{}, fmt.Errorf("%w: %d < %d", ErrBelowMinimum, amount, max(c.MinContribution, 1))
	}

	collected, err := c.AmountCollected.Add(amount)
	if err != nil {
		return models.DonationReceipt{}, fmt.Errorf("%w: %v", ErrArithmeticOverflow, err)
	}
	donorTotal, err := donorBalance(c, donor)
	if err == nil {
		donorTotal, err = donorTotal.Add(amount)
	}
	if err != nil {
		return models.DonationReceipt{}, fmt.Errorf("%w: %v", ErrArithmeticOverflow, err)
	}

	next := c.Clone()
	seq := uint64(len(next.Donations))
	next.Donations = append(next.Donations, models.Donation{Donor: donor, Amount: amount, Seq: seq, At: now})
	next.AmountCollected = collected
	if collected >= next.Target {
		next.TargetReached = true
	}

	txs := []models.Transaction{
		{Identity: donor, CampaignID: id, CampaignTitle: c.Title, Amount: amount, Timestamp: now, Kind: models.TxKindDonation},
		{Identity: c.Owner, CampaignID: id, CampaignTitle: c.Title, Amount: amount, Timestamp: now, Kind: models.TxKindIncomingDonation},
	}
	if _, err := e.commitLocked(ctx, OpDonate, next, txs); err != nil {
		return models.DonationReceipt{}, err
	}
	e.idx.onDonate(id, donor)

	e.log.Info("donation applied",
		zap.Uint64("campaign_id", id),
		zap.String("donor", donor),
		zap.Stringer("amount", amount),
		zap.Stringer("collected", collected),
		zap.Bool("target_reached", next.TargetReached),
	)

	return models.DonationReceipt{
		CampaignID:      id,
		Owner:           c.Owner,
		Donor:           donor,
		Amount:          amount,
		Seq:             seq,
		DonorTotal:      donorTotal,
		AmountCollected: collected,
		TargetReached:   next.TargetReached,
	}, nil
}

// donorBalance sums a donor's non-refunded entries.
func donorBalance(c *models.Campaign, donor string) (models.Amount, error) {
	var total models.Amount
	for _, d := range c.Donations {
		if d.Donor != donor || d.Refunded {
			continue
		}
		var err error
		if total, err = total.Add(d.Amount); err != nil {
			return 0, err
		}
	}
	return total, nil
}
