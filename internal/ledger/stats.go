package ledger

import (
	"github.com/crowdfund/backend/internal/models"
)

// Stats derives the summary record of one campaign.
func (e *Engine) Stats(id uint64) (models.CampaignStats, error) {
	e.expireStale([]uint64{id})

	e.mu.RLock()
	defer e.mu.RUnlock()
	c, err := e.lookup(id)
	if err != nil {
		return models.CampaignStats{}, err
	}

	donors := make(map[string]struct{})
	for _, d := range c.Donations {
		if !d.Refunded {
			donors[d.Donor] = struct{}{}
		}
	}
	count := uint64(len(donors))

	return models.CampaignStats{
		CampaignID:      c.ID,
		DonorCount:      count,
		AverageDonation: c.AmountCollected.Div(count),
		TimeLeft:        max(0, c.Deadline-e.now()),
		IsActive:        c.IsActive(),
		TargetReached:   c.TargetReached,
		AmountCollected: c.AmountCollected,
		ProgressBps:     c.ProgressBps(),
	}, nil
}
