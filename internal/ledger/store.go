package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/crowdfund/backend/internal/models"
	"go.uber.org/zap"
)

type CreateCampaignInput struct {
	Owner           string
	Title           string
	Description     string
	Target          models.Amount
	Deadline        int64
	Image           string
	MinContribution models.Amount
	Category        string
}

func (in CreateCampaignInput) validate(now int64) error {
	switch {
	case strings.TrimSpace(in.Owner) == "":
		return fmt.Errorf("%w: owner is required", ErrInvalidParameters)
	case strings.TrimSpace(in.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidParameters)
	case in.Target == 0:
		return fmt.Errorf("%w: target must be greater than zero", ErrInvalidParameters)
	case in.Deadline <= now:
		return fmt.Errorf("%w: deadline must be in the future", ErrInvalidParameters)
	case in.MinContribution > in.Target:
		return fmt.Errorf("%w: minimum contribution %d exceeds target %d", ErrInvalidParameters, in.MinContribution, in.Target)
	}
	return nil
}

// CreateCampaign registers a new open campaign and returns its sequential id.
func (e *Engine) CreateCampaign(ctx context.Context, in CreateCampaignInput) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	if err := in.validate(now); err != nil {
		return 0, err
	}

	c := models.Campaign{
		ID:              uint64(len(e.campaigns)),
		Owner:           in.Owner,
		Title:           strings.TrimSpace(in.Title),
		Description:     in.Description,
		Category:        models.NormalizeCategory(in.Category),
		Image:           in.Image,
		Target:          in.Target,
		MinContribution: in.MinContribution,
		Deadline:        in.Deadline,
		CreatedAt:       now,
		State:           models.Open{},
	}
	if _, err := e.commitLocked(ctx, OpCreate, c, nil); err != nil {
		return 0, err
	}

	e.log.Info("campaign created",
		zap.Uint64("campaign_id", c.ID),
		zap.String("owner", c.Owner),
		zap.String("category", c.Category),
		zap.Stringer("target", c.Target),
	)
	return c.ID, nil
}
