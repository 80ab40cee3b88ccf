package ledger

import (
	"context"
	"fmt"

	"github.com/crowdfund/backend/internal/models"
	"go.uber.org/zap"
)

// Close ends a campaign on behalf of its owner. Closing twice fails
// ErrAlreadyClosed, including when the deadline closed it first.
func (e *Engine) Close(ctx context.Context, id uint64, caller string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.lookup(id)
	if err != nil {
		return err
	}
	now := e.now()
	e.expireLocked(ctx, c, now)

	if caller != c.Owner {
		return fmt.Errorf("%w: only the owner can close", ErrUnauthorized)
	}
	open, ok := c.State.(models.Open)
	if !ok {
		return fmt.Errorf("%w: campaign %d", ErrAlreadyClosed, id)
	}

	next := c.Clone()
	next.State = open.Close(now, models.CloseReasonOwner)
	if _, err := e.commitLocked(ctx, OpClose, next, nil); err != nil {
		return err
	}

	e.log.Info("campaign closed by owner", zap.Uint64("campaign_id", id), zap.String("owner", caller))
	return nil
}
