package services

import (
	"context"

	"github.com/crowdfund/backend/internal/events"
	"github.com/crowdfund/backend/internal/ledger"
	"github.com/crowdfund/backend/internal/models"
	"go.uber.org/zap"
)

const entityCampaign = "campaign"

// CampaignService fronts the ledger engine: every successful mutation is
// written to the audit log and published on events:ledger. Audit and publish
// failures are logged and never undo a committed mutation.
type CampaignService struct {
	engine    *ledger.Engine
	audit     AuditStore
	publisher events.Publisher
	log       *zap.Logger
}

func NewCampaignService(
	engine *ledger.Engine,
	audit AuditStore,
	publisher events.Publisher,
	log *zap.Logger,
) *CampaignService {
	return &CampaignService{
		engine:    engine,
		audit:     audit,
		publisher: publisher,
		log:       log,
	}
}

func (s *CampaignService) Create(ctx context.Context, actor Actor, in ledger.CreateCampaignInput) (models.Campaign, error) {
	in.Owner = actor.Identity
	id, err := s.engine.CreateCampaign(ctx, in)
	if err != nil {
		return models.Campaign{}, err
	}
	c, err := s.engine.Campaign(id)
	if err != nil {
		return models.Campaign{}, err
	}

	s.record(ctx, actor, "campaign_created", id, map[string]any{
		"title":    c.Title,
		"category": c.Category,
		"target":   c.Target.String(),
		"deadline": c.Deadline,
	})
	s.emit(ctx, events.EventCampaignCreated, map[string]any{
		"campaign_id": id,
		"owner":       c.Owner,
		"title":       c.Title,
		"category":    c.Category,
		"target":      c.Target.String(),
	})
	return c, nil
}

func (s *CampaignService) Donate(ctx context.Context, actor Actor, id uint64, amount models.Amount) (models.DonationReceipt, error) {
	r, err := s.engine.Donate(ctx, id, actor.Identity, amount)
	if err != nil {
		return models.DonationReceipt{}, err
	}

	s.record(ctx, actor, "donation_received", id, map[string]any{
		"amount": amount.String(),
		"seq":    r.Seq,
	})
	s.emit(ctx, events.EventDonationReceived, map[string]any{
		"campaign_id":      id,
		"owner":            r.Owner,
		"donor":            r.Donor,
		"amount":           amount.String(),
		"amount_collected": r.AmountCollected.String(),
		"target_reached":   r.TargetReached,
	})
	return r, nil
}

func (s *CampaignService) Withdraw(ctx context.Context, actor Actor, id uint64, amount models.Amount) error {
	if err := s.engine.Withdraw(ctx, id, actor.Identity, amount); err != nil {
		return err
	}

	s.record(ctx, actor, "funds_withdrawn", id, map[string]any{"amount": amount.String()})
	s.emit(ctx, events.EventFundsWithdrawn, map[string]any{
		"campaign_id": id,
		"owner":       actor.Identity,
		"amount":      amount.String(),
	})
	return nil
}

func (s *CampaignService) Refund(ctx context.Context, actor Actor, id uint64) (models.Amount, error) {
	amount, err := s.engine.Refund(ctx, id, actor.Identity)
	if err != nil {
		return 0, err
	}

	s.record(ctx, actor, "donation_refunded", id, map[string]any{"amount": amount.String()})
	payload := map[string]any{
		"campaign_id": id,
		"donor":       actor.Identity,
		"amount":      amount.String(),
	}
	if c, err := s.engine.Campaign(id); err == nil {
		payload["owner"] = c.Owner
	}
	s.emit(ctx, events.EventDonationRefunded, payload)
	return amount, nil
}

func (s *CampaignService) Close(ctx context.Context, actor Actor, id uint64) error {
	if err := s.engine.Close(ctx, id, actor.Identity); err != nil {
		return err
	}

	s.record(ctx, actor, "campaign_closed", id, map[string]any{"reason": models.CloseReasonOwner})
	s.emit(ctx, events.EventCampaignClosed, map[string]any{
		"campaign_id": id,
		"owner":       actor.Identity,
		"reason":      models.CloseReasonOwner,
	})
	return nil
}

// --- Reads ---

func (s *CampaignService) Get(id uint64) (models.Campaign, error) {
	return s.engine.Campaign(id)
}

func (s *CampaignService) List() []models.Campaign {
	return s.engine.Campaigns()
}

func (s *CampaignService) Active() []models.Campaign {
	return s.resolve(s.engine.ActiveCampaigns())
}

func (s *CampaignService) ByCategory(category string) []models.Campaign {
	return s.resolve(s.engine.CampaignsByCategory(category))
}

func (s *CampaignService) Donators(id uint64) (models.Donators, error) {
	return s.engine.Donators(id)
}

func (s *CampaignService) Stats(id uint64) (models.CampaignStats, error) {
	return s.engine.Stats(id)
}

func (s *CampaignService) UserCampaigns(identity string) []models.Campaign {
	return s.resolve(s.engine.UserCampaigns(identity))
}

func (s *CampaignService) UserDonations(identity string) []models.Campaign {
	return s.resolve(s.engine.UserDonations(identity))
}

// UserTransactions returns the identity's entries newest first, at most limit
// of them when limit > 0.
func (s *CampaignService) UserTransactions(identity string, limit int) []models.Transaction {
	txs := s.engine.UserTransactions(identity)
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}
	return txs
}

// Events returns the audit trail of one campaign, newest first.
func (s *CampaignService) Events(ctx context.Context, id uint64, limit, offset int) ([]models.AuditLog, error) {
	if _, err := s.engine.Campaign(id); err != nil {
		return nil, err
	}
	return s.audit.GetByEntity(ctx, entityCampaign, id, limit, offset)
}

func (s *CampaignService) resolve(ids []uint64) []models.Campaign {
	out := make([]models.Campaign, 0, len(ids))
	for _, id := range ids {
		c, err := s.engine.Campaign(id)
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (s *CampaignService) record(ctx context.Context, actor Actor, action string, id uint64, meta map[string]any) {
	entry := models.AuditLog{
		ActorIdentity: actor.Identity,
		ActorType:     actor.Type,
		Action:        action,
		EntityType:    entityCampaign,
		EntityID:      &id,
		Meta:          meta,
	}
	if err := s.audit.Log(ctx, entry); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Uint64("campaign_id", id), zap.Error(err))
	}
}

func (s *CampaignService) emit(ctx context.Context, eventType string, payload map[string]any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.StreamLedger, events.Event{Type: eventType, Payload: payload}); err != nil {
		s.log.Warn("failed to publish ledger event", zap.String("type", eventType), zap.Error(err))
	}
}
