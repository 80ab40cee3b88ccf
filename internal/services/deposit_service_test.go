package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/crowdfund/backend/internal/events"
	"github.com/crowdfund/backend/internal/ledger"
	"github.com/crowdfund/backend/internal/models"
	"github.com/crowdfund/backend/internal/repositories"
	"go.uber.org/zap"
)

var sender = "0:" + strings.Repeat("cd", 32)

func depositEvent(hash string, campaignID uint64, amount string) events.Event {
	return events.Event{
		Type: events.EventDepositDetected,
		Payload: map[string]any{
			"tx_hash":     hash,
			"tx_lt":       "1001",
			"campaign_id": float64(campaignID),
			"sender":      strings.ToUpper(sender),
			"amount":      amount,
		},
	}
}

func TestDepositServiceAppliesOnce(t *testing.T) {
	ctx := context.Background()
	campaigns, _, _ := newTestCampaignService(t)
	c, err := campaigns.Create(ctx, UserActor("0:owner"), createInput())
	if err != nil {
		t.Fatal(err)
	}
	store := newFakeDeposits()
	s := NewDepositService(campaigns, store, zap.NewNop())

	e := depositEvent("aa", c.ID, "25")
	for i := 0; i < 2; i++ {
		if err := s.Handle(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	got, _ := campaigns.Get(c.ID)
	if got.AmountCollected != 25 || len(got.Donations) != 1 {
		t.Errorf("collected=%d donations=%d", got.AmountCollected, len(got.Donations))
	}
	if got.Donations[0].Donor != sender {
		t.Errorf("donor = %q, want normalized sender", got.Donations[0].Donor)
	}
	if store.statuses["aa"] != repositories.DepositStatusApplied {
		t.Errorf("status = %q", store.statuses["aa"])
	}
}

func TestDepositServiceRecordsRejection(t *testing.T) {
	ctx := context.Background()
	campaigns, _, _ := newTestCampaignService(t)
	store := newFakeDeposits()
	s := NewDepositService(campaigns, store, zap.NewNop())

	if err := s.Handle(ctx, depositEvent("bb", 7, "10")); err != nil {
		t.Fatal(err)
	}
	if store.statuses["bb"] != repositories.DepositStatusRejected || store.reasons["bb"] != "not_found" {
		t.Errorf("status=%q reason=%q", store.statuses["bb"], store.reasons["bb"])
	}
}

func TestDepositServiceMalformedEvents(t *testing.T) {
	s := NewDepositService(nil, newFakeDeposits(), zap.NewNop())

	tests := []struct {
		name  string
		event events.Event
	}{
		{"no hash", depositEvent("", 0, "1")},
		{"bad sender", events.Event{Payload: map[string]any{"tx_hash": "x", "sender": "???", "campaign_id": 1.0, "amount": "1"}}},
		{"no amount", events.Event{Payload: map[string]any{"tx_hash": "x", "sender": sender, "campaign_id": 1.0}}},
		{"no campaign", events.Event{Payload: map[string]any{"tx_hash": "x", "sender": sender, "amount": "1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Handle(context.Background(), tt.event); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDepositServiceRetriesInternalFailure(t *testing.T) {
	ctx := context.Background()
	journal := &flakyJournal{op: ledger.OpDonate, failures: 1}
	campaigns := NewCampaignService(ledger.New(ledger.WithJournal(journal)), &fakeAudit{}, &fakePublisher{}, zap.NewNop())
	c, err := campaigns.Create(ctx, UserActor("0:owner"), createInput())
	if err != nil {
		t.Fatal(err)
	}
	store := newFakeDeposits()
	s := NewDepositService(campaigns, store, zap.NewNop())
	e := depositEvent("cc", c.ID, "40")

	if err := s.Handle(ctx, e); !errors.Is(err, errJournalDown) {
		t.Fatalf("first attempt err = %v, want journal failure", err)
	}
	if got := store.status("cc"); got != repositories.DepositStatusPending {
		t.Fatalf("status after internal failure = %q, want pending", got)
	}

	if err := s.Handle(ctx, e); err != nil {
		t.Fatalf("retry: %v", err)
	}
	got, _ := campaigns.Get(c.ID)
	if got.AmountCollected != 40 || len(got.Donations) != 1 {
		t.Errorf("collected=%d donations=%d, want 40 and 1", got.AmountCollected, len(got.Donations))
	}
	if st := store.status("cc"); st != repositories.DepositStatusApplied {
		t.Errorf("status = %q, want applied", st)
	}
}

func TestDepositServiceSweepsRecordedDeposits(t *testing.T) {
	ctx := context.Background()
	journal := &flakyJournal{op: ledger.OpDonate, failures: 1}
	campaigns := NewCampaignService(ledger.New(ledger.WithJournal(journal)), &fakeAudit{}, &fakePublisher{}, zap.NewNop())
	c, err := campaigns.Create(ctx, UserActor("0:owner"), createInput())
	if err != nil {
		t.Fatal(err)
	}
	store := newFakeDeposits()
	// Rows written by the indexer while no consumer was listening.
	for i, hash := range []string{"d1", "d2", "d3"} {
		campaignID := c.ID
		if hash == "d2" {
			campaignID = 99
		}
		if _, err := store.Claim(ctx, repositories.Deposit{
			TxHash: hash, TxLT: uint64(i + 1), CampaignID: campaignID, Sender: sender, Amount: models.Amount(10),
		}); err != nil {
			t.Fatal(err)
		}
	}
	s := NewDepositService(campaigns, store, zap.NewNop())

	n, err := s.Sweep(ctx)
	if err == nil || n != 0 {
		t.Fatalf("first sweep = %d, %v; want 0 and the journal failure", n, err)
	}
	n, err = s.Sweep(ctx)
	if err != nil || n != 3 {
		t.Fatalf("second sweep = %d, %v; want 3", n, err)
	}
	if n, _ := s.Sweep(ctx); n != 0 {
		t.Errorf("third sweep processed %d, want 0", n)
	}

	want := map[string]string{
		"d1": repositories.DepositStatusApplied,
		"d2": repositories.DepositStatusRejected,
		"d3": repositories.DepositStatusApplied,
	}
	for hash, st := range want {
		if got := store.status(hash); got != st {
			t.Errorf("%s status = %q, want %q", hash, got, st)
		}
	}
	got, _ := campaigns.Get(c.ID)
	if got.AmountCollected != 20 {
		t.Errorf("collected = %d, want 20", got.AmountCollected)
	}
}

func TestDepositServiceWakeNeverBlocks(t *testing.T) {
	s := NewDepositService(nil, newFakeDeposits(), zap.NewNop())
	for i := 0; i < 5; i++ {
		s.Wake()
	}
	if len(s.wake) != 1 {
		t.Errorf("pending wakeups = %d, want 1", len(s.wake))
	}
}
