package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/crowdfund/backend/internal/events"
	"github.com/crowdfund/backend/internal/ledger"
	"go.uber.org/zap"
)

func newTestCampaignService(t *testing.T) (*CampaignService, *fakeAudit, *fakePublisher) {
	t.Helper()
	audit := &fakeAudit{}
	pub := &fakePublisher{}
	return NewCampaignService(ledger.New(), audit, pub, zap.NewNop()), audit, pub
}

func createInput() ledger.CreateCampaignInput {
	return ledger.CreateCampaignInput{
		Owner:    "spoofed-owner",
		Title:    "School roof",
		Target:   100,
		Deadline: time.Now().Add(time.Hour).Unix(),
		Category: "Education",
	}
}

func TestCampaignServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	s, audit, pub := newTestCampaignService(t)
	owner := UserActor("0:owner")
	donor := UserActor("0:donor")

	c, err := s.Create(ctx, owner, createInput())
	if err != nil {
		t.Fatal(err)
	}
	if c.Owner != owner.Identity {
		t.Errorf("owner = %q, caller identity must win", c.Owner)
	}
	if c.Category != "education" {
		t.Errorf("category = %q", c.Category)
	}

	if _, err := s.Donate(ctx, donor, c.ID, 40); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(ctx, owner, c.ID); err != nil {
		t.Fatal(err)
	}
	if got, err := s.Refund(ctx, donor, c.ID); err != nil || got != 40 {
		t.Fatalf("refund = %d, %v", got, err)
	}
	if err := s.Withdraw(ctx, owner, c.ID, 1); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Errorf("withdraw from empty campaign: %v", err)
	}

	wantActions := []string{"campaign_created", "donation_received", "campaign_closed", "donation_refunded"}
	if got := audit.actions(); !equal(got, wantActions) {
		t.Errorf("audit actions = %v, want %v", got, wantActions)
	}
	wantEvents := []string{events.EventCampaignCreated, events.EventDonationReceived, events.EventCampaignClosed, events.EventDonationRefunded}
	if got := pub.types(); !equal(got, wantEvents) {
		t.Errorf("events = %v, want %v", got, wantEvents)
	}
	for _, e := range pub.events {
		if got := e.String("owner"); got != owner.Identity {
			t.Errorf("%s owner = %q, want %q", e.Type, got, owner.Identity)
		}
	}

	trail, err := s.Events(ctx, c.ID, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(trail) != 4 || trail[0].Action != "donation_refunded" {
		t.Errorf("trail = %+v", trail)
	}
	if _, err := s.Events(ctx, 99, 10, 0); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("events of unknown campaign: %v", err)
	}
}

func TestCampaignServiceSideEffectFailuresDoNotUndo(t *testing.T) {
	ctx := context.Background()
	s, audit, pub := newTestCampaignService(t)
	audit.err = errors.New("db down")
	pub.err = errors.New("redis down")

	c, err := s.Create(ctx, UserActor("0:owner"), createInput())
	if err != nil {
		t.Fatalf("create must succeed when side effects fail: %v", err)
	}
	if _, err := s.Get(c.ID); err != nil {
		t.Error(err)
	}
}

func TestCampaignServiceReads(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestCampaignService(t)
	owner := UserActor("0:owner")
	donor := UserActor("0:donor")

	a, _ := s.Create(ctx, owner, createInput())
	in := createInput()
	in.Category = "charity"
	b, _ := s.Create(ctx, owner, in)

	for i := 0; i < 7; i++ {
		if _, err := s.Donate(ctx, donor, b.ID, 1); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Close(ctx, owner, a.ID); err != nil {
		t.Fatal(err)
	}

	if got := s.Active(); len(got) != 1 || got[0].ID != b.ID {
		t.Errorf("active = %+v", got)
	}
	if got := s.ByCategory("CHARITY"); len(got) != 1 || got[0].ID != b.ID {
		t.Errorf("by category = %+v", got)
	}
	if got := s.UserCampaigns(owner.Identity); len(got) != 2 {
		t.Errorf("user campaigns = %d", len(got))
	}
	if got := s.UserDonations(donor.Identity); len(got) != 1 {
		t.Errorf("user donations = %d", len(got))
	}
	if got := s.UserTransactions(donor.Identity, 5); len(got) != 5 {
		t.Errorf("recent transactions = %d, want 5", len(got))
	}
	if got := s.UserTransactions(donor.Identity, 0); len(got) != 7 {
		t.Errorf("all transactions = %d, want 7", len(got))
	}
	if got := s.List(); len(got) != 2 {
		t.Errorf("list = %d", len(got))
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
