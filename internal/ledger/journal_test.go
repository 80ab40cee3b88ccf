package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/crowdfund/backend/internal/models"
)

// memJournal keeps the latest state per campaign and every transaction, the
// same shape the Postgres journal stores.
type memJournal struct {
	mu        sync.Mutex
	failOn    string
	ops       []string
	campaigns map[uint64]models.Campaign
	txs       []models.Transaction
}

func newMemJournal() *memJournal {
	return &memJournal{campaigns: make(map[uint64]models.Campaign)}
}

var errJournalDown = errors.New("journal down")

func (j *memJournal) Append(_ context.Context, rec Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if rec.Op == j.failOn {
		return errJournalDown
	}
	j.ops = append(j.ops, rec.Op)
	j.campaigns[rec.Campaign.ID] = rec.Campaign
	j.txs = append(j.txs, rec.Transactions...)
	return nil
}

func (j *memJournal) snapshot() ([]models.Campaign, []models.Transaction) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]models.Campaign, len(j.campaigns))
	for id, c := range j.campaigns {
		out[id] = c
	}
	return out, append([]models.Transaction(nil), j.txs...)
}

func TestJournalFailureAbortsMutation(t *testing.T) {
	ctx := context.Background()
	j := newMemJournal()
	e, clock := newTestEngine(t, WithJournal(j))
	id := mustCreate(t, e, clock, 100, 1, time.Hour)
	if _, err := e.Donate(ctx, id, alice, 30); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		op  string
		run func() error
	}{
		{OpDonate, func() error { _, err := e.Donate(ctx, id, bob, 10); return err }},
		{OpWithdraw, func() error { return e.Withdraw(ctx, id, owner, 10) }},
		{OpClose, func() error { return e.Close(ctx, id, owner) }},
		{OpCreate, func() error {
			_, err := e.CreateCampaign(ctx, CreateCampaignInput{Owner: owner, Title: "x", Target: 5, Deadline: clock.Now().Add(time.Hour).Unix()})
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			before, _ := e.Campaign(id)
			txBefore := len(e.CampaignTransactions(id))
			n := e.Len()

			j.failOn = tt.op
			err := tt.run()
			j.failOn = ""
			if !errors.Is(err, errJournalDown) {
				t.Fatalf("got %v, want journal error", err)
			}

			after, _ := e.Campaign(id)
			if after.AmountCollected != before.AmountCollected || after.IsActive() != before.IsActive() || len(after.Donations) != len(before.Donations) {
				t.Errorf("campaign changed: %+v", after)
			}
			if len(e.CampaignTransactions(id)) != txBefore || e.Len() != n {
				t.Error("ledger changed")
			}
			if ids := e.UserDonations(bob); len(ids) != 0 {
				t.Errorf("donor index changed: %v", ids)
			}
			if err := e.VerifyIndexes(); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestRestoreFromJournal(t *testing.T) {
	ctx := context.Background()
	j := newMemJournal()
	e, clock := newTestEngine(t, WithJournal(j))

	a := mustCreate(t, e, clock, 100, 1, time.Hour)
	b := mustCreate(t, e, clock, 100, 1, time.Second)
	if _, err := e.Donate(ctx, a, alice, 40); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Donate(ctx, b, bob, 20); err != nil {
		t.Fatal(err)
	}
	if err := e.Withdraw(ctx, a, owner, 15); err != nil {
		t.Fatal(err)
	}
	clock.Advance(2 * time.Second)
	if _, err := e.Refund(ctx, b, bob); err != nil {
		t.Fatal(err)
	}

	campaigns, txs := j.snapshot()
	r, err := Restore(campaigns, txs, WithClock(clock.Now))
	if err != nil {
		t.Fatal(err)
	}

	if r.Len() != e.Len() {
		t.Fatalf("len = %d, want %d", r.Len(), e.Len())
	}
	for _, id := range []uint64{a, b} {
		got, _ := r.Campaign(id)
		want, _ := e.Campaign(id)
		if got.AmountCollected != want.AmountCollected || got.IsActive() != want.IsActive() || len(got.Donations) != len(want.Donations) {
			t.Errorf("campaign %d: got %+v, want %+v", id, got, want)
		}
		checkBalance(t, r, id)
	}
	if err := r.VerifyIndexes(); err != nil {
		t.Error(err)
	}
	if got := r.UserTransactions(bob); len(got) != 2 || got[0].Kind != models.TxKindRefund {
		t.Errorf("bob txs = %+v", got)
	}

	// new transactions continue the restored sequence
	if _, err := r.Donate(ctx, a, bob, 1); err != nil {
		t.Fatal(err)
	}
	last := r.CampaignTransactions(a)
	if seq := last[len(last)-1].Seq; seq != uint64(len(txs)+1) {
		t.Errorf("next seq = %d, want %d", seq, len(txs)+1)
	}
}

func TestRestoreRejectsGaps(t *testing.T) {
	_, err := Restore([]models.Campaign{{ID: 1}}, nil)
	if err == nil {
		t.Error("expected error for non-dense ids")
	}
	_, err = Restore([]models.Campaign{{ID: 0, State: models.Open{}}}, []models.Transaction{{CampaignID: 3}})
	if err == nil {
		t.Error("expected error for unknown campaign reference")
	}
}

func TestExpireIsJournaled(t *testing.T) {
	j := newMemJournal()
	e, clock := newTestEngine(t, WithJournal(j))
	mustCreate(t, e, clock, 100, 1, time.Second)
	clock.Advance(2 * time.Second)
	e.ActiveCampaigns()
	e.ActiveCampaigns()

	var expires int
	for _, op := range j.ops {
		if op == OpExpire {
			expires++
		}
	}
	if expires != 1 {
		t.Errorf("expire journaled %d times, want 1", expires)
	}
}

// stalledJournal blocks appends of op until their context ends.
type stalledJournal struct {
	op string
}

func (j stalledJournal) Append(ctx context.Context, rec Record) error {
	if rec.Op != j.op {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestStalledJournalDoesNotBlockReads(t *testing.T) {
	e, clock := newTestEngine(t, WithJournal(stalledJournal{op: OpExpire}), WithJournalTimeout(20*time.Millisecond))
	id := mustCreate(t, e, clock, 100, 1, time.Second)
	clock.Advance(2 * time.Second)

	done := make(chan models.CampaignStats, 1)
	go func() {
		st, err := e.Stats(id)
		if err != nil {
			t.Error(err)
		}
		done <- st
	}()

	select {
	case st := <-done:
		if st.IsActive {
			t.Error("expired campaign still active")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stats blocked on the journal")
	}
	if ids := e.ActiveCampaigns(); len(ids) != 0 {
		t.Errorf("active = %v, want none", ids)
	}
}

func TestStalledJournalFailsMutation(t *testing.T) {
	ctx := context.Background()
	e, clock := newTestEngine(t, WithJournal(stalledJournal{op: OpDonate}), WithJournalTimeout(20*time.Millisecond))
	id := mustCreate(t, e, clock, 100, 1, time.Hour)

	_, err := e.Donate(ctx, id, alice, 10)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if Code(err) != CodeInternal {
		t.Errorf("code = %q, want %q", Code(err), CodeInternal)
	}
	c, _ := e.Campaign(id)
	if c.AmountCollected != 0 || len(c.Donations) != 0 {
		t.Errorf("collected=%d donations=%d after failed journal", c.AmountCollected, len(c.Donations))
	}
}
