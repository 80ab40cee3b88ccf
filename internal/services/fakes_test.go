package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/crowdfund/backend/internal/events"
	"github.com/crowdfund/backend/internal/ledger"
	"github.com/crowdfund/backend/internal/models"
	"github.com/crowdfund/backend/internal/repositories"
)

type fakeAudit struct {
	mu      sync.Mutex
	entries []models.AuditLog
	err     error
}

func (f *fakeAudit) Log(_ context.Context, e models.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeAudit) GetByEntity(_ context.Context, entityType string, entityID uint64, limit, offset int) ([]models.AuditLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AuditLog
	for i := len(f.entries) - 1; i >= 0; i-- {
		e := f.entries[i]
		if e.EntityType == entityType && e.EntityID != nil && *e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeAudit) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.entries))
	for i, e := range f.entries {
		out[i] = e.Action
	}
	return out
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, stream string, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	if stream == events.StreamLedger {
		p.events = append(p.events, e)
	}
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fakeDeposits struct {
	mu       sync.Mutex
	rows     []repositories.Deposit
	statuses map[string]string
	reasons  map[string]string
}

func newFakeDeposits() *fakeDeposits {
	return &fakeDeposits{statuses: map[string]string{}, reasons: map[string]string{}}
}

func (f *fakeDeposits) Claim(_ context.Context, d repositories.Deposit) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.statuses[d.TxHash]; ok {
		return false, nil
	}
	f.rows = append(f.rows, d)
	f.statuses[d.TxHash] = repositories.DepositStatusPending
	return true, nil
}

func (f *fakeDeposits) Pending(_ context.Context, limit int) ([]repositories.Deposit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repositories.Deposit
	for _, d := range f.rows {
		if f.statuses[d.TxHash] == repositories.DepositStatusPending && len(out) < limit {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDeposits) Acquire(_ context.Context, txHash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statuses[txHash] != repositories.DepositStatusPending {
		return false, nil
	}
	f.statuses[txHash] = repositories.DepositStatusApplying
	return true, nil
}

func (f *fakeDeposits) Release(_ context.Context, txHash, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statuses[txHash] == repositories.DepositStatusApplying {
		f.statuses[txHash] = repositories.DepositStatusPending
		f.reasons[txHash] = reason
	}
	return nil
}

func (f *fakeDeposits) Resolve(_ context.Context, txHash, status, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[txHash] = status
	f.reasons[txHash] = reason
	return nil
}

func (f *fakeDeposits) status(txHash string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[txHash]
}

// flakyJournal fails the next failures appends of op, then recovers.
type flakyJournal struct {
	mu       sync.Mutex
	op       string
	failures int
}

var errJournalDown = errors.New("journal down")

func (j *flakyJournal) Append(_ context.Context, rec ledger.Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if rec.Op == j.op && j.failures > 0 {
		j.failures--
		return errJournalDown
	}
	return nil
}

var errNoRows = errors.New("no rows in result set")

type fakeWallets struct {
	payloads map[string]bool
	saved    []models.Wallet
}

func (f *fakeWallets) CreateProofPayload(_ context.Context, ttl time.Duration) (*models.TonProofPayload, error) {
	p := &models.TonProofPayload{Payload: "nonce-1", ExpiresAt: time.Now().Add(ttl)}
	f.payloads[p.Payload] = true
	return p, nil
}

func (f *fakeWallets) ConsumeProofPayload(_ context.Context, payload string) (*models.TonProofPayload, error) {
	if !f.payloads[payload] {
		return nil, errNoRows
	}
	delete(f.payloads, payload)
	return &models.TonProofPayload{Payload: payload, Used: true}, nil
}

func (f *fakeWallets) Upsert(_ context.Context, w *models.Wallet) error {
	f.saved = append(f.saved, *w)
	return nil
}
