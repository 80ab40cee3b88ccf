package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/crowdfund/backend/internal/models"
	"go.uber.org/zap"
)

// Engine is the authoritative campaign ledger. Mutations are serialized by
// mu; reads share it and only take the write side to apply lazy closure.
type Engine struct {
	mu        sync.RWMutex
	campaigns []*models.Campaign // arena, index == campaign id
	idx       *indexes
	txs       *txLog

	journal        Journal
	journalTimeout time.Duration
	nowFn          func() time.Time
	log            *zap.Logger
}

// DefaultJournalTimeout bounds one journal write. The write happens under mu,
// so a stalled store would otherwise hold every reader and writer.
const DefaultJournalTimeout = 3 * time.Second

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.nowFn = now }
}

func WithJournal(j Journal) Option {
	return func(e *Engine) {
		if j != nil {
			e.journal = j
		}
	}
}

// WithJournalTimeout overrides DefaultJournalTimeout; d <= 0 keeps the default.
func WithJournalTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.journalTimeout = d
		}
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{
		idx:     newIndexes(),
		txs:     newTxLog(),
		journal:        nopJournal{},
		journalTimeout: DefaultJournalTimeout,
		nowFn:          time.Now,
		log:            zap.NewNop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Restore rebuilds an engine from persisted state. Campaign ids must be the
// dense sequence 0..n-1; indexes are derived from the campaigns.
func Restore(campaigns []models.Campaign, txs []models.Transaction, opts ...Option) (*Engine, error) {
	e := New(opts...)
	for i := range campaigns {
		if campaigns[i].ID != uint64(i) {
			return nil, fmt.Errorf("restore: campaign at position %d has id %d", i, campaigns[i].ID)
		}
		c := campaigns[i].Clone()
		if c.State == nil {
			c.State = models.Open{}
		}
		e.campaigns = append(e.campaigns, &c)
	}
	e.idx = buildIndexes(e.campaigns)
	for _, tx := range txs {
		if tx.CampaignID >= uint64(len(e.campaigns)) {
			return nil, fmt.Errorf("restore: transaction %d references unknown campaign %d", tx.Seq, tx.CampaignID)
		}
		e.txs.append(tx)
	}
	return e, nil
}

func (e *Engine) now() int64 { return e.nowFn().Unix() }

func (e *Engine) lookup(id uint64) (*models.Campaign, error) {
	if id >= uint64(len(e.campaigns)) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return e.campaigns[id], nil
}

func expired(c *models.Campaign, now int64) bool {
	return c.IsActive() && now > c.Deadline
}

// expireLocked flips an open campaign whose deadline has passed. The flip is
// idempotent and is not a transaction; it is journaled best effort because a
// restored engine reaches the same state from the deadline alone.
func (e *Engine) expireLocked(ctx context.Context, c *models.Campaign, now int64) {
	if !expired(c, now) {
		return
	}
	c.State = models.Open{}.Close(now, models.CloseReasonDeadline)
	e.idx.onClose(c.ID)
	if err := e.appendJournal(ctx, Record{Op: OpExpire, Campaign: c.Clone()}); err != nil {
		e.log.Warn("failed to journal deadline closure", zap.Uint64("campaign_id", c.ID), zap.Error(err))
	}
	e.log.Info("campaign closed by deadline", zap.Uint64("campaign_id", c.ID), zap.Int64("deadline", c.Deadline))
}

// expireStale applies lazy closure for read paths. ids == nil means every
// active campaign.
func (e *Engine) expireStale(ids []uint64) {
	now := e.now()

	e.mu.RLock()
	if ids == nil {
		ids = e.idx.activeIDs()
	}
	stale := false
	for _, id := range ids {
		if id < uint64(len(e.campaigns)) && expired(e.campaigns[id], now) {
			stale = true
			break
		}
	}
	e.mu.RUnlock()
	if !stale {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range ids {
		if id < uint64(len(e.campaigns)) {
			e.expireLocked(context.Background(), e.campaigns[id], now)
		}
	}
}

func (e *Engine) appendJournal(ctx context.Context, rec Record) error {
	ctx, cancel := context.WithTimeout(ctx, e.journalTimeout)
	defer cancel()
	return e.journal.Append(ctx, rec)
}

// commitLocked journals the mutation and then publishes next as the stored
// state of its campaign. Nothing is changed when the journal fails.
func (e *Engine) commitLocked(ctx context.Context, op string, next models.Campaign, txs []models.Transaction) ([]models.Transaction, error) {
	staged := e.txs.stage(txs)
	if err := e.appendJournal(ctx, Record{Op: op, Campaign: next.Clone(), Transactions: staged}); err != nil {
		return nil, fmt.Errorf("journal %s for campaign %d: %w", op, next.ID, err)
	}

	if next.ID == uint64(len(e.campaigns)) {
		c := next
		e.campaigns = append(e.campaigns, &c)
		e.idx.onCreate(&c)
	} else {
		prev := e.campaigns[next.ID]
		wasActive := prev.IsActive()
		*prev = next
		if wasActive && !prev.IsActive() {
			e.idx.onClose(prev.ID)
		}
	}
	e.txs.append(staged...)
	return staged, nil
}

// Campaign returns a copy of one campaign.
func (e *Engine) Campaign(id uint64) (models.Campaign, error) {
	e.expireStale([]uint64{id})

	e.mu.RLock()
	defer e.mu.RUnlock()
	c, err := e.lookup(id)
	if err != nil {
		return models.Campaign{}, err
	}
	return c.Clone(), nil
}

// Campaigns returns all campaigns in id order.
func (e *Engine) Campaigns() []models.Campaign {
	e.expireStale(nil)

	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]models.Campaign, len(e.campaigns))
	for i, c := range e.campaigns {
		out[i] = c.Clone()
	}
	return out
}

func (e *Engine) CampaignsByCategory(category string) []uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.idx.category(category)
}

// ActiveCampaigns closes expired members before answering, so the result
// never lists a campaign whose deadline has passed.
func (e *Engine) ActiveCampaigns() []uint64 {
	e.expireStale(nil)

	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.idx.activeIDs()
}

func (e *Engine) Donators(id uint64) (models.Donators, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, err := e.lookup(id)
	if err != nil {
		return models.Donators{}, err
	}
	out := models.Donators{
		Donors:  make([]string, len(c.Donations)),
		Amounts: make([]models.Amount, len(c.Donations)),
	}
	for i, d := range c.Donations {
		out.Donors[i] = d.Donor
		out.Amounts[i] = d.Amount
	}
	return out, nil
}

func (e *Engine) UserCampaigns(identity string) []uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]uint64{}, e.idx.byOwner[identity]...)
}

func (e *Engine) UserDonations(identity string) []uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]uint64{}, e.idx.byDonor[identity]...)
}

func (e *Engine) UserTransactions(identity string) []models.Transaction {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.txs.forUser(identity)
}

// CampaignTransactions lists every ledger entry for one campaign in insertion
// order. Used by the ledger auditor.
func (e *Engine) CampaignTransactions(id uint64) []models.Transaction {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.txs.forCampaign(id)
}

// VerifyIndexes compares the maintained indexes with a full scan.
func (e *Engine) VerifyIndexes() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.idx.diff(buildIndexes(e.campaigns))
}

// RebuildIndexes replaces the indexes with a full scan of the arena.
func (e *Engine) RebuildIndexes() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.idx = buildIndexes(e.campaigns)
}

func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.campaigns)
}
