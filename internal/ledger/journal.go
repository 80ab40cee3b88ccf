package ledger

import (
	"context"

	"github.com/crowdfund/backend/internal/models"
)

// Journal operations
const (
	OpCreate   = "create"
	OpDonate   = "donate"
	OpWithdraw = "withdraw"
	OpRefund   = "refund"
	OpClose    = "close"
	OpExpire   = "expire"
)

// Record is the durable form of one committed mutation: the campaign's full
// post-state plus the transactions the mutation appended.
type Record struct {
	Op           string
	Campaign     models.Campaign
	Transactions []models.Transaction
}

// Journal persists records before the engine commits them in memory. An
// Append error aborts the mutation.
type Journal interface {
	Append(ctx context.Context, rec Record) error
}

type nopJournal struct{}

func (nopJournal) Append(context.Context, Record) error { return nil }
