package ledger

import (
	"cmp"
	"slices"

	"github.com/crowdfund/backend/internal/models"
)

// txLog is the append-only transaction ledger. Entries are never mutated or
// removed once appended.
type txLog struct {
	entries []models.Transaction
	byUser  map[string][]int
	nextSeq uint64
}

func newTxLog() *txLog {
	return &txLog{byUser: make(map[string][]int)}
}

// stage assigns sequence numbers without appending, so a mutation can journal
// the entries before committing them.
func (l *txLog) stage(txs []models.Transaction) []models.Transaction {
	out := make([]models.Transaction, len(txs))
	for i, tx := range txs {
		tx.Seq = l.nextSeq + uint64(i)
		out[i] = tx
	}
	return out
}

func (l *txLog) append(txs ...models.Transaction) {
	for _, tx := range txs {
		l.byUser[tx.Identity] = append(l.byUser[tx.Identity], len(l.entries))
		l.entries = append(l.entries, tx)
		if tx.Seq >= l.nextSeq {
			l.nextSeq = tx.Seq + 1
		}
	}
}

// forUser returns the identity's entries newest first: timestamp descending,
// ties broken by insertion sequence descending.
func (l *txLog) forUser(identity string) []models.Transaction {
	pos := l.byUser[identity]
	out := make([]models.Transaction, 0, len(pos))
	for _, p := range pos {
		out = append(out, l.entries[p])
	}
	slices.SortFunc(out, func(a, b models.Transaction) int {
		if c := cmp.Compare(b.Timestamp, a.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(b.Seq, a.Seq)
	})
	return out
}

func (l *txLog) forCampaign(id uint64) []models.Transaction {
	var out []models.Transaction
	for _, tx := range l.entries {
		if tx.CampaignID == id {
			out = append(out, tx)
		}
	}
	return out
}
