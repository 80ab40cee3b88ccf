package repositories

import (
	"context"
	"fmt"

	"github.com/crowdfund/backend/internal/ledger"
	"github.com/crowdfund/backend/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerRepo is the Postgres journal of the campaign engine. Amounts are
// stored as NUMERIC(20,0) and travel as decimal text so the full uint64 range
// round-trips.
type LedgerRepo struct {
	pool *pgxpool.Pool
}

func NewLedgerRepo(pool *pgxpool.Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

var _ ledger.Journal = (*LedgerRepo)(nil)

// Append writes the campaign post-state, its donations and the new
// transactions in one database transaction.
func (r *LedgerRepo) Append(ctx context.Context, rec ledger.Record) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	c := rec.Campaign
	var closedAt *int64
	var closeReason *string
	if closed, ok := c.State.(models.Closed); ok {
		closedAt, closeReason = &closed.At, &closed.Reason
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO campaigns (
			id, owner, title, description, category, image, target, min_contribution,
			deadline, created_at, amount_collected, withdrawn, refunded,
			target_reached, closed_at, close_reason
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7::text::numeric, $8::text::numeric,
			$9, $10, $11::text::numeric, $12::text::numeric, $13::text::numeric,
			$14, $15, $16
		)
		ON CONFLICT (id) DO UPDATE SET
			amount_collected = EXCLUDED.amount_collected,
			withdrawn = EXCLUDED.withdrawn,
			refunded = EXCLUDED.refunded,
			target_reached = EXCLUDED.target_reached,
			closed_at = EXCLUDED.closed_at,
			close_reason = EXCLUDED.close_reason,
			updated_at = now()
	`, c.ID, c.Owner, c.Title, c.Description, c.Category, c.Image,
		c.Target.String(), c.MinContribution.String(),
		c.Deadline, c.CreatedAt, c.AmountCollected.String(), c.Withdrawn.String(), c.Refunded.String(),
		c.TargetReached, closedAt, closeReason,
	)
	if err != nil {
		return fmt.Errorf("upsert campaign %d: %w", c.ID, err)
	}

	batch := &pgx.Batch{}
	for _, d := range c.Donations {
		batch.Queue(`
			INSERT INTO donations (campaign_id, seq, donor, amount, donated_at, refunded)
			VALUES ($1, $2, $3, $4::text::numeric, $5, $6)
			ON CONFLICT (campaign_id, seq) DO UPDATE SET refunded = EXCLUDED.refunded
		`, c.ID, d.Seq, d.Donor, d.Amount.String(), d.At, d.Refunded)
	}
	for _, t := range rec.Transactions {
		batch.Queue(`
			INSERT INTO ledger_transactions (seq, identity, campaign_id, campaign_title, amount, ts, kind)
			VALUES ($1, $2, $3, $4, $5::text::numeric, $6, $7)
		`, t.Seq, t.Identity, t.CampaignID, t.CampaignTitle, t.Amount.String(), t.Timestamp, t.Kind)
	}
	batch.Queue(`INSERT INTO journal (op, campaign_id) VALUES ($1, $2)`, rec.Op, c.ID)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("journal %s: %w", rec.Op, err)
	}
	return tx.Commit(ctx)
}

// LoadAll returns every campaign in id order with its donations, and every
// transaction in sequence order.
func (r *LedgerRepo) LoadAll(ctx context.Context) ([]models.Campaign, []models.Transaction, error) {
	campaigns, err := r.loadCampaigns(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := r.loadDonations(ctx, campaigns); err != nil {
		return nil, nil, err
	}
	txs, err := r.loadTransactions(ctx)
	if err != nil {
		return nil, nil, err
	}
	return campaigns, txs, nil
}

func (r *LedgerRepo) loadCampaigns(ctx context.Context) ([]models.Campaign, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, owner, title, description, category, image,
		       target::text, min_contribution::text, deadline, created_at,
		       amount_collected::text, withdrawn::text, refunded::text,
		       target_reached, closed_at, close_reason
		FROM campaigns ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Campaign
	for rows.Next() {
		var (
			c                                              models.Campaign
			target, minContrib, collected, withdrawn, refd string
			closedAt                                       *int64
			closeReason                                    *string
		)
		if err := rows.Scan(&c.ID, &c.Owner, &c.Title, &c.Description, &c.Category, &c.Image,
			&target, &minContrib, &c.Deadline, &c.CreatedAt,
			&collected, &withdrawn, &refd,
			&c.TargetReached, &closedAt, &closeReason); err != nil {
			return nil, err
		}
		if err := parseAmounts(
			amountField{target, &c.Target},
			amountField{minContrib, &c.MinContribution},
			amountField{collected, &c.AmountCollected},
			amountField{withdrawn, &c.Withdrawn},
			amountField{refd, &c.Refunded},
		); err != nil {
			return nil, fmt.Errorf("campaign %d: %w", c.ID, err)
		}
		c.State = models.Open{}
		if closedAt != nil {
			reason := ""
			if closeReason != nil {
				reason = *closeReason
			}
			c.State = models.Closed{At: *closedAt, Reason: reason}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *LedgerRepo) loadDonations(ctx context.Context, campaigns []models.Campaign) error {
	rows, err := r.pool.Query(ctx, `
		SELECT campaign_id, seq, donor, amount::text, donated_at, refunded
		FROM donations ORDER BY campaign_id, seq
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id     uint64
			d      models.Donation
			amount string
		)
		if err := rows.Scan(&id, &d.Seq, &d.Donor, &amount, &d.At, &d.Refunded); err != nil {
			return err
		}
		if d.Amount, err = models.ParseAmount(amount); err != nil {
			return err
		}
		if id >= uint64(len(campaigns)) {
			return fmt.Errorf("donation references unknown campaign %d", id)
		}
		campaigns[id].Donations = append(campaigns[id].Donations, d)
	}
	return rows.Err()
}

func (r *LedgerRepo) loadTransactions(ctx context.Context) ([]models.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT seq, identity, campaign_id, campaign_title, amount::text, ts, kind
		FROM ledger_transactions ORDER BY seq
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		var (
			t      models.Transaction
			amount string
		)
		if err := rows.Scan(&t.Seq, &t.Identity, &t.CampaignID, &t.CampaignTitle, &amount, &t.Timestamp, &t.Kind); err != nil {
			return nil, err
		}
		if t.Amount, err = models.ParseAmount(amount); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// BalanceRow is one campaign's stored balance next to the sums recomputed
// from its ledger transactions.
type BalanceRow struct {
	CampaignID  uint64
	Collected   models.Amount
	Donations   models.Amount
	Withdrawals models.Amount
	Refunds     models.Amount
}

// Expected is donations minus withdrawals and refunds. ok is false when the
// sums cannot be reconciled without going negative.
func (b BalanceRow) Expected() (models.Amount, bool) {
	v, err := b.Donations.Sub(b.Withdrawals)
	if err == nil {
		v, err = v.Sub(b.Refunds)
	}
	return v, err == nil
}

// Balanced reports whether the stored balance matches the ledger.
func (b BalanceRow) Balanced() bool {
	want, ok := b.Expected()
	return ok && want == b.Collected
}

// Balances recomputes per-campaign sums from ledger_transactions.
func (r *LedgerRepo) Balances(ctx context.Context) ([]BalanceRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.amount_collected::text,
		       COALESCE(SUM(t.amount) FILTER (WHERE t.kind = 'donation'), 0)::text,
		       COALESCE(SUM(t.amount) FILTER (WHERE t.kind = 'withdrawal'), 0)::text,
		       COALESCE(SUM(t.amount) FILTER (WHERE t.kind = 'refund'), 0)::text
		FROM campaigns c
		LEFT JOIN ledger_transactions t ON t.campaign_id = c.id
		GROUP BY c.id, c.amount_collected
		ORDER BY c.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BalanceRow
	for rows.Next() {
		var (
			b                      BalanceRow
			collected, don, wd, rf string
		)
		if err := rows.Scan(&b.CampaignID, &collected, &don, &wd, &rf); err != nil {
			return nil, err
		}
		if err := parseAmounts(
			amountField{collected, &b.Collected},
			amountField{don, &b.Donations},
			amountField{wd, &b.Withdrawals},
			amountField{rf, &b.Refunds},
		); err != nil {
			return nil, fmt.Errorf("campaign %d: %w", b.CampaignID, err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// StaleOpenCampaigns lists campaigns still stored as open after their deadline.
func (r *LedgerRepo) StaleOpenCampaigns(ctx context.Context, now int64) ([]uint64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM campaigns WHERE closed_at IS NULL AND deadline < $1 ORDER BY id
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return pgx.CollectRows(rows, pgx.RowTo[uint64])
}

type amountField struct {
	src string
	dst *models.Amount
}

func parseAmounts(fields ...amountField) error {
	for _, f := range fields {
		v, err := models.ParseAmount(f.src)
		if err != nil {
			return err
		}
		*f.dst = v
	}
	return nil
}
