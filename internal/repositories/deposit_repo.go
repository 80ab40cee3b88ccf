package repositories

import (
	"context"
	"fmt"

	"github.com/crowdfund/backend/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Deposit statuses
const (
	DepositStatusPending  = "pending"
	DepositStatusApplying = "applying"
	DepositStatusApplied  = "applied"
	DepositStatusRejected = "rejected"
)

type Deposit struct {
	TxHash     string
	TxLT       uint64
	CampaignID uint64
	Sender     string
	Amount     models.Amount
}

type DepositRepo struct {
	pool *pgxpool.Pool
}

func NewDepositRepo(pool *pgxpool.Pool) *DepositRepo {
	return &DepositRepo{pool: pool}
}

// Claim records a deposit as pending. It returns false when the transaction
// hash was seen before, so each on-chain transfer is applied at most once.
func (r *DepositRepo) Claim(ctx context.Context, d Deposit) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO deposits (tx_hash, tx_lt, campaign_id, sender, amount)
		VALUES ($1, $2, $3, $4, $5::text::numeric)
		ON CONFLICT (tx_hash) DO NOTHING
	`, d.TxHash, d.TxLT, d.CampaignID, d.Sender, d.Amount.String())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Pending lists deposits not yet applied, oldest transfer first.
func (r *DepositRepo) Pending(ctx context.Context, limit int) ([]Deposit, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT tx_hash, tx_lt, campaign_id, sender, amount::text
		FROM deposits
		WHERE status = 'pending'
		ORDER BY tx_lt, created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Deposit
	for rows.Next() {
		var d Deposit
		var amount string
		if err := rows.Scan(&d.TxHash, &d.TxLT, &d.CampaignID, &d.Sender, &amount); err != nil {
			return nil, err
		}
		if d.Amount, err = models.ParseAmount(amount); err != nil {
			return nil, fmt.Errorf("deposit %s amount: %w", d.TxHash, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Acquire moves a pending deposit to applying. It returns false when another
// consumer got there first or the deposit is already resolved.
func (r *DepositRepo) Acquire(ctx context.Context, txHash string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE deposits SET status = 'applying', updated_at = now()
		WHERE tx_hash = $1 AND status = 'pending'
	`, txHash)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Release returns an applying deposit to pending so a later sweep retries it.
func (r *DepositRepo) Release(ctx context.Context, txHash, reason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE deposits SET status = 'pending', error = NULLIF($2, ''), updated_at = now()
		WHERE tx_hash = $1 AND status = 'applying'
	`, txHash, reason)
	return err
}

func (r *DepositRepo) Resolve(ctx context.Context, txHash, status, reason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE deposits SET status = $2, error = NULLIF($3, ''), updated_at = now()
		WHERE tx_hash = $1
	`, txHash, status, reason)
	return err
}

// CountByStatus is used by the worker to report deposits stuck in pending or
// applying.
func (r *DepositRepo) CountByStatus(ctx context.Context, status string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM deposits WHERE status = $1`, status).Scan(&n)
	return n, err
}
