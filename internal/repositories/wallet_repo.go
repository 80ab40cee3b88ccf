package repositories

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/crowdfund/backend/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

type WalletRepo struct {
	pool *pgxpool.Pool
}

func NewWalletRepo(pool *pgxpool.Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// --- Proof Payloads (nonce) ---

func (r *WalletRepo) CreateProofPayload(ctx context.Context, ttl time.Duration) (*models.TonProofPayload, error) {
	p := &models.TonProofPayload{Payload: generateNonce(32)}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO ton_proof_payloads (payload, expires_at)
		VALUES ($1, now() + $2::interval)
		RETURNING id, created_at, expires_at
	`, p.Payload, ttl.String()).Scan(&p.ID, &p.CreatedAt, &p.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ConsumeProofPayload marks an unexpired payload as used. pgx.ErrNoRows means
// it was unknown, expired, or already used.
func (r *WalletRepo) ConsumeProofPayload(ctx context.Context, payload string) (*models.TonProofPayload, error) {
	var p models.TonProofPayload
	err := r.pool.QueryRow(ctx, `
		UPDATE ton_proof_payloads
		SET used = true
		WHERE payload = $1 AND used = false AND expires_at > now()
		RETURNING id, payload, created_at, expires_at, used
	`, payload).Scan(&p.ID, &p.Payload, &p.CreatedAt, &p.ExpiresAt, &p.Used)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// --- Wallets ---

func (r *WalletRepo) Upsert(ctx context.Context, w *models.Wallet) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO wallets (
			address, address_friendly, network, public_key, proof_domain, proof_timestamp
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (address) DO UPDATE SET
			address_friendly = EXCLUDED.address_friendly,
			public_key = EXCLUDED.public_key,
			proof_domain = EXCLUDED.proof_domain,
			proof_timestamp = EXCLUDED.proof_timestamp,
			last_login_at = now()
		RETURNING first_seen_at, last_login_at
	`, w.Address, w.AddressFriendly, w.Network, w.PublicKey, w.ProofDomain, w.ProofTimestamp,
	).Scan(&w.FirstSeenAt, &w.LastLoginAt)
}

func (r *WalletRepo) Get(ctx context.Context, address string) (*models.Wallet, error) {
	var w models.Wallet
	err := r.pool.QueryRow(ctx, `
		SELECT address, address_friendly, network, public_key, proof_domain,
		       proof_timestamp, first_seen_at, last_login_at
		FROM wallets WHERE address = $1
	`, address).Scan(
		&w.Address, &w.AddressFriendly, &w.Network, &w.PublicKey, &w.ProofDomain,
		&w.ProofTimestamp, &w.FirstSeenAt, &w.LastLoginAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// PurgeExpiredPayloads deletes payloads that can no longer be consumed.
func (r *WalletRepo) PurgeExpiredPayloads(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM ton_proof_payloads WHERE used = true OR expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func generateNonce(bytes int) string {
	b := make([]byte, bytes)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
