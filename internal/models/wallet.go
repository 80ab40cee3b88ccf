package models

import (
	"time"

	"github.com/google/uuid"
)

type TonProofPayload struct {
	ID        uuid.UUID `json:"id"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used"`
}

// Wallet is a TON wallet that proved ownership at least once. Its raw
// address is the identity used across the ledger.
type Wallet struct {
	Address         string    `json:"address"`
	AddressFriendly string    `json:"address_friendly"`
	Network         string    `json:"network"`
	PublicKey       string    `json:"public_key"`
	ProofDomain     string    `json:"proof_domain"`
	ProofTimestamp  int64     `json:"proof_timestamp"`
	FirstSeenAt     time.Time `json:"first_seen_at"`
	LastLoginAt     time.Time `json:"last_login_at"`
}
