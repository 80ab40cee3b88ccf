package services

import (
	"context"

	"github.com/crowdfund/backend/internal/models"
	"github.com/crowdfund/backend/internal/repositories"
)

// Actor types recorded in the audit log.
const (
	ActorUser    = "user"
	ActorIndexer = "indexer"
	ActorSystem  = "system"
)

// Actor is the identity a service call runs on behalf of.
type Actor struct {
	Identity string
	Type     string
}

func UserActor(identity string) Actor { return Actor{Identity: identity, Type: ActorUser} }

type AuditStore interface {
	Log(ctx context.Context, entry models.AuditLog) error
	GetByEntity(ctx context.Context, entityType string, entityID uint64, limit, offset int) ([]models.AuditLog, error)
}

type DepositStore interface {
	Claim(ctx context.Context, d repositories.Deposit) (bool, error)
	Pending(ctx context.Context, limit int) ([]repositories.Deposit, error)
	Acquire(ctx context.Context, txHash string) (bool, error)
	Release(ctx context.Context, txHash, reason string) error
	Resolve(ctx context.Context, txHash, status, reason string) error
}

var (
	_ AuditStore   = (*repositories.AuditRepo)(nil)
	_ DepositStore = (*repositories.DepositRepo)(nil)
	_ WalletStore  = (*repositories.WalletRepo)(nil)
)
