package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/crowdfund/backend/internal/auth"
	"github.com/crowdfund/backend/internal/config"
	"github.com/crowdfund/backend/internal/models"
	"github.com/crowdfund/backend/internal/ton"
	"go.uber.org/zap"
)

// ErrInvalidProof covers every reason a wallet login is refused.
var ErrInvalidProof = errors.New("invalid wallet proof")

type WalletStore interface {
	CreateProofPayload(ctx context.Context, ttl time.Duration) (*models.TonProofPayload, error)
	ConsumeProofPayload(ctx context.Context, payload string) (*models.TonProofPayload, error)
	Upsert(ctx context.Context, w *models.Wallet) error
}

// WalletService binds a TON wallet to a session: the wallet proves ownership
// with a TON Connect proof and receives a JWT whose subject is its address.
type WalletService struct {
	wallets WalletStore
	audit   AuditStore
	cfg     *config.Config
	log     *zap.Logger
	verify  func(pubKeyHex string, address []byte, workchain int32, proof ton.Proof, allowedDomains []string) error
}

func NewWalletService(wallets WalletStore, audit AuditStore, cfg *config.Config, log *zap.Logger) *WalletService {
	return &WalletService{
		wallets: wallets,
		audit:   audit,
		cfg:     cfg,
		log:     log,
		verify:  ton.VerifyProof,
	}
}

// GeneratePayload issues a single-use nonce the client passes to TON Connect.
func (s *WalletService) GeneratePayload(ctx context.Context) (string, error) {
	ttl := s.cfg.TONProofPayloadTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	p, err := s.wallets.CreateProofPayload(ctx, ttl)
	if err != nil {
		return "", fmt.Errorf("failed to create proof payload: %w", err)
	}
	return p.Payload, nil
}

type LoginResult struct {
	Token  string         `json:"token"`
	Wallet *models.Wallet `json:"wallet"`
}

func (s *WalletService) Login(ctx context.Context, req ton.ProofData) (*LoginResult, error) {
	if _, err := s.wallets.ConsumeProofPayload(ctx, req.Proof.Payload); err != nil {
		return nil, fmt.Errorf("%w: unknown or expired payload", ErrInvalidProof)
	}

	workchain, addrHash, err := ton.ParseRawAddress(req.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}

	expected := networkID(s.cfg.TONNetwork)
	if req.Network != "" && req.Network != expected {
		return nil, fmt.Errorf("%w: network mismatch: expected %s, got %s", ErrInvalidProof, expected, req.Network)
	}

	if err := s.verify(req.PublicKey, addrHash, workchain, req.Proof, s.cfg.TONProofAllowedDomains); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}

	identity, err := ton.NormalizeIdentity(req.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	friendly, err := ton.FriendlyAddress(identity, expected)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}

	wallet := &models.Wallet{
		Address:         identity,
		AddressFriendly: friendly,
		Network:         expected,
		PublicKey:       req.PublicKey,
		ProofDomain:     req.Proof.Domain.Value,
		ProofTimestamp:  req.Proof.Timestamp,
	}
	if err := s.wallets.Upsert(ctx, wallet); err != nil {
		return nil, fmt.Errorf("failed to save wallet: %w", err)
	}

	token, err := auth.GenerateJWT(s.cfg.JWTSecret, identity, expected, s.cfg.JWTExpiration)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	if err := s.audit.Log(ctx, models.AuditLog{
		ActorIdentity: identity,
		ActorType:     ActorUser,
		Action:        "wallet_login",
		EntityType:    "wallet",
		Meta:          map[string]any{"address": friendly, "domain": req.Proof.Domain.Value},
	}); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", "wallet_login"), zap.Error(err))
	}

	s.log.Info("wallet logged in", zap.String("identity", identity), zap.String("address", friendly))
	return &LoginResult{Token: token, Wallet: wallet}, nil
}

// networkID maps the configured network name to the TON Connect chain id.
func networkID(name string) string {
	if strings.EqualFold(name, "mainnet") {
		return ton.NetworkMainnet
	}
	return ton.NetworkTestnet
}
