package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/crowdfund/backend/internal/auth"
	"github.com/crowdfund/backend/internal/config"
	"github.com/crowdfund/backend/internal/ton"
	"go.uber.org/zap"
)

func newTestWalletService(verifyErr error) (*WalletService, *fakeWallets, *fakeAudit) {
	wallets := &fakeWallets{payloads: map[string]bool{}}
	audit := &fakeAudit{}
	cfg := &config.Config{
		TONNetwork:         "testnet",
		JWTSecret:          "secret",
		JWTExpiration:      time.Hour,
		TONProofPayloadTTL: time.Minute,
	}
	s := NewWalletService(wallets, audit, cfg, zap.NewNop())
	s.verify = func(string, []byte, int32, ton.Proof, []string) error { return verifyErr }
	return s, wallets, audit
}

func TestWalletLogin(t *testing.T) {
	ctx := context.Background()
	s, wallets, audit := newTestWalletService(nil)

	payload, err := s.GeneratePayload(ctx)
	if err != nil {
		t.Fatal(err)
	}
	raw := "0:" + strings.Repeat("AB", 32)
	req := ton.ProofData{
		Address:   raw,
		Network:   ton.NetworkTestnet,
		PublicKey: strings.Repeat("00", 32),
		Proof:     ton.Proof{Payload: payload, Timestamp: time.Now().Unix(), Domain: ton.ProofDomain{Value: "app.test"}},
	}

	res, err := s.Login(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := auth.ParseJWT("secret", res.Token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Identity() != strings.ToLower(raw) {
		t.Errorf("identity = %q", claims.Identity())
	}
	if len(wallets.saved) != 1 || wallets.saved[0].AddressFriendly == "" {
		t.Errorf("saved = %+v", wallets.saved)
	}
	if got := audit.actions(); len(got) != 1 || got[0] != "wallet_login" {
		t.Errorf("audit = %v", got)
	}

	if _, err := s.Login(ctx, req); !errors.Is(err, ErrInvalidProof) {
		t.Errorf("payload reuse: got %v", err)
	}
}

func TestWalletLoginRejects(t *testing.T) {
	tests := []struct {
		name      string
		verifyErr error
		mutate    func(*ton.ProofData)
	}{
		{"bad signature", errors.New("invalid signature"), func(*ton.ProofData) {}},
		{"wrong network", nil, func(p *ton.ProofData) { p.Network = ton.NetworkMainnet }},
		{"bad address", nil, func(p *ton.ProofData) { p.Address = "nope" }},
		{"unknown payload", nil, func(p *ton.ProofData) { p.Proof.Payload = "forged" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s, wallets, _ := newTestWalletService(tt.verifyErr)
			payload, _ := s.GeneratePayload(ctx)
			req := ton.ProofData{
				Address: "0:" + strings.Repeat("ab", 32),
				Network: ton.NetworkTestnet,
				Proof:   ton.Proof{Payload: payload},
			}
			tt.mutate(&req)

			if _, err := s.Login(ctx, req); !errors.Is(err, ErrInvalidProof) {
				t.Errorf("got %v, want ErrInvalidProof", err)
			}
			if len(wallets.saved) != 0 {
				t.Error("wallet saved on rejected login")
			}
		})
	}
}
