package ton

import (
	"context"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/liteclient"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"go.uber.org/zap"
)

const txBatchSize = 100

// Transfer is an incoming TON transfer carrying a text comment.
type Transfer struct {
	Hash    string
	LT      uint64
	From    string // raw form
	Nano    uint64
	Comment string
}

// Cursor is the position of the last processed transaction.
type Cursor struct {
	LT   uint64
	Hash []byte
}

// Scanner lists new incoming transfers of one wallet through a lite server.
type Scanner struct {
	api    ton.APIClientWrapped
	wallet *address.Address
	log    *zap.Logger
}

// Connect dials a specific lite server when host and key are given, and the
// public global config of the network otherwise.
func Connect(ctx context.Context, network, host string, port int, key string, log *zap.Logger) (ton.APIClientWrapped, error) {
	client := liteclient.NewConnectionPool()

	if host != "" && key != "" {
		addr := fmt.Sprintf("%s:%d", host, port)
		log.Info("connecting to lite server", zap.String("addr", addr))
		if err := client.AddConnection(ctx, addr, key); err != nil {
			return nil, fmt.Errorf("connect to lite server %s: %w", addr, err)
		}
	} else {
		configURL := "https://ton.org/testnet-global.config.json"
		if strings.EqualFold(network, "mainnet") {
			configURL = "https://ton.org/global.config.json"
		}
		log.Info("connecting via global config", zap.String("url", configURL), zap.String("network", network))
		if err := client.AddConnectionsFromConfigUrl(ctx, configURL); err != nil {
			return nil, fmt.Errorf("connect via config %s: %w", configURL, err)
		}
	}

	policy := ton.ProofCheckPolicyFast
	if strings.EqualFold(network, "mainnet") {
		policy = ton.ProofCheckPolicySecure
	}
	return ton.NewAPIClient(client, policy).WithRetry(), nil
}

func NewScanner(api ton.APIClientWrapped, wallet string, log *zap.Logger) (*Scanner, error) {
	addr, err := address.ParseAddr(wallet)
	if err != nil {
		return nil, fmt.Errorf("invalid wallet address %q: %w", wallet, err)
	}
	return &Scanner{api: api, wallet: addr, log: log}, nil
}

func (s *Scanner) Wallet() string { return s.wallet.String() }

// Head returns the wallet's latest transaction, or a zero cursor when the
// account is not active yet.
func (s *Scanner) Head(ctx context.Context) (Cursor, error) {
	account, err := s.account(ctx)
	if err != nil || account == nil {
		return Cursor{}, err
	}
	return Cursor{LT: account.LastTxLT, Hash: account.LastTxHash}, nil
}

func (s *Scanner) account(ctx context.Context) (*tlb.Account, error) {
	block, err := s.api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("get master block: %w", err)
	}
	account, err := s.api.GetAccount(ctx, block, s.wallet)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if account == nil || !account.IsActive || account.LastTxLT == 0 {
		return nil, nil
	}
	return account, nil
}

// Since returns transfers newer than from, oldest first, and the cursor to
// resume from next time.
func (s *Scanner) Since(ctx context.Context, from Cursor) ([]Transfer, Cursor, error) {
	account, err := s.account(ctx)
	if err != nil {
		return nil, from, err
	}
	if account == nil || account.LastTxLT <= from.LT {
		return nil, from, nil
	}

	txs, err := s.fetch(ctx, account, from.LT)
	if err != nil {
		return nil, from, fmt.Errorf("fetch transactions: %w", err)
	}

	var out []Transfer
	for _, tx := range txs {
		if t, ok := incomingTransfer(tx); ok {
			out = append(out, t)
		}
	}
	return out, Cursor{LT: account.LastTxLT, Hash: account.LastTxHash}, nil
}

// fetch pages backwards from the account head until it reaches cursorLT.
func (s *Scanner) fetch(ctx context.Context, account *tlb.Account, cursorLT uint64) ([]*tlb.Transaction, error) {
	var all []*tlb.Transaction

	lt := account.LastTxLT
	hash := account.LastTxHash

	for {
		txs, err := s.api.ListTransactions(ctx, s.wallet, uint32(txBatchSize), lt, hash)
		if err != nil {
			return nil, fmt.Errorf("list transactions (lt=%d): %w", lt, err)
		}
		if len(txs) == 0 {
			break
		}

		reachedCursor := false
		for _, tx := range txs {
			if tx.LT <= cursorLT {
				reachedCursor = true
				continue
			}
			all = append(all, tx)
		}

		if reachedCursor || len(txs) < txBatchSize {
			break
		}

		oldest := txs[0]
		if oldest.PrevTxLT == 0 {
			break
		}
		lt = oldest.PrevTxLT
		hash = oldest.PrevTxHash
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].LT < all[j].LT
	})
	return all, nil
}

func incomingTransfer(tx *tlb.Transaction) (Transfer, bool) {
	if tx.IO.In == nil {
		return Transfer{}, false
	}
	in, ok := tx.IO.In.Msg.(*tlb.InternalMessage)
	if !ok || in == nil || in.Bounced {
		return Transfer{}, false
	}
	nano := in.Amount.Nano()
	if nano.Sign() <= 0 || !nano.IsUint64() {
		return Transfer{}, false
	}
	return Transfer{
		Hash:    hex.EncodeToString(tx.Hash),
		LT:      tx.LT,
		From:    strings.ToLower(in.SrcAddr.StringRaw()),
		Nano:    nano.Uint64(),
		Comment: extractComment(in),
	}, true
}

// extractComment reads a text comment: opcode 0x00000000 then UTF-8 bytes.
func extractComment(in *tlb.InternalMessage) string {
	if in.Body == nil {
		return ""
	}

	slice := in.Body.BeginParse()
	if slice.BitsLeft() < 32 {
		return ""
	}

	op, err := slice.LoadUInt(32)
	if err != nil || op != 0 {
		return ""
	}

	remaining := slice.BitsLeft()
	if remaining < 8 {
		return ""
	}

	data, err := slice.LoadSlice(remaining)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
