package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/crowdfund/backend/internal/config"
	"github.com/crowdfund/backend/internal/db"
	"github.com/crowdfund/backend/internal/events"
	"github.com/crowdfund/backend/internal/models"
	"github.com/crowdfund/backend/internal/repositories"
	"github.com/crowdfund/backend/internal/ton"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	redisCursorLT   = "ton-indexer:cursor:lt"
	redisCursorHash = "ton-indexer:cursor:hash"
	pollInterval    = 5 * time.Second
)

// The indexer watches the hot wallet for transfers whose comment names a
// campaign, records them as pending deposits in Postgres and publishes
// deposit_detected so the API applies them without waiting for its sweep.
func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.TONHotWalletAddress == "" {
		log.Fatal("TON_HOT_WALLET_ADDRESS is required")
	}

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()
	deposits := repositories.NewDepositRepo(pool)

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	publisher := events.NewRedisPublisher(rdb, log)

	api, err := ton.Connect(ctx, cfg.TONNetwork, cfg.LiteServerHost, cfg.LiteServerPort, cfg.LiteServerKey, log)
	if err != nil {
		log.Fatal("failed to connect to TON network", zap.Error(err))
	}
	scanner, err := ton.NewScanner(api, cfg.TONHotWalletAddress, log)
	if err != nil {
		log.Fatal("invalid TON_HOT_WALLET_ADDRESS", zap.Error(err))
	}

	log.Info("TON indexer started",
		zap.String("hot_wallet", scanner.Wallet()),
		zap.String("network", cfg.TONNetwork),
	)

	initCursor(ctx, scanner, rdb, log)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			if err := pollAndRecord(ctx, scanner, deposits, publisher, rdb, log); err != nil {
				log.Error("poll cycle failed", zap.Error(err))
			}
		case <-sigCh:
			log.Info("shutting down TON indexer")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

// initCursor starts a fresh indexer at the wallet head, so historical
// transfers are not replayed as donations.
func initCursor(ctx context.Context, scanner *ton.Scanner, rdb *redis.Client, log *zap.Logger) {
	existing, _ := rdb.Get(ctx, redisCursorLT).Result()
	if existing != "" {
		log.Info("resuming from saved cursor", zap.String("lt", existing))
		return
	}

	head, err := scanner.Head(ctx)
	if err != nil {
		log.Warn("failed to read wallet head for cursor init", zap.Error(err))
		rdb.Set(ctx, redisCursorLT, "0", 0)
		return
	}
	if head.LT == 0 {
		log.Info("hot wallet not active yet, starting from LT=0")
		rdb.Set(ctx, redisCursorLT, "0", 0)
		return
	}

	saveCursor(ctx, rdb, head)
	log.Info("cursor initialized at current account state (skipping historical transactions)",
		zap.Uint64("lt", head.LT),
		zap.String("hash", hex.EncodeToString(head.Hash)),
	)
}

func loadCursor(ctx context.Context, rdb *redis.Client) ton.Cursor {
	var c ton.Cursor
	if val, err := rdb.Get(ctx, redisCursorLT).Result(); err == nil {
		c.LT, _ = strconv.ParseUint(val, 10, 64)
	}
	if val, err := rdb.Get(ctx, redisCursorHash).Result(); err == nil {
		c.Hash, _ = hex.DecodeString(val)
	}
	return c
}

func saveCursor(ctx context.Context, rdb *redis.Client, c ton.Cursor) {
	rdb.Set(ctx, redisCursorLT, strconv.FormatUint(c.LT, 10), 0)
	rdb.Set(ctx, redisCursorHash, hex.EncodeToString(c.Hash), 0)
}

// pollAndRecord runs one cycle. The cursor advances only after every
// transfer of the batch was recorded or skipped.
func pollAndRecord(ctx context.Context, scanner *ton.Scanner, deposits *repositories.DepositRepo, publisher events.Publisher, rdb *redis.Client, log *zap.Logger) error {
	transfers, next, err := scanner.Since(ctx, loadCursor(ctx, rdb))
	if err != nil {
		return err
	}

	if len(transfers) > 0 {
		log.Info("found new transfers", zap.Int("count", len(transfers)))
	}
	for _, t := range transfers {
		if err := recordDeposit(ctx, t, deposits, publisher, log); err != nil {
			return err
		}
	}

	if next.LT > 0 {
		saveCursor(ctx, rdb, next)
	}
	return nil
}

// recordDeposit claims the transfer in the deposits table. The notification
// is best effort: the row alone is enough for the API to apply it.
func recordDeposit(ctx context.Context, t ton.Transfer, deposits *repositories.DepositRepo, publisher events.Publisher, log *zap.Logger) error {
	campaignID, ok := ton.ParseDepositMemo(t.Comment)
	if !ok {
		log.Info("ignoring transfer without campaign memo",
			zap.String("tx_hash", t.Hash),
			zap.String("from", t.From),
			zap.String("comment", t.Comment),
		)
		return nil
	}
	sender, err := ton.NormalizeIdentity(t.From)
	if err != nil {
		log.Warn("ignoring transfer with unparsable sender", zap.String("tx_hash", t.Hash), zap.Error(err))
		return nil
	}

	fresh, err := deposits.Claim(ctx, repositories.Deposit{
		TxHash:     t.Hash,
		TxLT:       t.LT,
		CampaignID: campaignID,
		Sender:     sender,
		Amount:     models.Amount(t.Nano),
	})
	if err != nil {
		return fmt.Errorf("record deposit %s: %w", t.Hash, err)
	}
	if !fresh {
		return nil
	}

	log.Info("deposit detected",
		zap.String("tx_hash", t.Hash),
		zap.Uint64("campaign_id", campaignID),
		zap.String("from", sender),
		zap.Uint64("nano", t.Nano),
	)

	err = publisher.Publish(ctx, events.StreamDeposits, events.Event{
		Type: events.EventDepositDetected,
		Payload: map[string]any{
			"tx_hash":     t.Hash,
			"tx_lt":       strconv.FormatUint(t.LT, 10),
			"sender":      sender,
			"campaign_id": campaignID,
			"amount":      strconv.FormatUint(t.Nano, 10),
		},
	})
	if err != nil {
		log.Warn("failed to publish deposit_detected, left to the sweep", zap.String("tx_hash", t.Hash), zap.Error(err))
	}
	return nil
}
