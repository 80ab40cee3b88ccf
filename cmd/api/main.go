package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/crowdfund/backend/internal/config"
	"github.com/crowdfund/backend/internal/db"
	"github.com/crowdfund/backend/internal/events"
	apphttp "github.com/crowdfund/backend/internal/http"
	"github.com/crowdfund/backend/internal/http/handlers"
	"github.com/crowdfund/backend/internal/ledger"
	"github.com/crowdfund/backend/internal/repositories"
	"github.com/crowdfund/backend/internal/services"
	"github.com/crowdfund/backend/migrations"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repositories
	ledgerRepo := repositories.NewLedgerRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)
	walletRepo := repositories.NewWalletRepo(pool)
	depositRepo := repositories.NewDepositRepo(pool)

	// Ledger
	engine, err := openLedger(ctx, cfg, ledgerRepo, log)
	if err != nil {
		log.Fatal("failed to restore ledger", zap.Error(err))
	}

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Services
	campaignService := services.NewCampaignService(engine, auditRepo, publisher, log)
	walletService := services.NewWalletService(walletRepo, auditRepo, cfg, log)
	depositService := services.NewDepositService(campaignService, depositRepo, log)

	// Handlers
	authHandler := handlers.NewAuthHandler(walletService, log)
	campaignHandler := handlers.NewCampaignHandler(campaignService, cfg.TONHotWalletAddress, log)
	userHandler := handlers.NewUserHandler(campaignService, log)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)

	// Background consumers
	if err := wsHub.Start(ctx); err != nil {
		log.Fatal("failed to start ws hub", zap.Error(err))
	}
	if err := depositService.Start(ctx, subscriber, cfg.DepositSweepInterval); err != nil {
		log.Fatal("failed to start deposit consumer", zap.Error(err))
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, authHandler, campaignHandler, userHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr), zap.Int("campaigns", engine.Len()))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}

// openLedger restores the engine from the Postgres journal, or starts an
// empty in-memory ledger when journaling is disabled.
func openLedger(ctx context.Context, cfg *config.Config, repo *repositories.LedgerRepo, log *zap.Logger) (*ledger.Engine, error) {
	if !cfg.JournalEnabled {
		log.Warn("ledger journal disabled, state will not survive a restart")
		return ledger.New(ledger.WithLogger(log)), nil
	}

	campaigns, txs, err := repo.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	engine, err := ledger.Restore(campaigns, txs,
		ledger.WithJournal(repo),
		ledger.WithJournalTimeout(cfg.JournalTimeout),
		ledger.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}
	if err := engine.VerifyIndexes(); err != nil {
		log.Warn("restored indexes inconsistent, rebuilding", zap.Error(err))
		engine.RebuildIndexes()
	}
	log.Info("ledger restored", zap.Int("campaigns", len(campaigns)), zap.Int("transactions", len(txs)))
	return engine, nil
}
