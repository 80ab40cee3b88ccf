package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/crowdfund/backend/internal/config"
	"github.com/crowdfund/backend/internal/db"
	"github.com/crowdfund/backend/internal/events"
	"github.com/crowdfund/backend/internal/models"
	"go.uber.org/zap"
)

// Notify Bridge: subscribes to ledger events and forwards them to an
// optional webhook as {"type", "text", "payload"}.

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.NotifyWebhookURL == "" {
		log.Warn("NOTIFY_WEBHOOK_URL is empty, events will only be logged")
	}

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	subscriber := events.NewRedisSubscriber(rdb, log)
	client := &http.Client{Timeout: 10 * time.Second}

	log.Info("notify-bridge started")

	err = subscriber.Subscribe(ctx, events.StreamLedger, func(event events.Event) {
		text := notificationText(event)
		log.Info("ledger event", zap.String("type", event.Type), zap.String("text", text))
		if cfg.NotifyWebhookURL != "" {
			forward(ctx, client, cfg.NotifyWebhookURL, event, text, log)
		}
	})
	if err != nil {
		log.Fatal("failed to subscribe", zap.Error(err))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down notify-bridge")
	cancel()
}

// notificationText renders a one-line message. Amounts in payloads are
// base-unit strings and are shown in TON.
func notificationText(event events.Event) string {
	id, _ := event.Uint64("campaign_id")
	amount := func(key string) string {
		a, err := models.ParseAmount(event.String(key))
		if err != nil {
			return "?"
		}
		return a.TON() + " TON"
	}

	switch event.Type {
	case events.EventCampaignCreated:
		return fmt.Sprintf("New campaign #%d %q in %s, target %s", id, event.String("title"), event.String("category"), amount("target"))
	case events.EventDonationReceived:
		text := fmt.Sprintf("Campaign #%d received %s from %s", id, amount("amount"), event.String("donor"))
		if reached, _ := event.Payload["target_reached"].(bool); reached {
			text += " (target reached)"
		}
		return text
	case events.EventFundsWithdrawn:
		return fmt.Sprintf("Owner withdrew %s from campaign #%d", amount("amount"), id)
	case events.EventDonationRefunded:
		return fmt.Sprintf("%s refunded %s from campaign #%d", event.String("donor"), amount("amount"), id)
	case events.EventCampaignClosed:
		return fmt.Sprintf("Campaign #%d closed (%s)", id, event.String("reason"))
	}
	return fmt.Sprintf("Event: %s", event.Type)
}

func forward(ctx context.Context, client *http.Client, url string, event events.Event, text string, log *zap.Logger) {
	body, err := json.Marshal(map[string]any{
		"type":    event.Type,
		"text":    text,
		"payload": event.Payload,
	})
	if err != nil {
		log.Warn("failed to encode notification", zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		log.Warn("failed to build notification request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		log.Warn("failed to forward notification", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Warn("webhook returned non-2xx", zap.Int("status", resp.StatusCode))
	}
}
