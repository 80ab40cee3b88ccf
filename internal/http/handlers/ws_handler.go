package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/crowdfund/backend/internal/auth"
	"github.com/crowdfund/backend/internal/config"
	"github.com/crowdfund/backend/internal/events"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// wsClient is one socket. identity is empty for anonymous viewers; mine
// restricts delivery to events naming the identity.
type wsClient struct {
	conn     *websocket.Conn
	identity string
	mine     bool
}

// WSHub fans events:ledger out to connected clients.
type WSHub struct {
	cfg        *config.Config
	subscriber events.Subscriber
	log        *zap.Logger
	mu         sync.RWMutex
	clients    map[*websocket.Conn]*wsClient
}

func NewWSHub(cfg *config.Config, subscriber events.Subscriber, log *zap.Logger) *WSHub {
	return &WSHub{
		cfg:        cfg,
		subscriber: subscriber,
		log:        log,
		clients:    make(map[*websocket.Conn]*wsClient),
	}
}

func (h *WSHub) Start(ctx context.Context) error {
	return h.subscriber.Subscribe(ctx, events.StreamLedger, func(event events.Event) {
		h.broadcast(event)
	})
}

func (h *WSHub) broadcast(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, cl := range h.clients {
		if cl.mine && !involves(event, cl.identity) {
			continue
		}
		if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.Debug("ws write failed", zap.String("identity", cl.identity), zap.Error(err))
		}
	}
}

// involves reports whether the event names identity as owner or donor.
func involves(event events.Event, identity string) bool {
	if identity == "" {
		return false
	}
	return event.String("owner") == identity || event.String("donor") == identity
}

// Connections returns the number of open sockets.
func (h *WSHub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// HandleWS accepts anonymous viewers. A token is required only for
// ?scope=mine.
func (h *WSHub) HandleWS(conn *websocket.Conn) {
	cl := &wsClient{conn: conn, mine: conn.Query("scope") == "mine"}

	if tokenStr := conn.Query("token"); tokenStr != "" {
		claims, err := auth.ParseJWT(h.cfg.JWTSecret, tokenStr)
		if err != nil {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid token"}`))
			conn.Close()
			return
		}
		cl.identity = claims.Identity()
	}
	if cl.mine && cl.identity == "" {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"missing token"}`))
		conn.Close()
		return
	}

	h.mu.Lock()
	h.clients[conn] = cl
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	// Read loop (keep alive / pings)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
