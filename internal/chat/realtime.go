package chat

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"nanochat/internal/auth"
)

// Hub fans stored messages out to the recipient's connected devices. It is
// an in-process registry of websocket subscribers keyed by user id; a user
// with no open socket simply misses the push and catches up via the
// message-page endpoint.
type Hub struct {
	log *slog.Logger

	mu   sync.RWMutex
	subs map[uuid.UUID]map[chan StoredMessage]struct{}
}

// NewHub creates an empty Hub.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{log: log, subs: make(map[uuid.UUID]map[chan StoredMessage]struct{})}
}

const subscriberBuffer = 16

func (h *Hub) subscribe(userID uuid.UUID) chan StoredMessage {
	ch := make(chan StoredMessage, subscriberBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan StoredMessage]struct{})
	}
	h.subs[userID][ch] = struct{}{}
	return ch
}

func (h *Hub) unsubscribe(userID uuid.UUID, ch chan StoredMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set := h.subs[userID]; set != nil {
		delete(set, ch)
		if len(set) == 0 {
			delete(h.subs, userID)
		}
	}
}

// Push delivers m to every open subscription of userID. Slow consumers are
// skipped rather than blocking the sender.
func (h *Hub) Push(userID uuid.UUID, m StoredMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[userID] {
		select {
		case ch <- m:
		default:
			h.log.Warn("realtime.drop", "user_id", userID)
		}
	}
}

const wsWriteTimeout = 10 * time.Second

// WSGateway upgrades authenticated clients to a message push stream.
type WSGateway struct {
	log    *slog.Logger
	hub    *Hub
	tokens *auth.TokenManager
}

// NewWSGateway constructs the /ws handler.
func NewWSGateway(log *slog.Logger, hub *Hub, tokens *auth.TokenManager) *WSGateway {
	return &WSGateway{log: log, hub: hub, tokens: tokens}
}

// HandleWS authenticates the client and streams stored messages addressed to
// it. Browsers cannot set an Authorization header on the upgrade request, so
// the access token is also accepted as a `token` query parameter.
func (g *WSGateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFrom(r.Context())
	if !ok {
		raw := r.URL.Query().Get("token")
		u, err := g.tokens.VerifyAccess(raw)
		if err != nil {
			auth.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		user = u
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		g.log.Warn("realtime.accept", "err", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closed")

	ctx := r.Context()
	sub := g.hub.subscribe(user.ID)
	defer g.hub.unsubscribe(user.ID, sub)

	// Drain inbound frames so pings are answered and closure is noticed.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case m := <-sub:
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := wsjson.Write(writeCtx, conn, m)
			cancel()
			if err != nil {
				return
			}
		case <-readDone:
			conn.Close(websocket.StatusNormalClosure, "bye")
			return
		case <-ctx.Done():
			return
		}
	}
}
