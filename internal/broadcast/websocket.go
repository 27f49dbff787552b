package broadcast

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/tonimelisma/schema-api/internal/authz"
)

const (
	defaultSubscriberBuffer = 64
	writeTimeout            = 10 * time.Second
)

// SubscriberGauge tracks open subscriptions.
type SubscriberGauge interface {
	SubscriberDelta(d int)
}

// WebsocketHandler subscribes an authenticated caller to their own channel
// and writes every message as a JSON text frame. The caller may name the
// channel with ?channel=; only user.{own id} is allowed.
type WebsocketHandler struct {
	Hub            *Hub
	Buffer         int
	OriginPatterns []string
	Gauge          SubscriberGauge
	Logger         *slog.Logger
}

func (h *WebsocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := h.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	actor, ok := authz.ActorFrom(r.Context())
	if !ok {
		http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
		return
	}

	channel := r.URL.Query().Get("channel")
	if channel == "" {
		channel = Channel(actor.ID)
	}

	if viewer, ok := ViewerOf(channel); !ok || viewer != actor.ID {
		logger.Info("channel subscription refused",
			slog.String("channel", channel),
			slog.String("actor", actor.ID),
		)
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)

		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.OriginPatterns})
	if err != nil {
		logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.CloseNow()

	buffer := h.Buffer
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}

	sub := h.Hub.Subscribe(channel, buffer)
	defer sub.Close()

	if h.Gauge != nil {
		h.Gauge.SubscriberDelta(1)
		defer h.Gauge.SubscriberDelta(-1)
	}

	logger.Debug("subscriber connected", slog.String("channel", channel))

	// Subscribers only listen; CloseRead handles control frames and ends
	// ctx when the client goes away.
	ctx := conn.CloseRead(r.Context())

	err = pump(ctx, conn, sub)

	switch {
	case err == nil:
		conn.Close(websocket.StatusNormalClosure, "")
	case errors.Is(err, context.Canceled) || websocket.CloseStatus(err) != -1:
	default:
		logger.Warn("subscriber write failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}

	logger.Debug("subscriber disconnected", slog.String("channel", channel))
}

// pump writes messages until ctx ends or the subscription closes.
func pump(ctx context.Context, conn *websocket.Conn, sub *Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-sub.C:
			if !ok {
				return nil
			}

			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, conn, msg)
			cancel()

			if err != nil {
				return err
			}
		}
	}
}
