package handler

import (
	"context"
	"net/http"
	"time"

	"ourdates/internal/auth"
	"ourdates/internal/logging"
	"ourdates/internal/realtime"

	"github.com/gorilla/websocket"
)

const (
	pingPeriod = 30 * time.Second
	pongWait   = 2*pingPeriod + 10*time.Second
	writeWait  = 10 * time.Second
)

// StreamHandler pushes the session couple's date changes over a websocket,
// one JSON Change per text frame.
type StreamHandler struct {
	Hub      *realtime.Hub
	Upgrader websocket.Upgrader
	Log      logging.Logger
}

func (h *StreamHandler) Serve(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())

	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		h.Log.Debug(r.Context(), "websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub, err := h.Hub.Subscribe(ctx, sess.CoupleID)
	if err != nil {
		h.Log.Error(ctx, "subscribe failed", "couple_id", sess.CoupleID, "err", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscribe failed"),
			time.Now().Add(writeWait))
		return
	}
	defer sub.Close()

	log := h.Log.With("couple_id", sess.CoupleID, "user_id", sess.UserID)
	log.Debug(ctx, "stream opened")

	go readPump(conn, cancel)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug(ctx, "stream closed by client")
			return

		case c, ok := <-sub.Events():
			if !ok {
				// evicted or reset: the client refreshes and reconnects
				log.Info(ctx, "stream subscription ended")
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "resync"),
					time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(c); err != nil {
				log.Warn(ctx, "stream write failed", "err", err)
				return
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug(ctx, "stream ping failed", "err", err)
				return
			}
		}
	}
}

// readPump drains client frames so control frames get processed, and
// cancels once the peer goes away.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
