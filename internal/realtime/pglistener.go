package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ourdates/internal/dates"
	"ourdates/internal/logging"

	"github.com/lib/pq"
)

// Channel is the NOTIFY channel written by the date_entries trigger.
const Channel = "date_changes"

// notifyPayload is what notify_date_change() sends.
type notifyPayload struct {
	Type     dates.Kind  `json:"type"`
	CoupleID string      `json:"couple_id"`
	Record   dates.Entry `json:"record"`
}

// PGListener forwards postgres notifications into a Hub.
type PGListener struct {
	DSN string
	Hub *Hub
	Log logging.Logger
}

func (l *PGListener) Run(ctx context.Context) error {
	listener := pq.NewListener(l.DSN, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventDisconnected:
			l.Log.Warn(ctx, "change listener disconnected", "err", err)
		case pq.ListenerEventReconnected:
			l.Log.Info(ctx, "change listener reconnected")
		case pq.ListenerEventConnectionAttemptFailed:
			l.Log.Warn(ctx, "change listener connect failed", "err", err)
		}
	})
	defer listener.Close()

	if err := listener.Listen(Channel); err != nil {
		return fmt.Errorf("listen %s: %w", Channel, err)
	}
	l.Log.Info(ctx, "listening for date changes", "channel", Channel)

	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			if n == nil {
				// reconnected: anything sent meanwhile is lost
				l.Hub.Reset()
				continue
			}
			l.dispatch(ctx, n.Extra)
		case <-ping.C:
			go func() { _ = listener.Ping() }()
		}
	}
}

func (l *PGListener) dispatch(ctx context.Context, raw string) {
	coupleID, c, err := DecodeNotification(raw)
	if err != nil {
		l.Log.Warn(ctx, "bad change notification", "err", err)
		return
	}
	l.Hub.Publish(ctx, coupleID, c)
}

func DecodeNotification(raw string) (string, dates.Change, error) {
	var p notifyPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return "", dates.Change{}, err
	}
	if p.CoupleID == "" || p.Record.ID == "" {
		return "", dates.Change{}, fmt.Errorf("notification missing couple or record id")
	}
	return p.CoupleID, dates.Change{Kind: p.Type, Record: p.Record}, nil
}
