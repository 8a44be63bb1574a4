package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"ourdates/internal/dates"
	"ourdates/internal/livesync"

	"github.com/gorilla/websocket"
)

// Subscribe dials the change stream for the token's couple. Events closes
// on any read error, including a server-side resync close.
func (c *Client) Subscribe(ctx context.Context, _ string) (livesync.Subscription, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.Token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, streamURL(c.BaseURL), header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, fmt.Errorf("dial stream: %w", decodeError(resp))
		}
		return nil, fmt.Errorf("dial stream: %w", err)
	}

	s := &wsSubscription{
		conn: conn,
		ch:   make(chan dates.Change, 64),
		stop: make(chan struct{}),
	}
	go s.readPump()
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.stop:
		}
	}()
	return s, nil
}

func streamURL(base string) string {
	u := strings.TrimRight(base, "/") + "/dates/stream"
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u
}

type wsSubscription struct {
	conn *websocket.Conn
	ch   chan dates.Change

	once sync.Once
	stop chan struct{}
}

func (s *wsSubscription) Events() <-chan dates.Change { return s.ch }

func (s *wsSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.stop)
		err = s.conn.Close()
	})
	return err
}

func (s *wsSubscription) readPump() {
	defer close(s.ch)
	defer s.Close()

	for {
		var c dates.Change
		if err := s.conn.ReadJSON(&c); err != nil {
			return
		}
		select {
		case s.ch <- c:
		case <-s.stop:
			return
		}
	}
}
