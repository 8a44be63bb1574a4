package realtime

import (
	"context"

	"ourdates/internal/livesync"
)

// LocalFeed lets an in-process Synchronizer subscribe straight to a Hub.
type LocalFeed struct {
	Hub *Hub
}

func (f LocalFeed) Subscribe(ctx context.Context, coupleID string) (livesync.Subscription, error) {
	return f.Hub.Subscribe(ctx, coupleID)
}
