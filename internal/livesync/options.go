package livesync

import (
	"time"

	"ourdates/internal/dates"
	"ourdates/internal/logging"
)

type Option func(*Synchronizer)

// WithOrder sets the collection order. Descending turns the mirror into a
// "most recent memory first" list: Refresh fetches the completed view and
// entries that are not completed are kept out of the collection.
func WithOrder(o dates.Order) Option {
	return func(s *Synchronizer) { s.order = o }
}

func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) { s.now = now }
}

func WithLogger(l logging.Logger) Option {
	return func(s *Synchronizer) { s.log = l }
}
