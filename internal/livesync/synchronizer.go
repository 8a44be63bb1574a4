// Package livesync keeps a local, eventually consistent mirror of one
// couple's dates: seeded from a snapshot, then kept current by a change
// feed, with Refresh as the recovery path after any suspected gap.
//
// A single goroutine owns the subscription and the collection. Every
// mutation (open, refresh, apply one change, close) is a message to that
// goroutine, and each one publishes a whole new immutable slice, so
// readers never observe a partially applied update.
package livesync

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"ourdates/internal/dates"
	"ourdates/internal/logging"
)

// Fetcher loads a snapshot of a couple's dates.
type Fetcher interface {
	FetchDates(ctx context.Context, coupleID string, view dates.View) ([]dates.Entry, error)
}

// Subscription is a live change stream. Events is closed when the
// transport ends.
type Subscription interface {
	Events() <-chan dates.Change
	Close() error
}

// Feed opens change subscriptions filtered by couple.
type Feed interface {
	Subscribe(ctx context.Context, coupleID string) (Subscription, error)
}

// state is never mutated after it is stored.
type state struct {
	coupleID   string
	entries    []dates.Entry
	subscribed bool
}

type Synchronizer struct {
	fetch Fetcher
	feed  Feed
	log   logging.Logger
	now   func() time.Time
	order dates.Order

	cur     atomic.Pointer[state]
	cmds    chan envelope
	changes chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func New(fetch Fetcher, feed Feed, opts ...Option) *Synchronizer {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Synchronizer{
		fetch:   fetch,
		feed:    feed,
		log:     logging.Discard(),
		now:     time.Now,
		order:   dates.Ascending,
		cmds:    make(chan envelope),
		changes: make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	s.cur.Store(&state{entries: []dates.Entry{}})

	go s.run()
	return s
}

// Open points the synchronizer at coupleID, seeded with initial. Any
// previous subscription is closed before the new one is opened. An empty
// coupleID yields a static collection with no subscription.
func (s *Synchronizer) Open(ctx context.Context, coupleID string, initial []dates.Entry) {
	s.send(ctx, openCmd{coupleID: coupleID, entries: initial})
}

// Refresh refetches the couple's dates and replaces the collection. If the
// subscription has ended it is reopened first, so nothing delivered after
// the fetch is missed. Changes that arrive while the fetch is in flight are
// replayed onto the snapshot. Fetch failures leave the collection as it was.
func (s *Synchronizer) Refresh(ctx context.Context) {
	coupleID := s.CoupleID()
	if coupleID == "" {
		return
	}
	if !s.send(ctx, beginRefreshCmd{coupleID: coupleID}) {
		return
	}
	// the owner is buffering from here on; always tell it we are done
	finish := context.WithoutCancel(ctx)

	view := dates.ViewAll
	if s.order == dates.Descending {
		view = dates.ViewCompleted
	}

	entries, err := s.fetch.FetchDates(ctx, coupleID, view)
	if err != nil {
		s.log.Warn(ctx, "refresh failed", "couple_id", coupleID, "err", err)
		s.send(finish, endRefreshCmd{coupleID: coupleID})
		return
	}
	s.send(finish, endRefreshCmd{coupleID: coupleID, entries: entries, ok: true})
}

// Dates returns the current collection. Callers may keep the slice; it is
// never modified afterwards.
func (s *Synchronizer) Dates() []dates.Entry {
	return s.cur.Load().entries
}

// Upcoming is evaluated against the clock at call time.
func (s *Synchronizer) Upcoming() []dates.Entry {
	return dates.Upcoming(s.Dates(), s.now())
}

func (s *Synchronizer) Completed() []dates.Entry {
	return dates.Completed(s.Dates())
}

func (s *Synchronizer) CoupleID() string {
	return s.cur.Load().coupleID
}

// Subscribed reports whether a change subscription is currently live.
func (s *Synchronizer) Subscribed() bool {
	return s.cur.Load().subscribed
}

// Changes signals after each state change. Signals coalesce.
func (s *Synchronizer) Changes() <-chan struct{} {
	return s.changes
}

// Close releases the subscription and stops the synchronizer. Safe to
// call more than once.
func (s *Synchronizer) Close() error {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
	return nil
}

type command interface{}

type openCmd struct {
	coupleID string
	entries  []dates.Entry
}

// beginRefreshCmd reopens an ended subscription and starts buffering
// applied changes for replay onto the coming snapshot.
type beginRefreshCmd struct {
	coupleID string
}

// endRefreshCmd carries the snapshot when ok, or just stops buffering.
type endRefreshCmd struct {
	coupleID string
	entries  []dates.Entry
	ok       bool
}

type envelope struct {
	cmd  command
	done chan struct{}
}

// send hands cmd to the owner goroutine and waits until it is applied.
func (s *Synchronizer) send(ctx context.Context, cmd command) bool {
	env := envelope{cmd: cmd, done: make(chan struct{})}
	select {
	case s.cmds <- env:
	case <-s.ctx.Done():
		return false
	case <-ctx.Done():
		return false
	}
	select {
	case <-env.done:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *Synchronizer) run() {
	defer close(s.done)

	var sub Subscription
	var events <-chan dates.Change

	// refreshing counts Refresh calls between begin and end; while it is
	// non-zero every applied change is kept in pending
	var refreshing int
	var pending []dates.Change

	closeSub := func() {
		if sub != nil {
			if err := sub.Close(); err != nil {
				s.log.Warn(s.ctx, "closing subscription", "err", err)
			}
			sub, events = nil, nil
		}
	}
	defer closeSub()

	subscribe := func(coupleID string) {
		next, err := s.feed.Subscribe(s.ctx, coupleID)
		if err != nil {
			s.log.Warn(s.ctx, "subscribe failed", "couple_id", coupleID, "err", err)
			return
		}
		sub, events = next, next.Events()
	}

	for {
		select {
		case <-s.ctx.Done():
			return

		case env := <-s.cmds:
			switch c := env.cmd.(type) {
			case openCmd:
				closeSub()
				refreshing, pending = 0, nil
				if c.coupleID != "" {
					subscribe(c.coupleID)
				}
				s.publish(&state{
					coupleID:   c.coupleID,
					entries:    s.sorted(c.entries),
					subscribed: sub != nil,
				})

			case beginRefreshCmd:
				cur := s.cur.Load()
				if cur.coupleID != c.coupleID {
					break
				}
				refreshing++
				if sub == nil {
					subscribe(c.coupleID)
					if sub != nil {
						s.publish(&state{coupleID: cur.coupleID, entries: cur.entries, subscribed: true})
					}
				}

			case endRefreshCmd:
				cur := s.cur.Load()
				if cur.coupleID != c.coupleID || refreshing == 0 {
					s.log.Debug(s.ctx, "discarding stale refresh", "couple_id", c.coupleID)
					break
				}
				if c.ok {
					next := s.sorted(c.entries)
					for _, ch := range pending {
						if folded, changed := s.fold(next, cur.coupleID, ch); changed {
							next = folded
						}
					}
					s.publish(&state{coupleID: cur.coupleID, entries: next, subscribed: sub != nil})
				}
				refreshing--
				if refreshing == 0 {
					pending = nil
				}
			}
			close(env.done)

		case ch, ok := <-events:
			if !ok {
				cur := s.cur.Load()
				s.log.Warn(s.ctx, "change feed ended; refresh to resume", "couple_id", cur.coupleID)
				sub, events = nil, nil
				s.publish(&state{coupleID: cur.coupleID, entries: cur.entries})
				continue
			}
			if s.apply(ch) && refreshing > 0 {
				pending = append(pending, ch)
			}
		}
	}
}

// apply folds one change into the published collection and reports
// whether it was accepted.
func (s *Synchronizer) apply(c dates.Change) bool {
	cur := s.cur.Load()

	if c.Record.CoupleID != "" && c.Record.CoupleID != cur.coupleID {
		s.log.Warn(s.ctx, "dropping change for another couple",
			"couple_id", cur.coupleID, "change_couple_id", c.Record.CoupleID, "id", c.Record.ID)
		return false
	}
	switch c.Kind {
	case dates.Insert, dates.Update, dates.Delete:
	default:
		s.log.Warn(s.ctx, "unknown change kind", "kind", int(c.Kind))
		return false
	}

	next, changed := s.fold(cur.entries, cur.coupleID, c)
	if changed {
		s.publish(&state{coupleID: cur.coupleID, entries: next, subscribed: cur.subscribed})
	}
	return true
}

// fold returns entries with c applied, leaving entries untouched. In
// descending mode the collection holds completed entries only, so a record
// that is not completed is removed rather than kept.
func (s *Synchronizer) fold(entries []dates.Entry, coupleID string, c dates.Change) ([]dates.Entry, bool) {
	if c.Record.CoupleID != "" && c.Record.CoupleID != coupleID {
		return entries, false
	}
	idx := slices.IndexFunc(entries, func(e dates.Entry) bool { return e.ID == c.Record.ID })

	kind := c.Kind
	if kind != dates.Delete && !s.keeps(c.Record) {
		if idx < 0 {
			return entries, false
		}
		kind = dates.Delete
	}

	switch kind {
	case dates.Insert:
		next := slices.Clone(entries)
		if idx >= 0 {
			// redelivered insert
			next[idx] = c.Record
		} else {
			next = append(next, c.Record)
		}
		dates.SortStable(next, s.order)
		return next, true

	case dates.Update:
		if idx < 0 {
			s.log.Debug(s.ctx, "update for unknown entry dropped", "id", c.Record.ID)
			return entries, false
		}
		next := slices.Clone(entries)
		next[idx] = c.Record
		dates.SortStable(next, s.order)
		return next, true

	case dates.Delete:
		if idx < 0 {
			s.log.Debug(s.ctx, "delete for unknown entry dropped", "id", c.Record.ID)
			return entries, false
		}
		return slices.Delete(slices.Clone(entries), idx, idx+1), true
	}
	return entries, false
}

// keeps reports whether e belongs in the collection for this order.
func (s *Synchronizer) keeps(e dates.Entry) bool {
	return s.order != dates.Descending || e.IsCompleted
}

func (s *Synchronizer) sorted(in []dates.Entry) []dates.Entry {
	out := make([]dates.Entry, 0, len(in))
	for _, e := range in {
		if s.keeps(e) {
			out = append(out, e)
		}
	}
	dates.SortStable(out, s.order)
	return out
}

func (s *Synchronizer) publish(st *state) {
	s.cur.Store(st)
	select {
	case s.changes <- struct{}{}:
	default:
	}
}
