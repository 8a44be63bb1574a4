// Command ourdates-watch mirrors a couple's dates in the terminal and
// reprints the board whenever something changes.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"ourdates/internal/client"
	"ourdates/internal/config"
	"ourdates/internal/dates"
	"ourdates/internal/livesync"
	"ourdates/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "ourdates-watch:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadWatch()
	if err != nil {
		return err
	}
	log := logging.New(os.Stderr, cfg.LogLevel, "text")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := client.New(cfg.APIURL, cfg.Token)

	me, err := c.Me(ctx)
	if err != nil {
		return fmt.Errorf("who am i: %w", err)
	}
	if me.CoupleID == nil {
		return errors.New("no couple yet: create or join one first")
	}
	coupleID := *me.CoupleID

	initial, err := c.FetchDates(ctx, coupleID, dates.ViewAll)
	if err != nil {
		return fmt.Errorf("initial fetch: %w", err)
	}

	s := livesync.New(c, c, livesync.WithLogger(log))
	defer s.Close()
	s.Open(ctx, coupleID, initial)

	resync := time.NewTicker(cfg.ResyncInterval)
	defer resync.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.Changes():
			render(os.Stdout, s, time.Now())
		case <-resync.C:
			if !s.Subscribed() {
				log.Info(ctx, "stream down, refreshing")
				s.Refresh(ctx)
			}
		}
	}
}

func render(w io.Writer, s *livesync.Synchronizer, now time.Time) {
	fmt.Fprint(w, "\033[H\033[2J")
	fmt.Fprintf(w, "couple %s  %s\n\n", s.CoupleID(), status(s))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "UPCOMING\t\t")
	for _, e := range s.Upcoming() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.ScheduledAt.Local().Format("Mon Jan 2 15:04"), e.Category, e.Title)
	}
	fmt.Fprintln(tw, "\t\t")
	fmt.Fprintln(tw, "MEMORIES\t\t")
	memories := s.Completed()
	dates.SortStable(memories, dates.Descending)
	for _, e := range memories {
		photo := ""
		if e.PhotoURL != nil {
			photo = " [photo]"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s%s\n", e.ScheduledAt.Local().Format("Jan 2 2006"), e.Category, e.Title, photo)
	}
	_ = tw.Flush()

	fmt.Fprintf(w, "\nupdated %s\n", now.Format(time.Kitchen))
}

func status(s *livesync.Synchronizer) string {
	if s.Subscribed() {
		return "live"
	}
	return "offline"
}
