package dates

import (
	"cmp"
	"slices"
	"time"
)

// SortStable orders entries by ScheduledAt in place; equal timestamps
// keep their relative order.
func SortStable(entries []Entry, o Order) {
	slices.SortStableFunc(entries, func(a, b Entry) int {
		c := a.ScheduledAt.Compare(b.ScheduledAt)
		if o == Descending {
			return -c
		}
		return c
	})
}

func Upcoming(entries []Entry, now time.Time) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.Upcoming(now) {
			out = append(out, e)
		}
	}
	return out
}

func Completed(entries []Entry) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.IsCompleted {
			out = append(out, e)
		}
	}
	return out
}

// Lapsed returns entries neither completed nor upcoming: still open but
// scheduled strictly before now.
func Lapsed(entries []Entry, now time.Time) []Entry {
	var out []Entry
	for _, e := range entries {
		if !e.IsCompleted && e.ScheduledAt.Before(now) {
			out = append(out, e)
		}
	}
	return out
}

// Months lists distinct "2006-01" months of completed entries, newest first.
func Months(entries []Entry) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, e := range entries {
		if !e.IsCompleted {
			continue
		}
		m := e.ScheduledAt.UTC().Format("2006-01")
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b string) int { return cmp.Compare(b, a) })
	return out
}
