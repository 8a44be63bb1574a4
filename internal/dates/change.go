package dates

import (
	"context"
	"fmt"
	"strings"
)

// Kind tags a Change.
type Kind int

const (
	Insert Kind = iota + 1
	Update
	Delete
)

func (k Kind) String() string {
	switch k {
	case Insert:
		return "INSERT"
	case Update:
		return "UPDATE"
	case Delete:
		return "DELETE"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	switch k {
	case Insert, Update, Delete:
		return []byte(k.String()), nil
	}
	return nil, fmt.Errorf("unknown change kind %d", int(k))
}

func (k *Kind) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "INSERT":
		*k = Insert
	case "UPDATE":
		*k = Update
	case "DELETE":
		*k = Delete
	default:
		return fmt.Errorf("unknown change kind %q", b)
	}
	return nil
}

// Change is a row-level event on date_entries. For Delete, Record holds
// the last known row; only its ID is relied upon.
type Change struct {
	Kind   Kind  `json:"type"`
	Record Entry `json:"record"`
}

// Notifier receives committed changes. A nil Notifier on Service means
// changes are emitted elsewhere (the postgres trigger).
type Notifier interface {
	Publish(ctx context.Context, coupleID string, c Change)
}
