package dates

import (
	"time"
)

// Entry is one planned or completed date. JSON names match the column
// names so API responses and change events share one shape.
type Entry struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	CoupleID    string    `gorm:"index;not null;size:16" json:"couple_id"`
	Title       string    `gorm:"not null" json:"title"`
	Category    Category  `gorm:"not null;size:16" json:"category"`
	ScheduledAt time.Time `gorm:"index;not null" json:"scheduled_at"`
	PhotoURL    *string   `json:"photo_url"`
	Notes       *string   `gorm:"type:text" json:"notes"`
	IsCompleted bool      `gorm:"not null;default:false" json:"is_completed"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Entry) TableName() string { return "date_entries" }

// Upcoming reports whether e is not completed and scheduled at or after now.
func (e Entry) Upcoming(now time.Time) bool {
	return !e.IsCompleted && !e.ScheduledAt.Before(now)
}

// Category is the closed set of date kinds.
type Category string

const (
	CategoryChai       Category = "Chai"
	CategoryRestaurant Category = "Restaurant"
	CategoryHome       Category = "Home"
	CategoryWalk       Category = "Walk"
	CategorySurprise   Category = "Surprise"
)

var Categories = []Category{
	CategoryChai,
	CategoryRestaurant,
	CategoryHome,
	CategoryWalk,
	CategorySurprise,
}

func (c Category) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// View selects which snapshot a fetch returns.
type View string

const (
	ViewAll       View = "all"
	ViewUpcoming  View = "upcoming"
	ViewCompleted View = "completed"
)

func ParseView(s string) (View, bool) {
	switch View(s) {
	case "", ViewAll:
		return ViewAll, true
	case ViewUpcoming, ViewCompleted:
		return View(s), true
	}
	return "", false
}

// Order is the scheduled_at direction of a collection.
type Order int

const (
	Ascending Order = iota
	Descending
)

// Order returns the order a snapshot of this view is delivered in.
func (v View) Order() Order {
	if v == ViewCompleted {
		return Descending
	}
	return Ascending
}
