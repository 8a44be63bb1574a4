package dates

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ourdates/internal/auth"
	"ourdates/internal/jobs"
	"ourdates/internal/storage"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("not found")
var ErrNoCouple = errors.New("no couple")
var ErrInvalidInput = errors.New("invalid input")

var validate = validator.New(validator.WithRequiredStructEnabled())

type Service struct {
	DB       *gorm.DB
	Notifier Notifier
	Now      func() time.Time
	// PhotoKey maps a photo URL to its storage key. Defaults to
	// storage.TrailingKey.
	PhotoKey func(photoURL string) (string, error)
}

type CreateInput struct {
	Title       string    `validate:"required,max=120"`
	Category    Category  `validate:"required,oneof=Chai Restaurant Home Walk Surprise"`
	ScheduledAt time.Time `validate:"required"`
}

// UpdateInput is a partial update; nil fields are left alone. An empty
// PhotoURL or Notes clears the field.
type UpdateInput struct {
	Title       *string    `validate:"omitempty,min=1,max=120"`
	Category    *Category  `validate:"omitempty,oneof=Chai Restaurant Home Walk Surprise"`
	ScheduledAt *time.Time `validate:"omitempty"`
	PhotoURL    *string
	Notes       *string
	IsCompleted *bool
}

type ListQuery struct {
	View View
	// Month narrows to one "2006-01" month of scheduled_at.
	Month string
}

// checkPhoto accepts only photos stored under the caller's couple.
func (s *Service) checkPhoto(sess auth.Session, photoURL string) error {
	keyOf := s.PhotoKey
	if keyOf == nil {
		keyOf = storage.TrailingKey
	}
	key, err := keyOf(photoURL)
	if err != nil || !storage.OwnedBy(key, sess.CoupleID) {
		return fmt.Errorf("%w: photo_url is not one of this couple's photos", ErrInvalidInput)
	}
	return nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) List(ctx context.Context, sess auth.Session, q ListQuery) ([]Entry, error) {
	if !sess.HasCouple() {
		return []Entry{}, nil
	}

	db := s.DB.WithContext(ctx).Where("couple_id = ?", sess.CoupleID)

	switch q.View {
	case ViewUpcoming:
		db = db.Where("is_completed = ? AND scheduled_at >= ?", false, s.now().UTC())
	case ViewCompleted:
		db = db.Where("is_completed = ?", true)
	}

	if q.Month != "" {
		start, err := time.Parse("2006-01", q.Month)
		if err != nil {
			return nil, fmt.Errorf("%w: month must be YYYY-MM", ErrInvalidInput)
		}
		db = db.Where("scheduled_at >= ? AND scheduled_at < ?", start, start.AddDate(0, 1, 0))
	}

	if q.View.Order() == Descending {
		db = db.Order("scheduled_at desc")
	} else {
		db = db.Order("scheduled_at asc")
	}

	out := []Entry{}
	if err := db.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Months lists months that hold completed entries, newest first.
func (s *Service) Months(ctx context.Context, sess auth.Session) ([]string, error) {
	if !sess.HasCouple() {
		return []string{}, nil
	}

	var rows []Entry
	if err := s.DB.WithContext(ctx).
		Select("scheduled_at", "is_completed").
		Where("couple_id = ? AND is_completed = ?", sess.CoupleID, true).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	out := Months(rows)
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, sess auth.Session, id string) (Entry, error) {
	if !sess.HasCouple() {
		return Entry{}, ErrNoCouple
	}
	var e Entry
	if err := s.DB.WithContext(ctx).Where("id = ? AND couple_id = ?", id, sess.CoupleID).First(&e).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	return e, nil
}

func (s *Service) Create(ctx context.Context, sess auth.Session, in CreateInput) (Entry, error) {
	if !sess.HasCouple() {
		return Entry{}, ErrNoCouple
	}

	in.Title = strings.TrimSpace(in.Title)
	if err := validate.Struct(in); err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	e := Entry{
		ID:          uuid.NewString(),
		CoupleID:    sess.CoupleID,
		Title:       in.Title,
		Category:    in.Category,
		ScheduledAt: in.ScheduledAt.UTC(),
		CreatedAt:   s.now().UTC(),
	}
	if err := s.DB.WithContext(ctx).Create(&e).Error; err != nil {
		return Entry{}, err
	}

	s.publish(ctx, sess.CoupleID, Change{Kind: Insert, Record: e})
	return e, nil
}

func (s *Service) Update(ctx context.Context, sess auth.Session, id string, in UpdateInput) (Entry, error) {
	if !sess.HasCouple() {
		return Entry{}, ErrNoCouple
	}

	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		in.Title = &t
	}
	if err := validate.Struct(in); err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if in.PhotoURL != nil && *in.PhotoURL != "" {
		if err := s.checkPhoto(sess, *in.PhotoURL); err != nil {
			return Entry{}, err
		}
	}

	var out Entry
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var e Entry
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND couple_id = ?", id, sess.CoupleID).
			First(&e).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		oldPhoto := e.PhotoURL

		if in.Title != nil {
			e.Title = *in.Title
		}
		if in.Category != nil {
			e.Category = *in.Category
		}
		if in.ScheduledAt != nil {
			e.ScheduledAt = in.ScheduledAt.UTC()
		}
		if in.PhotoURL != nil {
			e.PhotoURL = nilIfEmpty(*in.PhotoURL)
		}
		if in.Notes != nil {
			e.Notes = nilIfEmpty(strings.TrimSpace(*in.Notes))
		}
		if in.IsCompleted != nil {
			e.IsCompleted = *in.IsCompleted
		}

		if err := tx.Save(&e).Error; err != nil {
			return err
		}

		// replaced or cleared photo: remove the old object (atomic with the row)
		if oldPhoto != nil && (e.PhotoURL == nil || *e.PhotoURL != *oldPhoto) {
			if err := tx.Create(jobs.NewPhotoDelete(sess.UserID, *oldPhoto)).Error; err != nil {
				return err
			}
		}

		out = e
		return nil
	})
	if err != nil {
		return Entry{}, err
	}

	s.publish(ctx, sess.CoupleID, Change{Kind: Update, Record: out})
	return out, nil
}

func (s *Service) ToggleComplete(ctx context.Context, sess auth.Session, id string, completed bool) (Entry, error) {
	return s.Update(ctx, sess, id, UpdateInput{IsCompleted: &completed})
}

// CompleteWithPhoto marks the date done and attaches the memory. Empty
// notes leave existing notes untouched.
func (s *Service) CompleteWithPhoto(ctx context.Context, sess auth.Session, id, photoURL, notes string) (Entry, error) {
	done := true
	in := UpdateInput{IsCompleted: &done, PhotoURL: &photoURL}
	if n := strings.TrimSpace(notes); n != "" {
		in.Notes = &n
	}
	return s.Update(ctx, sess, id, in)
}

func (s *Service) Delete(ctx context.Context, sess auth.Session, id string) error {
	if !sess.HasCouple() {
		return ErrNoCouple
	}

	var gone Entry
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND couple_id = ?", id, sess.CoupleID).First(&gone).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if err := tx.Delete(&Entry{}, "id = ? AND couple_id = ?", id, sess.CoupleID).Error; err != nil {
			return err
		}

		if gone.PhotoURL != nil {
			return tx.Create(jobs.NewPhotoDelete(sess.UserID, *gone.PhotoURL)).Error
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, sess.CoupleID, Change{Kind: Delete, Record: gone})
	return nil
}

func (s *Service) publish(ctx context.Context, coupleID string, c Change) {
	if s.Notifier != nil {
		s.Notifier.Publish(ctx, coupleID, c)
	}
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
