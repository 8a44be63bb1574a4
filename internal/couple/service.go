package couple

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ourdates/internal/auth"
	"ourdates/internal/jobs"
	"ourdates/internal/storage"

	"gorm.io/gorm"
)

var (
	ErrNoCouple      = errors.New("setup required")
	ErrInvalidCode   = errors.New("invalid couple code")
	ErrAlreadyPaired = errors.New("already in a couple")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUserNotFound  = errors.New("user not found")
)

const maxCodeAttempts = 5

type Service struct {
	DB      *gorm.DB
	NewCode func() string
	Now     func() time.Time
	// PhotoKey maps a photo URL to its storage key; nil means
	// storage.TrailingKey.
	PhotoKey func(photoURL string) (string, error)
}

func NewService(db *gorm.DB) (*Service, error) {
	gen, err := NewCodeGenerator()
	if err != nil {
		return nil, err
	}
	return &Service{DB: db, NewCode: gen, Now: time.Now}, nil
}

type CreateInput struct {
	DisplayName     string
	AnniversaryDate time.Time
}

// Create starts a new couple with the caller as partner 1 and returns the
// join code to share.
func (s *Service) Create(ctx context.Context, userID uint64, in CreateInput) (string, error) {
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	if in.DisplayName == "" || in.AnniversaryDate.IsZero() {
		return "", ErrInvalidInput
	}

	var code string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := loadUser(tx, userID)
		if err != nil {
			return err
		}
		if u.CoupleID != nil {
			return ErrAlreadyPaired
		}

		for i := 0; i < maxCodeAttempts; i++ {
			candidate := s.NewCode()
			var n int64
			if err := tx.Model(&Couple{}).Where("id = ?", candidate).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				code = candidate
				break
			}
		}
		if code == "" {
			return fmt.Errorf("could not allocate couple code after %d attempts", maxCodeAttempts)
		}

		c := Couple{
			ID:              code,
			Partner1Name:    in.DisplayName,
			AnniversaryDate: in.AnniversaryDate.UTC(),
		}
		if err := tx.Create(&c).Error; err != nil {
			return err
		}

		return tx.Model(&auth.User{}).Where("id = ?", userID).Updates(map[string]any{
			"couple_id":    code,
			"display_name": in.DisplayName,
		}).Error
	})
	if err != nil {
		return "", err
	}
	return code, nil
}

// Join adds the caller to an existing couple as partner 2.
func (s *Service) Join(ctx context.Context, userID uint64, code, displayName string) error {
	code = NormalizeCode(code)
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return ErrInvalidInput
	}
	if !ValidCode(code) {
		return ErrInvalidCode
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := loadUser(tx, userID)
		if err != nil {
			return err
		}
		if u.CoupleID != nil && *u.CoupleID != code {
			return ErrAlreadyPaired
		}

		var c Couple
		if err := tx.Where("id = ?", code).First(&c).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidCode
			}
			return err
		}

		if err := tx.Model(&Couple{}).Where("id = ?", code).Update("partner2_name", displayName).Error; err != nil {
			return err
		}

		return tx.Model(&auth.User{}).Where("id = ?", userID).Updates(map[string]any{
			"couple_id":    code,
			"display_name": displayName,
		}).Error
	})
}

func (s *Service) Info(ctx context.Context, userID uint64) (Info, error) {
	u, err := loadUser(s.DB.WithContext(ctx), userID)
	if err != nil {
		return Info{}, err
	}
	if u.CoupleID == nil {
		return Info{}, ErrNoCouple
	}

	var c Couple
	if err := s.DB.WithContext(ctx).Where("id = ?", *u.CoupleID).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Info{}, ErrNoCouple
		}
		return Info{}, err
	}

	return Info{
		CoupleID:        c.ID,
		DisplayName:     u.DisplayName,
		AnniversaryDate: c.AnniversaryDate,
		Partner1Name:    c.Partner1Name,
		Partner2Name:    c.Partner2Name,
		ProfilePhotoURL: c.ProfilePhotoURL,
		DaysTogether:    DaysTogether(c.AnniversaryDate, s.now()),
	}, nil
}

// SetPhoto records the couple profile photo. An empty url clears it; a
// replaced photo is queued for deletion.
func (s *Service) SetPhoto(ctx context.Context, sess auth.Session, photoURL string) error {
	if !sess.HasCouple() {
		return ErrNoCouple
	}
	if photoURL != "" {
		keyOf := s.PhotoKey
		if keyOf == nil {
			keyOf = storage.TrailingKey
		}
		if key, err := keyOf(photoURL); err != nil || !storage.OwnedBy(key, sess.CoupleID) {
			return fmt.Errorf("%w: photo is not one of this couple's", ErrInvalidInput)
		}
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c Couple
		if err := tx.Where("id = ?", sess.CoupleID).First(&c).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoCouple
			}
			return err
		}

		var next any
		if photoURL != "" {
			next = photoURL
		}
		if err := tx.Model(&Couple{}).Where("id = ?", c.ID).Update("profile_photo_url", next).Error; err != nil {
			return err
		}

		if c.ProfilePhotoURL != nil && *c.ProfilePhotoURL != photoURL {
			return tx.Create(jobs.NewPhotoDelete(sess.UserID, *c.ProfilePhotoURL)).Error
		}
		return nil
	})
}

func (s *Service) ClearPhoto(ctx context.Context, sess auth.Session) error {
	return s.SetPhoto(ctx, sess, "")
}

// Session resolves the request session for an authenticated user.
func (s *Service) Session(ctx context.Context, userID uint64) (auth.Session, error) {
	u, err := loadUser(s.DB.WithContext(ctx), userID)
	if err != nil {
		return auth.Session{}, err
	}
	sess := auth.Session{UserID: u.ID}
	if u.CoupleID != nil {
		sess.CoupleID = *u.CoupleID
	}
	return sess, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func loadUser(db *gorm.DB, userID uint64) (auth.User, error) {
	var u auth.User
	if err := db.Where("id = ?", userID).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return auth.User{}, ErrUserNotFound
		}
		return auth.User{}, err
	}
	return u, nil
}
