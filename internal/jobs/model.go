package jobs

import (
	"encoding/json"
	"time"
)

const (
	TypePhotoDelete = "PHOTO_DELETE"

	StatusPending = "PENDING"
	StatusRunning = "RUNNING"
	StatusDone    = "DONE"
	StatusFailed  = "FAILED"
)

type Job struct {
	ID     uint64 `gorm:"primaryKey"`
	UserID uint64 `gorm:"index;not null"`

	Type    string `gorm:"not null"` // PHOTO_DELETE
	Payload []byte `gorm:"not null"`

	RunAt  time.Time `gorm:"index;not null"`
	Status string    `gorm:"index;not null;default:'PENDING'"`

	Attempts    int `gorm:"not null;default:0"`
	MaxAttempts int `gorm:"not null;default:8"`

	LockedBy *string
	LockedAt *time.Time

	LastError *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

type photoPayload struct {
	PhotoURL string `json:"photo_url"`
}

// NewPhotoDelete builds a pending job that removes a stored photo. Callers
// insert it in the same transaction that orphaned the photo.
func NewPhotoDelete(userID uint64, photoURL string) *Job {
	payload, _ := json.Marshal(photoPayload{PhotoURL: photoURL})
	return &Job{
		UserID:      userID,
		Type:        TypePhotoDelete,
		Payload:     payload,
		RunAt:       time.Now().UTC(),
		Status:      StatusPending,
		MaxAttempts: 8,
	}
}
