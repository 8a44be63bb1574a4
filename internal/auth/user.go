package auth

import "time"

// User doubles as the profile row: display name and couple membership
// live here.
type User struct {
	ID           uint64  `gorm:"primaryKey"`
	Email        string  `gorm:"uniqueIndex;not null"`
	PasswordHash string  `gorm:"not null"`
	DisplayName  string  `gorm:"not null;default:''"`
	CoupleID     *string `gorm:"index;size:16"`
	CreatedAt    time.Time
}
