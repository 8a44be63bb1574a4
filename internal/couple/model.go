package couple

import "time"

// Couple is the shared ownership group. ID doubles as the join code.
type Couple struct {
	ID              string    `gorm:"primaryKey;size:16"`
	Partner1Name    string    `gorm:"not null"`
	Partner2Name    *string
	AnniversaryDate time.Time `gorm:"not null"`
	ProfilePhotoURL *string
	CreatedAt       time.Time
}

// Info is the resolved group metadata for one member.
type Info struct {
	CoupleID        string    `json:"couple_id"`
	DisplayName     string    `json:"display_name"`
	AnniversaryDate time.Time `json:"anniversary_date"`
	Partner1Name    string    `json:"partner1_name"`
	Partner2Name    *string   `json:"partner2_name"`
	ProfilePhotoURL *string   `json:"profile_photo_url"`
	DaysTogether    int       `json:"days_together"`
}

// DaysTogether counts whole days elapsed since the anniversary.
func DaysTogether(anniversary, now time.Time) int {
	if now.Before(anniversary) {
		return 0
	}
	return int(now.Sub(anniversary) / (24 * time.Hour))
}
