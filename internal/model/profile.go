package model

import "time"

// Preferences holds per-user display and scheduling defaults, stored as a
// JSON column on the profile row.
type Preferences struct {
	Theme                  string `json:"theme"`
	StartOfWeek            string `json:"start_of_week"`
	DayStartHour           int    `json:"day_start_hour"`
	DayEndHour             int    `json:"day_end_hour"`
	DefaultDurationMinutes int    `json:"default_duration_minutes"`
}

// DefaultPreferences returns the preferences applied at sign-up.
func DefaultPreferences() Preferences {
	return Preferences{
		Theme:                  "system",
		StartOfWeek:            "monday",
		DayStartHour:           6,
		DayEndHour:             23,
		DefaultDurationMinutes: 60,
	}
}

// Profile stores account metadata, one row per user.
type Profile struct {
	ID          string      `gorm:"primaryKey;size:36" json:"id"`
	Email       string      `gorm:"uniqueIndex" json:"email"`
	DisplayName *string     `json:"display_name"`
	AvatarURL   *string     `json:"avatar_url"`
	Timezone    string      `gorm:"default:UTC" json:"timezone"`
	Preferences Preferences `gorm:"serializer:json" json:"preferences"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
