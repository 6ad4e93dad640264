package model

import "time"

// MaxTimeblockTitleLen bounds timeblock titles.
const MaxTimeblockTitleLen = 100

// TimeblockStatus is the lifecycle state of a scheduled block.
type TimeblockStatus string

const (
	StatusScheduled  TimeblockStatus = "scheduled"
	StatusInProgress TimeblockStatus = "in_progress"
	StatusCompleted  TimeblockStatus = "completed"
	StatusCancelled  TimeblockStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s TimeblockStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Timeblock is a scheduled interval on the 15-minute grid. DurationMinutes
// is the source of truth; EndTime is always derived as StartTime plus the
// duration and never edited independently.
type Timeblock struct {
	ID              string          `gorm:"primaryKey;size:36" json:"id"`
	UserID          string          `gorm:"index;size:36" json:"user_id"`
	CategoryID      *string         `gorm:"index;size:36" json:"category_id"`
	Title           *string         `json:"title"`
	Date            string          `gorm:"index;size:10" json:"date"`
	StartTime       string          `gorm:"size:5" json:"start_time"`
	EndTime         string          `gorm:"size:5" json:"end_time"`
	DurationMinutes int             `json:"duration_minutes"`
	Status          TimeblockStatus `gorm:"default:scheduled" json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TimeblockWithRelations is the read model for day-view fetches: the block
// row composed with its resolved category and attached tasks. Assembled by
// the repository, never stored.
type TimeblockWithRelations struct {
	Timeblock
	Category *Category `gorm:"-" json:"category,omitempty"`
	Tasks    []Task    `gorm:"-" json:"tasks"`
}
