package model

import "time"

// Task field limits.
const (
	MaxTaskTitleLen       = 100
	MaxTaskDescriptionLen = 500
)

// TaskPriority is the urgency level of a task.
type TaskPriority string

const (
	PriorityNone   TaskPriority = "none"
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// Valid reports whether p is a known priority.
func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityNone, PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task is a checklist item. A nil TimeblockID means the task sits in the
// backlog; its lifecycle is independent of any timeblock it is attached to.
type Task struct {
	ID               string       `gorm:"primaryKey;size:36" json:"id"`
	UserID           string       `gorm:"index;size:36" json:"user_id"`
	TimeblockID      *string      `gorm:"index;size:36" json:"timeblock_id"`
	CategoryID       *string      `gorm:"index;size:36" json:"category_id"`
	Title            string       `json:"title"`
	Description      *string      `json:"description"`
	Priority         TaskPriority `gorm:"default:none" json:"priority"`
	DueDate          *string      `json:"due_date"`
	EstimatedMinutes *int         `json:"estimated_minutes"`
	IsCompleted      bool         `gorm:"default:false" json:"is_completed"`
	CompletedAt      *time.Time   `json:"completed_at"`
	SortOrder        int          `json:"sort_order"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}
