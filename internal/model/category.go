package model

import "time"

// MaxCategoryNameLen bounds category names.
const MaxCategoryNameLen = 20

// Category is a user-scoped label grouping timeblocks and tasks. Categories
// are soft-archived, never hard-deleted, so references stay resolvable.
type Category struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	UserID     string    `gorm:"index;size:36" json:"user_id"`
	Name       string    `json:"name"`
	Color      string    `json:"color"`
	Emoji      *string   `json:"emoji"`
	SortOrder  int       `json:"sort_order"`
	IsArchived bool      `gorm:"default:false" json:"is_archived"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DefaultCategory describes one of the categories seeded at sign-up.
type DefaultCategory struct {
	Name  string
	Color string
	Emoji string
}

// DefaultCategories returns the starter palette created for new users.
func DefaultCategories() []DefaultCategory {
	return []DefaultCategory{
		{Name: "Work", Color: "#4A90E2", Emoji: "💼"},
		{Name: "Personal", Color: "#7ED321", Emoji: "🏠"},
		{Name: "Focus", Color: "#9B59B6", Emoji: "🎯"},
		{Name: "Health", Color: "#E74C3C", Emoji: "❤️"},
	}
}
