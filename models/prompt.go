package models

import "time"

// SavedPrompt is a reusable prompt template from the prompt library. Built-in
// rows are seeded on startup and survive a library reset.
type SavedPrompt struct {
	ID         string    `gorm:"primaryKey;type:text" json:"id"`
	Title      string    `gorm:"not null" json:"title"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Category   string    `json:"category,omitempty"`
	UsageCount int64     `gorm:"not null;default:0" json:"usage_count"`
	LastUsed   time.Time `json:"last_used"`
	IsBuiltIn  bool      `gorm:"not null;default:false" json:"is_built_in"`
	CreatedAt  time.Time `json:"created_at"`
}
