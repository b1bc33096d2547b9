package models

import "time"

// Conversation groups an ordered message history. IDs are uuid strings so the
// browser can create them optimistically.
type Conversation struct {
	ID          string    `gorm:"primaryKey;type:text" json:"id"`
	Title       string    `gorm:"not null" json:"title"`
	IsPinned    bool      `gorm:"not null;default:false" json:"is_pinned"`
	FolderID    *string   `gorm:"index" json:"folder_id,omitempty"`
	LastUpdated time.Time `gorm:"index" json:"last_updated"`
	CreatedAt   time.Time `json:"created_at"`

	Messages []ChatMessage `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`
}

// ChatMessage is one canonical message inside a conversation. Ordinal keeps
// the history strictly ordered without relying on timestamps.
type ChatMessage struct {
	ID             string    `gorm:"primaryKey;type:text" json:"id"`
	ConversationID string    `gorm:"not null;index:idx_conv_ordinal,priority:1" json:"conversation_id"`
	Ordinal        int       `gorm:"not null;index:idx_conv_ordinal,priority:2" json:"ordinal"`
	Role           string    `gorm:"not null" json:"role"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	Tokens         int       `gorm:"not null;default:0" json:"tokens"`
	ServedBy       string    `json:"served_by,omitempty"` // provider id, set on completed assistant messages
	CreatedAt      time.Time `json:"created_at"`
}

// Folder is a named grouping for the sidebar; kept as pure data, no nesting.
type Folder struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
