// Package convstore exclusively owns conversation and message lifecycle.
// The orchestrator and the handlers mutate history only through it.
package convstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kaushaltekade/chatbot/consts"
	"github.com/kaushaltekade/chatbot/models"
	"github.com/kaushaltekade/chatbot/service/outbox"
)

// ErrNotUserMessage rejects fork-on-edit targets that are not user messages.
var ErrNotUserMessage = errors.New("only user messages can be edited")

type Store struct {
	db  *gorm.DB
	ob  *outbox.Queue
	now func() time.Time
}

func New(db *gorm.DB, ob *outbox.Queue) *Store {
	return &Store{db: db, ob: ob, now: time.Now}
}

// CreateConversation starts an empty conversation. Title defaults to
// "New Chat" until AutoTitle runs.
func (s *Store) CreateConversation(ctx context.Context) (models.Conversation, error) {
	conv := models.Conversation{
		ID:          uuid.NewString(),
		Title:       "New Chat",
		LastUpdated: s.now(),
	}
	if err := gorm.G[models.Conversation](s.db).Create(ctx, &conv); err != nil {
		return models.Conversation{}, err
	}
	s.sync("conversation", conv.ID, "upsert")
	return conv, nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (models.Conversation, error) {
	return gorm.G[models.Conversation](s.db).Where("id = ?", id).First(ctx)
}

// ListConversations orders pinned first, then most recently updated.
func (s *Store) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	return gorm.G[models.Conversation](s.db).
		Order("is_pinned DESC, last_updated DESC").
		Find(ctx)
}

// UpdateConversation applies a partial update; a map keeps zero values
// (unpin, clear folder) writable.
func (s *Store) UpdateConversation(ctx context.Context, id string, updates map[string]any) error {
	if err := s.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ?", id).
		Updates(updates).Error; err != nil {
		return err
	}
	s.sync("conversation", id, "upsert")
	return nil
}

// DeleteConversation removes the conversation and everything in it.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := gorm.G[models.ChatMessage](tx).Where("conversation_id = ?", id).Delete(ctx); err != nil {
			return err
		}
		if _, err := gorm.G[models.Conversation](tx).Where("id = ?", id).Delete(ctx); err != nil {
			return err
		}
		s.sync("conversation", id, "delete")
		return nil
	})
}

// AutoTitle names a conversation after its first prompt.
func (s *Store) AutoTitle(ctx context.Context, id, prompt string) error {
	title := strings.TrimSpace(prompt)
	if runes := []rune(title); len(runes) > 30 {
		title = string(runes[:30]) + "..."
	}
	if title == "" {
		title = "New Chat"
	}
	return s.UpdateConversation(ctx, id, map[string]any{"title": title, "last_updated": s.now()})
}

// Messages returns the conversation history in ordinal order.
func (s *Store) Messages(ctx context.Context, conversationID string) ([]models.ChatMessage, error) {
	return gorm.G[models.ChatMessage](s.db).
		Where("conversation_id = ?", conversationID).
		Order("ordinal ASC").
		Find(ctx)
}

// AppendMessage adds a message at the end of the history and bumps the
// conversation's last-updated stamp.
func (s *Store) AppendMessage(ctx context.Context, conversationID, role, content string, tokens int) (models.ChatMessage, error) {
	var msg models.ChatMessage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var next int64
		if err := tx.Model(&models.ChatMessage{}).
			Where("conversation_id = ?", conversationID).
			Select("COALESCE(MAX(ordinal), -1) + 1").
			Scan(&next).Error; err != nil {
			return err
		}
		msg = models.ChatMessage{
			ID:             uuid.NewString(),
			ConversationID: conversationID,
			Ordinal:        int(next),
			Role:           role,
			Content:        content,
			Tokens:         tokens,
		}
		if err := gorm.G[models.ChatMessage](tx).Create(ctx, &msg); err != nil {
			return err
		}
		if _, err := gorm.G[models.Conversation](tx).
			Where("id = ?", conversationID).
			Update(ctx, "last_updated", s.now()); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return models.ChatMessage{}, err
	}
	s.sync("message", msg.ID, "upsert")
	return msg, nil
}

// AppendPlaceholder creates the empty assistant message a stream writes into.
func (s *Store) AppendPlaceholder(ctx context.Context, conversationID string) (models.ChatMessage, error) {
	return s.AppendMessage(ctx, conversationID, consts.RoleAssistant, "", 0)
}

// SetContent replaces the message content; called once per delta with the
// accumulated text (pure append upstream, so content only ever grows).
func (s *Store) SetContent(ctx context.Context, messageID, content string) error {
	_, err := gorm.G[models.ChatMessage](s.db).
		Where("id = ?", messageID).
		Update(ctx, "content", content)
	return err
}

// Finalize stamps a completed assistant message with its provider and token
// estimate.
func (s *Store) Finalize(ctx context.Context, messageID, servedBy string, tokens int) error {
	if err := s.db.WithContext(ctx).
		Model(&models.ChatMessage{}).
		Where("id = ?", messageID).
		Updates(map[string]any{"served_by": servedBy, "tokens": tokens}).Error; err != nil {
		return err
	}
	s.sync("message", messageID, "upsert")
	return nil
}

func (s *Store) DeleteMessage(ctx context.Context, messageID string) error {
	if _, err := gorm.G[models.ChatMessage](s.db).Where("id = ?", messageID).Delete(ctx); err != nil {
		return err
	}
	s.sync("message", messageID, "delete")
	return nil
}

// TruncateAfter implements fork-on-edit: rewrite the edited message's content
// and drop every message with a higher ordinal. Returns the surviving history.
func (s *Store) TruncateAfter(ctx context.Context, conversationID, messageID, newContent string, tokens int) ([]models.ChatMessage, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		edited, err := gorm.G[models.ChatMessage](tx).
			Where("id = ? AND conversation_id = ?", messageID, conversationID).
			First(ctx)
		if err != nil {
			return err
		}
		if edited.Role != consts.RoleUser {
			return ErrNotUserMessage
		}
		if _, err := gorm.G[models.ChatMessage](tx).
			Where("conversation_id = ? AND ordinal > ?", conversationID, edited.Ordinal).
			Delete(ctx); err != nil {
			return err
		}
		if err := tx.Model(&models.ChatMessage{}).
			Where("id = ?", messageID).
			Updates(map[string]any{"content": newContent, "tokens": tokens}).Error; err != nil {
			return err
		}
		if _, err := gorm.G[models.Conversation](tx).
			Where("id = ?", conversationID).
			Update(ctx, "last_updated", s.now()); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.sync("conversation", conversationID, "upsert")
	return s.Messages(ctx, conversationID)
}

// CreateFolder adds a sidebar grouping.
func (s *Store) CreateFolder(ctx context.Context, name string) (models.Folder, error) {
	folder := models.Folder{ID: uuid.NewString(), Name: name}
	if err := gorm.G[models.Folder](s.db).Create(ctx, &folder); err != nil {
		return models.Folder{}, err
	}
	s.sync("folder", folder.ID, "upsert")
	return folder, nil
}

func (s *Store) ListFolders(ctx context.Context) ([]models.Folder, error) {
	return gorm.G[models.Folder](s.db).Order("name ASC").Find(ctx)
}

func (s *Store) RenameFolder(ctx context.Context, id, name string) error {
	if _, err := gorm.G[models.Folder](s.db).Where("id = ?", id).Update(ctx, "name", name); err != nil {
		return err
	}
	s.sync("folder", id, "upsert")
	return nil
}

// DeleteFolder removes the folder and releases its conversations back to the
// top level.
func (s *Store) DeleteFolder(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := gorm.G[models.Conversation](tx).
			Where("folder_id = ?", id).
			Update(ctx, "folder_id", nil); err != nil {
			return err
		}
		if _, err := gorm.G[models.Folder](tx).Where("id = ?", id).Delete(ctx); err != nil {
			return err
		}
		s.sync("folder", id, "delete")
		return nil
	})
}

func (s *Store) sync(entity, id, op string) {
	if s.ob != nil {
		s.ob.Enqueue(entity, id, op)
	}
}
