// Package promptstore owns the saved-prompt library: user templates plus a
// built-in starter set seeded at startup.
package promptstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kaushaltekade/chatbot/models"
	"github.com/kaushaltekade/chatbot/service/outbox"
)

type Store struct {
	db  *gorm.DB
	ob  *outbox.Queue
	now func() time.Time
}

func New(db *gorm.DB, ob *outbox.Queue) *Store {
	return &Store{db: db, ob: ob, now: time.Now}
}

// builtins ship with the app. Seed restores any that were deleted;
// ResetDefaults restores the whole library to exactly this set.
var builtins = []models.SavedPrompt{
	{ID: "builtin-1", Title: "Fix Code", Content: "Please analyze this code for bugs and fix them, explaining your changes:", Category: "Coding", IsBuiltIn: true},
	{ID: "builtin-2", Title: "Explain Concept", Content: "Explain the following concept like I am 5 years old:", Category: "Learning", IsBuiltIn: true},
	{ID: "builtin-3", Title: "Refactor", Content: "Refactor this code to be more clean, efficient, and modern:", Category: "Coding", IsBuiltIn: true},
	{ID: "builtin-4", Title: "Write Email", Content: "Draft a professional email to [recipient] regarding [subject]. Keep it concise and polite.", Category: "Writing", IsBuiltIn: true},
	{ID: "builtin-5", Title: "Summarize Text", Content: "Please summarize the following text into 3 key bullet points:", Category: "Analysis", IsBuiltIn: true},
	{ID: "builtin-6", Title: "Debug Error", Content: "I am getting the following error message. What does it mean and how do I fix it?", Category: "Coding", IsBuiltIn: true},
	{ID: "builtin-7", Title: "Story Idea", Content: "Give me a unique premise for a short sci-fi story involving time travel and a toaster.", Category: "Creative", IsBuiltIn: true},
	{ID: "builtin-8", Title: "SQL Query", Content: "Write a complex SQL query to select [fields] from [table] where [condition].", Category: "Coding", IsBuiltIn: true},
	{ID: "builtin-9", Title: "Review Resume", Content: "Critique this resume snippet and suggest improvements for a senior developer role:", Category: "Career", IsBuiltIn: true},
	{ID: "builtin-10", Title: "Regex Help", Content: "Write a Regular Expression (Regex) to match the following pattern:", Category: "Coding", IsBuiltIn: true},
}

// Seed inserts missing built-in prompts. Rows already present, edited or not,
// are left alone.
func (s *Store) Seed(ctx context.Context) error {
	for _, b := range builtins {
		_, err := gorm.G[models.SavedPrompt](s.db).Where("id = ?", b.ID).First(ctx)
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		b := b
		if err := gorm.G[models.SavedPrompt](s.db).Create(ctx, &b); err != nil {
			return err
		}
	}
	return nil
}

// List returns the library with the most recently used prompts first.
func (s *Store) List(ctx context.Context) ([]models.SavedPrompt, error) {
	return gorm.G[models.SavedPrompt](s.db).
		Order("last_used DESC, title ASC").
		Find(ctx)
}

func (s *Store) Create(ctx context.Context, title, content, category string) (models.SavedPrompt, error) {
	prompt := models.SavedPrompt{
		ID:       uuid.NewString(),
		Title:    title,
		Content:  content,
		Category: category,
		LastUsed: s.now(),
	}
	if err := gorm.G[models.SavedPrompt](s.db).Create(ctx, &prompt); err != nil {
		return models.SavedPrompt{}, err
	}
	s.sync(prompt.ID, "upsert")
	return prompt, nil
}

// Update applies a partial field set. A map keeps zero values writable.
func (s *Store) Update(ctx context.Context, id string, updates map[string]any) error {
	res := s.db.WithContext(ctx).
		Model(&models.SavedPrompt{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	s.sync(id, "upsert")
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := gorm.G[models.SavedPrompt](s.db).Where("id = ?", id).Delete(ctx); err != nil {
		return err
	}
	s.sync(id, "delete")
	return nil
}

// Use bumps the usage counter and last-used stamp, which floats the prompt to
// the top of the list. Returns the refreshed row.
func (s *Store) Use(ctx context.Context, id string) (models.SavedPrompt, error) {
	res := s.db.WithContext(ctx).
		Model(&models.SavedPrompt{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"usage_count": gorm.Expr("usage_count + 1"),
			"last_used":   s.now(),
		})
	if res.Error != nil {
		return models.SavedPrompt{}, res.Error
	}
	if res.RowsAffected == 0 {
		return models.SavedPrompt{}, gorm.ErrRecordNotFound
	}
	prompt, err := gorm.G[models.SavedPrompt](s.db).Where("id = ?", id).First(ctx)
	if err != nil {
		return models.SavedPrompt{}, err
	}
	s.sync(id, "upsert")
	return prompt, nil
}

// ResetDefaults wipes the library back to the built-in set. User prompts and
// built-in usage counters are gone after this.
func (s *Store) ResetDefaults(ctx context.Context) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.SavedPrompt{}).Error; err != nil {
			return err
		}
		for _, b := range builtins {
			b := b
			if err := gorm.G[models.SavedPrompt](tx).Create(ctx, &b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.sync("library", "reset")
	return nil
}

func (s *Store) sync(id, op string) {
	if s.ob != nil {
		s.ob.Enqueue("prompt", id, op)
	}
}
