// Package keystore owns credential state: CRUD, usage accounting inside a
// rolling 24h window, lock windows and user-defined ordering.
package keystore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/kaushaltekade/chatbot/consts"
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

func (s *Store) List(ctx context.Context) ([]models.APIKey, error) {
	return gorm.G[models.APIKey](s.db).
		Order("priority ASC, id ASC").
		Find(ctx)
}

func (s *Store) Get(ctx context.Context, id uint) (models.APIKey, error) {
	return gorm.G[models.APIKey](s.db).Where("id = ?", id).First(ctx)
}

func (s *Store) Create(ctx context.Context, key *models.APIKey) error {
	if err := gorm.G[models.APIKey](s.db).Create(ctx, key); err != nil {
		return err
	}
	s.sync(key.ID)
	return nil
}

// Update applies a partial update. A map keeps zero values (false, 0, nil)
// writable, which struct updates would skip.
func (s *Store) Update(ctx context.Context, id uint, updates map[string]any) error {
	if err := s.db.WithContext(ctx).
		Model(&models.APIKey{}).
		Where("id = ?", id).
		Updates(updates).Error; err != nil {
		return err
	}
	s.sync(id)
	return nil
}

func (s *Store) Delete(ctx context.Context, id uint) error {
	if _, err := gorm.G[models.APIKey](s.db).Where("id = ?", id).Delete(ctx); err != nil {
		return err
	}
	if s.ob != nil {
		s.ob.Enqueue("api_key", fmt.Sprint(id), "delete")
	}
	return nil
}

// RecordUsage adds deltaTokens to the key's window usage and returns the
// fresh row so callers can check quota thresholds.
func (s *Store) RecordUsage(ctx context.Context, id uint, deltaTokens int64) (models.APIKey, error) {
	if _, err := gorm.G[models.APIKey](s.db).
		Where("id = ?", id).
		Update(ctx, "usage", gorm.Expr("usage + ?", deltaTokens)); err != nil {
		return models.APIKey{}, err
	}
	s.sync(id)
	return s.Get(ctx, id)
}

// Lock makes the key ineligible until the given time.
func (s *Store) Lock(ctx context.Context, id uint, until time.Time) error {
	return s.Update(ctx, id, map[string]any{"locked_until": until})
}

func (s *Store) Unlock(ctx context.Context, id uint) error {
	return s.Update(ctx, id, map[string]any{"locked_until": nil})
}

func (s *Store) SetActive(ctx context.Context, id uint, active bool) error {
	return s.Update(ctx, id, map[string]any{"is_active": active})
}

// Reorder rewrites priorities to match the given id order.
func (s *Store) Reorder(ctx context.Context, ids []uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for rank, id := range ids {
			if _, err := gorm.G[models.APIKey](tx).
				Where("id = ?", id).
				Update(ctx, "priority", rank); err != nil {
				return err
			}
		}
		return nil
	})
}

// RollWindow applies the rolling-24h usage policy to one key and returns the
// resulting row. A key that has never been stamped gets the reset time set
// without zeroing existing usage (legacy-compat); past the window, usage
// resets and the window advances.
func (s *Store) RollWindow(ctx context.Context, key models.APIKey) (models.APIKey, error) {
	now := s.now()

	if key.LastUsageReset == nil {
		if err := s.Update(ctx, key.ID, map[string]any{"last_usage_reset": now}); err != nil {
			return key, err
		}
		key.LastUsageReset = &now
		return key, nil
	}

	if now.Sub(*key.LastUsageReset) > consts.UsageWindow {
		if err := s.Update(ctx, key.ID, map[string]any{
			"last_usage_reset": now,
			"usage":            0,
		}); err != nil {
			return key, err
		}
		key.LastUsageReset = &now
		key.Usage = 0
	}
	return key, nil
}

func (s *Store) sync(id uint) {
	if s.ob != nil {
		s.ob.Enqueue("api_key", fmt.Sprint(id), "upsert")
	}
}
