package keystore

import (
	"context"
	"log/slog"

	"gorm.io/gorm"

	"github.com/kaushaltekade/chatbot/config"
	"github.com/kaushaltekade/chatbot/models"
)

// SyncFromConfig reconciles credentials declared in the config file into the
// store at startup. Existing secrets are updated in place (label, limit,
// active flag); unknown secrets become new rows. Nothing is ever deleted
// here: removing a key is a user action, not a config side effect.
func (s *Store) SyncFromConfig(ctx context.Context, keys []config.KeyConfig) error {
	if len(keys) == 0 {
		return nil
	}

	existing, err := gorm.G[models.APIKey](s.db).Find(ctx)
	if err != nil {
		return err
	}
	bySecret := make(map[string]models.APIKey, len(existing))
	for _, k := range existing {
		bySecret[k.Provider+"\x00"+k.Secret] = k
	}

	for i, kc := range keys {
		if kc.Secret == "" || kc.Provider == "" {
			continue
		}
		active := true
		if kc.Active != nil {
			active = *kc.Active
		}

		if found, ok := bySecret[kc.Provider+"\x00"+kc.Secret]; ok {
			err := s.Update(ctx, found.ID, map[string]any{
				"label":     kc.Label,
				"limit":     kc.Limit,
				"is_active": active,
			})
			if err != nil {
				slog.Error("failed to update seeded key", "provider", kc.Provider, "error", err)
			}
			continue
		}

		key := models.APIKey{
			Provider: kc.Provider,
			Secret:   kc.Secret,
			Label:    kc.Label,
			Limit:    kc.Limit,
			IsActive: active,
			Priority: i,
		}
		if err := s.Create(ctx, &key); err != nil {
			slog.Error("failed to seed key", "provider", kc.Provider, "error", err)
		}
	}
	return nil
}
