package promptstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/kaushaltekade/chatbot/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := models.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(db, nil)
}

func TestSeedInsertsBuiltins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Seed(ctx); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	prompts, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(prompts) != len(builtins) {
		t.Fatalf("seeded %d prompts, want %d", len(prompts), len(builtins))
	}

	// Re-seeding must not duplicate.
	if err := s.Seed(ctx); err != nil {
		t.Fatalf("second Seed: %v", err)
	}
	prompts, _ = s.List(ctx)
	if len(prompts) != len(builtins) {
		t.Fatalf("re-seed duplicated: %d prompts", len(prompts))
	}
}

func TestSeedKeepsEditedBuiltin(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.Seed(ctx)

	if err := s.Update(ctx, "builtin-1", map[string]any{"content": "find the bug:"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := s.Seed(ctx); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	prompts, _ := s.List(ctx)
	for _, p := range prompts {
		if p.ID == "builtin-1" && p.Content != "find the bug:" {
			t.Fatalf("seed overwrote edit: %q", p.Content)
		}
	}
}

func TestUseFloatsPromptToTop(t *testing.T) {
	s := newTestStore(t)
	s.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	s.Seed(ctx)

	used, err := s.Use(ctx, "builtin-7")
	if err != nil {
		t.Fatalf("Use: %v", err)
	}
	if used.UsageCount != 1 {
		t.Fatalf("usage=%d", used.UsageCount)
	}

	prompts, _ := s.List(ctx)
	if prompts[0].ID != "builtin-7" {
		t.Fatalf("first=%s, want builtin-7", prompts[0].ID)
	}

	if _, err := s.Use(ctx, "builtin-7"); err != nil {
		t.Fatalf("second Use: %v", err)
	}
	prompts, _ = s.List(ctx)
	if prompts[0].UsageCount != 2 {
		t.Fatalf("usage=%d after two uses", prompts[0].UsageCount)
	}
}

func TestUseUnknownPrompt(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Use(context.Background(), "missing"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestCreateUpdateDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.Create(ctx, "Daily Standup", "Summarize my notes as standup bullets:", "Writing")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.ID == "" || p.IsBuiltIn {
		t.Fatalf("created=%+v", p)
	}

	if err := s.Update(ctx, p.ID, map[string]any{"category": ""}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	prompts, _ := s.List(ctx)
	if len(prompts) != 1 || prompts[0].Category != "" {
		t.Fatalf("prompts=%+v", prompts)
	}

	if err := s.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	prompts, _ = s.List(ctx)
	if len(prompts) != 0 {
		t.Fatalf("prompt survived delete: %+v", prompts)
	}
}

func TestUpdateUnknownPrompt(t *testing.T) {
	s := newTestStore(t)
	err := s.Update(context.Background(), "missing", map[string]any{"title": "x"})
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestResetDefaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.Seed(ctx)

	s.Create(ctx, "Mine", "my own prompt", "")
	s.Use(ctx, "builtin-2")
	s.Update(ctx, "builtin-1", map[string]any{"content": "changed"})

	if err := s.ResetDefaults(ctx); err != nil {
		t.Fatalf("ResetDefaults: %v", err)
	}

	prompts, _ := s.List(ctx)
	if len(prompts) != len(builtins) {
		t.Fatalf("%d prompts after reset, want %d", len(prompts), len(builtins))
	}
	for _, p := range prompts {
		if !p.IsBuiltIn || p.UsageCount != 0 {
			t.Fatalf("reset left %+v", p)
		}
		if p.ID == "builtin-1" && p.Content == "changed" {
			t.Fatal("reset kept edited content")
		}
	}
}
