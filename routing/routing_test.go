package routing

import (
	"testing"
	"time"

	"github.com/kaushaltekade/chatbot/consts"
	"github.com/kaushaltekade/chatbot/models"
)

func key(id uint, provider string, usage, limit int64) models.APIKey {
	k := models.APIKey{Provider: provider, Usage: usage, Limit: limit, IsActive: true}
	k.ID = id
	return k
}

func TestEligible(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	inactive := key(1, consts.ProviderOpenAI, 0, 0)
	inactive.IsActive = false
	locked := key(2, consts.ProviderGroq, 0, 0)
	locked.LockedUntil = &future
	expired := key(3, consts.ProviderMistral, 0, 0)
	expired.LockedUntil = &past
	plain := key(4, consts.ProviderCohere, 0, 0)

	got := Eligible([]models.APIKey{inactive, locked, expired, plain}, now)
	if len(got) != 2 {
		t.Fatalf("eligible=%d, want 2", len(got))
	}
	if got[0].ID != 3 || got[1].ID != 4 {
		t.Fatalf("got ids %d,%d", got[0].ID, got[1].ID)
	}
}

func TestCandidatesDefaultOrdering(t *testing.T) {
	// A is nearly exhausted, B is unlimited: B must come first.
	a := key(1, consts.ProviderOpenAI, 95, 100)
	b := key(2, consts.ProviderGroq, 1_000_000, 0)

	got := Candidates([]models.APIKey{a, b}, "hello", false, time.Now())
	if len(got) != 2 || got[0].ID != 2 {
		t.Fatalf("order=%v", ids(got))
	}
}

func TestCandidatesPriorityTiebreak(t *testing.T) {
	a := key(1, consts.ProviderOpenAI, 0, 0)
	a.Priority = 2
	b := key(2, consts.ProviderGroq, 0, 0)
	b.Priority = 1

	got := Candidates([]models.APIKey{a, b}, "hello", false, time.Now())
	if got[0].ID != 2 {
		t.Fatalf("order=%v", ids(got))
	}
}

func TestCandidatesSmartRouting(t *testing.T) {
	// Coding prompt: anthropic scores 10, gemini 0, regardless of quota.
	gemini := key(1, consts.ProviderGemini, 0, 0)
	anthropic := key(2, consts.ProviderAnthropic, 90, 100)

	got := Candidates([]models.APIKey{gemini, anthropic}, "fix this bug in my react component", true, time.Now())
	if got[0].Provider != consts.ProviderAnthropic {
		t.Fatalf("order=%v", ids(got))
	}
}

func TestCandidatesSmartFallsBackToQuota(t *testing.T) {
	// No keyword hits: smart ordering degrades to the default comparison.
	a := key(1, consts.ProviderOpenAI, 95, 100)
	b := key(2, consts.ProviderGroq, 0, 0)

	got := Candidates([]models.APIKey{a, b}, "tell me a story", true, time.Now())
	if got[0].ID != 2 {
		t.Fatalf("order=%v", ids(got))
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		prompt string
		want   []string
	}{
		{"fix this bug in my react component", []string{consts.CategoryCoding}},
		{"solve this math proof", []string{consts.CategoryReasoning}},
		{"what is the latest news", []string{consts.CategorySearch}},
		{"explain why my python code has an error", []string{consts.CategoryCoding, consts.CategoryReasoning}},
		{"tell me a story", nil},
	}
	for _, tt := range tests {
		got := Classify(tt.prompt)
		if len(got) != len(tt.want) {
			t.Fatalf("Classify(%q)=%v, want %v", tt.prompt, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Fatalf("Classify(%q)=%v, want %v", tt.prompt, got, tt.want)
			}
		}
	}
}

func TestScore(t *testing.T) {
	coding := []string{consts.CategoryCoding}
	if got := Score(consts.ProviderAnthropic, coding); got != 10 {
		t.Fatalf("anthropic/coding=%d", got)
	}
	if got := Score(consts.ProviderOpenAI, coding); got != 8 {
		t.Fatalf("openai/coding=%d", got)
	}
	if got := Score(consts.ProviderGemini, coding); got != 0 {
		t.Fatalf("gemini/coding=%d", got)
	}

	search := []string{consts.CategorySearch}
	if got := Score(consts.ProviderPerplexity, search); got != 10 {
		t.Fatalf("perplexity/search=%d", got)
	}

	// First non-zero category wins: coding beats a later search hit.
	both := []string{consts.CategoryCoding, consts.CategorySearch}
	if got := Score(consts.ProviderGemini, both); got != 8 {
		t.Fatalf("gemini/coding+search=%d", got)
	}
}

func ids(keys []models.APIKey) []uint {
	out := make([]uint, len(keys))
	for i, k := range keys {
		out[i] = k.ID
	}
	return out
}
