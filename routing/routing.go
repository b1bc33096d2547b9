// Package routing turns the credential store plus a prompt into an ordered
// candidate list. It never mutates credentials and its output is ephemeral:
// recomputed on every send, never persisted.
package routing

import (
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/kaushaltekade/chatbot/models"
)

// Eligible drops credentials that are inactive or inside a lock window.
func Eligible(keys []models.APIKey, now time.Time) []models.APIKey {
	return lo.Filter(keys, func(k models.APIKey, _ int) bool {
		return k.IsActive && !k.Locked(now)
	})
}

// Candidates produces the ordered list of credentials to try for a prompt.
// An empty result is a valid terminal condition for the caller.
func Candidates(keys []models.APIKey, prompt string, smart bool, now time.Time) []models.APIKey {
	candidates := Eligible(keys, now)

	if !smart {
		sortByRemaining(candidates)
		return candidates
	}

	categories := Classify(prompt)
	slices.SortStableFunc(candidates, func(a, b models.APIKey) int {
		if d := Score(b.Provider, categories) - Score(a.Provider, categories); d != 0 {
			return d
		}
		return compareDefault(a, b)
	})
	return candidates
}

// sortByRemaining is the default ordering: descending remaining quota, keys
// without a limit first.
func sortByRemaining(keys []models.APIKey) {
	slices.SortStableFunc(keys, compareDefault)
}

func compareDefault(a, b models.APIKey) int {
	ra, rb := a.Remaining(), b.Remaining()
	switch {
	case rb > ra:
		return 1
	case rb < ra:
		return -1
	}
	// Equal remaining quota falls back to the user's explicit ordering.
	return a.Priority - b.Priority
}
