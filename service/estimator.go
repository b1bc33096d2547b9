package service

import (
	"fmt"
	"math"
)

// EstimateTokens is the heuristic text→token count used for usage accounting
// and UI hints. Baseline is ~4 chars per token for Latin text, shading toward
// ~1.5 for CJK-heavy text. It is deterministic: identical input, identical
// count.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}

	total := 0
	sample := 0
	cjk := 0
	for _, r := range text {
		total++
		// Sampling the prefix keeps long inputs cheap.
		if sample < 500 {
			if r >= 0x4E00 && r <= 0x9FFF {
				cjk++
			}
			sample++
		}
	}

	cjkRatio := float64(cjk) / float64(sample)
	charsPerToken := 4.0 - (4.0-1.5)*cjkRatio

	// Round up: a partial token still costs a token.
	tokens := int(math.Ceil(float64(total) / charsPerToken))
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

// FormatTokenCount renders a count for display: 999, 1.2k, 3.4M.
func FormatTokenCount(count int64) string {
	switch {
	case count >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(count)/1_000_000)
	case count >= 1_000:
		return fmt.Sprintf("%.1fk", float64(count)/1_000)
	default:
		return fmt.Sprintf("%d", count)
	}
}
