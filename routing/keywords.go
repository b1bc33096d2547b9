package routing

import (
	"strings"

	"github.com/kaushaltekade/chatbot/consts"
)

// Keyword sets for prompt classification. The lists are part of the routing
// contract: changing them changes which provider answers a prompt.
var (
	codingKeywords = []string{
		"code", "function", "script", "react", "typescript", "python", "html",
		"css", "sql", "bug", "error", "debug", "json", "api", "component",
		"class", "method",
	}
	reasoningKeywords = []string{
		"math", "solve", "calculate", "proof", "theorem", "logic", "analyze",
		"explain", "why",
	}
	searchKeywords = []string{
		"search", "find", "latest", "news", "price", "weather", "who is",
		"what is", "current",
	}
)

// Classify buckets a prompt into zero or more categories by case-insensitive
// keyword membership. Order is significant: scoring checks coding first, then
// reasoning, then search.
func Classify(prompt string) []string {
	lower := strings.ToLower(prompt)
	var cats []string
	if containsAny(lower, codingKeywords) {
		cats = append(cats, consts.CategoryCoding)
	}
	if containsAny(lower, reasoningKeywords) {
		cats = append(cats, consts.CategoryReasoning)
	}
	if containsAny(lower, searchKeywords) {
		cats = append(cats, consts.CategorySearch)
	}
	return cats
}

func containsAny(lower string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// affinity maps category -> provider -> score. A provider's score for a
// prompt is the first non-zero hit in category order.
var affinity = map[string]map[string]int{
	consts.CategoryCoding: {
		consts.ProviderDeepSeek:  10,
		consts.ProviderAnthropic: 10,
		consts.ProviderMistral:   10,
		consts.ProviderOpenAI:    8,
	},
	consts.CategoryReasoning: {
		consts.ProviderDeepSeek:  10,
		consts.ProviderOpenAI:    10,
		consts.ProviderAnthropic: 10,
		consts.ProviderCohere:    8,
	},
	consts.CategorySearch: {
		consts.ProviderPerplexity: 10,
		consts.ProviderGemini:     8,
	},
}

// Score rates a provider against the classified categories.
func Score(provider string, categories []string) int {
	for _, cat := range categories {
		if cat == consts.CategorySearch && strings.Contains(provider, "perplexity") {
			return 10
		}
		if s, ok := affinity[cat][provider]; ok && s > 0 {
			return s
		}
	}
	return 0
}
