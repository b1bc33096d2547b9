package consts

import "time"

// Provider identifiers. The OpenAI-compatible family shares one adapter and
// differs only in base URL and default model.
const (
	ProviderOpenAI     = "openai"
	ProviderDeepSeek   = "deepseek"
	ProviderGroq       = "groq"
	ProviderMistral    = "mistral"
	ProviderOpenRouter = "openrouter"
	ProviderPerplexity = "perplexity"
	ProviderAnthropic  = "anthropic"
	ProviderCohere     = "cohere"
	ProviderGemini     = "gemini"
)

// Prompt categories used by smart routing.
const (
	CategoryCoding    = "coding"
	CategoryReasoning = "reasoning"
	CategorySearch    = "search"
)

const (
	// LockDuration is applied to a credential after any failed attempt,
	// transient or not.
	LockDuration = 24 * time.Hour

	// UsageWindow is the rolling window after which a credential's usage
	// counter resets to zero.
	UsageWindow = 24 * time.Hour
)

// Connect timeouts for the orchestrator. The timer is disarmed as soon as the
// first byte of the response body arrives.
const (
	ConnectTimeoutFirst = 5 * time.Second
	ConnectTimeoutNext  = 20 * time.Second
	ConnectTimeoutSlow  = 30 * time.Second
)

// Roles of a canonical chat message.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
