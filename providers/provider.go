package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/kaushaltekade/chatbot/consts"
)

// Message is the canonical {role, content} shape, independent of any vendor
// wire format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamChunk is the frame the relay endpoint writes back to the browser.
type StreamChunk struct {
	Content string `json:"content,omitempty"`
	IsDone  bool   `json:"isDone"`
}

// Provider streams one chat completion. StreamChat returns nil only when the
// stream legitimately ended and at least one non-empty delta was delivered;
// any other outcome is an error. onDelta is invoked in arrival order.
type Provider interface {
	ID() string
	Name() string
	StreamChat(ctx context.Context, messages []Message, apiKey string, onDelta func(string)) error
}

// ErrEmptyStream distinguishes "stream closed with no tokens" from success.
var ErrEmptyStream = errors.New("received empty response from provider")

// ErrUnknownProvider is returned by Registry.Lookup for ids that were not
// registered at startup.
var ErrUnknownProvider = errors.New("unknown provider")

// Registry is a closed provider set resolved at startup.
type Registry struct {
	byID map[string]Provider
}

func NewRegistry(ps ...Provider) *Registry {
	byID := make(map[string]Provider, len(ps))
	for _, p := range ps {
		byID[p.ID()] = p
	}
	return &Registry{byID: byID}
}

func (r *Registry) Lookup(id string) (Provider, error) {
	p, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, id)
	}
	return p, nil
}

func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Endpoint overrides an adapter's defaults (self-hosted compatible servers,
// model pinning).
type Endpoint struct {
	BaseURL string
	Model   string
	Headers map[string]string
}

// DefaultRegistry builds every known adapter, applying per-provider overrides.
func DefaultRegistry(overrides map[string]Endpoint) *Registry {
	ps := []Provider{
		NewOpenAI(consts.ProviderOpenAI, "OpenAI", "https://api.openai.com/v1/chat/completions", "gpt-4o-mini", overrides),
		NewOpenAI(consts.ProviderDeepSeek, "DeepSeek", "https://api.deepseek.com/v1/chat/completions", "deepseek-chat", overrides),
		NewOpenAI(consts.ProviderGroq, "Groq", "https://api.groq.com/openai/v1/chat/completions", "llama-3.3-70b-versatile", overrides),
		NewOpenAI(consts.ProviderMistral, "Mistral", "https://api.mistral.ai/v1/chat/completions", "mistral-large-latest", overrides),
		NewOpenAI(consts.ProviderOpenRouter, "OpenRouter", "https://openrouter.ai/api/v1/chat/completions", "openrouter/auto", overrides),
		NewOpenAI(consts.ProviderPerplexity, "Perplexity", "https://api.perplexity.ai/chat/completions", "sonar", overrides),
		NewAnthropic(overrides),
		NewCohere(overrides),
		NewGemini(overrides),
	}
	return NewRegistry(ps...)
}

// httpClient is shared by all adapters. No client-level timeout: lifetimes
// are governed by the request context so a live stream is never cut off.
var httpClient = &http.Client{}

type firstByteKey struct{}

// WithFirstByte registers fn to fire when the first byte of a response body
// arrives. The orchestrator uses this to disarm its connect timeout.
func WithFirstByte(ctx context.Context, fn func()) context.Context {
	return context.WithValue(ctx, firstByteKey{}, fn)
}

func firstByteHook(ctx context.Context) func() {
	fn, _ := ctx.Value(firstByteKey{}).(func())
	return fn
}

// notifyReader invokes fn exactly once, on the first successful read.
type notifyReader struct {
	r     io.Reader
	fn    func()
	fired bool
}

func newNotifyReader(ctx context.Context, r io.Reader) io.Reader {
	fn := firstByteHook(ctx)
	if fn == nil {
		return r
	}
	return &notifyReader{r: r, fn: fn}
}

func (n *notifyReader) Read(p []byte) (int, error) {
	c, err := n.r.Read(p)
	if c > 0 && !n.fired {
		n.fired = true
		n.fn()
	}
	return c, err
}

// splitSystem extracts the first system message, returning it separately from
// the rest of the history. Vendors that forbid a system role in the message
// array (anthropic, cohere, gemini) need this.
func splitSystem(messages []Message) (system string, rest []Message) {
	rest = make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == consts.RoleSystem {
			if system == "" {
				system = m.Content
			}
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}
