package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kaushaltekade/chatbot/consts"
	"github.com/kaushaltekade/chatbot/models"
	"github.com/kaushaltekade/chatbot/providers"
	"github.com/kaushaltekade/chatbot/routing"
)

// KeyStore is the credential state the orchestrator reads and writes. It is
// the only writer of usage and lock state.
type KeyStore interface {
	List(ctx context.Context) ([]models.APIKey, error)
	RollWindow(ctx context.Context, key models.APIKey) (models.APIKey, error)
	RecordUsage(ctx context.Context, id uint, deltaTokens int64) (models.APIKey, error)
	Lock(ctx context.Context, id uint, until time.Time) error
}

// ConvStore is the slice of conversation state the orchestrator needs:
// placeholder lifecycle and content updates.
type ConvStore interface {
	AppendPlaceholder(ctx context.Context, conversationID string) (models.ChatMessage, error)
	SetContent(ctx context.Context, messageID, content string) error
	Finalize(ctx context.Context, messageID, servedBy string, tokens int) error
	DeleteMessage(ctx context.Context, messageID string) error
}

// Notifier receives the ephemeral, user-facing notices the browser shows as
// toasts: failover switches, quota warnings, terminal errors.
type Notifier interface {
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

type NopNotifier struct{}

func (NopNotifier) Info(string)  {}
func (NopNotifier) Warn(string)  {}
func (NopNotifier) Error(string) {}

// ErrNoEligibleKey is the terminal configuration error: nothing to route to.
var ErrNoEligibleKey = errors.New("no active API keys found, please check settings")

// errStopped marks user-initiated cancellation, which must not lock a key.
var errStopped = errors.New("generation stopped")

// SendResult describes how a send operation ended.
type SendResult struct {
	MessageID string // final assistant message (placeholder id)
	Content   string
	ServedBy  string // provider id on success
	Stopped   bool   // user stop: partial content kept, not a failure
}

// SendCallbacks lets one send observe deltas and notices as they happen.
// Both fields are optional.
type SendCallbacks struct {
	OnDelta func(delta string)
	Notify  Notifier
}

// Orchestrator runs the per-send state machine: route, attempt, stream,
// fail over, account. One instance serves all conversations; at most one
// send is in flight per conversation at a time.
type Orchestrator struct {
	keys     KeyStore
	convs    ConvStore
	registry *providers.Registry
	notify   Notifier
	log      *slog.Logger
	now      func() time.Time

	smart atomic.Bool

	mu       sync.Mutex
	inflight map[string]*inflightSend
}

type inflightSend struct {
	cancel context.CancelCauseFunc
}

func NewOrchestrator(keys KeyStore, convs ConvStore, registry *providers.Registry, notify Notifier, log *slog.Logger) *Orchestrator {
	if notify == nil {
		notify = NopNotifier{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		keys:     keys,
		convs:    convs,
		registry: registry,
		notify:   notify,
		log:      log,
		now:      time.Now,
		inflight: make(map[string]*inflightSend),
	}
}

// SetSmartRouting toggles content-based candidate ordering globally.
func (o *Orchestrator) SetSmartRouting(on bool) { o.smart.Store(on) }
func (o *Orchestrator) SmartRouting() bool      { return o.smart.Load() }

// Stop aborts the in-flight send for a conversation, if any. Partial content
// already streamed stays in place and no credential is locked.
func (o *Orchestrator) Stop(conversationID string) bool {
	o.mu.Lock()
	entry, ok := o.inflight[conversationID]
	o.mu.Unlock()
	if ok {
		entry.cancel(errStopped)
	}
	return ok
}

// register cancels any previous in-flight send for the pane: starting a new
// generation implicitly stops the old one.
func (o *Orchestrator) register(conversationID string, entry *inflightSend) {
	o.mu.Lock()
	if prev, ok := o.inflight[conversationID]; ok {
		prev.cancel(errStopped)
	}
	o.inflight[conversationID] = entry
	o.mu.Unlock()
}

func (o *Orchestrator) unregister(conversationID string, entry *inflightSend) {
	o.mu.Lock()
	// Only remove our own registration; a newer send may have replaced it.
	if cur, ok := o.inflight[conversationID]; ok && cur == entry {
		delete(o.inflight, conversationID)
	}
	o.mu.Unlock()
}

// connectTimeout picks the window for reaching first byte. Known-slow
// providers get the long window even on the first attempt.
func connectTimeout(first bool, provider string) time.Duration {
	if provider == consts.ProviderPerplexity || provider == consts.ProviderCohere {
		return consts.ConnectTimeoutSlow
	}
	if first {
		return consts.ConnectTimeoutFirst
	}
	return consts.ConnectTimeoutNext
}

// Send drives one generation for a conversation. history is the full
// outbound message list (already shaped for plain send / regenerate / edit);
// prompt is the text used for routing and usage estimation.
func (o *Orchestrator) Send(ctx context.Context, conversationID string, history []providers.Message, prompt string, cb SendCallbacks) (SendResult, error) {
	notify := cb.Notify
	if notify == nil {
		notify = o.notify
	}
	paneCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	entry := &inflightSend{cancel: cancel}
	o.register(conversationID, entry)
	defer o.unregister(conversationID, entry)

	// Store writes must survive cancellation: a stopped stream still keeps
	// its partial content.
	storeCtx := context.WithoutCancel(ctx)

	all, err := o.keys.List(ctx)
	if err != nil {
		return SendResult{}, err
	}
	candidates := routing.Candidates(all, prompt, o.smart.Load(), o.now())
	if len(candidates) == 0 {
		notify.Error(ErrNoEligibleKey.Error())
		return SendResult{}, ErrNoEligibleKey
	}

	placeholder, err := o.convs.AppendPlaceholder(storeCtx, conversationID)
	if err != nil {
		return SendResult{}, err
	}

	var lastErr error
	for i, key := range candidates {
		key, err := o.keys.RollWindow(storeCtx, key)
		if err != nil {
			o.log.Error("usage window roll failed", "key", key.ID, "error", err)
		}

		if lastErr != nil {
			notify.Warn(fmt.Sprintf("Switching to %s...", key.Provider))
		}
		o.log.Info("attempting provider", "conversation", conversationID, "provider", key.Provider, "key", key.ID, "attempt", i+1)

		content, attemptErr := o.attempt(paneCtx, key, history, placeholder.ID, storeCtx, connectTimeout(i == 0, key.Provider), cb.OnDelta)

		if attemptErr == nil {
			tokens := EstimateTokens(prompt) + EstimateTokens(content)
			o.settleUsage(storeCtx, key, int64(tokens), notify)
			if err := o.convs.Finalize(storeCtx, placeholder.ID, key.Provider, EstimateTokens(content)); err != nil {
				o.log.Error("finalize failed", "message", placeholder.ID, "error", err)
			}
			return SendResult{MessageID: placeholder.ID, Content: content, ServedBy: key.Provider}, nil
		}

		if errors.Is(attemptErr, errStopped) || errors.Is(context.Cause(paneCtx), errStopped) || ctx.Err() != nil {
			// User cancellation: keep partial content, no lock, not a failure.
			o.log.Info("generation stopped", "conversation", conversationID, "provider", key.Provider)
			notify.Info("Generation stopped")
			return SendResult{MessageID: placeholder.ID, Content: content, Stopped: true}, nil
		}

		if errors.Is(attemptErr, providers.ErrUnknownProvider) {
			// Misconfigured key, not a provider failure. Skip it without
			// burning the lock window.
			lastErr = attemptErr
			o.log.Error("skipping key with unknown provider", "provider", key.Provider, "key", key.ID)
			continue
		}

		lastErr = attemptErr
		o.log.Warn("provider attempt failed", "provider", key.Provider, "key", key.ID, "error", attemptErr)

		// Any failure, transient or not, locks the key for the full window.
		if err := o.keys.Lock(storeCtx, key.ID, o.now().Add(consts.LockDuration)); err != nil {
			o.log.Error("failed to lock key", "key", key.ID, "error", err)
		}

		if i < len(candidates)-1 {
			// Fresh placeholder for the next attempt; the full original
			// history is replayed so no context is lost.
			if err := o.convs.DeleteMessage(storeCtx, placeholder.ID); err != nil {
				o.log.Error("failed to drop placeholder", "message", placeholder.ID, "error", err)
			}
			placeholder, err = o.convs.AppendPlaceholder(storeCtx, conversationID)
			if err != nil {
				return SendResult{}, err
			}
			notify.Warn(fmt.Sprintf("Error with %s. Switching to %s... (Context Preserved)", key.Provider, candidates[i+1].Provider))
		}
	}

	final := "All providers failed."
	if lastErr != nil {
		final = lastErr.Error()
	}
	notify.Error(final)
	if err := o.convs.SetContent(storeCtx, placeholder.ID, "Error: "+final); err != nil {
		o.log.Error("failed to write terminal error", "message", placeholder.ID, "error", err)
	}
	return SendResult{MessageID: placeholder.ID, Content: "Error: " + final}, fmt.Errorf("all candidates exhausted: %w", lastErr)
}

// attempt runs a single provider call under a connect timeout that is
// disarmed the moment the first response byte arrives. Returns the
// accumulated content (possibly partial on error).
func (o *Orchestrator) attempt(paneCtx context.Context, key models.APIKey, history []providers.Message, messageID string, storeCtx context.Context, timeout time.Duration, onDelta func(string)) (string, error) {
	provider, err := o.registry.Lookup(key.Provider)
	if err != nil {
		return "", err
	}

	timedOut := fmt.Errorf("connection timed out after %ds", int(timeout.Seconds()))
	attemptCtx, cancel := context.WithCancelCause(paneCtx)
	defer cancel(nil)

	timer := time.AfterFunc(timeout, func() { cancel(timedOut) })
	defer timer.Stop()
	attemptCtx = providers.WithFirstByte(attemptCtx, func() { timer.Stop() })

	var acc []byte
	streamErr := provider.StreamChat(attemptCtx, history, key.Secret, func(delta string) {
		// Purely additive accumulation, reflected into the store live.
		acc = append(acc, delta...)
		if err := o.convs.SetContent(storeCtx, messageID, string(acc)); err != nil {
			o.log.Error("delta write failed", "message", messageID, "error", err)
		}
		if onDelta != nil {
			onDelta(delta)
		}
	})

	content := string(acc)
	if streamErr == nil {
		return content, nil
	}

	// Map context teardown back to its cause so timeouts read as timeouts
	// and user stops as stops.
	if cause := context.Cause(attemptCtx); cause != nil {
		if errors.Is(cause, timedOut) {
			return content, timedOut
		}
		if errors.Is(cause, errStopped) {
			return content, errStopped
		}
	}
	return content, streamErr
}

// settleUsage records spent tokens and emits quota threshold warnings.
func (o *Orchestrator) settleUsage(ctx context.Context, key models.APIKey, tokens int64, notify Notifier) {
	fresh, err := o.keys.RecordUsage(ctx, key.ID, tokens)
	if err != nil {
		o.log.Error("usage accounting failed", "key", key.ID, "error", err)
		return
	}
	if fresh.Limit <= 0 {
		return
	}
	pct := float64(fresh.Usage) / float64(fresh.Limit)
	switch {
	case pct >= 0.9:
		notify.Error(fmt.Sprintf("CRITICAL: You have used %d%% of your limit for %s (24h)", int(pct*100), key.Provider))
	case pct >= 0.8:
		notify.Warn(fmt.Sprintf("Alert: You have used %d%% of your limit for %s (24h)", int(pct*100), key.Provider))
	}
}
