// Package handler exposes the orchestration core over HTTP: the stateless
// relay boundary, the stateful conversation API, and credential management.
package handler

import (
	"log/slog"

	"github.com/kaushaltekade/chatbot/providers"
	"github.com/kaushaltekade/chatbot/service"
	"github.com/kaushaltekade/chatbot/service/convstore"
	"github.com/kaushaltekade/chatbot/service/keystore"
	"github.com/kaushaltekade/chatbot/service/promptstore"
)

type Handler struct {
	registry *providers.Registry
	orch     *service.Orchestrator
	keys     *keystore.Store
	convs    *convstore.Store
	prompts  *promptstore.Store
	log      *slog.Logger

	// systemPrompt, when set, is prepended to every outbound history.
	systemPrompt string
}

func New(registry *providers.Registry, orch *service.Orchestrator, keys *keystore.Store, convs *convstore.Store, prompts *promptstore.Store, systemPrompt string, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		registry:     registry,
		orch:         orch,
		keys:         keys,
		convs:        convs,
		prompts:      prompts,
		log:          log,
		systemPrompt: systemPrompt,
	}
}
