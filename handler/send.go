package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/kaushaltekade/chatbot/common"
	"github.com/kaushaltekade/chatbot/consts"
	"github.com/kaushaltekade/chatbot/models"
	"github.com/kaushaltekade/chatbot/providers"
	"github.com/kaushaltekade/chatbot/service"
	"github.com/kaushaltekade/chatbot/service/convstore"
)

// streamEvent is one SSE frame of the orchestrated send stream.
type streamEvent struct {
	Type      string `json:"type"` // delta | notice | done | error
	Content   string `json:"content,omitempty"`
	Level     string `json:"level,omitempty"`
	Message   string `json:"message,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	ServedBy  string `json:"served_by,omitempty"`
	Stopped   bool   `json:"stopped,omitempty"`
}

// sseNotifier forwards orchestrator notices into the open stream.
type sseNotifier struct {
	c *gin.Context
}

func (n sseNotifier) Info(msg string)  { writeFrame(n.c, streamEvent{Type: "notice", Level: "info", Message: msg}) }
func (n sseNotifier) Warn(msg string)  { writeFrame(n.c, streamEvent{Type: "notice", Level: "warn", Message: msg}) }
func (n sseNotifier) Error(msg string) { writeFrame(n.c, streamEvent{Type: "notice", Level: "error", Message: msg}) }

type sendRequest struct {
	Content string `json:"content" binding:"required"`
}

// Send appends a user message and streams the orchestrated response.
// A conversation id of "new" creates one on first send.
func (h *Handler) Send(c *gin.Context) {
	ctx := c.Request.Context()

	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.BadRequest(c, err.Error())
		return
	}

	convID := c.Param("id")
	isNew := convID == "new"
	if isNew {
		conv, err := h.convs.CreateConversation(ctx)
		if err != nil {
			common.InternalServerError(c, err.Error())
			return
		}
		convID = conv.ID
	}

	existing, err := h.convs.Messages(ctx, convID)
	if err != nil {
		common.InternalServerError(c, err.Error())
		return
	}
	if isNew || len(existing) == 0 {
		if err := h.convs.AutoTitle(ctx, convID, req.Content); err != nil {
			h.log.Error("auto-title failed", "conversation", convID, "error", err)
		}
	}

	userMsg, err := h.convs.AppendMessage(ctx, convID, consts.RoleUser, req.Content, service.EstimateTokens(req.Content))
	if err != nil {
		common.InternalServerError(c, err.Error())
		return
	}

	history := h.outbound(append(existing, userMsg))
	h.stream(c, convID, history, req.Content)
}

// Regenerate drops the last assistant message and streams a fresh answer to
// the preceding user message.
func (h *Handler) Regenerate(c *gin.Context) {
	ctx := c.Request.Context()
	convID := c.Param("id")

	msgs, err := h.convs.Messages(ctx, convID)
	if err != nil {
		common.InternalServerError(c, err.Error())
		return
	}
	if len(msgs) == 0 || msgs[len(msgs)-1].Role != consts.RoleAssistant {
		common.BadRequest(c, "nothing to regenerate")
		return
	}
	if err := h.convs.DeleteMessage(ctx, msgs[len(msgs)-1].ID); err != nil {
		common.InternalServerError(c, err.Error())
		return
	}
	msgs = msgs[:len(msgs)-1]

	var prompt string
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == consts.RoleUser {
			prompt = msgs[i].Content
			break
		}
	}
	if prompt == "" {
		common.BadRequest(c, "no user message to regenerate from")
		return
	}

	h.stream(c, convID, h.outbound(msgs), prompt)
}

type editRequest struct {
	Content string `json:"content" binding:"required"`
}

// Edit rewrites a user message, truncates everything after it and streams a
// new answer (fork-on-edit).
func (h *Handler) Edit(c *gin.Context) {
	ctx := c.Request.Context()
	convID := c.Param("id")
	messageID := c.Param("messageId")

	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.BadRequest(c, err.Error())
		return
	}

	history, err := h.convs.TruncateAfter(ctx, convID, messageID, req.Content, service.EstimateTokens(req.Content))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.NotFound(c, "message not found")
			return
		}
		if errors.Is(err, convstore.ErrNotUserMessage) {
			common.BadRequest(c, err.Error())
			return
		}
		common.InternalServerError(c, err.Error())
		return
	}

	h.stream(c, convID, h.outbound(history), req.Content)
}

// Stop aborts the in-flight generation for a conversation. Partial content
// stays; this is not a failure.
func (h *Handler) Stop(c *gin.Context) {
	stopped := h.orch.Stop(c.Param("id"))
	common.Success(c, gin.H{"stopped": stopped})
}

type preferences struct {
	SmartRouting bool `json:"smart_routing"`
}

func (h *Handler) GetPreferences(c *gin.Context) {
	common.Success(c, preferences{SmartRouting: h.orch.SmartRouting()})
}

func (h *Handler) UpdatePreferences(c *gin.Context) {
	var req preferences
	if err := c.ShouldBindJSON(&req); err != nil {
		common.BadRequest(c, err.Error())
		return
	}
	h.orch.SetSmartRouting(req.SmartRouting)
	common.Success(c, preferences{SmartRouting: h.orch.SmartRouting()})
}

// outbound shapes stored history into the canonical outbound message list:
// optional system prompt first, placeholders (empty content) skipped.
func (h *Handler) outbound(msgs []models.ChatMessage) []providers.Message {
	out := make([]providers.Message, 0, len(msgs)+1)
	if h.systemPrompt != "" {
		out = append(out, providers.Message{Role: consts.RoleSystem, Content: h.systemPrompt})
	}
	for _, m := range msgs {
		if m.Content == "" {
			continue
		}
		out = append(out, providers.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

// stream runs the orchestrator and relays deltas/notices to the client as
// SSE frames, ending with a done or error frame.
func (h *Handler) stream(c *gin.Context, convID string, history []providers.Message, prompt string) {
	writeStreamHeader(c)

	result, err := h.orch.Send(c.Request.Context(), convID, history, prompt, service.SendCallbacks{
		OnDelta: func(delta string) {
			writeFrame(c, streamEvent{Type: "delta", Content: delta})
		},
		Notify: sseNotifier{c: c},
	})
	if err != nil {
		writeFrame(c, streamEvent{Type: "error", Message: err.Error(), MessageID: result.MessageID})
		return
	}
	writeFrame(c, streamEvent{
		Type:      "done",
		MessageID: result.MessageID,
		ServedBy:  result.ServedBy,
		Stopped:   result.Stopped,
	})
}
