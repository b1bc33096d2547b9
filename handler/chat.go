package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kaushaltekade/chatbot/providers"
)

type chatRequest struct {
	Messages   []providers.Message `json:"messages"`
	ProviderID string              `json:"providerId"`
	APIKey     string              `json:"apiKey"`
}

// Chat is the stateless relay: one streaming provider call on behalf of a
// client that keeps its own state. It exists so vendor secrets never travel
// to third-party origins from the browser; orchestration semantics are
// identical to calling the adapter directly.
func (h *Handler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.APIKey == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing API Key"})
		return
	}
	provider, err := h.registry.Lookup(req.ProviderID)
	if err != nil {
		if errors.Is(err, providers.ErrUnknownProvider) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Provider"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	started := false
	streamErr := provider.StreamChat(c.Request.Context(), req.Messages, req.APIKey, func(delta string) {
		if !started {
			started = true
			writeStreamHeader(c)
		}
		writeFrame(c, providers.StreamChunk{Content: delta})
	})
	if streamErr != nil {
		h.log.Warn("relay stream failed", "provider", req.ProviderID, "error", streamErr)
		if !started {
			// Nothing on the wire yet: report the upstream failure properly.
			c.JSON(http.StatusInternalServerError, gin.H{"error": streamErr.Error()})
			return
		}
		// Headers already sent; end the stream without the done frame so the
		// client sees an aborted stream rather than a clean finish.
		return
	}
	if !started {
		writeStreamHeader(c)
	}
	writeFrame(c, providers.StreamChunk{IsDone: true})
}

func writeStreamHeader(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.Flush()
}

func writeFrame(c *gin.Context, chunk any) {
	data, err := json.Marshal(chunk)
	if err != nil {
		return
	}
	fmt.Fprintf(c.Writer, "data: %s\n\n", data)
	c.Writer.Flush()
}
