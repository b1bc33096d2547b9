package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/kaushaltekade/chatbot/common"
	"github.com/kaushaltekade/chatbot/consts"
	"github.com/kaushaltekade/chatbot/models"
)

func (h *Handler) ListConversations(c *gin.Context) {
	convs, err := h.convs.ListConversations(c.Request.Context())
	if err != nil {
		common.InternalServerError(c, err.Error())
		return
	}
	common.Success(c, convs)
}

func (h *Handler) CreateConversation(c *gin.Context) {
	conv, err := h.convs.CreateConversation(c.Request.Context())
	if err != nil {
		common.InternalServerError(c, err.Error())
		return
	}
	common.Success(c, conv)
}

func (h *Handler) GetConversation(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	conv, err := h.convs.GetConversation(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.NotFound(c, "conversation not found")
			return
		}
		common.InternalServerError(c, err.Error())
		return
	}
	msgs, err := h.convs.Messages(ctx, id)
	if err != nil {
		common.InternalServerError(c, err.Error())
		return
	}
	conv.Messages = msgs
	common.Success(c, conv)
}

type updateConversationRequest struct {
	Title    *string `json:"title"`
	IsPinned *bool   `json:"is_pinned"`
	FolderID *string `json:"folder_id"` // empty string clears the folder
}

func (h *Handler) UpdateConversation(c *gin.Context) {
	var req updateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.BadRequest(c, err.Error())
		return
	}
	updates := map[string]any{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.IsPinned != nil {
		updates["is_pinned"] = *req.IsPinned
	}
	if req.FolderID != nil {
		if *req.FolderID == "" {
			updates["folder_id"] = nil
		} else {
			updates["folder_id"] = *req.FolderID
		}
	}
	if len(updates) == 0 {
		common.BadRequest(c, "nothing to update")
		return
	}
	if err := h.convs.UpdateConversation(c.Request.Context(), c.Param("id"), updates); err != nil {
		common.InternalServerError(c, err.Error())
		return
	}
	common.Success(c, nil)
}

func (h *Handler) DeleteConversation(c *gin.Context) {
	if err := h.convs.DeleteConversation(c.Request.Context(), c.Param("id")); err != nil {
		common.InternalServerError(c, err.Error())
		return
	}
	common.Success(c, nil)
}

// ExportConversation renders the history as markdown or raw JSON for
// download.
func (h *Handler) ExportConversation(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	conv, err := h.convs.GetConversation(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.NotFound(c, "conversation not found")
			return
		}
		common.InternalServerError(c, err.Error())
		return
	}
	msgs, err := h.convs.Messages(ctx, id)
	if err != nil {
		common.InternalServerError(c, err.Error())
		return
	}

	switch c.DefaultQuery("format", "markdown") {
	case "json":
		conv.Messages = msgs
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", conv.Title+".json"))
		c.JSON(http.StatusOK, conv)
	case "markdown":
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", conv.Title+".md"))
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(exportMarkdown(conv, msgs)))
	default:
		common.BadRequest(c, "format must be markdown or json")
	}
}

func exportMarkdown(conv models.Conversation, msgs []models.ChatMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", conv.Title)
	for _, m := range msgs {
		switch m.Role {
		case consts.RoleUser:
			b.WriteString("**You:**\n\n")
		case consts.RoleAssistant:
			if m.ServedBy != "" {
				fmt.Fprintf(&b, "**Assistant (%s):**\n\n", m.ServedBy)
			} else {
				b.WriteString("**Assistant:**\n\n")
			}
		default:
			b.WriteString("**System:**\n\n")
		}
		b.WriteString(m.Content)
		b.WriteString("\n\n---\n\n")
	}
	return b.String()
}
