package handler

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/kaushaltekade/chatbot/common"
)

func (h *Handler) ListPrompts(c *gin.Context) {
	prompts, err := h.prompts.List(c.Request.Context())
	if err != nil {
		common.InternalServerError(c, err.Error())
		return
	}
	common.Success(c, prompts)
}

type createPromptRequest struct {
	Title    string `json:"title" binding:"required"`
	Content  string `json:"content" binding:"required"`
	Category string `json:"category"`
}

func (h *Handler) CreatePrompt(c *gin.Context) {
	var req createPromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.BadRequest(c, err.Error())
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		common.BadRequest(c, "prompt title must not be blank")
		return
	}
	prompt, err := h.prompts.Create(c.Request.Context(), title, req.Content, req.Category)
	if err != nil {
		common.InternalServerError(c, err.Error())
		return
	}
	common.Success(c, prompt)
}

type updatePromptRequest struct {
	Title    *string `json:"title"`
	Content  *string `json:"content"`
	Category *string `json:"category"`
}

func (h *Handler) UpdatePrompt(c *gin.Context) {
	var req updatePromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.BadRequest(c, err.Error())
		return
	}
	updates := map[string]any{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Content != nil {
		updates["content"] = *req.Content
	}
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if len(updates) == 0 {
		common.BadRequest(c, "nothing to update")
		return
	}
	if err := h.prompts.Update(c.Request.Context(), c.Param("id"), updates); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.NotFound(c, "prompt not found")
			return
		}
		common.InternalServerError(c, err.Error())
		return
	}
	common.Success(c, nil)
}

func (h *Handler) DeletePrompt(c *gin.Context) {
	if err := h.prompts.Delete(c.Request.Context(), c.Param("id")); err != nil {
		common.InternalServerError(c, err.Error())
		return
	}
	common.Success(c, nil)
}

// UsePrompt records a use and returns the prompt so the client can insert its
// content.
func (h *Handler) UsePrompt(c *gin.Context) {
	prompt, err := h.prompts.Use(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.NotFound(c, "prompt not found")
			return
		}
		common.InternalServerError(c, err.Error())
		return
	}
	common.Success(c, prompt)
}

func (h *Handler) ResetPrompts(c *gin.Context) {
	if err := h.prompts.ResetDefaults(c.Request.Context()); err != nil {
		common.InternalServerError(c, err.Error())
		return
	}
	common.Success(c, nil)
}
