package handler

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/kaushaltekade/chatbot/common"
	"github.com/kaushaltekade/chatbot/consts"
	"github.com/kaushaltekade/chatbot/models"
)

// ListAPIKeys returns all credentials in priority order. Secrets stay out of
// the JSON; only a hint of the tail is exposed for identification.
func (h *Handler) ListAPIKeys(c *gin.Context) {
	keys, err := h.keys.List(c.Request.Context())
	if err != nil {
		common.InternalServerError(c, err.Error())
		return
	}
	type keyView struct {
		models.APIKey
		SecretHint string `json:"secret_hint"`
	}
	views := lo.Map(keys, func(k models.APIKey, _ int) keyView {
		return keyView{APIKey: k, SecretHint: secretHint(k.Secret)}
	})
	common.Success(c, views)
}

func secretHint(secret string) string {
	if len(secret) <= 4 {
		return "****"
	}
	return "..." + secret[len(secret)-4:]
}

type createKeyRequest struct {
	Provider string `json:"provider" binding:"required"`
	Secret   string `json:"secret" binding:"required"`
	Label    string `json:"label"`
	Limit    int64  `json:"limit"`
}

func (h *Handler) CreateAPIKey(c *gin.Context) {
	var req createKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.BadRequest(c, err.Error())
		return
	}
	if _, err := h.registry.Lookup(req.Provider); err != nil {
		common.BadRequest(c, fmt.Sprintf("unknown provider %q", req.Provider))
		return
	}
	key := models.APIKey{
		Provider: req.Provider,
		Secret:   req.Secret,
		Label:    req.Label,
		Limit:    req.Limit,
		IsActive: true,
	}
	if err := h.keys.Create(c.Request.Context(), &key); err != nil {
		common.InternalServerError(c, err.Error())
		return
	}
	common.Success(c, key)
}

type updateKeyRequest struct {
	Label  *string `json:"label"`
	Limit  *int64  `json:"limit"`
	Active *bool   `json:"active"`
}

func (h *Handler) UpdateAPIKey(c *gin.Context) {
	id, ok := keyID(c)
	if !ok {
		return
	}
	var req updateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.BadRequest(c, err.Error())
		return
	}
	updates := map[string]any{}
	if req.Label != nil {
		updates["label"] = *req.Label
	}
	if req.Limit != nil {
		updates["limit"] = *req.Limit
	}
	if req.Active != nil {
		updates["is_active"] = *req.Active
	}
	if len(updates) == 0 {
		common.BadRequest(c, "nothing to update")
		return
	}
	if err := h.keys.Update(c.Request.Context(), id, updates); err != nil {
		common.InternalServerError(c, err.Error())
		return
	}
	common.Success(c, nil)
}

func (h *Handler) DeleteAPIKey(c *gin.Context) {
	id, ok := keyID(c)
	if !ok {
		return
	}
	if err := h.keys.Delete(c.Request.Context(), id); err != nil {
		common.InternalServerError(c, err.Error())
		return
	}
	common.Success(c, nil)
}

// UnlockAPIKey clears a lock window early, the manual escape hatch for the
// 24h failure lock.
func (h *Handler) UnlockAPIKey(c *gin.Context) {
	id, ok := keyID(c)
	if !ok {
		return
	}
	if err := h.keys.Unlock(c.Request.Context(), id); err != nil {
		common.InternalServerError(c, err.Error())
		return
	}
	common.Success(c, nil)
}

// LockAPIKey applies the standard lock window by hand.
func (h *Handler) LockAPIKey(c *gin.Context) {
	id, ok := keyID(c)
	if !ok {
		return
	}
	if err := h.keys.Lock(c.Request.Context(), id, time.Now().Add(consts.LockDuration)); err != nil {
		common.InternalServerError(c, err.Error())
		return
	}
	common.Success(c, nil)
}

type reorderRequest struct {
	IDs []uint `json:"ids" binding:"required"`
}

func (h *Handler) ReorderAPIKeys(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.BadRequest(c, err.Error())
		return
	}
	if err := h.keys.Reorder(c.Request.Context(), req.IDs); err != nil {
		common.InternalServerError(c, err.Error())
		return
	}
	common.Success(c, nil)
}

// ListProviders exposes the closed registry so the settings UI can offer
// valid choices.
func (h *Handler) ListProviders(c *gin.Context) {
	ids := h.registry.IDs()
	type providerView struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	views := make([]providerView, 0, len(ids))
	for _, id := range ids {
		p, err := h.registry.Lookup(id)
		if err != nil {
			continue
		}
		views = append(views, providerView{ID: p.ID(), Name: p.Name()})
	}
	common.Success(c, views)
}

func keyID(c *gin.Context) (uint, bool) {
	var id uint
	if _, err := fmt.Sscanf(c.Param("id"), "%d", &id); err != nil {
		common.BadRequest(c, "invalid key id")
		return 0, false
	}
	return id, true
}
