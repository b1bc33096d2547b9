package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kaushaltekade/chatbot/common"
)

type folderRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *Handler) ListFolders(c *gin.Context) {
	folders, err := h.convs.ListFolders(c.Request.Context())
	if err != nil {
		common.InternalServerError(c, err.Error())
		return
	}
	common.Success(c, folders)
}

func (h *Handler) CreateFolder(c *gin.Context) {
	var req folderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.BadRequest(c, err.Error())
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		common.BadRequest(c, "folder name must not be blank")
		return
	}
	folder, err := h.convs.CreateFolder(c.Request.Context(), name)
	if err != nil {
		common.InternalServerError(c, err.Error())
		return
	}
	common.Success(c, folder)
}

func (h *Handler) RenameFolder(c *gin.Context) {
	var req folderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.BadRequest(c, err.Error())
		return
	}
	if err := h.convs.RenameFolder(c.Request.Context(), c.Param("id"), strings.TrimSpace(req.Name)); err != nil {
		common.InternalServerError(c, err.Error())
		return
	}
	common.Success(c, nil)
}

// DeleteFolder drops the folder only; conversations inside move back to the
// top level.
func (h *Handler) DeleteFolder(c *gin.Context) {
	if err := h.convs.DeleteFolder(c.Request.Context(), c.Param("id")); err != nil {
		common.InternalServerError(c, err.Error())
		return
	}
	common.Success(c, nil)
}
