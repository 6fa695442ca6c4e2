package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"skugen/internal/core/apperror"
	"skugen/internal/infrastructure/http/v1/dto"
	"skugen/internal/infrastructure/shopify"
)

// ScriptTagInstaller installs the storefront script of a shop.
type ScriptTagInstaller interface {
	InstallScriptTag(ctx context.Context, shop, src string) (*shopify.ScriptTag, bool, error)
}

// ScriptTagHandler installs the SKU autofill script.
type ScriptTagHandler struct {
	*BaseHandler
	installer ScriptTagInstaller
	src       string
}

// NewScriptTagHandler creates a new script tag handler.
func NewScriptTagHandler(base *BaseHandler, installer ScriptTagInstaller, src string) *ScriptTagHandler {
	return &ScriptTagHandler{BaseHandler: base, installer: installer, src: src}
}

// Install ensures the script tag exists.
// POST /api/v1/scripttag
func (h *ScriptTagHandler) Install(c *gin.Context) {
	shop, ok := h.Shop(c)
	if !ok {
		return
	}
	if h.src == "" {
		h.Error(c, apperror.NewConfiguration(shop, "script source is not configured"))
		return
	}

	tag, created, err := h.installer.InstallScriptTag(c.Request.Context(), shop, h.src)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ScriptTagResponse{ID: tag.ID, Src: tag.Src, Created: created})
}
