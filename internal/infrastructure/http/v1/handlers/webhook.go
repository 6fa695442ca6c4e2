package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"skugen/internal/core/apperror"
	"skugen/internal/domain/intake"
	"skugen/internal/infrastructure/http/v1/dto"
)

// ProductIntake handles product-created events.
type ProductIntake interface {
	HandleProductCreated(ctx context.Context, event intake.Event) (*intake.Outcome, error)
}

// SessionRemover forgets a shop's credentials.
type SessionRemover interface {
	Uninstall(ctx context.Context, shop string) error
}

// WebhookHandler receives Shopify webhooks. Signatures are checked by
// middleware.Webhook before these handlers run.
type WebhookHandler struct {
	*BaseHandler
	intake   ProductIntake
	sessions SessionRemover
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(base *BaseHandler, intake ProductIntake, sessions SessionRemover) *WebhookHandler {
	return &WebhookHandler{BaseHandler: base, intake: intake, sessions: sessions}
}

// ProductCreated assigns SKUs to a new product.
// Skipped and assigned deliveries return 200 so Shopify stops retrying;
// dependency failures return 5xx or 409 and are retried.
// POST /webhooks/products/create
func (h *WebhookHandler) ProductCreated(c *gin.Context) {
	shop, ok := h.Shop(c)
	if !ok {
		return
	}

	var payload dto.ProductWebhook
	if !h.BindJSON(c, &payload) {
		return
	}

	event := payload.ToEvent(shop)
	outcome, err := h.intake.HandleProductCreated(c.Request.Context(), event)
	if err != nil {
		h.Error(c, err)
		return
	}

	if outcome.Status == intake.StatusFailed && outcome.Reason == intake.ReasonNoVariants {
		h.Error(c, apperror.NewNoVariants(shop, event.ProductID))
		return
	}

	h.OK(c, dto.FromOutcome(outcome))
}

// AppUninstalled removes the shop's session. The counter and ledger are kept.
// POST /webhooks/app/uninstalled
func (h *WebhookHandler) AppUninstalled(c *gin.Context) {
	shop, ok := h.Shop(c)
	if !ok {
		return
	}
	if err := h.sessions.Uninstall(c.Request.Context(), shop); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "session removed")
}
