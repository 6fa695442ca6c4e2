package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"skugen/internal/core/allocation"
	"skugen/internal/core/sku"
	"skugen/internal/domain/intake"
	"skugen/internal/infrastructure/http/v1/dto"
	"skugen/internal/infrastructure/shopify"
)

// Reserver hands out SKUs that are not attached to any variant.
type Reserver interface {
	Reserve(ctx context.Context, shop string, count int) ([]string, error)
}

// ProductSkus reads and re-pushes a product's ledger.
type ProductSkus interface {
	Records(ctx context.Context, shop, productID string) ([]allocation.Record, error)
	Resync(ctx context.Context, shop, productID string) (*intake.Outcome, error)
}

// SkuHandler serves SKU reservation and per-product SKU records.
type SkuHandler struct {
	*BaseHandler
	reserver Reserver
	products ProductSkus
	codec    sku.Codec
}

// NewSkuHandler creates a new SKU handler.
func NewSkuHandler(base *BaseHandler, reserver Reserver, products ProductSkus, codec sku.Codec) *SkuHandler {
	return &SkuHandler{BaseHandler: base, reserver: reserver, products: products, codec: codec}
}

// Reserve allocates SKUs for manual use.
// POST /api/v1/skus/reserve
func (h *SkuHandler) Reserve(c *gin.Context) {
	shop, ok := h.Shop(c)
	if !ok {
		return
	}

	var req dto.ReserveRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}

	skus, err := h.reserver.Reserve(c.Request.Context(), shop, req.N())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ReserveResponse{SKUs: skus})
}

// ProductRecords lists the SKUs recorded for a product.
// GET /api/v1/products/:id/skus
func (h *SkuHandler) ProductRecords(c *gin.Context) {
	shop, ok := h.Shop(c)
	if !ok {
		return
	}

	records, err := h.products.Records(c.Request.Context(), shop, shopify.ProductGID(c.Param("id")))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": dto.FromRecords(h.codec, records)})
}

// Resync writes the recorded SKUs of a product to the catalog again.
// POST /api/v1/products/:id/resync
func (h *SkuHandler) Resync(c *gin.Context) {
	shop, ok := h.Shop(c)
	if !ok {
		return
	}

	outcome, err := h.products.Resync(c.Request.Context(), shop, shopify.ProductGID(c.Param("id")))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromOutcome(outcome))
}
