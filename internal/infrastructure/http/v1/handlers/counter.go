package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"skugen/internal/domain/counter"
	"skugen/internal/infrastructure/http/v1/dto"
)

// CounterService reads and sets shop counters.
type CounterService interface {
	GetCurrentCounter(ctx context.Context, shop string) (*counter.View, error)
	SetStartingCounter(ctx context.Context, shop string, value int64) (*counter.View, error)
}

// CounterHandler exposes the counter to shop administrators.
type CounterHandler struct {
	*BaseHandler
	service CounterService
}

// NewCounterHandler creates a new counter handler.
func NewCounterHandler(base *BaseHandler, service CounterService) *CounterHandler {
	return &CounterHandler{BaseHandler: base, service: service}
}

// Get returns the current counter.
// GET /api/v1/counter
func (h *CounterHandler) Get(c *gin.Context) {
	shop, ok := h.Shop(c)
	if !ok {
		return
	}
	view, err := h.service.GetCurrentCounter(c.Request.Context(), shop)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromCounterView(view))
}

// Set overrides the next candidate number.
// PUT /api/v1/counter
func (h *CounterHandler) Set(c *gin.Context) {
	shop, ok := h.Shop(c)
	if !ok {
		return
	}

	var req dto.SetCounterRequest
	if !h.BindJSON(c, &req) {
		return
	}
	value, err := counter.ParseValue(req.Value)
	if err != nil {
		h.Error(c, err)
		return
	}

	view, err := h.service.SetStartingCounter(c.Request.Context(), shop, value)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromCounterView(view))
}
