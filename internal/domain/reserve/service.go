// Package reserve hands out SKUs ahead of product creation (autofill).
package reserve

import (
	"context"

	"skugen/internal/core/allocation"
	"skugen/internal/core/apperror"
	"skugen/internal/core/sku"
	"skugen/internal/domain/allocator"
)

// DefaultMax caps a single reservation.
const DefaultMax = 100

// Allocator is the subset of allocator.Service used here.
type Allocator interface {
	AllocateBatch(ctx context.Context, req allocator.Request) (allocator.Batch, error)
}

// Service reserves SKUs. Reserved numbers are consumed: the counter moves past them.
type Service struct {
	allocator Allocator
	events    allocation.EventPublisher
	codec     sku.Codec
	max       int
}

// NewService creates a reserve service. max <= 0 uses DefaultMax.
func NewService(alloc Allocator, events allocation.EventPublisher, codec sku.Codec, max int) *Service {
	if max <= 0 {
		max = DefaultMax
	}
	return &Service{allocator: alloc, events: events, codec: codec, max: max}
}

// Reserve allocates count SKUs for shop and returns them formatted.
func (s *Service) Reserve(ctx context.Context, shop string, count int) ([]string, error) {
	if count < 1 || count > s.max {
		return nil, apperror.NewInvalidInput("count out of range").
			WithDetail("count", count).
			WithDetail("max", s.max)
	}

	batch, err := s.allocator.AllocateBatch(ctx, allocator.Request{
		Shop:  shop,
		Count: count,
		Record: func(ctx context.Context, batch allocator.Batch) error {
			return s.events.Publish(ctx, allocation.Event{
				Type:        allocation.EventSkusReserved,
				Shop:        shop,
				AggregateID: shop,
				Payload: map[string]any{
					"skus":    s.codec.FormatAll(batch.Numbers),
					"counter": batch.Next,
				},
			})
		},
	})
	if err != nil {
		return nil, err
	}
	return s.codec.FormatAll(batch.Numbers), nil
}
