package reserve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skugen/internal/core/allocation"
	"skugen/internal/core/apperror"
	"skugen/internal/core/sku"
	"skugen/internal/domain/allocator"
)

type allocatorFunc func(ctx context.Context, req allocator.Request) (allocator.Batch, error)

func (f allocatorFunc) AllocateBatch(ctx context.Context, req allocator.Request) (allocator.Batch, error) {
	return f(ctx, req)
}

func TestReserve(t *testing.T) {
	var events []allocation.Event
	publisher := &allocation.MockPublisher{
		PublishFunc: func(ctx context.Context, event allocation.Event) error {
			events = append(events, event)
			return nil
		},
	}
	alloc := allocatorFunc(func(ctx context.Context, req allocator.Request) (allocator.Batch, error) {
		batch := allocator.Batch{Shop: req.Shop, Numbers: []int64{1000, 1002}, Previous: 1000, Next: 1003}
		return batch, req.Record(ctx, batch)
	})
	svc := NewService(alloc, publisher, sku.MustCodec("LA"), 0)

	got, err := svc.Reserve(context.Background(), "acme.myshopify.com", 2)

	require.NoError(t, err)
	assert.Equal(t, []string{"LA1000", "LA1002"}, got)
	require.Len(t, events, 1)
	assert.Equal(t, allocation.EventSkusReserved, events[0].Type)
}

func TestReserve_CountOutOfRange(t *testing.T) {
	called := false
	alloc := allocatorFunc(func(ctx context.Context, req allocator.Request) (allocator.Batch, error) {
		called = true
		return allocator.Batch{}, nil
	})
	svc := NewService(alloc, &allocation.MockPublisher{}, sku.MustCodec("LA"), 5)

	for _, count := range []int{0, -1, 6} {
		_, err := svc.Reserve(context.Background(), "acme.myshopify.com", count)
		assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput), "count %d", count)
	}
	assert.False(t, called)
}
