package counter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skugen/internal/core/allocation"
	"skugen/internal/core/apperror"
	"skugen/internal/core/sku"
	"skugen/internal/core/tx"
)

const shop = "acme.myshopify.com"

func newService(store *allocation.MockCounterStore, events *[]allocation.Event) (*Service, *int) {
	locks := 0
	locker := &allocation.MockLocker{
		LockFunc: func(ctx context.Context, shop string) (func(), error) {
			locks++
			return func() {}, nil
		},
	}
	publisher := &allocation.MockPublisher{
		PublishFunc: func(ctx context.Context, event allocation.Event) error {
			*events = append(*events, event)
			return nil
		},
	}
	return NewService(store, locker, publisher, tx.Inline, sku.MustCodec("LA")), &locks
}

func TestGetCurrentCounter(t *testing.T) {
	var events []allocation.Event
	svc, _ := newService(&allocation.MockCounterStore{
		GetFunc: func(ctx context.Context, shop string) (*allocation.Counter, error) {
			return &allocation.Counter{Shop: shop, NextCandidate: 1234}, nil
		},
	}, &events)

	got, err := svc.GetCurrentCounter(context.Background(), shop)

	require.NoError(t, err)
	assert.Equal(t, int64(1234), got.NextCandidate)
	assert.Equal(t, "LA1234", got.NextSKU)
}

func TestGetCurrentCounter_NotProvisioned(t *testing.T) {
	var events []allocation.Event
	svc, _ := newService(&allocation.MockCounterStore{
		GetFunc: func(ctx context.Context, shop string) (*allocation.Counter, error) {
			return nil, apperror.NewNotFound("shop_counter", shop)
		},
	}, &events)

	_, err := svc.GetCurrentCounter(context.Background(), shop)

	assert.True(t, apperror.IsNotFound(err))
}

func TestSetStartingCounter_LowerIsAllowed(t *testing.T) {
	var events []allocation.Event
	var setTo int64
	svc, locks := newService(&allocation.MockCounterStore{
		GetFunc: func(ctx context.Context, shop string) (*allocation.Counter, error) {
			return &allocation.Counter{Shop: shop, NextCandidate: 5000}, nil
		},
		SetFunc: func(ctx context.Context, shop string, value int64) (*allocation.Counter, error) {
			setTo = value
			return &allocation.Counter{Shop: shop, NextCandidate: value}, nil
		},
	}, &events)

	got, err := svc.SetStartingCounter(context.Background(), shop, 1000)

	require.NoError(t, err)
	assert.Equal(t, int64(1000), setTo)
	assert.Equal(t, "LA1000", got.NextSKU)
	assert.Equal(t, 1, *locks)
	require.Len(t, events, 1)
	assert.Equal(t, allocation.EventCounterSet, events[0].Type)
	assert.Equal(t, map[string]any{"next_candidate": int64(1000), "previous": int64(5000)}, events[0].Payload)
}

func TestSetStartingCounter_FirstProvision(t *testing.T) {
	var events []allocation.Event
	svc, _ := newService(&allocation.MockCounterStore{
		GetFunc: func(ctx context.Context, shop string) (*allocation.Counter, error) {
			return nil, apperror.NewNotFound("shop_counter", shop)
		},
	}, &events)

	got, err := svc.SetStartingCounter(context.Background(), shop, 1)

	require.NoError(t, err)
	assert.Equal(t, int64(1), got.NextCandidate)
	require.Len(t, events, 1)
	assert.Equal(t, map[string]any{"next_candidate": int64(1)}, events[0].Payload)
}

func TestSetStartingCounter_Negative(t *testing.T) {
	var events []allocation.Event
	svc, locks := newService(&allocation.MockCounterStore{}, &events)

	_, err := svc.SetStartingCounter(context.Background(), shop, -5)

	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))
	assert.Equal(t, 0, *locks)
	assert.Empty(t, events)
}

func TestParseValue(t *testing.T) {
	v, err := ParseValue(" 2500 ")
	require.NoError(t, err)
	assert.Equal(t, int64(2500), v)

	_, err = ParseValue("abc")
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "Invalid number", appErr.Message)
}
