// Package counter provides administrative access to a shop's SKU counter.
package counter

import (
	"context"
	"strconv"
	"strings"

	"skugen/internal/core/allocation"
	"skugen/internal/core/apperror"
	"skugen/internal/core/sku"
	"skugen/internal/core/tx"
	"skugen/pkg/logger"
)

// View is the counter as shown to administrators.
type View struct {
	Shop          string
	NextCandidate int64
	NextSKU       string
}

// Service reads and sets counters.
type Service struct {
	counters  allocation.CounterStore
	locker    allocation.ShopLocker
	events    allocation.EventPublisher
	txManager tx.Manager
	codec     sku.Codec
}

// NewService creates a new counter service.
func NewService(
	counters allocation.CounterStore,
	locker allocation.ShopLocker,
	events allocation.EventPublisher,
	txManager tx.Manager,
	codec sku.Codec,
) *Service {
	return &Service{
		counters:  counters,
		locker:    locker,
		events:    events,
		txManager: txManager,
		codec:     codec,
	}
}

// GetCurrentCounter returns the shop's counter or NotFound when none is provisioned.
func (s *Service) GetCurrentCounter(ctx context.Context, shop string) (*View, error) {
	if shop == "" {
		return nil, apperror.NewInvalidInput("shop is required")
	}
	c, err := s.counters.Get(ctx, shop)
	if err != nil {
		return nil, err
	}
	return s.view(c), nil
}

// SetStartingCounter stores value as the shop's next candidate.
//
// Lowering the counter is allowed. Numbers already in the catalog are then
// rejected one by one by the probe, so no duplicate is issued.
func (s *Service) SetStartingCounter(ctx context.Context, shop string, value int64) (*View, error) {
	if shop == "" {
		return nil, apperror.NewInvalidInput("shop is required")
	}
	if value < 0 {
		return nil, apperror.NewInvalidInput("counter must not be negative").WithDetail("value", value)
	}

	unlock, err := s.locker.Lock(ctx, shop)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var previous *int64
	if c, err := s.counters.Get(ctx, shop); err == nil {
		previous = &c.NextCandidate
	} else if !apperror.IsNotFound(err) {
		return nil, err
	}

	var stored *allocation.Counter
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		c, err := s.counters.Set(ctx, shop, value)
		if err != nil {
			return err
		}
		stored = c

		payload := map[string]any{"next_candidate": value}
		if previous != nil {
			payload["previous"] = *previous
		}
		return s.events.Publish(ctx, allocation.Event{
			Type:        allocation.EventCounterSet,
			Shop:        shop,
			AggregateID: shop,
			Payload:     payload,
		})
	})
	if err != nil {
		return nil, err
	}

	if previous != nil && value < *previous {
		logger.Warn(ctx, "sku counter lowered; numbers already in the catalog will be probed and skipped",
			"previous", *previous, "next_candidate", value)
	} else {
		logger.Info(ctx, "sku counter set", "next_candidate", value)
	}
	return s.view(stored), nil
}

// ParseValue parses administrative input for SetStartingCounter.
func ParseValue(raw string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, apperror.NewInvalidInput("Invalid number").WithDetail("value", raw)
	}
	return v, nil
}

func (s *Service) view(c *allocation.Counter) *View {
	return &View{
		Shop:          c.Shop,
		NextCandidate: c.NextCandidate,
		NextSKU:       s.codec.Format(c.NextCandidate),
	}
}
