// Package allocator hands out collision-free SKU numbers from a shop's counter.
package allocator

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"skugen/internal/core/allocation"
	"skugen/internal/core/apperror"
	"skugen/internal/core/sku"
	"skugen/internal/core/tx"
	"skugen/pkg/logger"
)

var tracer = otel.Tracer("skugen/allocator")

// Options tunes allocation.
type Options struct {
	// AutoProvisionStart, when set, is the starting value used for shops that
	// have no counter yet. When nil such shops fail with CONFIGURATION_ERROR.
	AutoProvisionStart *int64

	// ProbeTimeout bounds each catalog probe call. Zero means no extra bound.
	ProbeTimeout time.Duration
}

// Batch is the result of one allocation, passed to Request.Record before commit.
type Batch struct {
	Shop    string
	Numbers []int64

	// Previous is the counter value read at the start; Next is the value stored.
	Previous int64
	Next     int64

	// Tried counts candidates examined, accepted or rejected.
	Tried int
}

// Request describes an allocation.
type Request struct {
	Shop  string
	Count int

	// Probe overrides the catalog connection. Nil means connect per call.
	Probe allocation.CatalogProbe

	// Exclude lists numbers the caller is about to record itself. They are
	// skipped like taken numbers.
	Exclude []int64

	// Record runs inside the transaction that advances the counter.
	// An error rolls back the advance.
	Record func(ctx context.Context, batch Batch) error
}

// Service allocates SKU numbers.
type Service struct {
	counters  allocation.CounterStore
	ledger    allocation.Ledger
	locker    allocation.ShopLocker
	connector allocation.CatalogConnector
	txManager tx.Manager
	codec     sku.Codec
	opts      Options
}

// NewService creates a new allocator.
func NewService(
	counters allocation.CounterStore,
	ledger allocation.Ledger,
	locker allocation.ShopLocker,
	connector allocation.CatalogConnector,
	txManager tx.Manager,
	codec sku.Codec,
	opts Options,
) *Service {
	return &Service{
		counters:  counters,
		ledger:    ledger,
		locker:    locker,
		connector: connector,
		txManager: txManager,
		codec:     codec,
		opts:      opts,
	}
}

// Codec returns the SKU codec used for probing.
func (s *Service) Codec() sku.Codec {
	return s.codec
}

// Allocate returns count fresh SKU numbers for shop in ascending order and
// durably advances the shop's counter past the last number tried.
func (s *Service) Allocate(ctx context.Context, shop string, count int) ([]int64, error) {
	batch, err := s.AllocateBatch(ctx, Request{Shop: shop, Count: count})
	if err != nil {
		return nil, err
	}
	return batch.Numbers, nil
}

// AllocateBatch is Allocate with an explicit probe and an in-transaction hook.
//
// The shop lock is held from the counter read until the advance commits.
// A probe error aborts the call and leaves the counter untouched, so the same
// numbers are probed again next time.
func (s *Service) AllocateBatch(ctx context.Context, req Request) (Batch, error) {
	if req.Shop == "" {
		return Batch{}, apperror.NewInvalidInput("shop is required")
	}
	if req.Count < 0 {
		return Batch{}, apperror.NewInvalidInput("count must not be negative").WithDetail("count", req.Count)
	}
	if req.Count == 0 {
		return Batch{Shop: req.Shop, Numbers: []int64{}}, nil
	}

	ctx, span := tracer.Start(ctx, "allocate",
		trace.WithAttributes(
			attribute.String("shop", req.Shop),
			attribute.Int("count", req.Count),
		))
	defer span.End()

	batch, err := s.allocate(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "allocation failed")
		return Batch{}, err
	}

	span.SetAttributes(
		attribute.Int64("counter.previous", batch.Previous),
		attribute.Int64("counter.next", batch.Next),
		attribute.Int("probes", batch.Tried),
	)
	return batch, nil
}

func (s *Service) allocate(ctx context.Context, req Request) (Batch, error) {
	probe := req.Probe
	if probe == nil {
		catalog, err := s.connector.Connect(ctx, req.Shop)
		if err != nil {
			return Batch{}, err
		}
		probe = catalog
	}

	unlock, err := s.locker.Lock(ctx, req.Shop)
	if err != nil {
		return Batch{}, fmt.Errorf("lock shop %s: %w", req.Shop, err)
	}
	defer unlock()

	start, provision, err := s.readCounter(ctx, req.Shop)
	if err != nil {
		return Batch{}, err
	}

	batch := Batch{
		Shop:     req.Shop,
		Numbers:  make([]int64, 0, req.Count),
		Previous: start,
	}

	excluded := make(map[int64]bool, len(req.Exclude))
	for _, x := range req.Exclude {
		excluded[x] = true
	}

	n := start
	for len(batch.Numbers) < req.Count {
		candidate := s.codec.Format(n)
		exists := excluded[n]
		if !exists {
			exists, err = s.recorded(ctx, req.Shop, n)
			if err != nil {
				return Batch{}, err
			}
		}
		if exists {
			logger.Debug(ctx, "sku already recorded, skipping", "sku", candidate)
		} else {
			exists, err = s.probe(ctx, probe, candidate)
			if err != nil {
				logger.Warn(ctx, "catalog probe failed, counter not advanced",
					"sku", candidate, "tried", batch.Tried, "error", err)
				return Batch{}, apperror.NewProbe(req.Shop, candidate, err)
			}
			if exists {
				logger.Debug(ctx, "sku already in catalog, skipping", "sku", candidate)
			}
		}
		batch.Tried++
		if !exists {
			batch.Numbers = append(batch.Numbers, n)
		}
		n++
	}
	batch.Next = n

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.persist(ctx, req.Shop, start, n, provision); err != nil {
			return err
		}
		if req.Record != nil {
			return req.Record(ctx, batch)
		}
		return nil
	})
	if err != nil {
		return Batch{}, err
	}

	logger.Info(ctx, "skus allocated",
		"count", len(batch.Numbers),
		"first", batch.Numbers[0],
		"last", batch.Numbers[len(batch.Numbers)-1],
		"counter", batch.Next,
		"probes", batch.Tried,
	)
	return batch, nil
}

// readCounter returns the starting value and whether the counter must be created.
func (s *Service) readCounter(ctx context.Context, shop string) (int64, bool, error) {
	counter, err := s.counters.Get(ctx, shop)
	if err == nil {
		return counter.NextCandidate, false, nil
	}
	if !apperror.IsNotFound(err) {
		return 0, false, fmt.Errorf("read counter: %w", err)
	}
	if s.opts.AutoProvisionStart == nil {
		return 0, false, apperror.NewConfiguration(shop, "SKU counter is not configured for this shop")
	}
	logger.Info(ctx, "auto-provisioning sku counter", "start", *s.opts.AutoProvisionStart)
	return *s.opts.AutoProvisionStart, true, nil
}

func (s *Service) persist(ctx context.Context, shop string, expected, next int64, provision bool) error {
	var (
		ok  bool
		err error
	)
	if provision {
		ok, err = s.counters.Create(ctx, shop, next)
	} else {
		ok, err = s.counters.Advance(ctx, shop, expected, next)
	}
	if err != nil {
		return fmt.Errorf("advance counter: %w", err)
	}
	if !ok {
		return apperror.NewConcurrentModification("shop_counter", shop).
			WithDetail("expected", expected)
	}
	return nil
}

// recorded reports whether the ledger already holds n for shop. A number can be
// recorded but missing from the catalog when its catalog write failed.
func (s *Service) recorded(ctx context.Context, shop string, n int64) (bool, error) {
	rows, err := s.ledger.FindByNumbers(ctx, shop, []int64{n})
	if err != nil {
		return false, fmt.Errorf("check ledger: %w", err)
	}
	return len(rows) > 0, nil
}

func (s *Service) probe(ctx context.Context, probe allocation.CatalogProbe, candidate string) (bool, error) {
	if s.opts.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.ProbeTimeout)
		defer cancel()
	}
	return probe.SkuExists(ctx, candidate)
}
