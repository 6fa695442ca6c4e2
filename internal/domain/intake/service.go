// Package intake assigns SKUs to the variants of newly created products.
// It is the idempotency gate in front of the allocator: a product that already
// has ledger rows is never allocated again.
package intake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"skugen/internal/core/allocation"
	"skugen/internal/core/apperror"
	"skugen/internal/core/id"
	"skugen/internal/core/sku"
	"skugen/internal/core/tx"
	"skugen/internal/domain/allocator"
	"skugen/pkg/logger"
)

// Allocator is the subset of allocator.Service used here.
type Allocator interface {
	AllocateBatch(ctx context.Context, req allocator.Request) (allocator.Batch, error)
}

var _ Allocator = (*allocator.Service)(nil)

// Config tunes intake.
type Config struct {
	// WriteConcurrency bounds parallel catalog writes per event (default 4).
	WriteConcurrency int

	// WriteTimeout bounds each catalog write (default 10s).
	WriteTimeout time.Duration

	// EventTimeout bounds the handling of one event (default 2m). Handling is
	// detached from the delivering request, so a dropped connection does not
	// abort work that joined deliveries are waiting on.
	EventTimeout time.Duration
}

// Service handles product-created events.
type Service struct {
	ledger    allocation.Ledger
	allocator Allocator
	connector allocation.CatalogConnector
	events    allocation.EventPublisher
	txManager tx.Manager
	codec     sku.Codec
	cfg       Config

	inflight singleflight.Group
	now      func() time.Time
}

// NewService creates a new intake service.
func NewService(
	ledger allocation.Ledger,
	alloc Allocator,
	connector allocation.CatalogConnector,
	events allocation.EventPublisher,
	txManager tx.Manager,
	codec sku.Codec,
	cfg Config,
) *Service {
	if cfg.WriteConcurrency <= 0 {
		cfg.WriteConcurrency = 4
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.EventTimeout <= 0 {
		cfg.EventTimeout = 2 * time.Minute
	}
	return &Service{
		ledger:    ledger,
		allocator: alloc,
		connector: connector,
		events:    events,
		txManager: txManager,
		codec:     codec,
		cfg:       cfg,
		now:       time.Now,
	}
}

// HandleProductCreated assigns SKUs to the variants of a new product.
//
// Concurrent deliveries of the same product inside this process share one
// execution. Across processes the ledger uniqueness on (shop, variant) decides.
func (s *Service) HandleProductCreated(ctx context.Context, event Event) (*Outcome, error) {
	if err := validate(event); err != nil {
		return nil, err
	}

	key := event.Shop + "/" + event.ProductID
	ch := s.inflight.DoChan(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.EventTimeout)
		defer cancel()
		return s.handle(ctx, event)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Outcome), nil
	}
}

// validate rejects events whose variants cannot be keyed in the ledger.
func validate(event Event) error {
	if event.Shop == "" || event.ProductID == "" {
		return apperror.NewInvalidInput("shop and product id are required")
	}
	seen := make(map[string]bool, len(event.Variants))
	for i, v := range event.Variants {
		if v.ID == "" {
			return apperror.NewInvalidInput("variant id is required").WithDetail("index", i)
		}
		if seen[v.ID] {
			return apperror.NewInvalidInput("duplicate variant id").WithDetail("variant_id", v.ID)
		}
		seen[v.ID] = true
	}
	return nil
}

func (s *Service) handle(ctx context.Context, event Event) (*Outcome, error) {
	existing, err := s.ledger.FindByProduct(ctx, event.Shop, event.ProductID)
	if err != nil {
		return nil, fmt.Errorf("check ledger: %w", err)
	}
	if len(existing) > 0 {
		logger.Info(ctx, "product already processed, skipping",
			"product_id", event.ProductID, "records", len(existing))
		return skipped(), nil
	}

	if len(event.Variants) == 0 {
		logger.Warn(ctx, "product has no variants", "product_id", event.ProductID)
		return &Outcome{Status: StatusFailed, Reason: ReasonNoVariants}, nil
	}

	preassigned, needs, err := s.partition(ctx, event)
	if err != nil {
		return nil, err
	}

	catalog, err := s.connector.Connect(ctx, event.Shop)
	if err != nil {
		return nil, err
	}

	var inserted []allocation.Record
	record := func(ctx context.Context, batch allocator.Batch) error {
		records := make([]allocation.Record, 0, len(preassigned)+len(needs))
		records = append(records, preassigned...)
		for i, v := range needs {
			records = append(records, s.newRecord(event, v.ID, batch.Numbers[i]))
		}

		rows, err := s.ledger.Insert(ctx, records)
		if err != nil {
			return fmt.Errorf("insert ledger: %w", err)
		}
		inserted = rows
		if len(rows) == 0 {
			return nil
		}

		return s.events.Publish(ctx, allocation.Event{
			Type:        allocation.EventSkusAssigned,
			Shop:        event.Shop,
			AggregateID: event.ProductID,
			Payload:     assignedPayload(s.codec, event.ProductID, rows),
		})
	}

	if len(needs) > 0 {
		_, err = s.allocator.AllocateBatch(ctx, allocator.Request{
			Shop:    event.Shop,
			Count:   len(needs),
			Probe:   catalog,
			Exclude: numbersOf(preassigned),
			Record:  record,
		})
	} else {
		err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			return record(ctx, allocator.Batch{Shop: event.Shop})
		})
	}
	if err != nil {
		return nil, err
	}

	if len(inserted) == 0 {
		logger.Info(ctx, "all variants recorded by a concurrent delivery, skipping",
			"product_id", event.ProductID)
		return skipped(), nil
	}
	if lost := len(event.Variants) - len(inserted); lost > 0 {
		logger.Info(ctx, "some variants recorded by a concurrent delivery",
			"product_id", event.ProductID, "skipped_variants", lost)
	}

	outcome := s.writeAll(ctx, catalog, event.Shop, inserted, preassignedSet(preassigned))
	logger.Info(ctx, "product skus assigned",
		"product_id", event.ProductID,
		"assigned", len(outcome.Assignments),
		"failed", len(outcome.Failures),
	)
	return outcome, nil
}

// partition splits variants into ledger records for canonical prefixed SKUs the
// variant already carries, and variants that need a fresh number. A carried
// number repeated in the event or owned by another variant in the ledger does
// not count as pre-assigned.
func (s *Service) partition(ctx context.Context, event Event) ([]allocation.Record, []Variant, error) {
	var (
		preassigned []allocation.Record
		needs       []Variant
		candidates  []Variant
		numbers     []int64
	)
	seen := make(map[int64]bool)

	for _, v := range event.Variants {
		n, ok := s.codec.Parse(v.SKU)
		if !ok || seen[n] {
			needs = append(needs, v)
			continue
		}
		seen[n] = true
		candidates = append(candidates, v)
		numbers = append(numbers, n)
	}

	if len(candidates) == 0 {
		return nil, needs, nil
	}

	owned, err := s.ledger.FindByNumbers(ctx, event.Shop, numbers)
	if err != nil {
		return nil, nil, fmt.Errorf("check carried skus: %w", err)
	}
	taken := make(map[int64]string, len(owned))
	for _, r := range owned {
		taken[r.SKUNumber] = r.VariantID
	}

	for i, v := range candidates {
		if owner, ok := taken[numbers[i]]; ok && owner != v.ID {
			logger.Warn(ctx, "carried sku belongs to another variant, reassigning",
				"variant_id", v.ID, "sku", v.SKU, "owner_variant_id", owner)
			needs = append(needs, v)
			continue
		}
		preassigned = append(preassigned, s.newRecord(event, v.ID, numbers[i]))
	}
	return preassigned, needs, nil
}

func (s *Service) newRecord(event Event, variantID string, number int64) allocation.Record {
	return allocation.Record{
		ID:         id.New(),
		Shop:       event.Shop,
		ProductID:  event.ProductID,
		VariantID:  variantID,
		SKUNumber:  number,
		AssignedAt: s.now().UTC(),
	}
}

// writeAll pushes recorded SKUs to the catalog. Each variant is independent:
// a failed write is collected and the rest continue.
func (s *Service) writeAll(
	ctx context.Context,
	catalog allocation.CatalogWriter,
	shop string,
	records []allocation.Record,
	preassigned map[string]bool,
) *Outcome {
	outcome := &Outcome{Status: StatusAssigned}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.WriteConcurrency)

	for _, r := range records {
		g.Go(func() error {
			value := s.codec.Format(r.SKUNumber)
			err := s.write(gctx, catalog, r.ProductID, r.VariantID, value)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Warn(ctx, "catalog write failed",
					"variant_id", r.VariantID, "sku", value, "error", err)
				outcome.Failures = append(outcome.Failures, VariantFailure{
					VariantID: r.VariantID,
					SKU:       value,
					Err:       apperror.NewCatalogWrite(shop, r.VariantID, value, err),
				})
				return nil
			}
			outcome.Assignments = append(outcome.Assignments, Assignment{
				VariantID:   r.VariantID,
				SKU:         value,
				Number:      r.SKUNumber,
				PreAssigned: preassigned[r.VariantID],
			})
			return nil
		})
	}
	_ = g.Wait()

	outcome.sort()
	return outcome
}

func (s *Service) write(ctx context.Context, catalog allocation.CatalogWriter, productID, variantID, value string) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()
	return catalog.WriteVariantSku(ctx, productID, variantID, value)
}

// Records returns the ledger rows of a product.
func (s *Service) Records(ctx context.Context, shop, productID string) ([]allocation.Record, error) {
	if shop == "" || productID == "" {
		return nil, apperror.NewInvalidInput("shop and product id are required")
	}
	return s.ledger.FindByProduct(ctx, shop, productID)
}

// Resync writes the ledger SKUs of a product to the catalog again, e.g. after
// some variant writes failed. No numbers are allocated. A number the ledger
// also holds for another variant is not written and is reported as a failure.
func (s *Service) Resync(ctx context.Context, shop, productID string) (*Outcome, error) {
	records, err := s.Records(ctx, shop, productID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, apperror.NewNotFound("sku_assignment", productID)
	}

	clean, conflicts, err := s.splitShared(ctx, shop, records)
	if err != nil {
		return nil, err
	}

	catalog, err := s.connector.Connect(ctx, shop)
	if err != nil {
		return nil, err
	}

	outcome := s.writeAll(ctx, catalog, shop, clean, nil)
	if len(conflicts) > 0 {
		outcome.Failures = append(outcome.Failures, conflicts...)
		outcome.sort()
	}
	logger.Info(ctx, "product skus resynced",
		"product_id", productID,
		"written", len(outcome.Assignments),
		"failed", len(outcome.Failures),
	)
	return outcome, nil
}

// splitShared separates records whose number the ledger also holds for
// another variant of the shop.
func (s *Service) splitShared(
	ctx context.Context,
	shop string,
	records []allocation.Record,
) ([]allocation.Record, []VariantFailure, error) {
	holders, err := s.ledger.FindByNumbers(ctx, shop, numbersOf(records))
	if err != nil {
		return nil, nil, fmt.Errorf("check shared skus: %w", err)
	}
	owners := make(map[int64][]string, len(holders))
	for _, h := range holders {
		owners[h.SKUNumber] = append(owners[h.SKUNumber], h.VariantID)
	}

	var (
		clean     []allocation.Record
		conflicts []VariantFailure
	)
	for _, r := range records {
		other := ""
		for _, v := range owners[r.SKUNumber] {
			if v != r.VariantID {
				other = v
				break
			}
		}
		if other == "" {
			clean = append(clean, r)
			continue
		}
		value := s.codec.Format(r.SKUNumber)
		logger.Warn(ctx, "sku recorded for more than one variant, not writing",
			"variant_id", r.VariantID, "sku", value, "other_variant_id", other)
		conflicts = append(conflicts, VariantFailure{
			VariantID: r.VariantID,
			SKU:       value,
			Err: apperror.NewConflict("sku is recorded for another variant").
				WithDetail("sku", value).
				WithDetail("other_variant_id", other),
		})
	}
	return clean, conflicts, nil
}

func numbersOf(records []allocation.Record) []int64 {
	out := make([]int64, len(records))
	for i, r := range records {
		out[i] = r.SKUNumber
	}
	return out
}

func preassignedSet(records []allocation.Record) map[string]bool {
	set := make(map[string]bool, len(records))
	for _, r := range records {
		set[r.VariantID] = true
	}
	return set
}

func assignedPayload(codec sku.Codec, productID string, records []allocation.Record) map[string]any {
	variants := make([]map[string]any, len(records))
	for i, r := range records {
		variants[i] = map[string]any{
			"variant_id": r.VariantID,
			"sku":        codec.Format(r.SKUNumber),
			"number":     r.SKUNumber,
		}
	}
	return map[string]any{
		"product_id": productID,
		"variants":   variants,
	}
}
