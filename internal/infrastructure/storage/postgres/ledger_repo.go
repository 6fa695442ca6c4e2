package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"skugen/internal/core/allocation"
)

const ledgerTable = "sku_assignments"

var ledgerColumns = []string{"id", "shop", "product_id", "variant_id", "sku_number", "assigned_at"}

// LedgerRepo stores SKU assignments, unique on (shop, variant_id).
type LedgerRepo struct {
	txm *TxManager
}

var _ allocation.Ledger = (*LedgerRepo)(nil)

// NewLedgerRepo creates a new ledger repository.
func NewLedgerRepo(txm *TxManager) *LedgerRepo {
	return &LedgerRepo{txm: txm}
}

// FindByProduct implements allocation.Ledger.
func (r *LedgerRepo) FindByProduct(ctx context.Context, shop, productID string) ([]allocation.Record, error) {
	query, args, err := psql.Select(ledgerColumns...).
		From(ledgerTable).
		Where(squirrel.Eq{"shop": shop, "product_id": productID}).
		OrderBy("sku_number").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var records []allocation.Record
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &records, query, args...); err != nil {
		return nil, fmt.Errorf("find assignments by product: %w", err)
	}
	return records, nil
}

// FindByNumbers implements allocation.Ledger.
func (r *LedgerRepo) FindByNumbers(ctx context.Context, shop string, numbers []int64) ([]allocation.Record, error) {
	if len(numbers) == 0 {
		return nil, nil
	}

	query, args, err := psql.Select(ledgerColumns...).
		From(ledgerTable).
		Where(squirrel.Eq{"shop": shop, "sku_number": numbers}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var records []allocation.Record
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &records, query, args...); err != nil {
		return nil, fmt.Errorf("find assignments by number: %w", err)
	}
	return records, nil
}

// Insert implements allocation.Ledger. Rows that hit the (shop, variant_id)
// constraint are dropped by ON CONFLICT and missing from the result.
func (r *LedgerRepo) Insert(ctx context.Context, records []allocation.Record) ([]allocation.Record, error) {
	if len(records) == 0 {
		return nil, nil
	}

	query, args, err := buildLedgerInsert(records)
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var inserted []allocation.Record
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &inserted, query, args...); err != nil {
		return nil, fmt.Errorf("insert assignments: %w", err)
	}
	return inserted, nil
}

func buildLedgerInsert(records []allocation.Record) (string, []any, error) {
	q := psql.Insert(ledgerTable).Columns(ledgerColumns...)
	for _, rec := range records {
		q = q.Values(rec.ID, rec.Shop, rec.ProductID, rec.VariantID, rec.SKUNumber, rec.AssignedAt)
	}
	return q.Suffix("ON CONFLICT (shop, variant_id) DO NOTHING RETURNING " + strings.Join(ledgerColumns, ", ")).ToSql()
}
