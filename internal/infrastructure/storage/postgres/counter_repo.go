package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"skugen/internal/core/allocation"
	"skugen/internal/core/apperror"
)

const counterTable = "shop_counters"

var counterColumns = []string{"shop", "next_candidate", "created_at", "updated_at"}

// psql builds PostgreSQL statements with $n placeholders.
var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// CounterRepo stores per-shop SKU counters.
type CounterRepo struct {
	txm *TxManager
}

var _ allocation.CounterStore = (*CounterRepo)(nil)

// NewCounterRepo creates a new counter repository.
func NewCounterRepo(txm *TxManager) *CounterRepo {
	return &CounterRepo{txm: txm}
}

// Get implements allocation.CounterStore.
func (r *CounterRepo) Get(ctx context.Context, shop string) (*allocation.Counter, error) {
	query, args, err := psql.Select(counterColumns...).
		From(counterTable).
		Where(squirrel.Eq{"shop": shop}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var c allocation.Counter
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &c, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("shop_counter", shop)
		}
		return nil, fmt.Errorf("get counter: %w", err)
	}
	return &c, nil
}

// Set implements allocation.CounterStore.
func (r *CounterRepo) Set(ctx context.Context, shop string, value int64) (*allocation.Counter, error) {
	query, args, err := buildCounterUpsert(shop, value)
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var c allocation.Counter
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &c, query, args...); err != nil {
		return nil, fmt.Errorf("set counter: %w", err)
	}
	return &c, nil
}

// Create implements allocation.CounterStore.
func (r *CounterRepo) Create(ctx context.Context, shop string, value int64) (bool, error) {
	query, args, err := psql.Insert(counterTable).
		Columns("shop", "next_candidate").
		Values(shop, value).
		Suffix("ON CONFLICT (shop) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("create counter: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Advance implements allocation.CounterStore.
func (r *CounterRepo) Advance(ctx context.Context, shop string, expected, next int64) (bool, error) {
	if next < expected {
		return false, fmt.Errorf("advance counter backwards: %d -> %d", expected, next)
	}

	query, args, err := buildCounterAdvance(shop, expected, next)
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("advance counter: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func buildCounterUpsert(shop string, value int64) (string, []any, error) {
	return psql.Insert(counterTable).
		Columns("shop", "next_candidate").
		Values(shop, value).
		Suffix("ON CONFLICT (shop) DO UPDATE SET next_candidate = EXCLUDED.next_candidate, updated_at = NOW() " +
			"RETURNING shop, next_candidate, created_at, updated_at").
		ToSql()
}

// buildCounterAdvance only matches while the stored value is still expected.
func buildCounterAdvance(shop string, expected, next int64) (string, []any, error) {
	return psql.Update(counterTable).
		Set("next_candidate", next).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"shop": shop, "next_candidate": expected}).
		ToSql()
}
