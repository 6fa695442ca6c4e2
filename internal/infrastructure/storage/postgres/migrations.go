package postgres

import (
	"context"
	"fmt"

	"skugen/pkg/logger"
)

// schema is applied in order; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS shop_counters (
		shop           TEXT PRIMARY KEY,
		next_candidate BIGINT NOT NULL CHECK (next_candidate >= 0),
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS sku_assignments (
		id          UUID PRIMARY KEY,
		shop        TEXT NOT NULL,
		product_id  TEXT NOT NULL,
		variant_id  TEXT NOT NULL,
		sku_number  BIGINT NOT NULL,
		assigned_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT uq_sku_assignments_variant UNIQUE (shop, variant_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sku_assignments_product ON sku_assignments (shop, product_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sku_assignments_number ON sku_assignments (shop, sku_number)`,
	`CREATE TABLE IF NOT EXISTS shop_sessions (
		shop         TEXT PRIMARY KEY,
		access_token TEXT NOT NULL,
		scope        TEXT NOT NULL DEFAULT '',
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS sku_outbox (
		id            UUID PRIMARY KEY,
		shop          TEXT NOT NULL,
		aggregate_id  TEXT NOT NULL,
		event_type    TEXT NOT NULL,
		payload       JSONB NOT NULL,
		status        TEXT NOT NULL,
		retry_count   INT NOT NULL DEFAULT 0,
		last_error    TEXT,
		next_retry_at TIMESTAMPTZ,
		created_at    TIMESTAMPTZ NOT NULL,
		published_at  TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sku_outbox_pending ON sku_outbox (created_at) WHERE status = 'pending'`,
	`CREATE TABLE IF NOT EXISTS sku_outbox_dlq (
		id             UUID PRIMARY KEY,
		shop           TEXT NOT NULL,
		aggregate_id   TEXT NOT NULL,
		event_type     TEXT NOT NULL,
		payload        JSONB NOT NULL,
		retry_count    INT NOT NULL,
		failure_reason TEXT,
		created_at     TIMESTAMPTZ NOT NULL,
		failed_at      TIMESTAMPTZ NOT NULL
	)`,
}

// Migrate creates the schema. Safe to run repeatedly.
func Migrate(ctx context.Context, txm *TxManager) error {
	return txm.RunInTransaction(ctx, func(ctx context.Context) error {
		q := txm.GetQuerier(ctx)
		for i, stmt := range schema {
			if _, err := q.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("migration step %d: %w", i+1, err)
			}
		}
		logger.Info(ctx, "schema up to date", "statements", len(schema))
		return nil
	})
}
