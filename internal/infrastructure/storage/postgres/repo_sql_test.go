package postgres

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skugen/internal/core/allocation"
	"skugen/internal/core/id"
)

func TestBuildCounterAdvance_IsConditional(t *testing.T) {
	sql, args, err := buildCounterAdvance("acme.myshopify.com", 1000, 1006)

	require.NoError(t, err)
	assert.Equal(t,
		"UPDATE shop_counters SET next_candidate = $1, updated_at = NOW() WHERE next_candidate = $2 AND shop = $3",
		sql)
	assert.Equal(t, []any{int64(1006), int64(1000), "acme.myshopify.com"}, args)
}

func TestBuildCounterUpsert(t *testing.T) {
	sql, args, err := buildCounterUpsert("acme.myshopify.com", 42)

	require.NoError(t, err)
	assert.Contains(t, sql, "INSERT INTO shop_counters (shop,next_candidate) VALUES ($1,$2)")
	assert.Contains(t, sql, "ON CONFLICT (shop) DO UPDATE SET next_candidate = EXCLUDED.next_candidate")
	assert.Contains(t, sql, "RETURNING shop, next_candidate, created_at, updated_at")
	assert.Equal(t, []any{"acme.myshopify.com", int64(42)}, args)
}

func TestBuildLedgerInsert_IgnoresConflicts(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	records := []allocation.Record{
		{ID: id.New(), Shop: "s", ProductID: "p", VariantID: "v1", SKUNumber: 1, AssignedAt: now},
		{ID: id.New(), Shop: "s", ProductID: "p", VariantID: "v2", SKUNumber: 2, AssignedAt: now},
	}

	sql, args, err := buildLedgerInsert(records)

	require.NoError(t, err)
	assert.Contains(t, sql, "VALUES ($1,$2,$3,$4,$5,$6),($7,$8,$9,$10,$11,$12)")
	assert.Contains(t, sql, "ON CONFLICT (shop, variant_id) DO NOTHING RETURNING id, shop, product_id, variant_id, sku_number, assigned_at")
	assert.Len(t, args, 12)
	assert.Equal(t, "v2", args[9])
}

func TestBuildOutboxFetch_SkipsLockedRows(t *testing.T) {
	sql, args, err := buildOutboxFetch(50)

	require.NoError(t, err)
	assert.Contains(t, sql, "FROM sku_outbox WHERE status = $1 AND (next_retry_at IS NULL OR next_retry_at <= NOW())")
	assert.Contains(t, sql, "ORDER BY created_at LIMIT 50 FOR UPDATE SKIP LOCKED")
	assert.Equal(t, []any{OutboxStatusPending}, args)
}

func TestBuildOutboxInsert_MarshalsPayload(t *testing.T) {
	event := allocation.Event{
		Type:        allocation.EventSkusAssigned,
		Shop:        "s",
		AggregateID: "p1",
		Payload:     map[string]any{"product_id": "p1"},
	}

	_, args, err := buildOutboxInsert(id.New(), event, time.Now())

	require.NoError(t, err)
	require.Len(t, args, 7)
	assert.Equal(t, "sku.assigned", args[3])
	var payload map[string]any
	require.NoError(t, json.Unmarshal(args[4].([]byte), &payload))
	assert.Equal(t, "p1", payload["product_id"])
}

func TestBuildOutboxInsert_BadPayload(t *testing.T) {
	_, _, err := buildOutboxInsert(id.New(), allocation.Event{Payload: make(chan int)}, time.Now())
	assert.Error(t, err)
}
