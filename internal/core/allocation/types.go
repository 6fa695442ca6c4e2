// Package allocation provides domain contracts for per-shop SKU allocation.
// Implementations live in infrastructure layer.
package allocation

import (
	"time"

	"skugen/internal/core/id"
)

// Counter is the per-shop allocation cursor.
// NextCandidate is the next number to probe; it is not guaranteed unused.
type Counter struct {
	Shop          string    `db:"shop"`
	NextCandidate int64     `db:"next_candidate"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// Record is one ledger row: the SKU number assigned to a variant.
type Record struct {
	ID         id.ID     `db:"id"`
	Shop       string    `db:"shop"`
	ProductID  string    `db:"product_id"`
	VariantID  string    `db:"variant_id"`
	SKUNumber  int64     `db:"sku_number"`
	AssignedAt time.Time `db:"assigned_at"`
}

// Session holds the offline access token for a shop.
type Session struct {
	Shop        string    `db:"shop"`
	AccessToken string    `db:"access_token"`
	Scope       string    `db:"scope"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Event types written to the outbox.
const (
	EventSkusAssigned = "sku.assigned"
	EventSkusReserved = "sku.reserved"
	EventCounterSet   = "counter.set"
)

// Event is a domain event recorded in the same transaction as the state change.
type Event struct {
	Type        string
	Shop        string
	AggregateID string
	Payload     any
}
