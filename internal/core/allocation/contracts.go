package allocation

import (
	"context"
)

// CounterStore persists one Counter per shop.
type CounterStore interface {
	// Get returns the shop's counter or an apperror NotFound.
	Get(ctx context.Context, shop string) (*Counter, error)

	// Set upserts the counter to value (administrative override).
	Set(ctx context.Context, shop string, value int64) (*Counter, error)

	// Create inserts the counter if absent. Returns false if a row already exists.
	Create(ctx context.Context, shop string, value int64) (bool, error)

	// Advance moves the counter from expected to next.
	// Returns false when the stored value is no longer expected.
	Advance(ctx context.Context, shop string, expected, next int64) (bool, error)
}

// Ledger records assigned SKU numbers. Unique on (shop, variant).
type Ledger interface {
	FindByProduct(ctx context.Context, shop, productID string) ([]Record, error)

	// FindByNumbers returns records of shop holding any of numbers.
	FindByNumbers(ctx context.Context, shop string, numbers []int64) ([]Record, error)

	// Insert stores records, ignoring rows whose (shop, variant) already exists.
	// Returns only the rows actually inserted.
	Insert(ctx context.Context, records []Record) ([]Record, error)
}

// CatalogProbe answers whether any variant of the shop carries exactly sku.
type CatalogProbe interface {
	SkuExists(ctx context.Context, sku string) (bool, error)
}

// CatalogWriter sets a variant's SKU in the external catalog.
type CatalogWriter interface {
	WriteVariantSku(ctx context.Context, productID, variantID, sku string) error
}

// Catalog is a shop-scoped client for the external catalog.
type Catalog interface {
	CatalogProbe
	CatalogWriter
}

// CatalogConnector builds a Catalog bound to one shop's credentials.
type CatalogConnector interface {
	Connect(ctx context.Context, shop string) (Catalog, error)
}

// SessionStore resolves shop credentials.
type SessionStore interface {
	// Get returns the shop's session or an apperror NotFound.
	Get(ctx context.Context, shop string) (*Session, error)
	Put(ctx context.Context, session Session) error
	Delete(ctx context.Context, shop string) error
}

// ShopLocker serializes work per shop. The returned unlock must be called once.
type ShopLocker interface {
	Lock(ctx context.Context, shop string) (unlock func(), err error)
}

// EventPublisher records events. Implementations require a transaction in ctx.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}
