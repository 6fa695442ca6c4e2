package allocation

import (
	"context"
)

// MockCounterStore is a test implementation of CounterStore.
type MockCounterStore struct {
	GetFunc     func(ctx context.Context, shop string) (*Counter, error)
	SetFunc     func(ctx context.Context, shop string, value int64) (*Counter, error)
	CreateFunc  func(ctx context.Context, shop string, value int64) (bool, error)
	AdvanceFunc func(ctx context.Context, shop string, expected, next int64) (bool, error)
}

// Get implements CounterStore.
func (m *MockCounterStore) Get(ctx context.Context, shop string) (*Counter, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, shop)
	}
	return &Counter{Shop: shop, NextCandidate: 1000}, nil
}

// Set implements CounterStore.
func (m *MockCounterStore) Set(ctx context.Context, shop string, value int64) (*Counter, error) {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, shop, value)
	}
	return &Counter{Shop: shop, NextCandidate: value}, nil
}

// Create implements CounterStore.
func (m *MockCounterStore) Create(ctx context.Context, shop string, value int64) (bool, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, shop, value)
	}
	return true, nil
}

// Advance implements CounterStore.
func (m *MockCounterStore) Advance(ctx context.Context, shop string, expected, next int64) (bool, error) {
	if m.AdvanceFunc != nil {
		return m.AdvanceFunc(ctx, shop, expected, next)
	}
	return true, nil
}

// MockLedger is a test implementation of Ledger.
type MockLedger struct {
	FindByProductFunc func(ctx context.Context, shop, productID string) ([]Record, error)
	FindByNumbersFunc func(ctx context.Context, shop string, numbers []int64) ([]Record, error)
	InsertFunc        func(ctx context.Context, records []Record) ([]Record, error)
}

// FindByProduct implements Ledger.
func (m *MockLedger) FindByProduct(ctx context.Context, shop, productID string) ([]Record, error) {
	if m.FindByProductFunc != nil {
		return m.FindByProductFunc(ctx, shop, productID)
	}
	return nil, nil
}

// FindByNumbers implements Ledger.
func (m *MockLedger) FindByNumbers(ctx context.Context, shop string, numbers []int64) ([]Record, error) {
	if m.FindByNumbersFunc != nil {
		return m.FindByNumbersFunc(ctx, shop, numbers)
	}
	return nil, nil
}

// Insert implements Ledger. Default: everything is inserted.
func (m *MockLedger) Insert(ctx context.Context, records []Record) ([]Record, error) {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, records)
	}
	return records, nil
}

// MockCatalog is a test implementation of Catalog.
type MockCatalog struct {
	SkuExistsFunc       func(ctx context.Context, sku string) (bool, error)
	WriteVariantSkuFunc func(ctx context.Context, productID, variantID, sku string) error
}

// SkuExists implements CatalogProbe. Default: nothing exists.
func (m *MockCatalog) SkuExists(ctx context.Context, sku string) (bool, error) {
	if m.SkuExistsFunc != nil {
		return m.SkuExistsFunc(ctx, sku)
	}
	return false, nil
}

// WriteVariantSku implements CatalogWriter.
func (m *MockCatalog) WriteVariantSku(ctx context.Context, productID, variantID, sku string) error {
	if m.WriteVariantSkuFunc != nil {
		return m.WriteVariantSkuFunc(ctx, productID, variantID, sku)
	}
	return nil
}

// MockConnector is a test implementation of CatalogConnector.
type MockConnector struct {
	ConnectFunc func(ctx context.Context, shop string) (Catalog, error)
}

// Connect implements CatalogConnector.
func (m *MockConnector) Connect(ctx context.Context, shop string) (Catalog, error) {
	if m.ConnectFunc != nil {
		return m.ConnectFunc(ctx, shop)
	}
	return &MockCatalog{}, nil
}

// MockSessionStore is a test implementation of SessionStore.
type MockSessionStore struct {
	GetFunc    func(ctx context.Context, shop string) (*Session, error)
	PutFunc    func(ctx context.Context, session Session) error
	DeleteFunc func(ctx context.Context, shop string) error
}

// Get implements SessionStore.
func (m *MockSessionStore) Get(ctx context.Context, shop string) (*Session, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, shop)
	}
	return &Session{Shop: shop, AccessToken: "shpat_mock"}, nil
}

// Put implements SessionStore.
func (m *MockSessionStore) Put(ctx context.Context, session Session) error {
	if m.PutFunc != nil {
		return m.PutFunc(ctx, session)
	}
	return nil
}

// Delete implements SessionStore.
func (m *MockSessionStore) Delete(ctx context.Context, shop string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, shop)
	}
	return nil
}

// MockLocker is a test implementation of ShopLocker.
type MockLocker struct {
	LockFunc func(ctx context.Context, shop string) (func(), error)
}

// Lock implements ShopLocker. Default: always acquired.
func (m *MockLocker) Lock(ctx context.Context, shop string) (func(), error) {
	if m.LockFunc != nil {
		return m.LockFunc(ctx, shop)
	}
	return func() {}, nil
}

// MockPublisher is a test implementation of EventPublisher.
type MockPublisher struct {
	PublishFunc func(ctx context.Context, event Event) error
}

// Publish implements EventPublisher.
func (m *MockPublisher) Publish(ctx context.Context, event Event) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, event)
	}
	return nil
}

// Ensure compile-time interface compliance.
var (
	_ CounterStore     = (*MockCounterStore)(nil)
	_ Ledger           = (*MockLedger)(nil)
	_ Catalog          = (*MockCatalog)(nil)
	_ CatalogConnector = (*MockConnector)(nil)
	_ SessionStore     = (*MockSessionStore)(nil)
	_ ShopLocker       = (*MockLocker)(nil)
	_ EventPublisher   = (*MockPublisher)(nil)
)
