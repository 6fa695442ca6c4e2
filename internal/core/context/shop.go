package context

import (
	"context"
)

// ShopContext identifies the shop a request acts for.
type ShopContext struct {
	// Shop is the myshopify domain, e.g. "acme.myshopify.com".
	Shop string

	// UserID is the staff member from the admin session token ("sub"), if any.
	UserID string

	// SessionID is the session token "sid" claim, if any.
	SessionID string
}

type shopContextKey struct{}

// WithShop adds ShopContext to context.
func WithShop(ctx context.Context, shop *ShopContext) context.Context {
	return context.WithValue(ctx, shopContextKey{}, shop)
}

// GetShop returns ShopContext from context.
func GetShop(ctx context.Context) *ShopContext {
	if v, ok := ctx.Value(shopContextKey{}).(*ShopContext); ok {
		return v
	}
	return nil
}

// GetShopDomain returns the shop domain from context or empty string.
func GetShopDomain(ctx context.Context) string {
	if s := GetShop(ctx); s != nil {
		return s.Shop
	}
	return ""
}
