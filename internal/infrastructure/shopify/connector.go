package shopify

import (
	"context"
	"net/http"
	"time"

	"skugen/internal/core/allocation"
	"skugen/internal/core/apperror"
)

// Connector builds shop-scoped catalogs from stored sessions.
type Connector struct {
	sessions   allocation.SessionStore
	cfg        Config
	httpClient *http.Client
}

var _ allocation.CatalogConnector = (*Connector)(nil)

// NewConnector creates a new connector. A single http.Client is shared by all
// shop clients so connections are pooled.
func NewConnector(sessions allocation.SessionStore, cfg Config) *Connector {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Connector{
		sessions:   sessions,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Connect implements allocation.CatalogConnector.
func (c *Connector) Connect(ctx context.Context, shop string) (allocation.Catalog, error) {
	return c.Catalog(ctx, shop)
}

// Catalog returns the concrete catalog, which also manages script tags.
func (c *Connector) Catalog(ctx context.Context, shop string) (*Catalog, error) {
	session, err := c.sessions.Get(ctx, shop)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewConfiguration(shop, "no offline session for shop")
		}
		return nil, err
	}
	if session.AccessToken == "" {
		return nil, apperror.NewConfiguration(shop, "session has no access token")
	}

	client := NewClient(shop, session.AccessToken, c.cfg, c.httpClient)
	return NewCatalog(client, c.cfg.WriteMetafield), nil
}

// InstallScriptTag installs the storefront script for shop.
func (c *Connector) InstallScriptTag(ctx context.Context, shop, src string) (*ScriptTag, bool, error) {
	catalog, err := c.Catalog(ctx, shop)
	if err != nil {
		return nil, false, err
	}
	return catalog.EnsureScriptTag(ctx, src)
}
