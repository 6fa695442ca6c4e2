package shopify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skugen/internal/core/allocation"
	"skugen/internal/core/apperror"
)

type recordedRequest struct {
	Token     string
	Path      string
	Query     string
	Variables map[string]any
}

// fakeAdmin answers GraphQL requests with the given responder.
func fakeAdmin(t *testing.T, respond func(req recordedRequest) (int, string)) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []recordedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body graphQLRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		rec := recordedRequest{
			Token:     r.Header.Get("X-Shopify-Access-Token"),
			Path:      r.URL.Path,
			Query:     body.Query,
			Variables: body.Variables,
		}
		mu.Lock()
		seen = append(seen, rec)
		mu.Unlock()

		status, payload := respond(rec)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(payload))
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func newTestCatalog(srv *httptest.Server, metafield bool) *Catalog {
	client := NewClient("acme.myshopify.com", "shpat_test", Config{BaseURL: srv.URL, APIVersion: "2025-01"}, srv.Client())
	return NewCatalog(client, metafield)
}

func TestSkuExists_ExactMatchOnly(t *testing.T) {
	srv, seen := fakeAdmin(t, func(req recordedRequest) (int, string) {
		return 200, `{"data":{"productVariants":{"edges":[
			{"node":{"id":"gid://shopify/ProductVariant/1","sku":"LA10000"}},
			{"node":{"id":"gid://shopify/ProductVariant/2","sku":"la1000"}}
		],"pageInfo":{"hasNextPage":false,"endCursor":""}}}}`
	})
	catalog := newTestCatalog(srv, false)

	exists, err := catalog.SkuExists(context.Background(), "LA1000")

	require.NoError(t, err)
	assert.False(t, exists)
	require.Len(t, *seen, 1)
	req := (*seen)[0]
	assert.Equal(t, "shpat_test", req.Token)
	assert.Equal(t, "/admin/api/2025-01/graphql.json", req.Path)
	assert.Equal(t, `sku:"LA1000"`, req.Variables["query"])
}

func TestSkuExists_FollowsPages(t *testing.T) {
	srv, seen := fakeAdmin(t, func(req recordedRequest) (int, string) {
		if req.Variables["after"] == nil {
			return 200, `{"data":{"productVariants":{"edges":[
				{"node":{"id":"v1","sku":"LA1000-B"}}
			],"pageInfo":{"hasNextPage":true,"endCursor":"c1"}}}}`
		}
		return 200, `{"data":{"productVariants":{"edges":[
			{"node":{"id":"v2","sku":"LA1000"}}
		],"pageInfo":{"hasNextPage":false,"endCursor":"c2"}}}}`
	})
	catalog := newTestCatalog(srv, false)

	exists, err := catalog.SkuExists(context.Background(), "LA1000")

	require.NoError(t, err)
	assert.True(t, exists)
	require.Len(t, *seen, 2)
	assert.Equal(t, "c1", (*seen)[1].Variables["after"])
}

func TestSkuExists_HTTPErrorIsReturned(t *testing.T) {
	srv, _ := fakeAdmin(t, func(req recordedRequest) (int, string) {
		return 503, `upstream unavailable`
	})
	catalog := newTestCatalog(srv, false)

	_, err := catalog.SkuExists(context.Background(), "LA1")

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 503, statusErr.StatusCode)
}

func TestSkuExists_GraphQLErrors(t *testing.T) {
	srv, _ := fakeAdmin(t, func(req recordedRequest) (int, string) {
		return 200, `{"errors":[{"message":"Throttled"}]}`
	})
	catalog := newTestCatalog(srv, false)

	_, err := catalog.SkuExists(context.Background(), "LA1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Throttled")
}

func TestWriteVariantSku_SendsGIDsAndMetafield(t *testing.T) {
	srv, seen := fakeAdmin(t, func(req recordedRequest) (int, string) {
		return 200, `{"data":{"productVariantsBulkUpdate":{"productVariants":[{"id":"gid://shopify/ProductVariant/22","sku":"LA5"}],"userErrors":[]}}}`
	})
	catalog := newTestCatalog(srv, true)

	err := catalog.WriteVariantSku(context.Background(), "11", "22", "LA5")

	require.NoError(t, err)
	require.Len(t, *seen, 1)
	vars := (*seen)[0].Variables
	assert.Equal(t, "gid://shopify/Product/11", vars["productId"])
	variants := vars["variants"].([]any)
	require.Len(t, variants, 1)
	v := variants[0].(map[string]any)
	assert.Equal(t, "gid://shopify/ProductVariant/22", v["id"])
	assert.Equal(t, map[string]any{"sku": "LA5"}, v["inventoryItem"])
	metafields := v["metafields"].([]any)
	assert.Equal(t, "generated_sku", metafields[0].(map[string]any)["key"])
}

func TestWriteVariantSku_UserErrors(t *testing.T) {
	srv, _ := fakeAdmin(t, func(req recordedRequest) (int, string) {
		return 200, `{"data":{"productVariantsBulkUpdate":{"productVariants":[],"userErrors":[{"field":["variants","0","id"],"message":"Variant does not exist"}]}}}`
	})
	catalog := newTestCatalog(srv, false)

	err := catalog.WriteVariantSku(context.Background(), "gid://shopify/Product/1", "gid://shopify/ProductVariant/2", "LA5")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "variants.0.id: Variant does not exist")
}

func TestEnsureScriptTag(t *testing.T) {
	t.Run("already installed", func(t *testing.T) {
		srv, seen := fakeAdmin(t, func(req recordedRequest) (int, string) {
			return 200, `{"data":{"scriptTags":{"edges":[{"node":{"id":"gid://shopify/ScriptTag/1","src":"https://cdn.example.com/sku.js"}}]}}}`
		})
		catalog := newTestCatalog(srv, false)

		tag, created, err := catalog.EnsureScriptTag(context.Background(), "https://cdn.example.com/sku.js")

		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, "gid://shopify/ScriptTag/1", tag.ID)
		assert.Len(t, *seen, 1)
	})

	t.Run("created", func(t *testing.T) {
		srv, seen := fakeAdmin(t, func(req recordedRequest) (int, string) {
			if _, ok := req.Variables["input"]; ok {
				return 200, `{"data":{"scriptTagCreate":{"scriptTag":{"id":"gid://shopify/ScriptTag/9","src":"https://cdn.example.com/sku.js"},"userErrors":[]}}}`
			}
			return 200, `{"data":{"scriptTags":{"edges":[]}}}`
		})
		catalog := newTestCatalog(srv, false)

		tag, created, err := catalog.EnsureScriptTag(context.Background(), "https://cdn.example.com/sku.js")

		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "gid://shopify/ScriptTag/9", tag.ID)
		assert.Len(t, *seen, 2)
	})
}

func TestConnector_MissingSessionIsConfigurationError(t *testing.T) {
	sessions := &allocation.MockSessionStore{
		GetFunc: func(ctx context.Context, shop string) (*allocation.Session, error) {
			return nil, apperror.NewNotFound("shop_session", shop)
		},
	}
	connector := NewConnector(sessions, Config{})

	_, err := connector.Connect(context.Background(), "acme.myshopify.com")

	assert.True(t, apperror.HasCode(err, apperror.CodeConfiguration))
}

func TestConnector_UsesSessionToken(t *testing.T) {
	srv, seen := fakeAdmin(t, func(req recordedRequest) (int, string) {
		return 200, `{"data":{"productVariants":{"edges":[],"pageInfo":{"hasNextPage":false}}}}`
	})
	sessions := &allocation.MockSessionStore{
		GetFunc: func(ctx context.Context, shop string) (*allocation.Session, error) {
			return &allocation.Session{Shop: shop, AccessToken: "shpat_live"}, nil
		},
	}
	connector := NewConnector(sessions, Config{BaseURL: srv.URL})

	catalog, err := connector.Connect(context.Background(), "acme.myshopify.com")
	require.NoError(t, err)
	_, err = catalog.SkuExists(context.Background(), "LA1")

	require.NoError(t, err)
	assert.Equal(t, "shpat_live", (*seen)[0].Token)
	assert.Equal(t, "/admin/api/"+DefaultAPIVersion+"/graphql.json", (*seen)[0].Path)
}

func TestGIDs(t *testing.T) {
	assert.Equal(t, "gid://shopify/Product/7", ProductGID("7"))
	assert.Equal(t, "gid://shopify/Product/7", ProductGID("gid://shopify/Product/7"))
	assert.Equal(t, "gid://shopify/ProductVariant/8", VariantGID("8"))
	assert.Equal(t, "acme.myshopify.com", NormalizeShop("https://acme.myshopify.com/"))
}
