package v1

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skugen/internal/core/allocation"
	"skugen/internal/core/apperror"
	appctx "skugen/internal/core/context"
	"skugen/internal/core/sku"
	"skugen/internal/domain/counter"
	"skugen/internal/domain/intake"
	"skugen/internal/infrastructure/http/v1/dto"
	"skugen/internal/infrastructure/http/v1/handlers"
	"skugen/internal/infrastructure/shopify"
	"skugen/pkg/logger"
)

const (
	testShop   = "acme.myshopify.com"
	testSecret = "webhook-secret"
	goodToken  = "good-token"
)

type fakeIntake struct {
	handle  func(ctx context.Context, event intake.Event) (*intake.Outcome, error)
	records func(ctx context.Context, shop, productID string) ([]allocation.Record, error)
	resync  func(ctx context.Context, shop, productID string) (*intake.Outcome, error)
}

func (f *fakeIntake) HandleProductCreated(ctx context.Context, event intake.Event) (*intake.Outcome, error) {
	return f.handle(ctx, event)
}

func (f *fakeIntake) Records(ctx context.Context, shop, productID string) ([]allocation.Record, error) {
	return f.records(ctx, shop, productID)
}

func (f *fakeIntake) Resync(ctx context.Context, shop, productID string) (*intake.Outcome, error) {
	return f.resync(ctx, shop, productID)
}

type fakeCounters struct {
	value int64
}

func (f *fakeCounters) GetCurrentCounter(ctx context.Context, shop string) (*counter.View, error) {
	return &counter.View{Shop: shop, NextCandidate: f.value, NextSKU: sku.MustCodec("LA").Format(f.value)}, nil
}

func (f *fakeCounters) SetStartingCounter(ctx context.Context, shop string, value int64) (*counter.View, error) {
	f.value = value
	return f.GetCurrentCounter(ctx, shop)
}

type fakeReserver struct{}

func (fakeReserver) Reserve(ctx context.Context, shop string, count int) ([]string, error) {
	if count > 3 {
		return nil, apperror.NewInvalidInput("count out of range")
	}
	return []string{"LA10", "LA11", "LA12"}[:count], nil
}

type fakeSessions struct {
	removed string
}

func (f *fakeSessions) Uninstall(ctx context.Context, shop string) error {
	f.removed = shop
	return nil
}

type fakeScriptTags struct{}

func (fakeScriptTags) InstallScriptTag(ctx context.Context, shop, src string) (*shopify.ScriptTag, bool, error) {
	return &shopify.ScriptTag{ID: "gid://shopify/ScriptTag/1", Src: src}, true, nil
}

type fakeValidator struct{}

func (fakeValidator) ValidateToken(token string) (*appctx.ShopContext, error) {
	if token != goodToken {
		return nil, errors.New("bad token")
	}
	return &appctx.ShopContext{Shop: testShop, UserID: "7"}, nil
}

type fixture struct {
	router   *gin.Engine
	intake   *fakeIntake
	counters *fakeCounters
	sessions *fakeSessions
}

func newFixture() *fixture {
	f := &fixture{
		intake: &fakeIntake{
			handle: func(ctx context.Context, event intake.Event) (*intake.Outcome, error) {
				return &intake.Outcome{Status: intake.StatusSkipped}, nil
			},
		},
		counters: &fakeCounters{value: 1000},
		sessions: &fakeSessions{},
	}
	f.router = NewRouter(RouterConfig{
		Version:       "test",
		Logger:        logger.Nop(),
		WebhookSecret: testSecret,
		JWTValidator:  fakeValidator{},
		Intake:        f.intake,
		Products:      f.intake,
		Sessions:      f.sessions,
		Counters:      f.counters,
		Reserver:      fakeReserver{},
		ScriptTag:     fakeScriptTags{},
		ScriptSrc:     "https://cdn.example.com/sku.js",
		Codec:         sku.MustCodec("LA"),
		HealthChecks: []handlers.Check{
			{Name: "redis", Ping: func(ctx context.Context) error { return nil }},
		},
	})
	return f
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (f *fixture) webhook(t *testing.T, path string, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Hmac-Sha256", signature)
	req.Header.Set("X-Shopify-Shop-Domain", testShop)
	req.Header.Set("X-Shopify-Webhook-Id", "wh-1")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) api(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+goodToken)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var body dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

const productPayload = `{
	"id": 632910392,
	"admin_graphql_api_id": "gid://shopify/Product/632910392",
	"title": "IPod Nano",
	"variants": [
		{"id": 808950810, "admin_graphql_api_id": "gid://shopify/ProductVariant/808950810", "sku": "LA2001"},
		{"id": 49148385, "sku": ""},
		{"id": 39072856, "sku": null}
	]
}`

func TestWebhook_RejectsBadSignature(t *testing.T) {
	f := newFixture()

	rec := f.webhook(t, "/webhooks/products/create", []byte(productPayload), "bogus")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, apperror.CodeUnauthorized, decodeError(t, rec).Code)
}

func TestWebhook_ProductCreatedAssigned(t *testing.T) {
	f := newFixture()
	var got intake.Event
	f.intake.handle = func(ctx context.Context, event intake.Event) (*intake.Outcome, error) {
		got = event
		assert.Equal(t, "wh-1", appctx.GetTrace(ctx).WebhookID)
		return &intake.Outcome{
			Status: intake.StatusAssigned,
			Assignments: []intake.Assignment{
				{VariantID: "gid://shopify/ProductVariant/808950810", SKU: "LA2001", Number: 2001, PreAssigned: true},
				{VariantID: "gid://shopify/ProductVariant/49148385", SKU: "LA3000", Number: 3000},
			},
			Failures: []intake.VariantFailure{
				{VariantID: "gid://shopify/ProductVariant/39072856", SKU: "LA3001", Err: errors.New("timeout")},
			},
		}, nil
	}
	body := []byte(productPayload)

	rec := f.webhook(t, "/webhooks/products/create", body, sign(body))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, testShop, got.Shop)
	assert.Equal(t, "gid://shopify/Product/632910392", got.ProductID)
	require.Len(t, got.Variants, 3)
	assert.Equal(t, intake.Variant{ID: "gid://shopify/ProductVariant/808950810", SKU: "LA2001"}, got.Variants[0])
	assert.Equal(t, intake.Variant{ID: "gid://shopify/ProductVariant/49148385"}, got.Variants[1])
	assert.Equal(t, intake.Variant{ID: "gid://shopify/ProductVariant/39072856"}, got.Variants[2])

	var resp dto.WebhookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "assigned", resp.Status)
	assert.Equal(t, "LA3000", resp.Assignments["gid://shopify/ProductVariant/49148385"])
	require.Len(t, resp.Failures, 1)
	assert.Equal(t, "LA3001", resp.Failures[0].SKU)
}

func TestWebhook_NoVariantsIs400(t *testing.T) {
	f := newFixture()
	f.intake.handle = func(ctx context.Context, event intake.Event) (*intake.Outcome, error) {
		return &intake.Outcome{Status: intake.StatusFailed, Reason: intake.ReasonNoVariants}, nil
	}
	body := []byte(`{"id": 1, "variants": []}`)

	rec := f.webhook(t, "/webhooks/products/create", body, sign(body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperror.CodeNoVariants, decodeError(t, rec).Code)
}

func TestWebhook_RetryableErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"conflict", apperror.NewConcurrentModification("shop_counter", testShop), http.StatusConflict, apperror.CodeConcurrentModification},
		{"probe", apperror.NewProbe(testShop, "LA1", errors.New("502")), http.StatusBadGateway, apperror.CodeProbe},
		{"configuration", apperror.NewConfiguration(testShop, "counter not provisioned"), http.StatusServiceUnavailable, apperror.CodeConfiguration},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, apperror.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.intake.handle = func(ctx context.Context, event intake.Event) (*intake.Outcome, error) {
				return nil, tt.err
			}
			body := []byte(productPayload)

			rec := f.webhook(t, "/webhooks/products/create", body, sign(body))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}

func TestWebhook_AppUninstalled(t *testing.T) {
	f := newFixture()
	body := []byte(`{"id": 1, "domain": "acme.myshopify.com"}`)

	rec := f.webhook(t, "/webhooks/app/uninstalled", body, sign(body))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testShop, f.sessions.removed)
}

func TestAPI_RequiresSessionToken(t *testing.T) {
	f := newFixture()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/counter", nil)
	rec := httptest.NewRecorder()

	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_Counter(t *testing.T) {
	f := newFixture()

	rec := f.api(t, http.MethodGet, "/api/v1/counter", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"shop":"acme.myshopify.com","next_candidate":1000,"next_sku":"LA1000"}`, rec.Body.String())

	rec = f.api(t, http.MethodPut, "/api/v1/counter", dto.SetCounterRequest{Value: "5000"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(5000), f.counters.value)

	rec = f.api(t, http.MethodPut, "/api/v1/counter", dto.SetCounterRequest{Value: "abc"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, apperror.CodeInvalidInput, body.Code)
	assert.Equal(t, "Invalid number", body.Message)
	assert.Equal(t, int64(5000), f.counters.value)
}

func TestAPI_Reserve(t *testing.T) {
	f := newFixture()

	rec := f.api(t, http.MethodPost, "/api/v1/skus/reserve", map[string]int{"count": 2})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"skus":["LA10","LA11"]}`, rec.Body.String())

	rec = f.api(t, http.MethodPost, "/api/v1/skus/reserve", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"skus":["LA10"]}`, rec.Body.String())

	rec = f.api(t, http.MethodPost, "/api/v1/skus/reserve", map[string]int{"count": 50})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_ProductRecordsAndResync(t *testing.T) {
	f := newFixture()
	f.intake.records = func(ctx context.Context, shop, productID string) ([]allocation.Record, error) {
		assert.Equal(t, "gid://shopify/Product/42", productID)
		return []allocation.Record{{ProductID: productID, VariantID: "v1", SKUNumber: 7}}, nil
	}
	f.intake.resync = func(ctx context.Context, shop, productID string) (*intake.Outcome, error) {
		return nil, apperror.NewNotFound("sku_assignment", productID)
	}

	rec := f.api(t, http.MethodGet, "/api/v1/products/42/skus", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"sku":"LA7"`)

	rec = f.api(t, http.MethodPost, "/api/v1/products/42/resync", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_ScriptTag(t *testing.T) {
	f := newFixture()

	rec := f.api(t, http.MethodPost, "/api/v1/scripttag", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"gid://shopify/ScriptTag/1","src":"https://cdn.example.com/sku.js","created":true}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	f := newFixture()

	for _, path := range []string{"/health/live", "/health/ready", "/health/info"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestRecovery(t *testing.T) {
	f := newFixture()
	f.intake.handle = func(ctx context.Context, event intake.Event) (*intake.Outcome, error) {
		panic("unexpected")
	}
	body := []byte(productPayload)

	rec := f.webhook(t, "/webhooks/products/create", body, sign(body))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, apperror.CodeInternal, decodeError(t, rec).Code)
}
