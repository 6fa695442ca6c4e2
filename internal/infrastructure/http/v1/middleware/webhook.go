package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"skugen/internal/core/apperror"
	appctx "skugen/internal/core/context"
)

const (
	HeaderHmac       = "X-Shopify-Hmac-Sha256"
	HeaderShopDomain = "X-Shopify-Shop-Domain"
	HeaderTopic      = "X-Shopify-Topic"

	maxWebhookBody = 5 << 20
)

// Webhook verifies the HMAC signature of a Shopify webhook and puts the
// sending shop into the context. The body is restored for the handler.
func Webhook(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
		if err != nil {
			_ = c.Error(apperror.NewValidation("failed to read request body").WithCause(err))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		if !VerifyWebhookHMAC(secret, body, c.GetHeader(HeaderHmac)) {
			abortUnauthorized(c, "invalid webhook signature")
			return
		}

		shop := c.GetHeader(HeaderShopDomain)
		if shop == "" {
			_ = c.Error(apperror.NewInvalidInput("missing " + HeaderShopDomain + " header"))
			c.Abort()
			return
		}

		ctx := appctx.WithShop(c.Request.Context(), &appctx.ShopContext{Shop: shop})
		c.Request = c.Request.WithContext(ctx)
		c.Set("shop", shop)

		c.Next()
	}
}

// VerifyWebhookHMAC checks the base64 HMAC-SHA256 of body against signature.
func VerifyWebhookHMAC(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}
