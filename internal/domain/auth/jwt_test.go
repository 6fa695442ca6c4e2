package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("api-key", "secret"))

	token, err := svc.GenerateToken("acme.myshopify.com", "42", time.Minute)
	require.NoError(t, err)

	shop, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "acme.myshopify.com", shop.Shop)
	assert.Equal(t, "42", shop.UserID)
}

func TestJWTService_Rejects(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("api-key", "secret"))

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTService(DefaultJWTConfig("api-key", "other"))
		token, err := other.GenerateToken("acme.myshopify.com", "1", time.Minute)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("wrong audience", func(t *testing.T) {
		other := NewJWTService(DefaultJWTConfig("another-app", "secret"))
		token, err := other.GenerateToken("acme.myshopify.com", "1", time.Minute)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := svc.GenerateToken("acme.myshopify.com", "1", -time.Minute)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("issuer for another shop", func(t *testing.T) {
		now := time.Now()
		claims := Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "https://evil.myshopify.com/admin",
				Audience:  jwt.ClaimStrings{"api-key"},
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
			},
			Dest: "https://acme.myshopify.com",
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.Error(t, err)
	})
}
