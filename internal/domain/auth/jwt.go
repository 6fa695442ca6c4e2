// Package auth verifies embedded-app session tokens and manages the offline
// sessions used for Admin API calls.
package auth

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	appctx "skugen/internal/core/context"
)

// JWTConfig holds session token settings.
type JWTConfig struct {
	// APIKey is the expected "aud" claim.
	APIKey string

	// Secret is the app's API secret key, used for HS256 signatures.
	Secret string

	Leeway time.Duration
}

// DefaultJWTConfig returns default JWT configuration.
func DefaultJWTConfig(apiKey, secret string) JWTConfig {
	return JWTConfig{
		APIKey: apiKey,
		Secret: secret,
		Leeway: 5 * time.Second,
	}
}

// Claims are the claims of an admin session token.
type Claims struct {
	jwt.RegisteredClaims
	Dest string `json:"dest"`
	Sid  string `json:"sid,omitempty"`
}

// JWTService handles session token operations.
type JWTService struct {
	config JWTConfig
	parser *jwt.Parser
}

// NewJWTService creates a new JWT service.
func NewJWTService(config JWTConfig) *JWTService {
	return &JWTService{
		config: config,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithAudience(config.APIKey),
			jwt.WithLeeway(config.Leeway),
			jwt.WithExpirationRequired(),
		),
	}
}

// GenerateToken signs a session token for shop. Used by skuctl and tests.
func (s *JWTService) GenerateToken(shop, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://" + shop + "/admin",
			Subject:   userID,
			Audience:  jwt.ClaimStrings{s.config.APIKey},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Dest: "https://" + shop,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken validates a session token and returns the shop it was issued for.
func (s *JWTService) ValidateToken(tokenString string) (*appctx.ShopContext, error) {
	claims := &Claims{}
	token, err := s.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	shop, err := shopFromDest(claims.Dest)
	if err != nil {
		return nil, err
	}
	// iss is the shop admin URL and must name the same shop as dest.
	if issShop, err := shopFromDest(strings.TrimSuffix(claims.Issuer, "/admin")); err != nil || issShop != shop {
		return nil, fmt.Errorf("issuer %q does not match destination %q", claims.Issuer, claims.Dest)
	}

	return &appctx.ShopContext{
		Shop:      shop,
		UserID:    claims.Subject,
		SessionID: claims.Sid,
	}, nil
}

func shopFromDest(dest string) (string, error) {
	u, err := url.Parse(dest)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid dest claim %q", dest)
	}
	return u.Host, nil
}
