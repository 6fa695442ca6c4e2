// Package shopify is a shop-scoped Admin GraphQL client implementing the
// catalog probe and catalog writer.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultAPIVersion is the Admin API version used when none is configured.
const DefaultAPIVersion = "2025-01"

// Config holds client settings shared by all shops.
type Config struct {
	APIVersion string

	// Timeout bounds a single HTTP round trip.
	Timeout time.Duration

	// WriteMetafield also stores the SKU in the custom.generated_sku metafield.
	WriteMetafield bool

	// BaseURL overrides "https://<shop>" (tests, proxies).
	BaseURL string
}

// Client talks to one shop's Admin GraphQL API.
type Client struct {
	shop        string
	accessToken string
	endpoint    string
	httpClient  *http.Client
}

// NewClient creates a client for shop authenticated with accessToken.
func NewClient(shop, accessToken string, cfg Config, httpClient *http.Client) *Client {
	shop = NormalizeShop(shop)

	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	base := "https://" + shop
	if cfg.BaseURL != "" {
		base = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		shop:        shop,
		accessToken: accessToken,
		endpoint:    fmt.Sprintf("%s/admin/api/%s/graphql.json", base, apiVersion),
		httpClient:  httpClient,
	}
}

// Shop returns the shop domain the client is bound to.
func (c *Client) Shop() string {
	return c.shop
}

// graphQLRequest represents a GraphQL request
type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphQLResponse represents a GraphQL response
type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors,omitempty"`
}

type graphQLError struct {
	Message    string         `json:"message"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// UserError is a mutation-level validation error.
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

// StatusError is returned for non-200 responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("shopify API error: status %d, body: %s", e.StatusCode, e.Body)
}

// Execute runs a GraphQL query or mutation and decodes "data" into out.
func (c *Client) Execute(ctx context.Context, query string, variables map[string]any, out any) error {
	reqBody, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
	}

	var gqlResp graphQLResponse
	if err := json.Unmarshal(body, &gqlResp); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	if len(gqlResp.Errors) > 0 {
		messages := make([]string, len(gqlResp.Errors))
		for i, e := range gqlResp.Errors {
			messages[i] = e.Message
		}
		return fmt.Errorf("graphQL errors: %s", strings.Join(messages, "; "))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(gqlResp.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

// NormalizeShop strips scheme and trailing slash from a shop domain.
func NormalizeShop(shop string) string {
	shop = strings.TrimSpace(shop)
	shop = strings.TrimPrefix(shop, "https://")
	shop = strings.TrimPrefix(shop, "http://")
	return strings.TrimSuffix(shop, "/")
}

func userErrorsErr(errs []UserError) error {
	if len(errs) == 0 {
		return nil
	}
	messages := make([]string, len(errs))
	for i, e := range errs {
		if len(e.Field) > 0 {
			messages[i] = strings.Join(e.Field, ".") + ": " + e.Message
		} else {
			messages[i] = e.Message
		}
	}
	return fmt.Errorf("userErrors: %s", strings.Join(messages, "; "))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
