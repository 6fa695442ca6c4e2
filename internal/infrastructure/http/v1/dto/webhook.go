package dto

import (
	"encoding/json"
	"strconv"

	"skugen/internal/domain/intake"
)

// ProductWebhook is the products/create payload. Only the fields used for SKU
// assignment are decoded.
type ProductWebhook struct {
	ID                json.Number      `json:"id"`
	AdminGraphqlAPIID string           `json:"admin_graphql_api_id"`
	Title             string           `json:"title"`
	Variants          []VariantWebhook `json:"variants"`
}

// VariantWebhook is one variant of a products/create payload.
type VariantWebhook struct {
	ID                json.Number `json:"id"`
	AdminGraphqlAPIID string      `json:"admin_graphql_api_id"`
	SKU               *string     `json:"sku"`
}

// ToEvent converts the payload to an intake event. GraphQL ids are preferred
// so ledger rows match what the Admin API expects.
func (p ProductWebhook) ToEvent(shop string) intake.Event {
	event := intake.Event{
		Shop:      shop,
		ProductID: pickID(p.AdminGraphqlAPIID, "Product", p.ID),
		Variants:  make([]intake.Variant, 0, len(p.Variants)),
	}
	for _, v := range p.Variants {
		variant := intake.Variant{ID: pickID(v.AdminGraphqlAPIID, "ProductVariant", v.ID)}
		if v.SKU != nil {
			variant.SKU = *v.SKU
		}
		event.Variants = append(event.Variants, variant)
	}
	return event
}

func pickID(gid, kind string, numeric json.Number) string {
	if gid != "" {
		return gid
	}
	if n, err := numeric.Int64(); err == nil && n > 0 {
		return "gid://shopify/" + kind + "/" + strconv.FormatInt(n, 10)
	}
	return ""
}

// WebhookResponse reports the outcome of a products/create delivery.
type WebhookResponse struct {
	Status      string            `json:"status"`
	Reason      string            `json:"reason,omitempty"`
	Assignments map[string]string `json:"assignments,omitempty"`
	Failures    []VariantFailure  `json:"failures,omitempty"`
}

// VariantFailure is a variant whose catalog write failed.
type VariantFailure struct {
	VariantID string `json:"variant_id"`
	SKU       string `json:"sku"`
	Error     string `json:"error"`
}

// FromOutcome builds the response body.
func FromOutcome(o *intake.Outcome) WebhookResponse {
	resp := WebhookResponse{
		Status: string(o.Status),
		Reason: o.Reason,
	}
	if len(o.Assignments) > 0 {
		resp.Assignments = o.Mapping()
	}
	for _, f := range o.Failures {
		resp.Failures = append(resp.Failures, VariantFailure{
			VariantID: f.VariantID,
			SKU:       f.SKU,
			Error:     f.Err.Error(),
		})
	}
	return resp
}
