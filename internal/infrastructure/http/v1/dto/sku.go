package dto

import (
	"time"

	"skugen/internal/core/allocation"
	"skugen/internal/core/sku"
	"skugen/internal/domain/counter"
)

// CounterResponse is the current counter of a shop.
type CounterResponse struct {
	Shop          string `json:"shop"`
	NextCandidate int64  `json:"next_candidate"`
	NextSKU       string `json:"next_sku"`
}

// FromCounterView converts a counter view.
func FromCounterView(v *counter.View) CounterResponse {
	return CounterResponse{Shop: v.Shop, NextCandidate: v.NextCandidate, NextSKU: v.NextSKU}
}

// SetCounterRequest sets the starting counter. Value is a decimal string so
// non-numeric input can be reported as INVALID_INPUT.
type SetCounterRequest struct {
	Value string `json:"value" binding:"required"`
}

// ReserveRequest reserves SKUs without attaching them to variants.
// A missing count reserves one.
type ReserveRequest struct {
	Count *int `json:"count"`
}

// N returns the requested count, defaulting to 1.
func (r ReserveRequest) N() int {
	if r.Count == nil {
		return 1
	}
	return *r.Count
}

// ReserveResponse lists reserved SKUs in ascending order.
type ReserveResponse struct {
	SKUs []string `json:"skus"`
}

// SkuRecordResponse is one ledger row.
type SkuRecordResponse struct {
	ProductID  string    `json:"product_id"`
	VariantID  string    `json:"variant_id"`
	SKU        string    `json:"sku"`
	Number     int64     `json:"number"`
	AssignedAt time.Time `json:"assigned_at"`
}

// FromRecords converts ledger rows.
func FromRecords(codec sku.Codec, records []allocation.Record) []SkuRecordResponse {
	out := make([]SkuRecordResponse, len(records))
	for i, r := range records {
		out[i] = SkuRecordResponse{
			ProductID:  r.ProductID,
			VariantID:  r.VariantID,
			SKU:        codec.Format(r.SKUNumber),
			Number:     r.SKUNumber,
			AssignedAt: r.AssignedAt,
		}
	}
	return out
}

// ScriptTagResponse describes the installed storefront script.
type ScriptTagResponse struct {
	ID      string `json:"id"`
	Src     string `json:"src"`
	Created bool   `json:"created"`
}
