package intake

import (
	"sort"
)

// Event is a product-created notification.
type Event struct {
	Shop      string
	ProductID string
	Variants  []Variant
}

// Variant is a variant as delivered in the event. SKU may be empty.
type Variant struct {
	ID  string
	SKU string
}

// Status is the result kind of HandleProductCreated.
type Status string

const (
	StatusSkipped  Status = "skipped"
	StatusAssigned Status = "assigned"
	StatusFailed   Status = "failed"
)

// ReasonNoVariants is the Failed reason for events without variants.
const ReasonNoVariants = "no_variants"

// Assignment is a SKU that reached the catalog.
type Assignment struct {
	VariantID   string
	SKU         string
	Number      int64
	PreAssigned bool
}

// VariantFailure is a recorded SKU whose catalog write failed.
// The ledger row stays; Resync retries the write.
type VariantFailure struct {
	VariantID string
	SKU       string
	Err       error
}

// Outcome describes what happened to an event.
type Outcome struct {
	Status      Status
	Reason      string
	Assignments []Assignment
	Failures    []VariantFailure
}

// Mapping returns variant id -> SKU for successful assignments.
func (o *Outcome) Mapping() map[string]string {
	m := make(map[string]string, len(o.Assignments))
	for _, a := range o.Assignments {
		m[a.VariantID] = a.SKU
	}
	return m
}

func (o *Outcome) sort() {
	sort.Slice(o.Assignments, func(i, j int) bool {
		return o.Assignments[i].Number < o.Assignments[j].Number
	})
	sort.Slice(o.Failures, func(i, j int) bool {
		return o.Failures[i].SKU < o.Failures[j].SKU
	})
}

func skipped() *Outcome {
	return &Outcome{Status: StatusSkipped}
}
