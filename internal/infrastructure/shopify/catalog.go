package shopify

import (
	"context"
	"fmt"
	"strings"

	"skugen/internal/core/allocation"
)

const (
	// maxProbePages caps pagination of a single probe. Search results are
	// tokenised, so exact matches are filtered client side.
	maxProbePages = 8

	metafieldNamespace = "custom"
	metafieldKey       = "generated_sku"
)

// Catalog implements allocation.Catalog on top of the Admin GraphQL API.
type Catalog struct {
	client         *Client
	writeMetafield bool
}

var _ allocation.Catalog = (*Catalog)(nil)

// NewCatalog wraps a shop client.
func NewCatalog(client *Client, writeMetafield bool) *Catalog {
	return &Catalog{client: client, writeMetafield: writeMetafield}
}

type probeData struct {
	ProductVariants struct {
		Edges []struct {
			Node struct {
				ID  string `json:"id"`
				SKU string `json:"sku"`
			} `json:"node"`
		} `json:"edges"`
		PageInfo struct {
			HasNextPage bool   `json:"hasNextPage"`
			EndCursor   string `json:"endCursor"`
		} `json:"pageInfo"`
	} `json:"productVariants"`
}

// SkuExists reports whether any variant of the shop carries exactly sku.
func (c *Catalog) SkuExists(ctx context.Context, sku string) (bool, error) {
	vars := map[string]any{"query": "sku:" + quoteSearch(sku)}

	for page := 0; page < maxProbePages; page++ {
		var data probeData
		if err := c.client.Execute(ctx, probeSkuQuery, vars, &data); err != nil {
			return false, fmt.Errorf("probe sku %s: %w", sku, err)
		}
		for _, edge := range data.ProductVariants.Edges {
			if edge.Node.SKU == sku {
				return true, nil
			}
		}
		if !data.ProductVariants.PageInfo.HasNextPage {
			return false, nil
		}
		vars["after"] = data.ProductVariants.PageInfo.EndCursor
	}
	return false, fmt.Errorf("probe sku %s: too many partial matches", sku)
}

type bulkUpdateData struct {
	ProductVariantsBulkUpdate struct {
		ProductVariants []struct {
			ID  string `json:"id"`
			SKU string `json:"sku"`
		} `json:"productVariants"`
		UserErrors []UserError `json:"userErrors"`
	} `json:"productVariantsBulkUpdate"`
}

// WriteVariantSku sets the inventory item SKU of one variant.
func (c *Catalog) WriteVariantSku(ctx context.Context, productID, variantID, sku string) error {
	variant := map[string]any{
		"id":            VariantGID(variantID),
		"inventoryItem": map[string]any{"sku": sku},
	}
	if c.writeMetafield {
		variant["metafields"] = []map[string]any{{
			"namespace": metafieldNamespace,
			"key":       metafieldKey,
			"type":      "single_line_text_field",
			"value":     sku,
		}}
	}

	var data bulkUpdateData
	err := c.client.Execute(ctx, setVariantSkuMutation, map[string]any{
		"productId": ProductGID(productID),
		"variants":  []map[string]any{variant},
	}, &data)
	if err != nil {
		return fmt.Errorf("write sku %s to variant %s: %w", sku, variantID, err)
	}
	if err := userErrorsErr(data.ProductVariantsBulkUpdate.UserErrors); err != nil {
		return fmt.Errorf("write sku %s to variant %s: %w", sku, variantID, err)
	}
	return nil
}

type scriptTagsData struct {
	ScriptTags struct {
		Edges []struct {
			Node ScriptTag `json:"node"`
		} `json:"edges"`
	} `json:"scriptTags"`
}

type scriptTagCreateData struct {
	ScriptTagCreate struct {
		ScriptTag  *ScriptTag  `json:"scriptTag"`
		UserErrors []UserError `json:"userErrors"`
	} `json:"scriptTagCreate"`
}

// ScriptTag is an installed storefront script.
type ScriptTag struct {
	ID  string `json:"id"`
	Src string `json:"src"`
}

// EnsureScriptTag installs the storefront script at src unless it is present.
// The returned bool is true when a new tag was created.
func (c *Catalog) EnsureScriptTag(ctx context.Context, src string) (*ScriptTag, bool, error) {
	var existing scriptTagsData
	if err := c.client.Execute(ctx, scriptTagsQuery, map[string]any{"src": src}, &existing); err != nil {
		return nil, false, fmt.Errorf("list script tags: %w", err)
	}
	for _, edge := range existing.ScriptTags.Edges {
		if edge.Node.Src == src {
			tag := edge.Node
			return &tag, false, nil
		}
	}

	var created scriptTagCreateData
	err := c.client.Execute(ctx, scriptTagCreateMutation, map[string]any{
		"input": map[string]any{"src": src, "displayScope": "ONLINE_STORE"},
	}, &created)
	if err != nil {
		return nil, false, fmt.Errorf("create script tag: %w", err)
	}
	if err := userErrorsErr(created.ScriptTagCreate.UserErrors); err != nil {
		return nil, false, fmt.Errorf("create script tag: %w", err)
	}
	if created.ScriptTagCreate.ScriptTag == nil {
		return nil, false, fmt.Errorf("create script tag: empty response")
	}
	return created.ScriptTagCreate.ScriptTag, true, nil
}

// ProductGID converts a numeric product id to its GraphQL global id.
func ProductGID(productID string) string {
	return toGID("Product", productID)
}

// VariantGID converts a numeric variant id to its GraphQL global id.
func VariantGID(variantID string) string {
	return toGID("ProductVariant", variantID)
}

func toGID(kind, id string) string {
	if strings.HasPrefix(id, "gid://") {
		return id
	}
	return "gid://shopify/" + kind + "/" + id
}

func quoteSearch(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
