package shopify

const probeSkuQuery = `
query ProbeSku($query: String!, $after: String) {
  productVariants(first: 25, query: $query, after: $after) {
    edges {
      node {
        id
        sku
      }
    }
    pageInfo {
      hasNextPage
      endCursor
    }
  }
}`

const setVariantSkuMutation = `
mutation SetVariantSku($productId: ID!, $variants: [ProductVariantsBulkInput!]!) {
  productVariantsBulkUpdate(productId: $productId, variants: $variants) {
    productVariants {
      id
      sku
    }
    userErrors {
      field
      message
    }
  }
}`

const scriptTagCreateMutation = `
mutation ScriptTagCreate($input: ScriptTagInput!) {
  scriptTagCreate(input: $input) {
    scriptTag {
      id
      src
    }
    userErrors {
      field
      message
    }
  }
}`

const scriptTagsQuery = `
query ScriptTags($src: URL) {
  scriptTags(first: 10, src: $src) {
    edges {
      node {
        id
        src
      }
    }
  }
}`
