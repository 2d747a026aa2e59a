package shopify

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// PaidOrdersSearch is the order search filter selecting paid orders.
const PaidOrdersSearch = "financial_status:paid"

const paidOrdersQuery = `
query PaidOrders($first: Int!, $after: String, $query: String) {
  orders(first: $first, after: $after, query: $query) {
    pageInfo { hasNextPage endCursor }
    nodes {
      id
      name
      lineItems(first: 250) {
        pageInfo { hasNextPage }
        nodes {
          id
          variant { product { id } }
          discountedTotalSet { shopMoney { amount currencyCode } }
        }
      }
      refunds {
        id
        transactions(first: 250) {
          pageInfo { hasNextPage }
          nodes {
            id
            kind
            status
            amountSet { shopMoney { amount currencyCode } }
          }
        }
      }
    }
  }
}`

const productsQuery = `
query Products($first: Int!, $after: String) {
  products(first: $first, after: $after) {
    pageInfo { hasNextPage endCursor }
    nodes { id title }
  }
}`

const productMetafieldsQuery = `
query ProductMetafields($first: Int!, $namespace: String!) {
  products(first: $first) {
    nodes {
      id
      title
      handle
      metafields(first: 250, namespace: $namespace) {
        nodes { id namespace key type value }
      }
    }
  }
}`

const shopInfoQuery = `
query ShopInfo($first: Int!, $query: String) {
  shop { id name myshopifyDomain currencyCode }
  products(first: $first) {
    nodes { id title handle }
  }
  orders(first: $first, query: $query) {
    nodes {
      id
      name
      totalPriceSet { shopMoney { amount currencyCode } }
    }
  }
}`

const metafieldsSetMutation = `
mutation MetafieldsSet($metafields: [MetafieldsSetInput!]!) {
  metafieldsSet(metafields: $metafields) {
    metafields { id namespace key }
    userErrors { field message code }
  }
}`

// documents maps operation names to their GraphQL text. Every entry is
// syntax-checked when the package loads.
var documents = map[string]string{
	"PaidOrders":        paidOrdersQuery,
	"Products":          productsQuery,
	"ProductMetafields": productMetafieldsQuery,
	"ShopInfo":          shopInfoQuery,
	"MetafieldsSet":     metafieldsSetMutation,
}

func init() {
	for name, doc := range documents {
		if err := checkDocument(name, doc); err != nil {
			panic(err)
		}
	}
}

func checkDocument(name, doc string) error {
	parsed, err := parser.ParseQuery(&ast.Source{Name: name, Input: doc})
	if err != nil {
		return fmt.Errorf("shopify: parse %s: %w", name, err)
	}
	if len(parsed.Operations) != 1 || parsed.Operations[0].Name != name {
		return fmt.Errorf("shopify: document %s must hold exactly one operation named %s", name, name)
	}
	return nil
}
