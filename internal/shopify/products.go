package shopify

import (
	"context"

	"github.com/noah-isme/toko-sales-stats/internal/sales"
)

type productNode struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type productsPage struct {
	Products struct {
		PageInfo pageInfo      `json:"pageInfo"`
		Nodes    []productNode `json:"nodes"`
	} `json:"products"`
}

// FetchAllProducts walks the whole catalog in page order.
func (c *Client) FetchAllProducts(ctx context.Context) ([]sales.Product, error) {
	var (
		products []sales.Product
		after    *string
	)
	for {
		var page productsPage
		vars := map[string]any{"first": c.pageSize, "after": after}
		if err := c.do(ctx, "Products", productsQuery, vars, &page); err != nil {
			return nil, err
		}
		for _, node := range page.Products.Nodes {
			products = append(products, sales.Product{ID: node.ID, Title: node.Title})
		}
		if !page.Products.PageInfo.HasNextPage || page.Products.PageInfo.EndCursor == nil {
			break
		}
		after = page.Products.PageInfo.EndCursor
	}
	return products, nil
}

// Metafield is a stored metafield as returned by the Admin API.
type Metafield struct {
	ID        string `json:"id"`
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Type      string `json:"type"`
	Value     string `json:"value"`
}

// ProductMetafields groups one product with its metafields in a namespace.
type ProductMetafields struct {
	ID         string
	Title      string
	Handle     string
	Metafields []Metafield
}

// ProductMetafields returns the first `first` products together with their
// metafields in namespace.
func (c *Client) ProductMetafields(ctx context.Context, namespace string, first int) ([]ProductMetafields, error) {
	if first <= 0 || first > MaxPageSize {
		first = 10
	}
	var data struct {
		Products struct {
			Nodes []struct {
				ID         string `json:"id"`
				Title      string `json:"title"`
				Handle     string `json:"handle"`
				Metafields struct {
					Nodes []Metafield `json:"nodes"`
				} `json:"metafields"`
			} `json:"nodes"`
		} `json:"products"`
	}
	vars := map[string]any{"first": first, "namespace": namespace}
	if err := c.do(ctx, "ProductMetafields", productMetafieldsQuery, vars, &data); err != nil {
		return nil, err
	}
	out := make([]ProductMetafields, 0, len(data.Products.Nodes))
	for _, node := range data.Products.Nodes {
		out = append(out, ProductMetafields{
			ID:         node.ID,
			Title:      node.Title,
			Handle:     node.Handle,
			Metafields: node.Metafields.Nodes,
		})
	}
	return out, nil
}
