package shopify

import "context"

// ShopSummary is a small sample of a shop used to verify connectivity.
type ShopSummary struct {
	ID           string
	Name         string
	Domain       string
	CurrencyCode string
	Products     []ProductRef
	PaidOrders   []OrderRef
}

// ProductRef identifies a product by id, title and handle.
type ProductRef struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Handle string `json:"handle"`
}

// OrderRef is a paid order with its total in shop currency.
type OrderRef struct {
	ID           string
	Name         string
	Amount       string
	CurrencyCode string
}

// ShopInfo loads the shop identity plus the first `sample` products and
// paid orders.
func (c *Client) ShopInfo(ctx context.Context, sample int) (ShopSummary, error) {
	if sample <= 0 || sample > MaxPageSize {
		sample = 5
	}
	var data struct {
		Shop struct {
			ID              string `json:"id"`
			Name            string `json:"name"`
			MyshopifyDomain string `json:"myshopifyDomain"`
			CurrencyCode    string `json:"currencyCode"`
		} `json:"shop"`
		Products struct {
			Nodes []ProductRef `json:"nodes"`
		} `json:"products"`
		Orders struct {
			Nodes []struct {
				ID            string   `json:"id"`
				Name          string   `json:"name"`
				TotalPriceSet moneyBag `json:"totalPriceSet"`
			} `json:"nodes"`
		} `json:"orders"`
	}
	vars := map[string]any{"first": sample, "query": PaidOrdersSearch}
	if err := c.do(ctx, "ShopInfo", shopInfoQuery, vars, &data); err != nil {
		return ShopSummary{}, err
	}
	summary := ShopSummary{
		ID:           data.Shop.ID,
		Name:         data.Shop.Name,
		Domain:       data.Shop.MyshopifyDomain,
		CurrencyCode: data.Shop.CurrencyCode,
		Products:     data.Products.Nodes,
	}
	for _, o := range data.Orders.Nodes {
		summary.PaidOrders = append(summary.PaidOrders, OrderRef{
			ID:           o.ID,
			Name:         o.Name,
			Amount:       o.TotalPriceSet.ShopMoney.Amount,
			CurrencyCode: o.TotalPriceSet.ShopMoney.CurrencyCode,
		})
	}
	return summary, nil
}
