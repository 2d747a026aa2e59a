package shopify

import (
	"context"
	"fmt"
	"strings"

	"github.com/noah-isme/toko-sales-stats/internal/money"
	"github.com/noah-isme/toko-sales-stats/internal/sales"
)

type pageInfo struct {
	HasNextPage bool    `json:"hasNextPage"`
	EndCursor   *string `json:"endCursor"`
}

type moneyBag struct {
	ShopMoney struct {
		Amount       string `json:"amount"`
		CurrencyCode string `json:"currencyCode"`
	} `json:"shopMoney"`
}

type lineItemNode struct {
	ID      string `json:"id"`
	Variant *struct {
		Product *struct {
			ID string `json:"id"`
		} `json:"product"`
	} `json:"variant"`
	DiscountedTotalSet moneyBag `json:"discountedTotalSet"`
}

type transactionNode struct {
	ID        string   `json:"id"`
	Kind      string   `json:"kind"`
	Status    string   `json:"status"`
	AmountSet moneyBag `json:"amountSet"`
}

type refundNode struct {
	ID           string `json:"id"`
	Transactions struct {
		PageInfo pageInfo          `json:"pageInfo"`
		Nodes    []transactionNode `json:"nodes"`
	} `json:"transactions"`
}

type orderNode struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	LineItems struct {
		PageInfo pageInfo       `json:"pageInfo"`
		Nodes    []lineItemNode `json:"nodes"`
	} `json:"lineItems"`
	Refunds []refundNode `json:"refunds"`
}

type ordersPage struct {
	Orders struct {
		PageInfo pageInfo    `json:"pageInfo"`
		Nodes    []orderNode `json:"nodes"`
	} `json:"orders"`
}

// FetchPaidOrders walks every page of paid orders and converts them to
// sales orders. An unparsable amount aborts the walk.
func (c *Client) FetchPaidOrders(ctx context.Context) ([]sales.Order, error) {
	var (
		orders []sales.Order
		after  *string
	)
	for {
		var page ordersPage
		vars := map[string]any{"first": c.pageSize, "after": after, "query": PaidOrdersSearch}
		if err := c.do(ctx, "PaidOrders", paidOrdersQuery, vars, &page); err != nil {
			return nil, err
		}
		for _, node := range page.Orders.Nodes {
			order, err := c.toOrder(node)
			if err != nil {
				return nil, err
			}
			orders = append(orders, order)
		}
		if !page.Orders.PageInfo.HasNextPage || page.Orders.PageInfo.EndCursor == nil {
			break
		}
		after = page.Orders.PageInfo.EndCursor
	}
	return orders, nil
}

func (c *Client) toOrder(node orderNode) (sales.Order, error) {
	order := sales.Order{ID: node.ID, Name: node.Name}
	if node.LineItems.PageInfo.HasNextPage {
		c.logger.Warn().Str("order_id", node.ID).Int("line_items", len(node.LineItems.Nodes)).Msg("order_line_items_truncated")
	}
	for _, li := range node.LineItems.Nodes {
		amount, err := money.ToMinorUnits(li.DiscountedTotalSet.ShopMoney.Amount)
		if err != nil {
			return sales.Order{}, fmt.Errorf("order %s line item %s: %w", node.ID, li.ID, err)
		}
		item := sales.LineItem{ID: li.ID, AmountMinor: amount}
		if li.Variant != nil && li.Variant.Product != nil && li.Variant.Product.ID != "" {
			id := li.Variant.Product.ID
			item.ProductID = &id
		}
		order.LineItems = append(order.LineItems, item)
	}
	for _, refund := range node.Refunds {
		if refund.Transactions.PageInfo.HasNextPage {
			c.logger.Warn().Str("order_id", node.ID).Str("refund_id", refund.ID).Msg("refund_transactions_truncated")
		}
		for _, tx := range refund.Transactions.Nodes {
			amount, err := money.ToMinorUnits(tx.AmountSet.ShopMoney.Amount)
			if err != nil {
				return sales.Order{}, fmt.Errorf("order %s transaction %s: %w", node.ID, tx.ID, err)
			}
			order.Refunds = append(order.Refunds, sales.RefundTransaction{
				ID:          tx.ID,
				AmountMinor: amount,
				Kind:        strings.ToLower(tx.Kind),
				Status:      strings.ToLower(tx.Status),
			})
		}
	}
	return order, nil
}
