package sales

import (
	"fmt"

	"github.com/noah-isme/toko-sales-stats/internal/money"
)

// Share is the portion of a refund attributed to one line item's product.
type Share struct {
	ProductID   string
	RefundMinor money.Minor
}

// AllocateRefund splits refund across the order's line items proportionally to
// their amounts. The order total includes line items without a product, but
// only items whose product is tracked receive a share; the remainder is not
// attributed to anyone. Orders with a non-positive total yield no shares.
// A share that does not fit in minor units fails with money.ErrOverflow.
func AllocateRefund(items []LineItem, refund money.Minor, tracked func(productID string) bool) ([]Share, error) {
	var orderTotal money.Minor
	for _, it := range items {
		orderTotal += it.AmountMinor
	}
	if orderTotal <= 0 {
		return nil, nil
	}
	shares := make([]Share, 0, len(items))
	for _, it := range items {
		if it.ProductID == nil {
			continue
		}
		id := *it.ProductID
		if tracked != nil && !tracked(id) {
			continue
		}
		share, err := money.MulDivRound(refund, it.AmountMinor, orderTotal)
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", id, err)
		}
		shares = append(shares, Share{ProductID: id, RefundMinor: share})
	}
	return shares, nil
}

// SumShares totals the refund minor units across shares.
func SumShares(shares []Share) money.Minor {
	var total money.Minor
	for _, s := range shares {
		total += s.RefundMinor
	}
	return total
}
