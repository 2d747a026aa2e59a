package sales

import (
	"fmt"

	"github.com/noah-isme/toko-sales-stats/internal/money"
)

// FoldStats counts what happened while folding orders.
type FoldStats struct {
	Orders             int
	LineItems          int
	SkippedLineItems   int
	RefundsApplied     int
	RefundsIgnored     int
	RefundedMinor      money.Minor
	UnattributedRefund money.Minor
}

// Accumulator folds orders into per-product gross and refund totals. It owns
// its map exclusively and is not safe for concurrent use.
type Accumulator struct {
	records map[string]*Record
	stats   FoldStats
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{records: make(map[string]*Record)}
}

// Fold adds an order's line items to gross totals and allocates each of its
// effective refund transactions across the line items. On error the
// accumulator is left untouched.
func (a *Accumulator) Fold(order Order) error {
	allocations := make([][]Share, len(order.Refunds))
	for i, tx := range order.Refunds {
		if !tx.Effective() {
			continue
		}
		shares, err := AllocateRefund(order.LineItems, tx.AmountMinor, nil)
		if err != nil {
			return fmt.Errorf("order %s: %w", order.ID, err)
		}
		allocations[i] = shares
	}
	// every product with a share gets a record from the gross pass below

	a.stats.Orders++
	for _, it := range order.LineItems {
		a.stats.LineItems++
		if it.ProductID == nil {
			a.stats.SkippedLineItems++
			continue
		}
		a.record(*it.ProductID).GrossMinor += it.AmountMinor
	}

	for i, tx := range order.Refunds {
		if !tx.Effective() {
			a.stats.RefundsIgnored++
			continue
		}
		shares := allocations[i]
		for _, s := range shares {
			a.records[s.ProductID].RefundMinor += s.RefundMinor
		}
		a.stats.RefundsApplied++
		a.stats.RefundedMinor += tx.AmountMinor
		a.stats.UnattributedRefund += tx.AmountMinor - SumShares(shares)
	}
	return nil
}

// FoldAll folds every order in sequence and stops at the first error.
func (a *Accumulator) FoldAll(orders []Order) error {
	for _, o := range orders {
		if err := a.Fold(o); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot returns a copy of the current per-product totals.
func (a *Accumulator) Snapshot() map[string]Record {
	out := make(map[string]Record, len(a.records))
	for id, rec := range a.records {
		out[id] = *rec
	}
	return out
}

// Len reports how many products have been seen.
func (a *Accumulator) Len() int {
	return len(a.records)
}

// Stats returns the fold counters collected so far.
func (a *Accumulator) Stats() FoldStats {
	return a.stats
}

func (a *Accumulator) record(productID string) *Record {
	rec, ok := a.records[productID]
	if !ok {
		rec = &Record{}
		a.records[productID] = rec
	}
	return rec
}
