package sales_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-sales-stats/internal/money"
	"github.com/noah-isme/toko-sales-stats/internal/sales"
)

func refund(amount money.Minor) sales.RefundTransaction {
	return sales.RefundTransaction{AmountMinor: amount, Kind: "refund", Status: "success"}
}

func mustFold(t *testing.T, acc *sales.Accumulator, order sales.Order) {
	t.Helper()
	require.NoError(t, acc.Fold(order))
}

func TestFoldTwoOrdersSameProduct(t *testing.T) {
	acc := sales.NewAccumulator()
	mustFold(t, acc, sales.Order{
		ID:        "gid://shopify/Order/1",
		LineItems: []sales.LineItem{{ProductID: ptr("P"), AmountMinor: 1000}},
		Refunds:   []sales.RefundTransaction{refund(200)},
	})
	mustFold(t, acc, sales.Order{
		ID:        "gid://shopify/Order/2",
		LineItems: []sales.LineItem{{ProductID: ptr("P"), AmountMinor: 500}},
	})

	snap := acc.Snapshot()
	require.Equal(t, sales.Record{GrossMinor: 1500, RefundMinor: 200}, snap["P"])
	require.Equal(t, money.Minor(1300), snap["P"].NetMinor())
}

func TestFoldIgnoresIneffectiveRefunds(t *testing.T) {
	acc := sales.NewAccumulator()
	mustFold(t, acc, sales.Order{
		LineItems: []sales.LineItem{{ProductID: ptr("P"), AmountMinor: 1000}},
		Refunds: []sales.RefundTransaction{
			{AmountMinor: 300, Kind: "refund", Status: "pending"},
			{AmountMinor: 300, Kind: "refund", Status: "failure"},
			{AmountMinor: 300, Kind: "sale", Status: "success"},
		},
	})
	require.Equal(t, sales.Record{GrossMinor: 1000}, acc.Snapshot()["P"])
	require.Equal(t, 3, acc.Stats().RefundsIgnored)
	require.Zero(t, acc.Stats().RefundsApplied)
}

func TestFoldAcceptsUppercaseEnums(t *testing.T) {
	acc := sales.NewAccumulator()
	mustFold(t, acc, sales.Order{
		LineItems: []sales.LineItem{{ProductID: ptr("P"), AmountMinor: 1000}},
		Refunds:   []sales.RefundTransaction{{AmountMinor: 100, Kind: "REFUND", Status: "SUCCESS"}},
	})
	require.Equal(t, money.Minor(100), acc.Snapshot()["P"].RefundMinor)
}

func TestFoldSkipsLineItemsWithoutProduct(t *testing.T) {
	acc := sales.NewAccumulator()
	mustFold(t, acc, sales.Order{
		LineItems: []sales.LineItem{
			{ProductID: nil, AmountMinor: 400},
			{ProductID: ptr("P"), AmountMinor: 600},
		},
		Refunds: []sales.RefundTransaction{refund(500)},
	})
	snap := acc.Snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, sales.Record{GrossMinor: 600, RefundMinor: 300}, snap["P"])

	stats := acc.Stats()
	require.Equal(t, 1, stats.SkippedLineItems)
	require.Equal(t, money.Minor(200), stats.UnattributedRefund)
	require.Equal(t, money.Minor(500), stats.RefundedMinor)
}

func TestFoldMultipleRefundsAllocatedIndependently(t *testing.T) {
	acc := sales.NewAccumulator()
	mustFold(t, acc, sales.Order{
		LineItems: []sales.LineItem{
			{ProductID: ptr("A"), AmountMinor: 700},
			{ProductID: ptr("B"), AmountMinor: 300},
		},
		Refunds: []sales.RefundTransaction{refund(500), refund(100)},
	})
	snap := acc.Snapshot()
	require.Equal(t, sales.Record{GrossMinor: 700, RefundMinor: 420}, snap["A"])
	require.Equal(t, sales.Record{GrossMinor: 300, RefundMinor: 180}, snap["B"])
	require.Equal(t, 2, acc.Stats().RefundsApplied)
}

func TestFoldZeroTotalOrderWithRefund(t *testing.T) {
	acc := sales.NewAccumulator()
	require.NotPanics(t, func() {
		_ = acc.Fold(sales.Order{
			LineItems: []sales.LineItem{{ProductID: ptr("P"), AmountMinor: 0}},
			Refunds:   []sales.RefundTransaction{refund(100)},
		})
	})
	require.Equal(t, sales.Record{}, acc.Snapshot()["P"])
}

func TestSnapshotIsCopy(t *testing.T) {
	acc := sales.NewAccumulator()
	mustFold(t, acc, sales.Order{LineItems: []sales.LineItem{{ProductID: ptr("P"), AmountMinor: 100}}})
	snap := acc.Snapshot()
	snap["P"] = sales.Record{GrossMinor: 1}
	require.Equal(t, money.Minor(100), acc.Snapshot()["P"].GrossMinor)
}

func TestFoldIsCommutative(t *testing.T) {
	orders := []sales.Order{
		{
			ID: "1",
			LineItems: []sales.LineItem{
				{ProductID: ptr("A"), AmountMinor: 700},
				{ProductID: ptr("B"), AmountMinor: 300},
			},
			Refunds: []sales.RefundTransaction{refund(500)},
		},
		{
			ID:        "2",
			LineItems: []sales.LineItem{{ProductID: ptr("B"), AmountMinor: 1234}, {AmountMinor: 99}},
			Refunds:   []sales.RefundTransaction{refund(333), {AmountMinor: 50, Kind: "refund", Status: "pending"}},
		},
		{
			ID:        "3",
			LineItems: []sales.LineItem{{ProductID: ptr("C"), AmountMinor: 1}, {ProductID: ptr("A"), AmountMinor: 2}},
			Refunds:   []sales.RefundTransaction{refund(1), refund(2)},
		},
		{
			ID:        "4",
			LineItems: []sales.LineItem{{ProductID: ptr("C"), AmountMinor: 0}},
			Refunds:   []sales.RefundTransaction{refund(10)},
		},
	}

	reference := sales.NewAccumulator()
	require.NoError(t, reference.FoldAll(orders))
	want := reference.Snapshot()

	permute(orders, func(p []sales.Order) {
		acc := sales.NewAccumulator()
		require.NoError(t, acc.FoldAll(p))
		require.Equal(t, want, acc.Snapshot())
	})
}

func TestFoldRejectsOverflowingShare(t *testing.T) {
	acc := sales.NewAccumulator()
	mustFold(t, acc, sales.Order{ID: "1", LineItems: []sales.LineItem{{ProductID: ptr("A"), AmountMinor: 100}}})

	// a share of 1e19 minor units does not fit in int64
	err := acc.Fold(sales.Order{
		ID: "2",
		LineItems: []sales.LineItem{
			{ProductID: ptr("A"), AmountMinor: 10},
			{ProductID: ptr("B"), AmountMinor: -9},
		},
		Refunds: []sales.RefundTransaction{refund(1_000_000_000_000_000_000)},
	})
	require.ErrorIs(t, err, money.ErrOverflow)
	require.ErrorContains(t, err, "order 2")

	require.Equal(t, map[string]sales.Record{"A": {GrossMinor: 100}}, acc.Snapshot())
	require.Equal(t, 1, acc.Stats().Orders)

	err = acc.FoldAll([]sales.Order{{
		ID:        "3",
		LineItems: []sales.LineItem{{ProductID: ptr("A"), AmountMinor: 10}, {AmountMinor: -9}},
		Refunds:   []sales.RefundTransaction{refund(1_000_000_000_000_000_000)},
	}})
	require.ErrorIs(t, err, money.ErrOverflow)
}

// permute calls fn with every permutation of orders (Heap's algorithm).
func permute(orders []sales.Order, fn func([]sales.Order)) {
	a := append([]sales.Order(nil), orders...)
	c := make([]int, len(a))
	fn(append([]sales.Order(nil), a...))
	i := 0
	for i < len(a) {
		if c[i] < i {
			if i%2 == 0 {
				a[0], a[i] = a[i], a[0]
			} else {
				a[c[i]], a[i] = a[i], a[c[i]]
			}
			fn(append([]sales.Order(nil), a...))
			c[i]++
			i = 0
			continue
		}
		c[i] = 0
		i++
	}
}
