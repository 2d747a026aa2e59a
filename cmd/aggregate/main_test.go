package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-sales-stats/internal/sales"
)

func TestWriteReport(t *testing.T) {
	var buf bytes.Buffer
	writeReport(&buf, sales.Report{
		Fold:      sales.FoldStats{Orders: 3, UnattributedRefund: 150},
		Products:  2,
		Projected: 2,
		Snapshots: []sales.Snapshot{
			{ProductID: "gid://shopify/Product/A", Title: "Apron", NetMinor: 130000},
			{ProductID: "gid://shopify/Product/B", Title: "Bag", NetMinor: -150},
		},
		NegativeNet: 1,
		Write:       sales.WriteResult{Batches: 1, Applied: 4},
	})

	out := buf.String()
	require.Contains(t, out, "Apron")
	require.Contains(t, out, "1300.00")
	require.Contains(t, out, "-1.50")
	require.Contains(t, out, "orders=3 products=2 projected=2 negative=1")
	require.Contains(t, out, "applied=4 errors=0 batches=1")
	require.Contains(t, out, "unattributed refund: 1.50")
	require.NotContains(t, out, "error:")
}
