package sales

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/noah-isme/toko-sales-stats/internal/money"
)

const (
	// DefaultNamespace is the metafield namespace holding the computed stats.
	DefaultNamespace = "stats"
	// DefaultCurrencyCode is the currency reported in the money metafield.
	DefaultCurrencyCode = "JPY"

	// KeyLifetimeSalesCents holds net sales as raw minor units.
	KeyLifetimeSalesCents = "lifetime_sales_cents"
	// KeyLifetimeSalesAmount holds net sales as a money value.
	KeyLifetimeSalesAmount = "lifetime_sales_amount"

	// TypeNumberInteger is the metafield type of the minor-unit value.
	TypeNumberInteger = "number_integer"
	// TypeMoney is the metafield type of the currency value.
	TypeMoney = "money"
)

// Projector turns accumulated records into annotation writes for the catalog.
type Projector struct {
	Namespace    string
	CurrencyCode string
}

type moneyValue struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currency_code"`
}

// Project derives net sales for every catalog product that has a record and
// returns the snapshots together with two annotations per product, both in
// catalog order. Products without a record are skipped.
func (p Projector) Project(records map[string]Record, products []Product) ([]Snapshot, []Annotation, error) {
	namespace := valueOrDefault(p.Namespace, DefaultNamespace)
	currency := strings.ToUpper(valueOrDefault(p.CurrencyCode, DefaultCurrencyCode))

	snapshots := make([]Snapshot, 0, len(products))
	annotations := make([]Annotation, 0, len(products)*2)
	for _, product := range products {
		rec, ok := records[product.ID]
		if !ok {
			continue
		}
		net := rec.NetMinor()
		encoded, err := json.Marshal(moneyValue{Amount: money.ToDecimalString(net), CurrencyCode: currency})
		if err != nil {
			return nil, nil, fmt.Errorf("encode money value for %s: %w", product.ID, err)
		}
		snapshots = append(snapshots, Snapshot{ProductID: product.ID, Title: product.Title, NetMinor: net})
		annotations = append(annotations,
			Annotation{
				OwnerID:   product.ID,
				Namespace: namespace,
				Key:       KeyLifetimeSalesCents,
				Type:      TypeNumberInteger,
				Value:     strconv.FormatInt(net, 10),
			},
			Annotation{
				OwnerID:   product.ID,
				Namespace: namespace,
				Key:       KeyLifetimeSalesAmount,
				Type:      TypeMoney,
				Value:     string(encoded),
			},
		)
	}
	return snapshots, annotations, nil
}

func valueOrDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
