package sales

import (
	"context"
	"strings"

	"github.com/noah-isme/toko-sales-stats/internal/money"
)

const (
	// TransactionKindRefund marks a transaction that returns money to the buyer.
	TransactionKindRefund = "refund"
	// TransactionStatusSuccess marks a transaction the gateway settled.
	TransactionStatusSuccess = "success"
)

// LineItem is one product/variant entry within an order.
type LineItem struct {
	ID          string
	ProductID   *string
	AmountMinor money.Minor
}

// RefundTransaction is a transaction attached to one of an order's refunds.
type RefundTransaction struct {
	ID          string
	AmountMinor money.Minor
	Kind        string
	Status      string
}

// Effective reports whether the transaction moved money back to the buyer.
func (t RefundTransaction) Effective() bool {
	return strings.EqualFold(t.Kind, TransactionKindRefund) && strings.EqualFold(t.Status, TransactionStatusSuccess)
}

// Order is a paid order as read from the order feed.
type Order struct {
	ID        string
	Name      string
	LineItems []LineItem
	Refunds   []RefundTransaction
}

// Product is an entry of the authoritative catalog.
type Product struct {
	ID    string
	Title string
}

// Record holds the accumulated totals for a single product.
type Record struct {
	GrossMinor  money.Minor
	RefundMinor money.Minor
}

// NetMinor returns gross minus refunds. The value is not clamped.
func (r Record) NetMinor() money.Minor {
	return r.GrossMinor - r.RefundMinor
}

// Snapshot is the net sales figure projected for one catalog product.
type Snapshot struct {
	ProductID string
	Title     string
	NetMinor  money.Minor
}

// Annotation is a single metafield write request.
type Annotation struct {
	OwnerID   string `json:"ownerId" validate:"required"`
	Namespace string `json:"namespace" validate:"required,min=3"`
	Key       string `json:"key" validate:"required,min=2"`
	Type      string `json:"type" validate:"required"`
	Value     string `json:"value" validate:"required"`
}

// UserError is a validation error reported by the remote API for a write.
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

// WriteResult summarises a batched annotation write.
type WriteResult struct {
	Batches    int
	Applied    int
	Errors     int
	UserErrors []UserError
}

// Add merges the counts of another result into r.
func (r *WriteResult) Add(other WriteResult) {
	r.Batches += other.Batches
	r.Applied += other.Applied
	r.Errors += other.Errors
	r.UserErrors = append(r.UserErrors, other.UserErrors...)
}

// OrderFeed yields every paid order. Pagination is handled by the implementation.
type OrderFeed interface {
	FetchPaidOrders(ctx context.Context) ([]Order, error)
}

// Catalog yields the authoritative product list.
type Catalog interface {
	FetchAllProducts(ctx context.Context) ([]Product, error)
}

// AnnotationWriter persists annotations, chunking and pacing as it sees fit.
type AnnotationWriter interface {
	WriteAnnotations(ctx context.Context, annotations []Annotation) (WriteResult, error)
}
