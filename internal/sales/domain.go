package sales

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod identifies how a sale was tendered.
type PaymentMethod string

const (
	PaymentMethodCash PaymentMethod = "CASH"
	PaymentMethodCard PaymentMethod = "CARD"
)

// OrderStatus mirrors the order lifecycle exposed by the sales feed.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusCooking   OrderStatus = "COOKING"
	OrderStatusReady     OrderStatus = "READY"
	OrderStatusOnWay     OrderStatus = "ON_WAY"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Bucket is one of the two reconciliation buckets every payment method lands in.
type Bucket string

const (
	BucketCash Bucket = "CASH"
	BucketCard Bucket = "CARD"
)

// Transaction is a single sale as reported by the feed.
type Transaction struct {
	ID          string
	Amount      decimal.Decimal
	Method      PaymentMethod
	Status      OrderStatus
	Paid        bool
	CompletedAt time.Time
}

// Completed reports whether the transaction counts as a realised sale.
// READY orders only count once they are paid at the counter.
func (t Transaction) Completed() bool {
	switch t.Status {
	case OrderStatusDelivered:
		return true
	case OrderStatusReady:
		return t.Paid
	default:
		return false
	}
}

// Window is a closed time interval [Start, End].
type Window struct {
	Start time.Time
	End   time.Time
}

// Validate ensures the window is well formed.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return fmt.Errorf("%w: start and end required", ErrInvalidWindow)
	}
	if w.Start.After(w.End) {
		return fmt.Errorf("%w: start %s after end %s", ErrInvalidWindow, w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
	}
	return nil
}

// Contains reports whether ts falls inside the window, bounds included.
func (w Window) Contains(ts time.Time) bool {
	return !ts.Before(w.Start) && !ts.After(w.End)
}

// Totals holds aggregated sales for a window.
type Totals struct {
	SalesCash  decimal.Decimal `json:"sales_cash"`
	SalesCard  decimal.Decimal `json:"sales_card"`
	OrderCount int             `json:"order_count"`
}

// Total returns cash plus card sales.
func (t Totals) Total() decimal.Decimal {
	return t.SalesCash.Add(t.SalesCard)
}

// MethodMapping routes payment methods to reconciliation buckets.
type MethodMapping map[PaymentMethod]Bucket

// DefaultMapping only knows the two native methods.
func DefaultMapping() MethodMapping {
	return MethodMapping{
		PaymentMethodCash: BucketCash,
		PaymentMethodCard: BucketCard,
	}
}

// ParseMapping builds a mapping from "METHOD:BUCKET" pairs on top of the defaults.
func ParseMapping(pairs map[string]string) (MethodMapping, error) {
	mapping := DefaultMapping()
	for method, bucket := range pairs {
		m := PaymentMethod(strings.ToUpper(strings.TrimSpace(method)))
		b := Bucket(strings.ToUpper(strings.TrimSpace(bucket)))
		if m == "" {
			return nil, errors.New("sales: empty payment method in mapping")
		}
		if b != BucketCash && b != BucketCard {
			return nil, fmt.Errorf("sales: payment method %s mapped to unknown bucket %q", m, bucket)
		}
		mapping[m] = b
	}
	return mapping, nil
}

// Resolve returns the bucket for a method.
func (m MethodMapping) Resolve(method PaymentMethod) (Bucket, error) {
	bucket, ok := m[PaymentMethod(strings.ToUpper(string(method)))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnmappedPaymentMethod, method)
	}
	return bucket, nil
}

var (
	// ErrInvalidWindow indicates start is after end.
	ErrInvalidWindow = errors.New("sales: invalid window")
	// ErrUnmappedPaymentMethod indicates a payment method without a bucket.
	ErrUnmappedPaymentMethod = errors.New("sales: unmapped payment method")
	// ErrFeedUnavailable wraps failures of the underlying sales feed.
	ErrFeedUnavailable = errors.New("sales: feed unavailable")
)
