package sales

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const transactionsInWindowSQL = `
SELECT id::text, total, payment_method, status, paid, completed_at
FROM orders
WHERE completed_at IS NOT NULL
  AND completed_at BETWEEN $1 AND $2
ORDER BY completed_at`

// Repository reads completed orders from the shared orders table.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository using the provided pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Transactions implements Feed.
func (r *Repository) Transactions(ctx context.Context, window Window) ([]Transaction, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("sales: repository not initialised")
	}
	rows, err := r.pool.Query(ctx, transactionsInWindowSQL, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("sales: query orders: %w", err)
	}
	txs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Transaction, error) {
		var (
			tx     Transaction
			amount decimal.Decimal
			method string
			status string
		)
		if err := row.Scan(&tx.ID, &amount, &method, &status, &tx.Paid, &tx.CompletedAt); err != nil {
			return Transaction{}, err
		}
		tx.Amount = amount
		tx.Method = PaymentMethod(strings.ToUpper(method))
		tx.Status = statusFromDB(status)
		return tx, nil
	})
	if err != nil {
		return nil, fmt.Errorf("sales: scan orders: %w", err)
	}
	return txs, nil
}

// statusFromDB translates the storefront status vocabulary.
func statusFromDB(s string) OrderStatus {
	switch strings.ToLower(s) {
	case "new", "pending":
		return OrderStatusPending
	case "cooking":
		return OrderStatusCooking
	case "ready":
		return OrderStatusReady
	case "on_way":
		return OrderStatusOnWay
	case "delivered":
		return OrderStatusDelivered
	case "cancelled":
		return OrderStatusCancelled
	default:
		return OrderStatusPending
	}
}
