package sales

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
)

// Feed is the read-only source of completed sales.
//
//go:generate mockgen -destination=mocks/mock_feed.go -package=mocks -source=aggregator.go Feed
type Feed interface {
	Transactions(ctx context.Context, window Window) ([]Transaction, error)
}

// Aggregator sums the sales feed into cash and card buckets.
type Aggregator struct {
	feed    Feed
	mapping MethodMapping
	logger  *slog.Logger
}

// NewAggregator constructs an Aggregator. A nil mapping falls back to DefaultMapping.
func NewAggregator(feed Feed, mapping MethodMapping, logger *slog.Logger) *Aggregator {
	if mapping == nil {
		mapping = DefaultMapping()
	}
	return &Aggregator{feed: feed, mapping: mapping, logger: logger}
}

// Aggregate returns cash and card totals of completed sales in the window.
func (a *Aggregator) Aggregate(ctx context.Context, window Window) (Totals, error) {
	if err := window.Validate(); err != nil {
		return Totals{}, err
	}
	if a == nil || a.feed == nil {
		return Totals{}, fmt.Errorf("%w: feed not configured", ErrFeedUnavailable)
	}
	txs, err := a.feed.Transactions(ctx, window)
	if err != nil {
		if a.logger != nil {
			a.logger.Warn("sales feed query", slog.Time("start", window.Start), slog.Time("end", window.End), slog.Any("error", err))
		}
		return Totals{}, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}
	return Summarize(txs, window, a.mapping)
}

// Summarize filters completed transactions inside the window and partitions them
// into buckets. Sums are exact decimals.
func Summarize(txs []Transaction, window Window, mapping MethodMapping) (Totals, error) {
	if err := window.Validate(); err != nil {
		return Totals{}, err
	}
	if mapping == nil {
		mapping = DefaultMapping()
	}
	cash := decimal.Zero
	card := decimal.Zero
	count := 0
	for _, tx := range txs {
		if !tx.Completed() || !window.Contains(tx.CompletedAt) {
			continue
		}
		bucket, err := mapping.Resolve(tx.Method)
		if err != nil {
			return Totals{}, fmt.Errorf("transaction %s: %w", tx.ID, err)
		}
		switch bucket {
		case BucketCash:
			cash = cash.Add(tx.Amount)
		case BucketCard:
			card = card.Add(tx.Amount)
		}
		count++
	}
	return Totals{
		SalesCash:  cash.Round(2),
		SalesCard:  card.Round(2),
		OrderCount: count,
	}, nil
}
