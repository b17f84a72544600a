package sales_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/odyssey-erp/odyssey-pos/internal/sales"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/mocks"
)

var base = time.Date(2025, 3, 4, 8, 0, 0, 0, time.UTC)

func tx(id string, amount string, method sales.PaymentMethod, status sales.OrderStatus, at time.Time) sales.Transaction {
	return sales.Transaction{
		ID:          id,
		Amount:      decimal.RequireFromString(amount),
		Method:      method,
		Status:      status,
		Paid:        true,
		CompletedAt: at,
	}
}

func TestSummarizePartitionsCompletedSales(t *testing.T) {
	window := sales.Window{Start: base, End: base.Add(8 * time.Hour)}
	txs := []sales.Transaction{
		tx("o1", "40.00", sales.PaymentMethodCash, sales.OrderStatusDelivered, base.Add(time.Hour)),
		tx("o2", "25.00", sales.PaymentMethodCard, sales.OrderStatusReady, base.Add(2*time.Hour)),
		tx("o3", "99.00", sales.PaymentMethodCash, sales.OrderStatusCancelled, base.Add(3*time.Hour)),
		tx("o4", "12.50", sales.PaymentMethodCard, sales.OrderStatusPending, base.Add(3*time.Hour)),
		tx("o5", "70.00", sales.PaymentMethodCash, sales.OrderStatusDelivered, base.Add(-time.Minute)),
		tx("o6", "5.00", sales.PaymentMethodCash, sales.OrderStatusDelivered, window.End),
	}

	totals, err := sales.Summarize(txs, window, nil)
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("45").Equal(totals.SalesCash), "cash: %s", totals.SalesCash)
	assert.True(t, decimal.RequireFromString("25").Equal(totals.SalesCard), "card: %s", totals.SalesCard)
	assert.Equal(t, 3, totals.OrderCount)
	assert.True(t, decimal.RequireFromString("70").Equal(totals.Total()))
}

func TestSummarizeExcludesUnpaidReadyOrders(t *testing.T) {
	window := sales.Window{Start: base, End: base.Add(time.Hour)}
	unpaid := tx("o1", "10", sales.PaymentMethodCash, sales.OrderStatusReady, base.Add(time.Minute))
	unpaid.Paid = false

	totals, err := sales.Summarize([]sales.Transaction{unpaid}, window, nil)
	require.NoError(t, err)
	assert.True(t, totals.SalesCash.IsZero())
	assert.Equal(t, 0, totals.OrderCount)
}

func TestSummarizeDoesNotDriftOverManySmallSales(t *testing.T) {
	window := sales.Window{Start: base, End: base.Add(time.Hour)}
	txs := make([]sales.Transaction, 0, 1000)
	for i := 0; i < 1000; i++ {
		txs = append(txs, tx("o", "0.10", sales.PaymentMethodCash, sales.OrderStatusDelivered, base.Add(time.Second)))
	}

	totals, err := sales.Summarize(txs, window, nil)
	require.NoError(t, err)
	assert.Equal(t, "100", totals.SalesCash.String())
}

func TestSummarizeRejectsUnmappedMethod(t *testing.T) {
	window := sales.Window{Start: base, End: base.Add(time.Hour)}
	txs := []sales.Transaction{tx("o1", "8", "BIZUM", sales.OrderStatusDelivered, base.Add(time.Minute))}

	_, err := sales.Summarize(txs, window, nil)
	require.ErrorIs(t, err, sales.ErrUnmappedPaymentMethod)

	mapping, err := sales.ParseMapping(map[string]string{"bizum": "card"})
	require.NoError(t, err)
	totals, err := sales.Summarize(txs, window, mapping)
	require.NoError(t, err)
	assert.Equal(t, "8", totals.SalesCard.String())
}

func TestParseMappingRejectsUnknownBucket(t *testing.T) {
	_, err := sales.ParseMapping(map[string]string{"VOUCHER": "CRYPTO"})
	require.Error(t, err)
}

func TestWindowValidate(t *testing.T) {
	err := sales.Window{Start: base.Add(time.Hour), End: base}.Validate()
	require.ErrorIs(t, err, sales.ErrInvalidWindow)
	require.NoError(t, sales.Window{Start: base, End: base}.Validate())
}

func TestAggregatorQueriesFeed(t *testing.T) {
	ctrl := gomock.NewController(t)
	feed := mocks.NewMockFeed(ctrl)
	window := sales.Window{Start: base, End: base.Add(time.Hour)}

	feed.EXPECT().Transactions(gomock.Any(), window).Return([]sales.Transaction{
		tx("o1", "40", sales.PaymentMethodCash, sales.OrderStatusDelivered, base.Add(time.Minute)),
		tx("o2", "25", sales.PaymentMethodCard, sales.OrderStatusDelivered, base.Add(2*time.Minute)),
	}, nil)

	agg := sales.NewAggregator(feed, nil, nil)
	totals, err := agg.Aggregate(context.Background(), window)
	require.NoError(t, err)
	assert.Equal(t, "40", totals.SalesCash.String())
	assert.Equal(t, "25", totals.SalesCard.String())
	assert.Equal(t, 2, totals.OrderCount)
}

func TestAggregatorWrapsFeedFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	feed := mocks.NewMockFeed(ctrl)
	feed.EXPECT().Transactions(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection refused"))

	agg := sales.NewAggregator(feed, nil, nil)
	_, err := agg.Aggregate(context.Background(), sales.Window{Start: base, End: base.Add(time.Hour)})
	require.ErrorIs(t, err, sales.ErrFeedUnavailable)
}

func TestAggregatorRejectsInvalidWindowBeforeQuerying(t *testing.T) {
	ctrl := gomock.NewController(t)
	feed := mocks.NewMockFeed(ctrl)

	agg := sales.NewAggregator(feed, nil, nil)
	_, err := agg.Aggregate(context.Background(), sales.Window{Start: base.Add(time.Hour), End: base})
	require.ErrorIs(t, err, sales.ErrInvalidWindow)
}

func TestStaticFeedFiltersWindowAndFails(t *testing.T) {
	feed := sales.NewStaticFeed(
		tx("o1", "1", sales.PaymentMethodCash, sales.OrderStatusDelivered, base),
		tx("o2", "1", sales.PaymentMethodCash, sales.OrderStatusDelivered, base.Add(2*time.Hour)),
	)
	got, err := feed.Transactions(context.Background(), sales.Window{Start: base, End: base.Add(time.Hour)})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	feed.FailWith(errors.New("down"))
	_, err = feed.Transactions(context.Background(), sales.Window{Start: base, End: base.Add(time.Hour)})
	require.Error(t, err)
}
