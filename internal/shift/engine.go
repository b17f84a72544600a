package shift

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/sales"
)

// ComputeExpected derives what should be in the drawer and the card terminal.
// Cash includes the starting float.
func ComputeExpected(initialCash decimal.Decimal, totals sales.Totals) (cash, card decimal.Decimal) {
	return totals.SalesCash.Add(initialCash).Round(2), totals.SalesCard.Round(2)
}

// ComputeVariance compares a blind count against expected totals.
func ComputeVariance(initialCash decimal.Decimal, totals sales.Totals, declaredCash, declaredCard decimal.Decimal) Variance {
	expectedCash, expectedCard := ComputeExpected(initialCash, totals)
	diffCash := declaredCash.Sub(expectedCash).Round(2)
	diffCard := declaredCard.Sub(expectedCard).Round(2)
	return Variance{
		SalesCash:    totals.SalesCash,
		SalesCard:    totals.SalesCard,
		OrderCount:   totals.OrderCount,
		ExpectedCash: expectedCash,
		ExpectedCard: expectedCard,
		DeclaredCash: declaredCash,
		DeclaredCard: declaredCard,
		DiffCash:     diffCash,
		DiffCard:     diffCard,
		TotalDiff:    Difference(expectedCash, expectedCard, declaredCash, declaredCard),
	}
}

// Difference is (declaredCash + declaredCard) - (expectedCash + expectedCard).
func Difference(expectedCash, expectedCard, declaredCash, declaredCard decimal.Decimal) decimal.Decimal {
	return declaredCash.Add(declaredCard).Sub(expectedCash.Add(expectedCard)).Round(2)
}

// applyClose returns the closed form of s. All close-time fields change together.
func applyClose(s Shift, v Variance, notes, closedBy string, closedAt time.Time) Shift {
	s.Status = StatusClosed
	s.ClosedAt = &closedAt
	s.ClosedBy = closedBy
	s.SalesCash = v.SalesCash
	s.SalesCard = v.SalesCard
	s.OrderCount = v.OrderCount
	s.ExpectedCash = v.ExpectedCash
	s.ExpectedCard = v.ExpectedCard
	s.DeclaredCash = v.DeclaredCash
	s.DeclaredCard = v.DeclaredCard
	s.Difference = v.TotalDiff
	s.Notes = notes
	return s
}
