package shift

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/sales"
)

// Kind enumerates the till shifts of a trading day.
type Kind string

const (
	KindMorning Kind = "MORNING"
	KindNight   Kind = "NIGHT"
)

// Valid reports whether k is a known shift kind.
func (k Kind) Valid() bool {
	return k == KindMorning || k == KindNight
}

// ParseKind normalises user input into a Kind.
func ParseKind(raw string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(raw)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, raw)
	}
	return k, nil
}

// Status captures the one-way shift lifecycle.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// Outcome classifies a closed shift by the sign of its difference.
type Outcome string

const (
	OutcomeBalanced Outcome = "balanced"
	OutcomeSurplus  Outcome = "surplus"
	OutcomeShortage Outcome = "shortage"
)

// Shift is one till-open-to-till-close working period.
type Shift struct {
	ID           string          `json:"id"`
	Kind         Kind            `json:"kind"`
	Status       Status          `json:"status"`
	OpenedAt     time.Time       `json:"opened_at"`
	ClosedAt     *time.Time      `json:"closed_at,omitempty"`
	OpenedBy     string          `json:"opened_by"`
	ClosedBy     string          `json:"closed_by,omitempty"`
	InitialCash  decimal.Decimal `json:"initial_cash"`
	SalesCash    decimal.Decimal `json:"sales_cash"`
	SalesCard    decimal.Decimal `json:"sales_card"`
	OrderCount   int             `json:"order_count"`
	ExpectedCash decimal.Decimal `json:"expected_cash"`
	ExpectedCard decimal.Decimal `json:"expected_card"`
	DeclaredCash decimal.Decimal `json:"declared_cash"`
	DeclaredCard decimal.Decimal `json:"declared_card"`
	Difference   decimal.Decimal `json:"difference"`
	Notes        string          `json:"notes,omitempty"`
}

// IsOpen reports whether the shift still accepts a close.
func (s Shift) IsOpen() bool {
	return s.Status == StatusOpen
}

// Window returns the sales window of the shift: [OpenedAt, ClosedAt] or up to now.
func (s Shift) Window(now time.Time) sales.Window {
	end := now
	if s.ClosedAt != nil {
		end = *s.ClosedAt
	}
	return sales.Window{Start: s.OpenedAt, End: end}
}

// Outcome classifies the stored difference.
func (s Shift) Outcome() Outcome {
	return outcomeOf(s.Difference)
}

func outcomeOf(diff decimal.Decimal) Outcome {
	switch diff.Sign() {
	case 1:
		return OutcomeSurplus
	case -1:
		return OutcomeShortage
	default:
		return OutcomeBalanced
	}
}

// Variance is the read-only comparison shown to the operator before closing.
type Variance struct {
	SalesCash    decimal.Decimal `json:"sales_cash"`
	SalesCard    decimal.Decimal `json:"sales_card"`
	OrderCount   int             `json:"order_count"`
	ExpectedCash decimal.Decimal `json:"expected_cash"`
	ExpectedCard decimal.Decimal `json:"expected_card"`
	DeclaredCash decimal.Decimal `json:"declared_cash"`
	DeclaredCard decimal.Decimal `json:"declared_card"`
	DiffCash     decimal.Decimal `json:"diff_cash"`
	DiffCard     decimal.Decimal `json:"diff_card"`
	TotalDiff    decimal.Decimal `json:"total_diff"`
	WindowEnd    time.Time       `json:"window_end"`
}

// Balanced reports a perfect reconciliation.
func (v Variance) Balanced() bool {
	return v.TotalDiff.IsZero()
}

// Outcome classifies the total difference.
func (v Variance) Outcome() Outcome {
	return outcomeOf(v.TotalDiff)
}

// OpenShiftInput captures parameters for opening a shift.
type OpenShiftInput struct {
	Kind        Kind
	InitialCash float64
	OpenedBy    string
}

// Validate ensures the open request is coherent.
func (in OpenShiftInput) Validate() error {
	if !in.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, in.Kind)
	}
	if _, err := amount(in.InitialCash, ErrInvalidFloat); err != nil {
		return err
	}
	return nil
}

// CloseShiftInput captures the blind count submitted at close.
type CloseShiftInput struct {
	ShiftID      string
	DeclaredCash float64
	DeclaredCard float64
	Notes        string
	ClosedBy     string
}

// Validate checks declared amounts before anything is loaded or written.
func (in CloseShiftInput) Validate() error {
	if strings.TrimSpace(in.ShiftID) == "" {
		return fmt.Errorf("%w: id required", ErrShiftNotFound)
	}
	return validateDeclaration(in.DeclaredCash, in.DeclaredCard)
}

func validateDeclaration(cash, card float64) error {
	if _, err := amount(cash, ErrInvalidDeclaration); err != nil {
		return fmt.Errorf("cash: %w", err)
	}
	if _, err := amount(card, ErrInvalidDeclaration); err != nil {
		return fmt.Errorf("card: %w", err)
	}
	return nil
}

// amount converts an operator-entered float into a two-decimal amount.
// NaN, infinities and negatives are reported as kind.
func amount(v float64, kind error) (decimal.Decimal, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero, fmt.Errorf("%w: not a finite number", kind)
	}
	if v < 0 {
		return decimal.Zero, fmt.Errorf("%w: %.2f is negative", kind, v)
	}
	return decimal.NewFromFloat(v).Round(2), nil
}

var (
	// ErrInvalidKind indicates an unknown shift kind.
	ErrInvalidKind = errors.New("shift: invalid kind")
	// ErrInvalidFloat indicates a negative or non-finite starting float.
	ErrInvalidFloat = errors.New("shift: invalid initial float")
	// ErrInvalidDeclaration indicates a negative or non-numeric declared amount.
	ErrInvalidDeclaration = errors.New("shift: invalid declared amount")
	// ErrShiftAlreadyOpen is reported by stores when an OPEN shift already exists.
	ErrShiftAlreadyOpen = errors.New("shift: a shift is already open")
	// ErrConflictingShiftOpen indicates a shift of the other kind is still open.
	ErrConflictingShiftOpen = errors.New("shift: another shift kind is still open")
	// ErrShiftNotFound indicates the id does not resolve to a shift.
	ErrShiftNotFound = errors.New("shift: shift not found")
	// ErrAlreadyClosed indicates the shift was closed before.
	ErrAlreadyClosed = errors.New("shift: shift already closed")
)
