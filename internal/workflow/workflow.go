package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/receipt"
	"github.com/odyssey-erp/odyssey-pos/internal/sales"
	"github.com/odyssey-erp/odyssey-pos/internal/shift"
)

// Engine is the subset of the reconciliation service driven by the workflow.
type Engine interface {
	OpenShift(ctx context.Context, in shift.OpenShiftInput) (shift.Shift, error)
	PreviewVariance(ctx context.Context, s shift.Shift, declaredCash, declaredCard float64) (shift.Variance, error)
	CloseShift(ctx context.Context, in shift.CloseShiftInput) (shift.Shift, error)
}

// Workflow sequences one operator through Select, Count, Review and Finalize.
// It is safe for concurrent use; engine calls run without holding the lock.
type Workflow struct {
	engine       Engine
	emitter      receipt.Emitter
	defaultFloat float64
	logger       *slog.Logger

	mu         sync.Mutex
	state      State
	submitting bool
}

// New constructs a Workflow in the SELECT step.
func New(engine Engine, emitter receipt.Emitter, defaultFloat float64, logger *slog.Logger) *Workflow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{
		engine:       engine,
		emitter:      emitter,
		defaultFloat: defaultFloat,
		logger:       logger,
		state:        SelectState{},
	}
}

// State returns the current state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Submitting reports whether a close is in flight.
func (w *Workflow) Submitting() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.submitting
}

// Select opens (or resumes) a shift of the given kind and moves to COUNT.
func (w *Workflow) Select(ctx context.Context, kind shift.Kind, operator string) (State, error) {
	w.mu.Lock()
	if _, ok := w.state.(SelectState); !ok {
		defer w.mu.Unlock()
		return w.state, w.invalid("select")
	}
	w.mu.Unlock()

	sh, err := w.engine.OpenShift(ctx, shift.OpenShiftInput{Kind: kind, InitialCash: w.defaultFloat, OpenedBy: operator})

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.state.(SelectState); !ok {
		return w.state, w.invalid("select")
	}
	if err != nil {
		w.state = SelectState{Err: err}
		return w.state, err
	}
	w.state = CountState{Shift: sh}
	return w.state, nil
}

// SubmitCount validates the blind count and previews the variance. Any failure
// keeps the machine in COUNT with the typed values.
func (w *Workflow) SubmitCount(ctx context.Context, cash, card string) (State, error) {
	w.mu.Lock()
	current, ok := w.state.(CountState)
	if !ok {
		defer w.mu.Unlock()
		return w.state, w.invalid("submit count")
	}
	w.mu.Unlock()

	count := CountState{Shift: current.Shift, Cash: cash, Card: card}
	cashAmount, cardAmount, err := parseCount(cash, card)
	var v shift.Variance
	if err == nil {
		v, err = w.engine.PreviewVariance(ctx, current.Shift, cashAmount, cardAmount)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.state.(CountState); !ok {
		return w.state, w.invalid("submit count")
	}
	if err != nil {
		count.Err = err
		w.state = count
		return w.state, err
	}
	w.state = ReviewState{Shift: current.Shift, Cash: cash, Card: card, Variance: v}
	return w.state, nil
}

// Back steps COUNT to SELECT and REVIEW to COUNT. The shift stays open.
func (w *Workflow) Back() (State, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitting {
		return w.state, ErrSubmitInFlight
	}
	switch s := w.state.(type) {
	case CountState:
		w.state = SelectState{}
	case ReviewState:
		w.state = CountState{Shift: s.Shift, Cash: s.Cash, Card: s.Card}
	default:
		return w.state, w.invalid("back")
	}
	return w.state, nil
}

// Finalize closes the shift with fresh totals and moves to FINALIZE. A second
// call while the first is in flight fails with ErrSubmitInFlight.
func (w *Workflow) Finalize(ctx context.Context, notes, operator string) (State, error) {
	w.mu.Lock()
	if w.submitting {
		defer w.mu.Unlock()
		return w.state, ErrSubmitInFlight
	}
	review, ok := w.state.(ReviewState)
	if !ok {
		defer w.mu.Unlock()
		return w.state, w.invalid("finalize")
	}
	notes = strings.TrimSpace(notes)
	if review.NotesRequired() && notes == "" {
		review.Err = ErrNotesRequired
		w.state = review
		defer w.mu.Unlock()
		return w.state, ErrNotesRequired
	}
	w.submitting = true
	w.mu.Unlock()

	closed, err := w.engine.CloseShift(ctx, shift.CloseShiftInput{
		ShiftID:      review.Shift.ID,
		DeclaredCash: review.Variance.DeclaredCash.InexactFloat64(),
		DeclaredCard: review.Variance.DeclaredCard.InexactFloat64(),
		Notes:        notes,
		ClosedBy:     operator,
	})

	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting = false
	switch {
	case err == nil:
		if !closed.Difference.Equal(review.Variance.TotalDiff) {
			w.logger.Warn("difference changed between review and close",
				slog.String("shift_id", closed.ID),
				slog.String("reviewed", review.Variance.TotalDiff.StringFixed(2)),
				slog.String("closed", closed.Difference.StringFixed(2)),
			)
		}
		w.state = FinalizeState{Shift: closed}
		return w.state, nil
	case errors.Is(err, sales.ErrFeedUnavailable):
		w.state = CountState{Shift: review.Shift, Cash: review.Cash, Card: review.Card, Err: err}
	case errors.Is(err, shift.ErrAlreadyClosed), errors.Is(err, shift.ErrShiftNotFound):
		w.state = SelectState{Err: err}
	default:
		review.Err = err
		w.state = review
	}
	return w.state, err
}

// EmitReceipt invokes the receipt emitter for the closed shift. The receipt counts
// as emitted once invoked; the emitter's error is returned to the caller.
func (w *Workflow) EmitReceipt(ctx context.Context) (State, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	final, ok := w.state.(FinalizeState)
	if !ok {
		return w.state, w.invalid("emit receipt")
	}
	var err error
	if w.emitter != nil {
		err = w.emitter.Emit(ctx, final.Shift)
	}
	if err != nil {
		w.logger.Warn("receipt emitter failed", slog.String("shift_id", final.Shift.ID), slog.Any("error", err))
	}
	final.ReceiptEmitted = true
	final.ReceiptErr = err
	w.state = final
	return w.state, err
}

// Exit leaves the workflow. It is refused in FINALIZE until the receipt was
// emitted and while a close is in flight. Leaving earlier persists nothing
// beyond the shift opened in SELECT.
func (w *Workflow) Exit() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitting {
		return ErrSubmitInFlight
	}
	if final, ok := w.state.(FinalizeState); ok && !final.ReceiptEmitted {
		return ErrReceiptPending
	}
	w.state = SelectState{}
	return nil
}

func (w *Workflow) invalid(action string) error {
	return fmt.Errorf("%w: cannot %s in %s", ErrInvalidTransition, action, w.state.Step())
}

// parseCount reads the operator's blind count. Empty fields count as zero; a comma
// is accepted as decimal separator.
func parseCount(cash, card string) (float64, float64, error) {
	c, err := parseAmount(cash)
	if err != nil {
		return 0, 0, fmt.Errorf("cash: %w", err)
	}
	k, err := parseAmount(card)
	if err != nil {
		return 0, 0, fmt.Errorf("card: %w", err)
	}
	return c, k, nil
}

func parseAmount(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if !strings.Contains(raw, ".") {
		raw = strings.Replace(raw, ",", ".", 1)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", shift.ErrInvalidDeclaration, raw)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: %s is negative", shift.ErrInvalidDeclaration, d.String())
	}
	return d.Round(2).InexactFloat64(), nil
}
