package workflow

import (
	"errors"

	"github.com/odyssey-erp/odyssey-pos/internal/shift"
)

// Step names a state of the close protocol.
type Step string

const (
	StepSelect   Step = "SELECT"
	StepCount    Step = "COUNT"
	StepReview   Step = "REVIEW"
	StepFinalize Step = "FINALIZE"
)

// State is one of SelectState, CountState, ReviewState or FinalizeState.
type State interface {
	Step() Step
	isState()
}

// SelectState waits for the operator to pick the shift kind.
type SelectState struct {
	Err error
}

// CountState holds the shift being closed and the blind count typed so far.
type CountState struct {
	Shift shift.Shift
	Cash  string
	Card  string
	Err   error
}

// ReviewState shows the variance of the submitted count.
type ReviewState struct {
	Shift    shift.Shift
	Cash     string
	Card     string
	Variance shift.Variance
	Err      error
}

// NotesRequired reports whether proceeding needs a justification.
func (s ReviewState) NotesRequired() bool {
	return !s.Variance.Balanced()
}

// FinalizeState exposes the closed record until the receipt is emitted.
type FinalizeState struct {
	Shift          shift.Shift
	ReceiptEmitted bool
	ReceiptErr     error
}

func (SelectState) Step() Step   { return StepSelect }
func (CountState) Step() Step    { return StepCount }
func (ReviewState) Step() Step   { return StepReview }
func (FinalizeState) Step() Step { return StepFinalize }

func (SelectState) isState()   {}
func (CountState) isState()    {}
func (ReviewState) isState()   {}
func (FinalizeState) isState() {}

var (
	// ErrInvalidTransition indicates the action is not allowed in the current step.
	ErrInvalidTransition = errors.New("workflow: invalid transition")
	// ErrNotesRequired indicates a non-zero difference without a justification.
	ErrNotesRequired = errors.New("workflow: notes required when the count does not match")
	// ErrSubmitInFlight indicates a close is already being submitted.
	ErrSubmitInFlight = errors.New("workflow: close already in progress")
	// ErrReceiptPending indicates exit was attempted before the receipt was emitted.
	ErrReceiptPending = errors.New("workflow: receipt must be emitted before leaving")
	// ErrSessionNotFound indicates an unknown workflow session id.
	ErrSessionNotFound = errors.New("workflow: session not found")
)
