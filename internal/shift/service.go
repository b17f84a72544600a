package shift

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-pos/internal/sales"
)

// Aggregator totals completed sales for a window.
type Aggregator interface {
	Aggregate(ctx context.Context, window sales.Window) (sales.Totals, error)
}

// Recorder receives lifecycle events, typically Prometheus counters.
type Recorder interface {
	ShiftOpened(kind string)
	ShiftClosed(kind, outcome string, difference float64)
}

const unknownOperator = "Unknown"

// Service orchestrates the shift lifecycle over a Store and the sales feed.
type Service struct {
	store    Store
	sales    Aggregator
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
	newID    func() string

	openMu  sync.Mutex
	closing keyedMutex
}

// NewService constructs a Service instance.
func NewService(store Store, aggregator Aggregator, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		sales:  aggregator,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithRecorder attaches a metrics recorder.
func (s *Service) WithRecorder(r Recorder) {
	s.recorder = r
}

// OpenShift opens a shift of the requested kind. When a shift of the same kind is
// already open it is returned unchanged so an in-progress count is never discarded.
func (s *Service) OpenShift(ctx context.Context, in OpenShiftInput) (Shift, error) {
	if err := in.Validate(); err != nil {
		return Shift{}, err
	}
	initial, _ := amount(in.InitialCash, ErrInvalidFloat)

	s.openMu.Lock()
	defer s.openMu.Unlock()

	current, err := s.store.CurrentOpen(ctx)
	if err != nil {
		return Shift{}, fmt.Errorf("shift: load open shift: %w", err)
	}
	if current != nil {
		return s.resume(*current, in.Kind)
	}

	opened := Shift{
		ID:          s.newID(),
		Kind:        in.Kind,
		Status:      StatusOpen,
		OpenedAt:    s.now(),
		OpenedBy:    operatorOrUnknown(in.OpenedBy),
		InitialCash: initial,
	}
	if err := s.store.Put(ctx, opened); err != nil {
		if errors.Is(err, ErrShiftAlreadyOpen) {
			current, lerr := s.store.CurrentOpen(ctx)
			if lerr == nil && current != nil {
				return s.resume(*current, in.Kind)
			}
		}
		return Shift{}, fmt.Errorf("shift: persist opened shift: %w", err)
	}
	s.log().Info("shift opened",
		slog.String("shift_id", opened.ID),
		slog.String("kind", string(opened.Kind)),
		slog.String("initial_cash", opened.InitialCash.StringFixed(2)),
	)
	if s.recorder != nil {
		s.recorder.ShiftOpened(string(opened.Kind))
	}
	return opened, nil
}

func (s *Service) resume(current Shift, kind Kind) (Shift, error) {
	if current.Kind != kind {
		return Shift{}, fmt.Errorf("%w: %s shift %s opened at %s", ErrConflictingShiftOpen, current.Kind, current.ID, current.OpenedAt.Format(time.RFC3339))
	}
	s.log().Info("shift resumed", slog.String("shift_id", current.ID), slog.String("kind", string(current.Kind)))
	return current, nil
}

// PreviewVariance compares a blind count with sales up to now. It never mutates
// or persists anything and may be called repeatedly while the shift is open.
func (s *Service) PreviewVariance(ctx context.Context, sh Shift, declaredCash, declaredCard float64) (Variance, error) {
	if err := validateDeclaration(declaredCash, declaredCard); err != nil {
		return Variance{}, err
	}
	if !sh.IsOpen() {
		return Variance{}, ErrAlreadyClosed
	}
	now := s.now()
	totals, err := s.sales.Aggregate(ctx, sh.Window(now))
	if err != nil {
		return Variance{}, err
	}
	cash, _ := amount(declaredCash, ErrInvalidDeclaration)
	card, _ := amount(declaredCard, ErrInvalidDeclaration)
	v := ComputeVariance(sh.InitialCash, totals, cash, card)
	v.WindowEnd = now
	return v, nil
}

// CloseShift re-aggregates the shift window, fixes ClosedAt and persists the
// immutable record. Closes of the same id run one at a time; every caller after
// the first gets ErrAlreadyClosed.
func (s *Service) CloseShift(ctx context.Context, in CloseShiftInput) (Shift, error) {
	if err := in.Validate(); err != nil {
		return Shift{}, err
	}
	unlock := s.closing.Lock(in.ShiftID)
	defer unlock()
	return s.closeShift(ctx, in)
}

func (s *Service) closeShift(ctx context.Context, in CloseShiftInput) (Shift, error) {
	sh, err := s.store.Get(ctx, in.ShiftID)
	if err != nil {
		if errors.Is(err, ErrShiftNotFound) {
			return Shift{}, fmt.Errorf("%w: %s", ErrShiftNotFound, in.ShiftID)
		}
		return Shift{}, fmt.Errorf("shift: load shift: %w", err)
	}
	if !sh.IsOpen() {
		return Shift{}, fmt.Errorf("%w: %s", ErrAlreadyClosed, sh.ID)
	}

	closedAt := s.now()
	totals, err := s.sales.Aggregate(ctx, sh.Window(closedAt))
	if err != nil {
		return Shift{}, err
	}
	cash, _ := amount(in.DeclaredCash, ErrInvalidDeclaration)
	card, _ := amount(in.DeclaredCard, ErrInvalidDeclaration)
	v := ComputeVariance(sh.InitialCash, totals, cash, card)

	closed := applyClose(sh, v, strings.TrimSpace(in.Notes), operatorOrUnknown(in.ClosedBy), closedAt)
	if err := s.store.Put(ctx, closed); err != nil {
		return Shift{}, fmt.Errorf("shift: persist closed shift: %w", err)
	}

	diff, _ := closed.Difference.Float64()
	s.log().Info("shift closed",
		slog.String("shift_id", closed.ID),
		slog.String("kind", string(closed.Kind)),
		slog.String("expected_cash", closed.ExpectedCash.StringFixed(2)),
		slog.String("expected_card", closed.ExpectedCard.StringFixed(2)),
		slog.String("difference", closed.Difference.StringFixed(2)),
		slog.Int("orders", closed.OrderCount),
	)
	if s.recorder != nil {
		s.recorder.ShiftClosed(string(closed.Kind), string(closed.Outcome()), diff)
	}
	return closed, nil
}

// CurrentOpen returns the open shift, or nil.
func (s *Service) CurrentOpen(ctx context.Context) (*Shift, error) {
	return s.store.CurrentOpen(ctx)
}

// GetShift loads a shift by id.
func (s *Service) GetShift(ctx context.Context, id string) (Shift, error) {
	return s.store.Get(ctx, id)
}

// ListShifts returns all shifts, newest first.
func (s *Service) ListShifts(ctx context.Context) ([]Shift, error) {
	shifts, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(shifts)
	return shifts, nil
}

func (s *Service) log() *slog.Logger {
	if s.logger == nil {
		return slog.Default()
	}
	return s.logger
}

// keyedMutex serializes work per key and drops idle entries.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func operatorOrUnknown(name string) string {
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		return trimmed
	}
	return unknownOperator
}
