package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-pos/internal/jobs"
	"github.com/odyssey-erp/odyssey-pos/internal/shift"
)

// TaskTypeStaleShiftCheck warns about a till left open past its expected length.
const TaskTypeStaleShiftCheck = "shift:stale-check"

// NewStaleShiftCheckTask constructs the periodic task.
func NewStaleShiftCheckTask() *asynq.Task {
	return asynq.NewTask(TaskTypeStaleShiftCheck, nil)
}

// OpenShiftReader returns the open shift, or nil.
type OpenShiftReader interface {
	CurrentOpen(ctx context.Context) (*shift.Shift, error)
}

// StaleShiftJob logs a warning when the open shift exceeds MaxAge.
type StaleShiftJob struct {
	Shifts  OpenShiftReader
	MaxAge  time.Duration
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewStaleShiftJob initialises the stale shift check.
func NewStaleShiftJob(shifts OpenShiftReader, maxAge time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *StaleShiftJob {
	return &StaleShiftJob{Shifts: shifts, MaxAge: maxAge, Logger: logger, Metrics: metrics, clock: time.Now}
}

// Handle runs Check for the scheduler.
func (j *StaleShiftJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	_, err = j.Check(ctx)
	return err
}

// Check returns the open shift when it is older than MaxAge.
func (j *StaleShiftJob) Check(ctx context.Context) (stale *shift.Shift, err error) {
	if j == nil || j.Shifts == nil {
		return nil, errors.New("stale shift: handler not configured")
	}
	tracker := j.Metrics.Track(TaskTypeStaleShiftCheck)
	defer func() {
		err = tracker.End(err)
	}()

	current, err := j.Shifts.CurrentOpen(ctx)
	if err != nil || current == nil || j.MaxAge <= 0 {
		return nil, err
	}
	age := j.now().Sub(current.OpenedAt)
	if age <= j.MaxAge {
		return nil, nil
	}
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("shift open past expected length",
		slog.String("shift_id", current.ID),
		slog.String("kind", string(current.Kind)),
		slog.Duration("age", age),
	)
	return current, nil
}

func (j *StaleShiftJob) now() time.Time {
	if j.clock == nil {
		return time.Now()
	}
	return j.clock()
}
