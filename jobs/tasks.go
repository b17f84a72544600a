package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-pos/internal/jobs"
	"github.com/odyssey-erp/odyssey-pos/internal/receipt"
	"github.com/odyssey-erp/odyssey-pos/internal/shift"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeShiftReceipt renders and stores the Z-report of a closed shift.
	TaskTypeShiftReceipt = "shift:receipt"
)

// ShiftReceiptPayload identifies the closed shift to print.
type ShiftReceiptPayload struct {
	ShiftID string `json:"shift_id"`
}

// NewShiftReceiptTask constructs an Asynq task. Tasks are unique per shift so a
// double click on "print" does not produce two documents.
func NewShiftReceiptTask(payload ShiftReceiptPayload) (*asynq.Task, error) {
	if strings.TrimSpace(payload.ShiftID) == "" {
		return nil, fmt.Errorf("%w: id required", shift.ErrShiftNotFound)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeShiftReceipt, data, asynq.TaskID("receipt:"+payload.ShiftID)), nil
}

// ShiftLoader resolves a shift by id.
type ShiftLoader interface {
	GetShift(ctx context.Context, id string) (shift.Shift, error)
}

// ShiftReceiptJob handles TaskTypeShiftReceipt tasks.
type ShiftReceiptJob struct {
	Shifts  ShiftLoader
	Emitter receipt.Emitter
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewShiftReceiptJob initialises the receipt handler.
func NewShiftReceiptJob(shifts ShiftLoader, emitter receipt.Emitter, logger *slog.Logger, metrics *jobmetrics.Metrics) *ShiftReceiptJob {
	return &ShiftReceiptJob{Shifts: shifts, Emitter: emitter, Logger: logger, Metrics: metrics}
}

// Handle loads the shift and emits its Z-report. Unknown or still open shifts are
// not retried.
func (j *ShiftReceiptJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Shifts == nil || j.Emitter == nil {
		return errors.New("shift receipt: handler not configured")
	}
	var payload ShiftReceiptPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.ShiftID == "" {
		return asynq.SkipRetry
	}
	tracker := j.Metrics.Track(TaskTypeShiftReceipt)
	defer func() {
		err = tracker.End(err)
	}()

	logger := j.logger().With(slog.String("shift_id", payload.ShiftID))
	sh, err := j.Shifts.GetShift(ctx, payload.ShiftID)
	if err != nil {
		if errors.Is(err, shift.ErrShiftNotFound) {
			logger.Warn("receipt for unknown shift")
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	if err := j.Emitter.Emit(ctx, sh); err != nil {
		if errors.Is(err, receipt.ErrShiftOpen) {
			logger.Warn("receipt for open shift")
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		logger.Error("emit receipt", slog.Any("error", err))
		return err
	}
	j.Metrics.ReceiptEmitted(string(sh.Kind))
	logger.Info("receipt emitted", slog.String("kind", string(sh.Kind)))
	return nil
}

func (j *ShiftReceiptJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}

// Enqueuer submits tasks to the queue.
type Enqueuer interface {
	EnqueueShiftReceipt(ctx context.Context, payload ShiftReceiptPayload) (*asynq.TaskInfo, error)
}

// QueueEmitter hands receipt emission to the worker.
type QueueEmitter struct {
	queue Enqueuer
}

// NewQueueEmitter constructs a receipt emitter backed by the job queue.
func NewQueueEmitter(queue Enqueuer) *QueueEmitter {
	return &QueueEmitter{queue: queue}
}

// Emit enqueues the receipt task. A task already queued for the shift counts as emitted.
func (e *QueueEmitter) Emit(ctx context.Context, s shift.Shift) error {
	if s.IsOpen() {
		return fmt.Errorf("%w: %s", receipt.ErrShiftOpen, s.ID)
	}
	if _, err := e.queue.EnqueueShiftReceipt(ctx, ShiftReceiptPayload{ShiftID: s.ID}); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("jobs: enqueue receipt: %w", err)
	}
	return nil
}
