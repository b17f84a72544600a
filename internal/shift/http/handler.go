package shifthttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-pos/internal/archive"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-pos/internal/receipt"
	"github.com/odyssey-erp/odyssey-pos/internal/sales"
	"github.com/odyssey-erp/odyssey-pos/internal/shift"
	"github.com/odyssey-erp/odyssey-pos/internal/workflow"
)

// ShiftReader exposes the read side of the reconciliation service.
type ShiftReader interface {
	CurrentOpen(ctx context.Context) (*shift.Shift, error)
	GetShift(ctx context.Context, id string) (shift.Shift, error)
}

// ArchiveViewer renders the labelled archive.
type ArchiveViewer interface {
	View(ctx context.Context, chronological bool) ([]archive.MonthView, error)
}

// Handler adapts the close workflow to JSON over HTTP.
type Handler struct {
	shifts    ShiftReader
	sessions  *workflow.Registry
	archive   ArchiveViewer
	validator *validator.Validate
	logger    *slog.Logger
	rateLimit func(http.Handler) http.Handler
}

// NewHandler constructs the handler. ratePerMinute bounds mutating calls per client IP.
func NewHandler(shifts ShiftReader, sessions *workflow.Registry, viewer ArchiveViewer, logger *slog.Logger, ratePerMinute int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if ratePerMinute <= 0 {
		ratePerMinute = 60
	}
	limiter := httprate.Limit(ratePerMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "")
		}),
	)
	return &Handler{
		shifts:    shifts,
		sessions:  sessions,
		archive:   viewer,
		validator: validator.New(),
		logger:    logger,
		rateLimit: limiter,
	}
}

// MountRoutes registers the close session and shift endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/close-sessions", func(r chi.Router) {
		r.Get("/{id}", h.getSession)
		r.Group(func(r chi.Router) {
			r.Use(h.rateLimit)
			r.Post("/", h.startSession)
			r.Post("/{id}/select", h.selectKind)
			r.Post("/{id}/count", h.submitCount)
			r.Post("/{id}/back", h.back)
			r.Post("/{id}/finalize", h.finalize)
			r.Post("/{id}/receipt", h.emitReceipt)
			r.Post("/{id}/exit", h.exit)
		})
	})
	r.Route("/shifts", func(r chi.Router) {
		r.Get("/current", h.currentShift)
		r.Get("/archive", h.archiveView)
		r.Get("/{id}", h.getShift)
	})
}

type selectRequest struct {
	Kind     string `json:"kind" validate:"required,oneof=MORNING NIGHT morning night"`
	Operator string `json:"operator" validate:"max=64"`
}

type countRequest struct {
	Cash string `json:"cash" validate:"max=32"`
	Card string `json:"card" validate:"max=32"`
}

type finalizeRequest struct {
	Notes    string `json:"notes" validate:"max=500"`
	Operator string `json:"operator" validate:"max=64"`
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	id, wf := h.sessions.Start()
	w.Header().Set("Location", "/close-sessions/"+id)
	httpx.JSON(w, http.StatusCreated, snapshot(id, wf))
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	id, wf, ok := h.session(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, snapshot(id, wf))
}

func (h *Handler) selectKind(w http.ResponseWriter, r *http.Request) {
	id, wf, ok := h.session(w, r)
	if !ok {
		return
	}
	var req selectRequest
	if !h.decode(w, r, &req) {
		return
	}
	kind, err := shift.ParseKind(req.Kind)
	if err != nil {
		h.fail(w, err)
		return
	}
	if _, err := wf.Select(r.Context(), kind, req.Operator); err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snapshot(id, wf))
}

func (h *Handler) submitCount(w http.ResponseWriter, r *http.Request) {
	id, wf, ok := h.session(w, r)
	if !ok {
		return
	}
	var req countRequest
	if !h.decode(w, r, &req) {
		return
	}
	if _, err := wf.SubmitCount(r.Context(), req.Cash, req.Card); err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snapshot(id, wf))
}

func (h *Handler) back(w http.ResponseWriter, r *http.Request) {
	id, wf, ok := h.session(w, r)
	if !ok {
		return
	}
	if _, err := wf.Back(); err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snapshot(id, wf))
}

func (h *Handler) finalize(w http.ResponseWriter, r *http.Request) {
	id, wf, ok := h.session(w, r)
	if !ok {
		return
	}
	var req finalizeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if _, err := wf.Finalize(r.Context(), req.Notes, req.Operator); err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snapshot(id, wf))
}

func (h *Handler) emitReceipt(w http.ResponseWriter, r *http.Request) {
	id, wf, ok := h.session(w, r)
	if !ok {
		return
	}
	if _, err := wf.EmitReceipt(r.Context()); err != nil && errors.Is(err, workflow.ErrInvalidTransition) {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snapshot(id, wf))
}

func (h *Handler) exit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.sessions.Exit(id); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) currentShift(w http.ResponseWriter, r *http.Request) {
	current, err := h.shifts.CurrentOpen(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	if current == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httpx.JSON(w, http.StatusOK, current)
}

func (h *Handler) getShift(w http.ResponseWriter, r *http.Request) {
	sh, err := h.shifts.GetShift(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sh)
}

func (h *Handler) archiveView(w http.ResponseWriter, r *http.Request) {
	chronological := strings.EqualFold(r.URL.Query().Get("order"), "chronological")
	months, err := h.archive.View(r.Context(), chronological)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"months": months})
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (string, *workflow.Workflow, bool) {
	id := chi.URLParam(r, "id")
	wf, err := h.sessions.Get(id)
	if err != nil {
		h.fail(w, err)
		return "", nil, false
	}
	return id, wf, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(w, r, target); err != nil {
		h.fail(w, err)
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			first := fieldErrs[0]
			err = errors.New(strings.ToLower(first.Field()) + ": failed " + first.Tag())
		}
		h.fail(w, httpx.Classify(httpx.ErrValidation, err))
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	httpx.RespondError(w, h.logger, classify(err))
}

func classify(err error) error {
	switch {
	case errors.Is(err, httpx.ErrValidation), errors.Is(err, httpx.ErrNotFound),
		errors.Is(err, httpx.ErrConflict), errors.Is(err, httpx.ErrUnavailable):
		return err
	case errors.Is(err, workflow.ErrSessionNotFound), errors.Is(err, shift.ErrShiftNotFound):
		return httpx.Classify(httpx.ErrNotFound, err)
	case errors.Is(err, shift.ErrInvalidKind), errors.Is(err, shift.ErrInvalidFloat),
		errors.Is(err, shift.ErrInvalidDeclaration), errors.Is(err, workflow.ErrNotesRequired),
		errors.Is(err, sales.ErrInvalidWindow):
		return httpx.Classify(httpx.ErrValidation, err)
	case errors.Is(err, shift.ErrShiftAlreadyOpen), errors.Is(err, shift.ErrConflictingShiftOpen),
		errors.Is(err, shift.ErrAlreadyClosed), errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrSubmitInFlight), errors.Is(err, workflow.ErrReceiptPending),
		errors.Is(err, receipt.ErrShiftOpen):
		return httpx.Classify(httpx.ErrConflict, err)
	case errors.Is(err, sales.ErrFeedUnavailable):
		return httpx.Classify(httpx.ErrUnavailable, err)
	default:
		return err
	}
}
