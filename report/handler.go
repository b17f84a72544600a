package report

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-pos/internal/receipt"
	"github.com/odyssey-erp/odyssey-pos/internal/shift"
)

// ShiftLoader resolves a shift by id.
type ShiftLoader interface {
	GetShift(ctx context.Context, id string) (shift.Shift, error)
}

// ZReportRenderer produces the PDF of a closed shift.
type ZReportRenderer interface {
	PDF(ctx context.Context, s shift.Shift) ([]byte, error)
}

// Handler manages report endpoints.
type Handler struct {
	client   *Client
	shifts   ShiftLoader
	renderer ZReportRenderer
	logger   *slog.Logger
}

// NewHandler creates a report handler.
func NewHandler(client *Client, shifts ShiftLoader, renderer ZReportRenderer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{client: client, shifts: shifts, renderer: renderer, logger: logger}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ping", h.ping)
	r.Get("/shifts/{id}/zreport.pdf", h.zreport)
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	if err := h.client.Ping(r.Context()); err != nil {
		h.logger.Warn("gotenberg ping failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (h *Handler) zreport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sh, err := h.shifts.GetShift(r.Context(), id)
	if err != nil {
		if errors.Is(err, shift.ErrShiftNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("load shift for z-report", slog.String("shift_id", id), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	pdf, err := h.renderer.PDF(r.Context(), sh)
	if err != nil {
		if errors.Is(err, receipt.ErrShiftOpen) {
			http.Error(w, "shift is still open", http.StatusConflict)
			return
		}
		h.logger.Error("render z-report", slog.String("shift_id", id), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline; filename=zreport-"+sh.ID+".pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
