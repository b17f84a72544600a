package receipt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/odyssey-erp/odyssey-pos/internal/shift"
)

var (
	// ErrShiftOpen indicates a Z-report was requested for a shift that is still open.
	ErrShiftOpen = errors.New("receipt: shift is still open")
)

// Emitter produces the printed record of a closed shift.
type Emitter interface {
	Emit(ctx context.Context, s shift.Shift) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, s shift.Shift) error

// Emit calls f.
func (f EmitterFunc) Emit(ctx context.Context, s shift.Shift) error {
	return f(ctx, s)
}

// WriterEmitter prints plain-text tickets to an io.Writer such as a spool file.
type WriterEmitter struct {
	mu     sync.Mutex
	w      io.Writer
	format *Formatter
}

// NewWriterEmitter constructs a WriterEmitter.
func NewWriterEmitter(w io.Writer, format *Formatter) *WriterEmitter {
	return &WriterEmitter{w: w, format: format}
}

// Emit writes the ticket followed by a blank line.
func (e *WriterEmitter) Emit(_ context.Context, s shift.Shift) error {
	z, err := Build(s, e.format)
	if err != nil {
		return err
	}
	body, err := RenderText(z)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.w.Write(append(body, '\n')); err != nil {
		return fmt.Errorf("receipt: write ticket: %w", err)
	}
	return nil
}

// PDFRenderer converts HTML into a PDF document.
type PDFRenderer interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// PDFEmitter renders Z-reports through a PDF renderer and stores them on disk.
type PDFEmitter struct {
	renderer PDFRenderer
	format   *Formatter
	dir      string
	logger   *slog.Logger
}

// NewPDFEmitter constructs a PDFEmitter writing into dir.
func NewPDFEmitter(renderer PDFRenderer, format *Formatter, dir string, logger *slog.Logger) *PDFEmitter {
	return &PDFEmitter{renderer: renderer, format: format, dir: dir, logger: logger}
}

// PDF renders the Z-report of s without storing it.
func (e *PDFEmitter) PDF(ctx context.Context, s shift.Shift) ([]byte, error) {
	z, err := Build(s, e.format)
	if err != nil {
		return nil, err
	}
	html, err := RenderHTML(z)
	if err != nil {
		return nil, err
	}
	pdf, err := e.renderer.RenderHTML(ctx, html)
	if err != nil {
		return nil, fmt.Errorf("receipt: render pdf: %w", err)
	}
	return pdf, nil
}

// Emit renders the PDF and writes it as <dir>/zreport-<id>.pdf.
func (e *PDFEmitter) Emit(ctx context.Context, s shift.Shift) error {
	pdf, err := e.PDF(ctx, s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return fmt.Errorf("receipt: prepare dir: %w", err)
	}
	path := e.Path(s.ID)
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return fmt.Errorf("receipt: store pdf: %w", err)
	}
	if e.logger != nil {
		e.logger.Info("z-report stored", slog.String("shift_id", s.ID), slog.String("path", path))
	}
	return nil
}

// Path returns where the Z-report of a shift is stored.
func (e *PDFEmitter) Path(shiftID string) string {
	return filepath.Join(e.dir, "zreport-"+filepath.Base(shiftID)+".pdf")
}
