package shift

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/db"
)

//go:embed schema.sql
var schemaSQL string

const shiftColumns = `id::text, kind, status, opened_at, closed_at, opened_by, closed_by,
	initial_cash, sales_cash, sales_card, order_count,
	expected_cash, expected_card, declared_cash, declared_card, difference, notes`

const upsertShiftSQL = `
INSERT INTO shifts (id, kind, status, opened_at, closed_at, opened_by, closed_by,
	initial_cash, sales_cash, sales_card, order_count,
	expected_cash, expected_card, declared_cash, declared_card, difference, notes, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
ON CONFLICT (id) DO UPDATE SET
	status = EXCLUDED.status,
	closed_at = EXCLUDED.closed_at,
	closed_by = EXCLUDED.closed_by,
	sales_cash = EXCLUDED.sales_cash,
	sales_card = EXCLUDED.sales_card,
	order_count = EXCLUDED.order_count,
	expected_cash = EXCLUDED.expected_cash,
	expected_card = EXCLUDED.expected_card,
	declared_cash = EXCLUDED.declared_cash,
	declared_card = EXCLUDED.declared_card,
	difference = EXCLUDED.difference,
	notes = EXCLUDED.notes,
	updated_at = EXCLUDED.updated_at`

// uniqueViolation is the SQLSTATE raised by shifts_single_open_idx.
const uniqueViolation = "23505"

// Repository persists shifts in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository using the provided pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema creates the shifts table and indexes when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if r == nil || r.pool == nil {
		return fmt.Errorf("shift: repository not initialised")
	}
	_, err := r.pool.Exec(ctx, schemaSQL)
	return err
}

// WithTx executes fn inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	if r == nil || r.pool == nil {
		return fmt.Errorf("shift: repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, tx)
	})
}

// List returns every shift, newest first.
func (r *Repository) List(ctx context.Context) ([]Shift, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+shiftColumns+` FROM shifts ORDER BY opened_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("shift: list shifts: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Shift, error) {
		return scanShift(row)
	})
}

// Get loads a shift by id.
func (r *Repository) Get(ctx context.Context, id string) (Shift, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE id::text = $1`, id)
	s, err := scanShift(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Shift{}, ErrShiftNotFound
		}
		return Shift{}, err
	}
	return s, nil
}

// CurrentOpen returns the open shift if any.
func (r *Repository) CurrentOpen(ctx context.Context) (*Shift, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE status = 'OPEN' LIMIT 1`)
	s, err := scanShift(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// Put upserts s by id. A CLOSED row is locked and never rewritten.
func (r *Repository) Put(ctx context.Context, s Shift) error {
	return r.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx, `SELECT status FROM shifts WHERE id::text = $1 FOR UPDATE`, s.ID).Scan(&status)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
		case err != nil:
			return err
		case Status(status) == StatusClosed:
			return ErrAlreadyClosed
		}
		_, err = tx.Exec(ctx, upsertShiftSQL,
			s.ID, string(s.Kind), string(s.Status), s.OpenedAt, s.ClosedAt, s.OpenedBy, nullableText(s.ClosedBy),
			s.InitialCash, s.SalesCash, s.SalesCard, s.OrderCount,
			s.ExpectedCash, s.ExpectedCard, s.DeclaredCash, s.DeclaredCard, s.Difference, nullableText(s.Notes),
			time.Now(),
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return ErrShiftAlreadyOpen
			}
			return err
		}
		return nil
	})
}

func scanShift(row pgx.Row) (Shift, error) {
	var (
		s        Shift
		kind     string
		status   string
		closedBy *string
		notes    *string
	)
	err := row.Scan(
		&s.ID, &kind, &status, &s.OpenedAt, &s.ClosedAt, &s.OpenedBy, &closedBy,
		&s.InitialCash, &s.SalesCash, &s.SalesCard, &s.OrderCount,
		&s.ExpectedCash, &s.ExpectedCard, &s.DeclaredCash, &s.DeclaredCard, &s.Difference, &notes,
	)
	if err != nil {
		return Shift{}, err
	}
	s.Kind = Kind(kind)
	s.Status = Status(status)
	if closedBy != nil {
		s.ClosedBy = *closedBy
	}
	if notes != nil {
		s.Notes = *notes
	}
	return s, nil
}

func nullableText(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
