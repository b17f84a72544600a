package archive

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-pos/internal/shift"
)

// Lister returns persisted shifts.
type Lister interface {
	ListShifts(ctx context.Context) ([]shift.Shift, error)
}

// Browser reads the archive from the shift store. It never writes.
type Browser struct {
	shifts Lister
	loc    *time.Location
	labels Labeler
	builds singleflight.Group
}

// NewBrowser constructs a Browser. A nil location means time.Local.
func NewBrowser(shifts Lister, loc *time.Location, labels Labeler) *Browser {
	if loc == nil {
		loc = time.Local
	}
	return &Browser{shifts: shifts, loc: loc, labels: labels}
}

// Tree loads all shifts and indexes the closed ones. Concurrent callers share
// one store read; the returned tree must not be modified.
func (b *Browser) Tree(ctx context.Context) (Tree, error) {
	ch := b.builds.DoChan("tree", func() (interface{}, error) {
		shifts, err := b.shifts.ListShifts(context.WithoutCancel(ctx))
		if err != nil {
			return Tree{}, fmt.Errorf("archive: list shifts: %w", err)
		}
		return Index(shifts, b.loc), nil
	})
	select {
	case <-ctx.Done():
		return Tree{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Tree{}, res.Err
		}
		return res.Val.(Tree), nil
	}
}

// ShiftView is a closed shift with its display labels.
type ShiftView struct {
	shift.Shift
	Label   string `json:"label"`
	Opened  string `json:"opened"`
	Closed  string `json:"closed"`
	Outcome string `json:"outcome"`
}

// DayView is a labelled day group.
type DayView struct {
	Key    string      `json:"key"`
	Label  string      `json:"label"`
	Count  string      `json:"count"`
	Shifts []ShiftView `json:"shifts"`
}

// MonthView is a labelled month group.
type MonthView struct {
	Key   string    `json:"key"`
	Label string    `json:"label"`
	Count string    `json:"count"`
	Days  []DayView `json:"days"`
}

// View loads the archive with labels. When chronological is set the result is
// ordered oldest first.
func (b *Browser) View(ctx context.Context, chronological bool) ([]MonthView, error) {
	tree, err := b.Tree(ctx)
	if err != nil {
		return nil, err
	}
	if chronological {
		tree = tree.Chronological()
	}
	return b.Render(tree), nil
}

// Render attaches labels to a tree.
func (b *Browser) Render(tree Tree) []MonthView {
	months := make([]MonthView, 0, len(tree.Months))
	for _, m := range tree.Months {
		mv := MonthView{
			Key:   m.Key.String(),
			Label: b.labels.Month(m.Key),
			Count: b.labels.Closures(m.Count()),
			Days:  make([]DayView, 0, len(m.Days)),
		}
		for _, d := range m.Days {
			dv := DayView{
				Key:    d.Key.String(),
				Label:  b.labels.Day(d.Key),
				Count:  b.labels.Shifts(len(d.Shifts)),
				Shifts: make([]ShiftView, 0, len(d.Shifts)),
			}
			for _, s := range d.Shifts {
				sv := ShiftView{
					Shift:   s,
					Label:   b.labels.Kind(s.Kind),
					Opened:  b.labels.Clock(s.OpenedAt, b.loc),
					Outcome: string(s.Outcome()),
				}
				if s.ClosedAt != nil {
					sv.Closed = b.labels.Clock(*s.ClosedAt, b.loc)
				}
				dv.Shifts = append(dv.Shifts, sv)
			}
			mv.Days = append(mv.Days, dv)
		}
		months = append(months, mv)
	}
	return months
}
