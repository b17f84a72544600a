package archive

import (
	"fmt"
	"sort"
	"time"

	"github.com/odyssey-erp/odyssey-pos/internal/shift"
)

// MonthKey identifies a calendar month. Keys order by date, never by label.
type MonthKey struct {
	Year  int
	Month time.Month
}

// Before reports whether k is an earlier month than o.
func (k MonthKey) Before(o MonthKey) bool {
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	return k.Month < o.Month
}

// String renders the key as YYYY-MM.
func (k MonthKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month))
}

// DayKey identifies a calendar day.
type DayKey struct {
	Year  int
	Month time.Month
	Day   int
}

// Before reports whether k is an earlier day than o.
func (k DayKey) Before(o DayKey) bool {
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	if k.Month != o.Month {
		return k.Month < o.Month
	}
	return k.Day < o.Day
}

// String renders the key as YYYY-MM-DD.
func (k DayKey) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", k.Year, int(k.Month), k.Day)
}

// Weekday returns the day of the week of k.
func (k DayKey) Weekday() time.Weekday {
	return time.Date(k.Year, k.Month, k.Day, 12, 0, 0, 0, time.UTC).Weekday()
}

// MonthKeyOf returns the month of t in loc.
func MonthKeyOf(t time.Time, loc *time.Location) MonthKey {
	y, m, _ := t.In(loc).Date()
	return MonthKey{Year: y, Month: m}
}

// DayKeyOf returns the day of t in loc.
func DayKeyOf(t time.Time, loc *time.Location) DayKey {
	y, m, d := t.In(loc).Date()
	return DayKey{Year: y, Month: m, Day: d}
}

// Day groups the closed shifts opened on one calendar day.
type Day struct {
	Key    DayKey
	Shifts []shift.Shift
}

// Month groups the days of one calendar month.
type Month struct {
	Key  MonthKey
	Days []Day
}

// Count returns the number of shifts in the month.
func (m Month) Count() int {
	n := 0
	for _, d := range m.Days {
		n += len(d.Shifts)
	}
	return n
}

// Tree is the month → day → shift archive.
type Tree struct {
	Months []Month
}

// Len returns the number of shifts in the tree.
func (t Tree) Len() int {
	n := 0
	for _, m := range t.Months {
		n += m.Count()
	}
	return n
}

// Month returns the group for k.
func (t Tree) Month(k MonthKey) (Month, bool) {
	for _, m := range t.Months {
		if m.Key == k {
			return m, true
		}
	}
	return Month{}, false
}

// Chronological returns a copy ordered oldest first at every level.
func (t Tree) Chronological() Tree {
	out := Tree{Months: make([]Month, len(t.Months))}
	for i, m := range t.Months {
		days := make([]Day, len(m.Days))
		for j, d := range m.Days {
			shifts := make([]shift.Shift, len(d.Shifts))
			for k, s := range d.Shifts {
				shifts[len(shifts)-1-k] = s
			}
			days[len(days)-1-j] = Day{Key: d.Key, Shifts: shifts}
		}
		out.Months[len(out.Months)-1-i] = Month{Key: m.Key, Days: days}
	}
	return out
}

// Index groups closed shifts by month and day of OpenedAt in loc. Months, days
// and shifts are newest first. Open shifts are left out. The input is not modified.
func Index(shifts []shift.Shift, loc *time.Location) Tree {
	if loc == nil {
		loc = time.Local
	}
	closed := make([]shift.Shift, 0, len(shifts))
	for _, s := range shifts {
		if s.Status == shift.StatusClosed {
			closed = append(closed, s)
		}
	}
	sort.SliceStable(closed, func(i, j int) bool {
		if closed[i].OpenedAt.Equal(closed[j].OpenedAt) {
			return closed[i].ID > closed[j].ID
		}
		return closed[i].OpenedAt.After(closed[j].OpenedAt)
	})

	var tree Tree
	for _, s := range closed {
		mk := MonthKeyOf(s.OpenedAt, loc)
		dk := DayKeyOf(s.OpenedAt, loc)
		if n := len(tree.Months); n == 0 || tree.Months[n-1].Key != mk {
			tree.Months = append(tree.Months, Month{Key: mk})
		}
		month := &tree.Months[len(tree.Months)-1]
		if n := len(month.Days); n == 0 || month.Days[n-1].Key != dk {
			month.Days = append(month.Days, Day{Key: dk})
		}
		day := &month.Days[len(month.Days)-1]
		day.Shifts = append(day.Shifts, s)
	}
	return tree
}
