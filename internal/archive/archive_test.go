package archive

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/odyssey-pos/internal/shift"
)

func closed(id string, kind shift.Kind, openedAt time.Time) shift.Shift {
	closedAt := openedAt.Add(7 * time.Hour)
	return shift.Shift{ID: id, Kind: kind, Status: shift.StatusClosed, OpenedAt: openedAt, ClosedAt: &closedAt}
}

func at(month time.Month, day, hour int) time.Time {
	return time.Date(2025, month, day, hour, 0, 0, 0, time.UTC)
}

func TestIndexSpanningTwoMonths(t *testing.T) {
	shifts := []shift.Shift{
		closed("feb-27-m", shift.KindMorning, at(time.February, 27, 8)),
		closed("mar-04-n", shift.KindNight, at(time.March, 4, 16)),
		closed("mar-01-m", shift.KindMorning, at(time.March, 1, 8)),
		closed("mar-04-m", shift.KindMorning, at(time.March, 4, 8)),
		closed("feb-28-n", shift.KindNight, at(time.February, 28, 16)),
		{ID: "open", Kind: shift.KindMorning, Status: shift.StatusOpen, OpenedAt: at(time.March, 5, 8)},
	}

	tree := Index(shifts, time.UTC)

	require.Len(t, tree.Months, 2)
	assert.Equal(t, MonthKey{2025, time.March}, tree.Months[0].Key)
	assert.Equal(t, MonthKey{2025, time.February}, tree.Months[1].Key)
	assert.Equal(t, 5, tree.Len())

	march := tree.Months[0]
	require.Len(t, march.Days, 2)
	assert.Equal(t, 4, march.Days[0].Key.Day)
	assert.Equal(t, 1, march.Days[1].Key.Day)
	require.Len(t, march.Days[0].Shifts, 2)
	assert.Equal(t, "mar-04-n", march.Days[0].Shifts[0].ID)
	assert.Equal(t, "mar-04-m", march.Days[0].Shifts[1].ID)

	feb, ok := tree.Month(MonthKey{2025, time.February})
	require.True(t, ok)
	assert.Equal(t, 2, feb.Count())
	assert.Equal(t, "feb-28-n", feb.Days[0].Shifts[0].ID)

	_, ok = tree.Month(MonthKey{2025, time.January})
	assert.False(t, ok)
}

func TestIndexOrdersByDateNotLabel(t *testing.T) {
	// "diciembre" sorts before "enero" as text.
	shifts := []shift.Shift{
		closed("dec", shift.KindMorning, time.Date(2024, time.December, 30, 8, 0, 0, 0, time.UTC)),
		closed("jan", shift.KindMorning, time.Date(2025, time.January, 2, 8, 0, 0, 0, time.UTC)),
		closed("sep", shift.KindMorning, time.Date(2024, time.September, 2, 8, 0, 0, 0, time.UTC)),
	}
	tree := Index(shifts, time.UTC)
	require.Len(t, tree.Months, 3)
	assert.Equal(t, "2025-01", tree.Months[0].Key.String())
	assert.Equal(t, "2024-12", tree.Months[1].Key.String())
	assert.Equal(t, "2024-09", tree.Months[2].Key.String())
}

func TestIndexUsesOperatorCalendar(t *testing.T) {
	madrid, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)
	// 23:30 UTC on the last day of March is already April 1st in Madrid.
	s := closed("late", shift.KindNight, time.Date(2025, time.March, 31, 23, 30, 0, 0, time.UTC))

	utc := Index([]shift.Shift{s}, time.UTC)
	local := Index([]shift.Shift{s}, madrid)

	assert.Equal(t, time.March, utc.Months[0].Key.Month)
	assert.Equal(t, time.April, local.Months[0].Key.Month)
	assert.Equal(t, 1, local.Months[0].Days[0].Key.Day)
}

func TestIndexDoesNotMutateInput(t *testing.T) {
	shifts := []shift.Shift{
		closed("a", shift.KindMorning, at(time.March, 1, 8)),
		closed("b", shift.KindMorning, at(time.March, 2, 8)),
	}
	_ = Index(shifts, time.UTC)
	assert.Equal(t, "a", shifts[0].ID)
	assert.Equal(t, "b", shifts[1].ID)
}

func TestChronological(t *testing.T) {
	shifts := []shift.Shift{
		closed("feb", shift.KindMorning, at(time.February, 3, 8)),
		closed("mar-m", shift.KindMorning, at(time.March, 4, 8)),
		closed("mar-n", shift.KindNight, at(time.March, 4, 16)),
	}
	tree := Index(shifts, time.UTC)
	chrono := tree.Chronological()

	require.Len(t, chrono.Months, 2)
	assert.Equal(t, time.February, chrono.Months[0].Key.Month)
	assert.Equal(t, "mar-m", chrono.Months[1].Days[0].Shifts[0].ID)
	assert.Equal(t, "mar-n", chrono.Months[1].Days[0].Shifts[1].ID)
	assert.Equal(t, "mar-n", tree.Months[0].Days[0].Shifts[0].ID, "original tree untouched")
}

func TestSpanishLabels(t *testing.T) {
	l := NewLabeler(language.Spanish)
	assert.Equal(t, "marzo de 2025", l.Month(MonthKey{2025, time.March}))
	assert.Equal(t, "martes 4", l.Day(DayKey{2025, time.March, 4}))
	assert.Equal(t, "1 cierre registrado", l.Closures(1))
	assert.Equal(t, "3 cierres registrados", l.Closures(3))
	assert.Equal(t, "2 turnos", l.Shifts(2))
	assert.Equal(t, "Turno Mañana", l.Kind(shift.KindMorning))
}

func TestLabelerFallsBackToSpanish(t *testing.T) {
	assert.Equal(t, "March 2025", ParseLabeler("en-GB").Month(MonthKey{2025, time.March}))
	assert.Equal(t, "marzo de 2025", ParseLabeler("fr").Month(MonthKey{2025, time.March}))
	assert.Equal(t, "marzo de 2025", ParseLabeler("not a tag!").Month(MonthKey{2025, time.March}))
}

func TestEnglishLabelsUseCLDRNames(t *testing.T) {
	l := NewLabeler(language.English)
	assert.Equal(t, "Tuesday 4", l.Day(DayKey{2025, time.March, 4}))
	assert.Equal(t, "1 closure", l.Closures(1))
	assert.Equal(t, "0 closures", l.Closures(0))
	assert.Equal(t, "Night shift", l.Kind(shift.KindNight))
}

func TestZeroLabelerRendersSpanish(t *testing.T) {
	var l Labeler
	assert.Equal(t, "diciembre de 2024", l.Month(MonthKey{2024, time.December}))
	assert.Equal(t, "sábado 1", l.Day(DayKey{2025, time.March, 1}))
	assert.Equal(t, "1 turno", l.Shifts(1))
}

type gatedLister struct {
	calls   atomic.Int32
	release chan struct{}
	shifts  []shift.Shift
}

func (g *gatedLister) ListShifts(context.Context) ([]shift.Shift, error) {
	g.calls.Add(1)
	<-g.release
	return g.shifts, nil
}

func TestBrowserSharesConcurrentReads(t *testing.T) {
	lister := &gatedLister{release: make(chan struct{}), shifts: []shift.Shift{closed("m", shift.KindMorning, at(time.March, 4, 8))}}
	b := NewBrowser(lister, time.UTC, NewLabeler(language.Spanish))

	var wg sync.WaitGroup
	views := make([][]MonthView, 4)
	for i := range views {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := b.View(context.Background(), i%2 == 0)
			assert.NoError(t, err)
			views[i] = v
		}(i)
	}
	require.Eventually(t, func() bool { return lister.calls.Load() == 1 }, time.Second, time.Millisecond)
	close(lister.release)
	wg.Wait()

	assert.LessOrEqual(t, lister.calls.Load(), int32(4))
	for _, v := range views {
		require.Len(t, v, 1)
		assert.Equal(t, "m", v[0].Days[0].Shifts[0].ID)
	}
}

func TestBrowserTreeHonoursCallerCancel(t *testing.T) {
	lister := &gatedLister{release: make(chan struct{})}
	defer close(lister.release)
	b := NewBrowser(lister, time.UTC, Labeler{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.Tree(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

type listerStub struct {
	shifts []shift.Shift
	err    error
}

func (l listerStub) ListShifts(context.Context) ([]shift.Shift, error) {
	return l.shifts, l.err
}

func TestBrowserView(t *testing.T) {
	b := NewBrowser(listerStub{shifts: []shift.Shift{
		closed("m", shift.KindMorning, at(time.March, 4, 8)),
		closed("n", shift.KindNight, at(time.March, 4, 16)),
	}}, time.UTC, NewLabeler(language.Spanish))

	view, err := b.View(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, view, 1)
	assert.Equal(t, "2025-03", view[0].Key)
	assert.Equal(t, "marzo de 2025", view[0].Label)
	assert.Equal(t, "2 cierres registrados", view[0].Count)
	day := view[0].Days[0]
	assert.Equal(t, "2025-03-04", day.Key)
	assert.Equal(t, "martes 4", day.Label)
	assert.Equal(t, "Turno Noche", day.Shifts[0].Label)
	assert.Equal(t, "16:00", day.Shifts[0].Opened)
	assert.Equal(t, "23:00", day.Shifts[0].Closed)
	assert.Equal(t, "balanced", day.Shifts[0].Outcome)

	chrono, err := b.View(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "m", chrono[0].Days[0].Shifts[0].ID)
}

func TestBrowserPropagatesStoreError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewBrowser(listerStub{err: boom}, time.UTC, Labeler{}).Tree(context.Background())
	assert.ErrorIs(t, err, boom)
}
