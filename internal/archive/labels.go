package archive

import (
	"fmt"
	"time"

	"github.com/go-playground/locales"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/es"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/odyssey-pos/internal/shift"
)

// phrases holds the sentence templates; month and weekday names come from CLDR.
type phrases struct {
	monthLabel  string
	dayLabel    string
	closures    map[locales.PluralRule]string
	shifts      map[locales.PluralRule]string
	kindMorning string
	kindNight   string
}

var spanish = phrases{
	monthLabel:  "%s de %d",
	dayLabel:    "%s %d",
	closures:    map[locales.PluralRule]string{locales.PluralRuleOne: "%d cierre registrado", locales.PluralRuleOther: "%d cierres registrados"},
	shifts:      map[locales.PluralRule]string{locales.PluralRuleOne: "%d turno", locales.PluralRuleOther: "%d turnos"},
	kindMorning: "Turno Mañana",
	kindNight:   "Turno Noche",
}

var english = phrases{
	monthLabel:  "%s %d",
	dayLabel:    "%s %d",
	closures:    map[locales.PluralRule]string{locales.PluralRuleOne: "%d closure", locales.PluralRuleOther: "%d closures"},
	shifts:      map[locales.PluralRule]string{locales.PluralRuleOne: "%d shift", locales.PluralRuleOther: "%d shifts"},
	kindMorning: "Morning shift",
	kindNight:   "Night shift",
}

var labelMatcher = language.NewMatcher([]language.Tag{language.Spanish, language.English})

// Labeler renders display labels for archive groups. Labels are for display only;
// ordering always uses the keys. The zero value renders Spanish.
type Labeler struct {
	trans   locales.Translator
	phrases phrases
}

// NewLabeler picks the closest supported language for tag. Spanish is the default.
func NewLabeler(tag language.Tag) Labeler {
	_, idx, _ := labelMatcher.Match(tag)
	if idx == 1 {
		return Labeler{trans: en.New(), phrases: english}
	}
	return Labeler{trans: es.New(), phrases: spanish}
}

// ParseLabeler builds a Labeler from a BCP 47 string such as "es" or "en-GB".
func ParseLabeler(raw string) Labeler {
	tag, err := language.Parse(raw)
	if err != nil {
		return NewLabeler(language.Spanish)
	}
	return NewLabeler(tag)
}

func (l Labeler) resolved() Labeler {
	if l.trans == nil {
		return NewLabeler(language.Spanish)
	}
	return l
}

// Month renders e.g. "marzo de 2025".
func (l Labeler) Month(k MonthKey) string {
	l = l.resolved()
	return fmt.Sprintf(l.phrases.monthLabel, l.trans.MonthWide(k.Month), k.Year)
}

// Day renders e.g. "martes 4".
func (l Labeler) Day(k DayKey) string {
	l = l.resolved()
	return fmt.Sprintf(l.phrases.dayLabel, l.trans.WeekdayWide(k.Weekday()), k.Day)
}

// Closures renders the closure count of a month.
func (l Labeler) Closures(n int) string {
	l = l.resolved()
	return l.plural(l.phrases.closures, n)
}

// Shifts renders the shift count of a day.
func (l Labeler) Shifts(n int) string {
	l = l.resolved()
	return l.plural(l.phrases.shifts, n)
}

// Kind renders the shift kind.
func (l Labeler) Kind(k shift.Kind) string {
	l = l.resolved()
	switch k {
	case shift.KindMorning:
		return l.phrases.kindMorning
	case shift.KindNight:
		return l.phrases.kindNight
	default:
		return string(k)
	}
}

// Clock renders a time of day in loc.
func (l Labeler) Clock(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("15:04")
}

func (l Labeler) plural(forms map[locales.PluralRule]string, n int) string {
	form, ok := forms[l.trans.CardinalPluralRule(float64(n), 0)]
	if !ok {
		form = forms[locales.PluralRuleOther]
	}
	return fmt.Sprintf(form, n)
}
