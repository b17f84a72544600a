package receipt

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/odyssey-erp/odyssey-pos/internal/archive"
	"github.com/odyssey-erp/odyssey-pos/internal/shift"
)

// Formatter renders amounts and timestamps for the operator's locale.
type Formatter struct {
	printer  *message.Printer
	labels   archive.Labeler
	loc      *time.Location
	currency string
}

// NewFormatter builds a Formatter. A nil location means UTC.
func NewFormatter(tag language.Tag, loc *time.Location, currency string) *Formatter {
	if loc == nil {
		loc = time.UTC
	}
	return &Formatter{
		printer:  message.NewPrinter(tag),
		labels:   archive.NewLabeler(tag),
		loc:      loc,
		currency: currency,
	}
}

// Money formats an amount with two decimals and the currency symbol.
func (f *Formatter) Money(d decimal.Decimal) string {
	v := d.Round(2).InexactFloat64()
	if f.currency == "" {
		return f.printer.Sprintf("%.2f", v)
	}
	return f.printer.Sprintf("%.2f %s", v, f.currency)
}

// SignedMoney prefixes positive amounts with "+".
func (f *Formatter) SignedMoney(d decimal.Decimal) string {
	if d.Sign() > 0 {
		return "+" + f.Money(d)
	}
	return f.Money(d)
}

// Time formats a timestamp in the operator's zone.
func (f *Formatter) Time(t time.Time) string {
	return t.In(f.loc).Format("02/01/2006 15:04")
}

// Kind names a shift kind in the operator's language, matching the archive.
func (f *Formatter) Kind(k shift.Kind) string {
	return f.labels.Kind(k)
}

// Seal is a short BLAKE2b-256 digest of the reconciliation fields. Reprinting an
// unchanged record yields the same seal.
func Seal(s shift.Shift) string {
	closedAt := ""
	if s.ClosedAt != nil {
		closedAt = s.ClosedAt.UTC().Format(time.RFC3339Nano)
	}
	canonical := strings.Join([]string{
		s.ID,
		string(s.Kind),
		string(s.Status),
		s.OpenedAt.UTC().Format(time.RFC3339Nano),
		closedAt,
		s.OpenedBy,
		s.ClosedBy,
		s.InitialCash.StringFixed(2),
		s.ExpectedCash.StringFixed(2),
		s.ExpectedCard.StringFixed(2),
		s.DeclaredCash.StringFixed(2),
		s.DeclaredCard.StringFixed(2),
		s.Difference.StringFixed(2),
		s.Notes,
	}, "|")
	sum := blake2b.Sum256([]byte(canonical))
	return strings.ToUpper(hex.EncodeToString(sum[:8]))
}
