package receipt

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"text/template"

	"github.com/odyssey-erp/odyssey-pos/internal/shift"
)

// ZReport is the view model printed when a shift is closed.
type ZReport struct {
	Title        string
	Kind         string
	OpenedAt     string
	ClosedAt     string
	OpenedBy     string
	ClosedBy     string
	InitialCash  string
	SalesCash    string
	SalesCard    string
	OrderCount   int
	ExpectedCash string
	ExpectedCard string
	DeclaredCash string
	DeclaredCard string
	Difference   string
	Outcome      string
	Notes        string
	Seal         string
}

// Build prepares the Z-report view of a closed shift.
func Build(s shift.Shift, f *Formatter) (ZReport, error) {
	if s.IsOpen() || s.ClosedAt == nil {
		return ZReport{}, fmt.Errorf("%w: %s", ErrShiftOpen, s.ID)
	}
	return ZReport{
		Title:        "Z-Report",
		Kind:         f.Kind(s.Kind),
		OpenedAt:     f.Time(s.OpenedAt),
		ClosedAt:     f.Time(*s.ClosedAt),
		OpenedBy:     s.OpenedBy,
		ClosedBy:     s.ClosedBy,
		InitialCash:  f.Money(s.InitialCash),
		SalesCash:    f.Money(s.SalesCash),
		SalesCard:    f.Money(s.SalesCard),
		OrderCount:   s.OrderCount,
		ExpectedCash: f.Money(s.ExpectedCash),
		ExpectedCard: f.Money(s.ExpectedCard),
		DeclaredCash: f.Money(s.DeclaredCash),
		DeclaredCard: f.Money(s.DeclaredCard),
		Difference:   f.SignedMoney(s.Difference),
		Outcome:      outcomeLabel(s.Outcome()),
		Notes:        s.Notes,
		Seal:         Seal(s),
	}, nil
}

func outcomeLabel(o shift.Outcome) string {
	switch o {
	case shift.OutcomeSurplus:
		return "Sobrante"
	case shift.OutcomeShortage:
		return "Faltante"
	default:
		return "Cuadre perfecto"
	}
}

const textLayout = `{{.Title}}
{{.Kind}}
--------------------------------
Apertura:   {{.OpenedAt}} ({{.OpenedBy}})
Cierre:     {{.ClosedAt}} ({{.ClosedBy}})
Pedidos:    {{.OrderCount}}
--------------------------------
Fondo:      {{.InitialCash}}
Ventas efectivo: {{.SalesCash}}
Ventas tarjeta:  {{.SalesCard}}
--------------------------------
Esperado efectivo: {{.ExpectedCash}}
Esperado tarjeta:  {{.ExpectedCard}}
Contado efectivo:  {{.DeclaredCash}}
Contado tarjeta:   {{.DeclaredCard}}
--------------------------------
Diferencia: {{.Difference}} ({{.Outcome}})
{{- if .Notes}}
Notas: {{.Notes}}
{{- end}}
Sello: {{.Seal}}
`

const htmlLayout = `<!DOCTYPE html>
<html lang="es">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: monospace; font-size: 11px; margin: 0; }
h1 { font-size: 14px; text-align: center; margin: 0 0 4px; }
h2 { font-size: 12px; text-align: center; margin: 0 0 8px; }
table { width: 100%; border-collapse: collapse; }
td.v { text-align: right; }
tr.sep td { border-top: 1px dashed #000; }
.seal { margin-top: 8px; text-align: center; font-size: 9px; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<h2>{{.Kind}}</h2>
<table>
<tr><td>Apertura</td><td class="v">{{.OpenedAt}}</td></tr>
<tr><td>Abierto por</td><td class="v">{{.OpenedBy}}</td></tr>
<tr><td>Cierre</td><td class="v">{{.ClosedAt}}</td></tr>
<tr><td>Cerrado por</td><td class="v">{{.ClosedBy}}</td></tr>
<tr><td>Pedidos</td><td class="v">{{.OrderCount}}</td></tr>
<tr class="sep"><td>Fondo</td><td class="v">{{.InitialCash}}</td></tr>
<tr><td>Ventas efectivo</td><td class="v">{{.SalesCash}}</td></tr>
<tr><td>Ventas tarjeta</td><td class="v">{{.SalesCard}}</td></tr>
<tr class="sep"><td>Esperado efectivo</td><td class="v">{{.ExpectedCash}}</td></tr>
<tr><td>Esperado tarjeta</td><td class="v">{{.ExpectedCard}}</td></tr>
<tr><td>Contado efectivo</td><td class="v">{{.DeclaredCash}}</td></tr>
<tr><td>Contado tarjeta</td><td class="v">{{.DeclaredCard}}</td></tr>
<tr class="sep"><td><strong>Diferencia</strong></td><td class="v"><strong>{{.Difference}}</strong></td></tr>
<tr><td colspan="2">{{.Outcome}}</td></tr>
{{- if .Notes}}
<tr class="sep"><td colspan="2">Notas: {{.Notes}}</td></tr>
{{- end}}
</table>
<div class="seal">{{.Seal}}</div>
</body>
</html>
`

var (
	textTemplate = template.Must(template.New("zreport.txt").Parse(textLayout))
	htmlTemplate = htmltemplate.Must(htmltemplate.New("zreport.html").Parse(htmlLayout))
)

// RenderText renders the Z-report as a plain ticket.
func RenderText(z ZReport) ([]byte, error) {
	var buf bytes.Buffer
	if err := textTemplate.Execute(&buf, z); err != nil {
		return nil, fmt.Errorf("receipt: render text: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderHTML renders the Z-report for the thermal PDF layout.
func RenderHTML(z ZReport) (string, error) {
	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, z); err != nil {
		return "", fmt.Errorf("receipt: render html: %w", err)
	}
	return buf.String(), nil
}
