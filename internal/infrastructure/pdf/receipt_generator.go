// Package pdf genera el recibo (ticket POS) de una venta con Maroto v2.
//
// Layout de la página A5:
//
//	┌───────────────────────────────────────────┐
//	│  HEADER: Tienda          │ N° venta + Fecha │
//	│  ───────────────────────────────────────  │
//	│  TABLA: Cant | Producto | P.Unit | Total   │
//	│  ───────────────────────────────────────  │
//	│  TOTALES: Total / Descuento / A PAGAR      │
//	│  FOOTER: medio de pago + QR con el ID      │
//	└───────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"strings"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-ledger/internal/application/sales"
	"github.com/jhoicas/pos-ledger/internal/domain/entity"
)

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorRed     = &props.Color{Red: 180, Green: 30, Blue: 30}
)

var _ sales.ReceiptGenerator = (*ReceiptGenerator)(nil)

// ReceiptGenerator implementa sales.ReceiptGenerator usando Maroto v2.
type ReceiptGenerator struct{}

// NewReceiptGenerator construye el generador.
func NewReceiptGenerator() *ReceiptGenerator { return &ReceiptGenerator{} }

// GenerateReceipt genera el PDF y devuelve sus bytes.
func (g *ReceiptGenerator) GenerateReceipt(_ context.Context, storeName string, sale *entity.Sale, lines []sales.ReceiptLine) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A5).
		WithLeftMargin(8).WithRightMargin(8).
		WithTopMargin(8).WithBottomMargin(8).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 8}).
		WithTitle("Recibo de venta", true).
		WithAuthor(storeName, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(storeName, sale))
	if sale.Status == entity.SaleStatusCancelled {
		m.AddRows(cancelledRow(sale))
	}
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.4}))
	m.AddRows(tableHeaderRow())
	m.AddRows(itemRows(lines)...)
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(totalsRow(sale))
	m.AddRows(line.NewRow(3))
	m.AddRows(footerRow(sale))

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar recibo: %w", err)
	}
	return doc.GetBytes(), nil
}

func headerRow(storeName string, sale *entity.Sale) core.Row {
	return row.New(16).Add(
		col.New(7).Add(
			text.New(storeName, props.Text{Style: fontstyle.Bold, Size: 12, Color: colorPrimary, Top: 1}),
			text.New("Vendedor: "+sale.SalespersonID, props.Text{Size: 7, Top: 9, Color: colorGray}),
		),
		col.New(5).Add(
			text.New("RECIBO DE VENTA", props.Text{Style: fontstyle.Bold, Size: 8, Align: align.Right, Color: colorPrimary, Top: 1}),
			text.New(shortID(sale.ID), props.Text{Style: fontstyle.Bold, Size: 10, Align: align.Right, Top: 6}),
			text.New("Fecha: "+sale.Date.Format("02/01/2006 15:04"), props.Text{Size: 7, Align: align.Right, Top: 12, Color: colorGray}),
		),
	)
}

func cancelledRow(sale *entity.Sale) core.Row {
	msg := "VENTA ANULADA"
	if sale.CancelReason != "" {
		msg += " - " + sale.CancelReason
	}
	return row.New(7).Add(col.New(12).Add(
		text.New(msg, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Center, Color: colorRed, Top: 1}),
	))
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{Style: fontstyle.Bold, Size: 7, Align: a, Top: 1}))
	}
	return row.New(6).Add(
		h("Cant.", 1, align.Center),
		h("Producto", 5, align.Left),
		h("P. Unit.", 3, align.Right),
		h("Total", 3, align.Right),
	)
}

func itemRows(lines []sales.ReceiptLine) []core.Row {
	result := make([]core.Row, 0, len(lines)*2)
	for _, l := range lines {
		result = append(result, row.New(5).Add(
			col.New(1).Add(text.New(fmt.Sprintf("%d", l.Quantity), props.Text{Size: 7, Align: align.Center, Top: 1})),
			col.New(5).Add(text.New(l.ProductName, props.Text{Size: 7, Top: 1})),
			col.New(3).Add(text.New("$"+formatMoney(l.UnitPrice), props.Text{Size: 7, Align: align.Right, Top: 1})),
			col.New(3).Add(text.New("$"+formatMoney(l.Subtotal), props.Text{Size: 7, Align: align.Right, Top: 1})),
		))
		var notes []string
		if l.PromotionDiscount.IsPositive() {
			notes = append(notes, "promo -$"+formatMoney(l.PromotionDiscount))
		}
		if l.LineDiscount.IsPositive() {
			notes = append(notes, "desc. -$"+formatMoney(l.LineDiscount))
		}
		if len(notes) > 0 {
			result = append(result, row.New(4).Add(
				col.New(1),
				col.New(11).Add(text.New(strings.Join(notes, "  "), props.Text{Size: 6, Color: colorGray})),
			))
		}
	}
	return result
}

func totalsRow(sale *entity.Sale) core.Row {
	label := func(s string, top float64) core.Component {
		return text.New(s, props.Text{Style: fontstyle.Bold, Size: 8, Align: align.Right, Right: 2, Top: top})
	}
	value := func(s string, top float64) core.Component {
		return text.New(s, props.Text{Size: 8, Align: align.Right, Top: top})
	}
	return row.New(18).Add(
		col.New(4),
		col.New(4).Add(
			label("Total:", 1),
			label("Descuento:", 6),
			text.New("A PAGAR:", props.Text{Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Right: 2, Top: 11}),
		),
		col.New(4).Add(
			value("$"+formatMoney(sale.Total), 1),
			value("-$"+formatMoney(sale.Discount), 6),
			text.New("$"+formatMoney(sale.FinalTotal), props.Text{Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Top: 11}),
		),
	)
}

func footerRow(sale *entity.Sale) core.Row {
	return row.New(30).Add(
		col.New(4).Add(code.NewQr(sale.ID, props.Rect{Percent: 90, Center: true})),
		col.New(8).Add(
			text.New("Medio de pago: "+sale.PaymentMethod, props.Text{Size: 8, Top: 4, Left: 3}),
			text.New("Gracias por su compra.", props.Text{Size: 8, Top: 12, Left: 3, Color: colorGray}),
		),
	)
}

func shortID(id string) string {
	if len(id) > 8 {
		return "N° " + strings.ToUpper(id[:8])
	}
	return "N° " + id
}

// formatMoney formatea un monto con puntos de miles y coma decimal.
// Ej: 25000 → "25.000,00", 1234.5 → "1.234,50"
func formatMoney(d decimal.Decimal) string {
	s := d.Abs().StringFixed(2)
	intPart, frac := s[:len(s)-3], s[len(s)-2:]
	n := len(intPart)
	buf := make([]byte, 0, n+n/3+3)
	for i, c := range []byte(intPart) {
		if i > 0 && (n-i)%3 == 0 {
			buf = append(buf, '.')
		}
		buf = append(buf, c)
	}
	out := string(buf) + "," + frac
	if d.IsNegative() {
		return "-" + out
	}
	return out
}
