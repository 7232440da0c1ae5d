// Package export renders tabular reports as Excel workbooks and PDF documents.
package export

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"compras/internal/money"
)

// Content types for the rendered documents.
const (
	ContentTypeExcel = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypePDF   = "application/pdf"
)

// Table is one block of rows with a header line.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]any
	// Widths are column widths in characters; missing entries use a default.
	Widths []float64
	// Flagged marks rows drawn with the alert fill, indexed like Rows.
	Flagged []bool
}

func (t Table) flagged(i int) bool {
	return i < len(t.Flagged) && t.Flagged[i]
}

func (t Table) width(col int) float64 {
	if col < len(t.Widths) && t.Widths[col] > 0 {
		return t.Widths[col]
	}
	return 18
}

// text renders a cell value for PDF output.
func text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case decimal.Decimal:
		return money.Format(val)
	case *decimal.Decimal:
		if val == nil {
			return ""
		}
		return money.Format(*val)
	case time.Time:
		return val.Format("2006-01-02")
	case bool:
		if val {
			return "Sí"
		}
		return "No"
	default:
		return fmt.Sprint(val)
	}
}

// Filename builds a download name like "presupuestos_2025_03.xlsx".
func Filename(prefix string, year int, month *int, ext string) string {
	if month != nil {
		return fmt.Sprintf("%s_%d_%02d.%s", prefix, year, *month, ext)
	}
	return fmt.Sprintf("%s_%d.%s", prefix, year, ext)
}
