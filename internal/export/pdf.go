package export

import (
	"io"

	"github.com/go-pdf/fpdf"
)

// Document is a landscape PDF holding one or more tables.
type Document struct {
	Title    string
	Subtitle string
	Tables   []Table
}

const (
	pageWidth  = 277.0 // A4 landscape minus margins, mm
	lineHeight = 7.0
)

// WritePDF renders doc and writes it to w.
func WritePDF(w io.Writer, doc Document) error {
	pdf := fpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(doc.Title), "", 1, "C", false, 0, "")
	if doc.Subtitle != "" {
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 8, tr(doc.Subtitle), "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	for _, table := range doc.Tables {
		writeTable(pdf, tr, table)
		pdf.Ln(6)
	}

	return pdf.Output(w)
}

func writeTable(pdf *fpdf.Fpdf, tr func(string) string, table Table) {
	widths := columnWidths(table)

	if table.Title != "" {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 8, tr(table.Title), "", 1, "L", false, 0, "")
	}

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(79, 129, 189)
	pdf.SetTextColor(255, 255, 255)
	for i, h := range table.Headers {
		pdf.CellFormat(widths[i], lineHeight, tr(h), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(0, 0, 0)
	for i, row := range table.Rows {
		fill := table.flagged(i)
		if fill {
			pdf.SetFillColor(248, 203, 173)
		}
		for col, v := range row {
			if col >= len(widths) {
				break
			}
			align := "L"
			if _, isMoney := cellValue(v); isMoney {
				align = "R"
			}
			pdf.CellFormat(widths[col], lineHeight, tr(text(v)), "1", 0, align, fill, 0, "")
		}
		pdf.Ln(-1)
	}
}

// columnWidths scales the table's character widths to the printable page width.
func columnWidths(table Table) []float64 {
	n := len(table.Headers)
	widths := make([]float64, n)
	var total float64
	for i := 0; i < n; i++ {
		widths[i] = table.width(i)
		total += widths[i]
	}
	for i := range widths {
		widths[i] = widths[i] / total * pageWidth
	}
	return widths
}
