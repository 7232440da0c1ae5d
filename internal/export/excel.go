package export

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Sheet is a named worksheet holding one table.
type Sheet struct {
	Name string
	Table
}

var thinBorder = []excelize.Border{
	{Type: "left", Color: "000000", Style: 1},
	{Type: "top", Color: "000000", Style: 1},
	{Type: "bottom", Color: "000000", Style: 1},
	{Type: "right", Color: "000000", Style: 1},
}

type styles struct {
	title, header, data, money, flagged, flaggedMoney int
}

func newStyles(f *excelize.File) (*styles, error) {
	var s styles
	var err error
	defs := []struct {
		dst   *int
		style *excelize.Style
	}{
		{&s.title, &excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}}},
		{&s.header, &excelize.Style{
			Font:      &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF"},
			Fill:      excelize.Fill{Type: "pattern", Color: []string{"4F81BD"}, Pattern: 1},
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
			Border:    thinBorder,
		}},
		{&s.data, &excelize.Style{Border: thinBorder}},
		{&s.money, &excelize.Style{Border: thinBorder, NumFmt: 4}},
		{&s.flagged, &excelize.Style{
			Border: thinBorder,
			Fill:   excelize.Fill{Type: "pattern", Color: []string{"F8CBAD"}, Pattern: 1},
		}},
		{&s.flaggedMoney, &excelize.Style{
			Border: thinBorder,
			NumFmt: 4,
			Fill:   excelize.Fill{Type: "pattern", Color: []string{"F8CBAD"}, Pattern: 1},
		}},
	}
	for _, d := range defs {
		if *d.dst, err = f.NewStyle(d.style); err != nil {
			return nil, err
		}
	}
	return &s, nil
}

// WriteExcel renders each sheet as a titled, styled table and writes the workbook to w.
func WriteExcel(w io.Writer, sheets ...Sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	st, err := newStyles(f)
	if err != nil {
		return fmt.Errorf("failed to create styles: %w", err)
	}

	for i, sheet := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet.Name); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(sheet.Name); err != nil {
			return err
		}
		if err := writeSheet(f, st, sheet); err != nil {
			return fmt.Errorf("failed to write sheet %s: %w", sheet.Name, err)
		}
	}

	return f.Write(w)
}

func writeSheet(f *excelize.File, st *styles, sheet Sheet) error {
	name := sheet.Name
	row := 1

	if sheet.Title != "" {
		if err := f.SetCellValue(name, "A1", sheet.Title); err != nil {
			return err
		}
		if err := f.SetCellStyle(name, "A1", "A1", st.title); err != nil {
			return err
		}
		row = 3
	}

	for col, header := range sheet.Headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		if err := f.SetCellValue(name, cell, header); err != nil {
			return err
		}
		if err := f.SetCellStyle(name, cell, cell, st.header); err != nil {
			return err
		}
		colName, _ := excelize.ColumnNumberToName(col + 1)
		if err := f.SetColWidth(name, colName, colName, sheet.width(col)); err != nil {
			return err
		}
	}

	for i, values := range sheet.Rows {
		row++
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			value, isMoney := cellValue(v)
			if err := f.SetCellValue(name, cell, value); err != nil {
				return err
			}

			style := st.data
			switch {
			case sheet.flagged(i) && isMoney:
				style = st.flaggedMoney
			case sheet.flagged(i):
				style = st.flagged
			case isMoney:
				style = st.money
			}
			if err := f.SetCellStyle(name, cell, cell, style); err != nil {
				return err
			}
		}
	}
	return nil
}

// cellValue converts money to a float so spreadsheets can sum it.
func cellValue(v any) (any, bool) {
	switch val := v.(type) {
	case decimal.Decimal:
		return val.InexactFloat64(), true
	case *decimal.Decimal:
		if val == nil {
			return nil, true
		}
		return val.InexactFloat64(), true
	case bool:
		return text(val), false
	default:
		return v, false
	}
}
