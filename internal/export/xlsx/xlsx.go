// Package xlsx renders an export.Workbook as an Office Open XML spreadsheet.
package xlsx

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"

	"mealbook/internal/export"
	"mealbook/internal/ledger"
)

// ContentType is the MIME type of the produced file.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	fontName   = "Times New Roman"
	sundayFill = "D9D9D9"
	borderRGB  = "000000"
	paperA4    = 9
)

var unsafeChars = regexp.MustCompile(`[^\p{L}\p{N}_-]+`)

// Filename returns the download name, e.g. "SoAn_3A_T04_2024.xlsx".
func Filename(l ledger.Ledger) string {
	class := strings.Trim(unsafeChars.ReplaceAllString(strings.TrimSpace(l.ClassName), "_"), "_")
	if class == "" {
		class = "Lop"
	}
	return fmt.Sprintf("SoAn_%s_T%02d_%d.xlsx", class, l.Month+1, l.Year)
}

// Render builds the workbook for l and returns the encoded file.
func Render(l ledger.Ledger, opts export.Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, export.Build(l, opts)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write encodes wb to w.
func Write(w io.Writer, wb export.Workbook) error {
	f := excelize.NewFile()
	defer f.Close()

	styles, err := newStyles(f)
	if err != nil {
		return err
	}

	for i, p := range wb.Pages {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), p.Name); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(p.Name); err != nil {
			return fmt.Errorf("new sheet %q: %w", p.Name, err)
		}
		if err := writePage(f, p, styles); err != nil {
			return fmt.Errorf("write sheet %q: %w", p.Name, err)
		}
	}
	f.SetActiveSheet(0)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("encode workbook: %w", err)
	}
	return nil
}

func writePage(f *excelize.File, p export.Page, styles map[export.Style]int) error {
	sheet := p.Name

	for c, width := range p.ColWidths {
		name, err := excelize.ColumnNumberToName(c + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, name, name, width); err != nil {
			return err
		}
	}
	for r, h := range p.RowHeights {
		if err := f.SetRowHeight(sheet, r+1, h); err != nil {
			return err
		}
	}

	for r, row := range p.Cells {
		for c, cell := range row {
			if cell.Value == nil && cell.Style == export.StyleNone {
				continue
			}
			axis, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if cell.Value != nil {
				if err := f.SetCellValue(sheet, axis, cell.Value); err != nil {
					return err
				}
			}
			if id, ok := styles[cell.Style]; ok {
				if err := f.SetCellStyle(sheet, axis, axis, id); err != nil {
					return err
				}
			}
		}
	}

	for _, m := range p.Merges {
		from, err := excelize.CoordinatesToCellName(m.Col+1, m.Row+1)
		if err != nil {
			return err
		}
		to, err := excelize.CoordinatesToCellName(m.EndCol+1, m.EndRow+1)
		if err != nil {
			return err
		}
		if err := f.MergeCell(sheet, from, to); err != nil {
			return err
		}
	}

	orientation := "landscape"
	size := paperA4
	return f.SetPageLayout(sheet, &excelize.PageLayoutOptions{
		Orientation: &orientation,
		Size:        &size,
	})
}

func newStyles(f *excelize.File) (map[export.Style]int, error) {
	border := []excelize.Border{
		{Type: "left", Color: borderRGB, Style: 1},
		{Type: "top", Color: borderRGB, Style: 1},
		{Type: "right", Color: borderRGB, Style: 1},
		{Type: "bottom", Color: borderRGB, Style: 1},
	}
	center := &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true}
	left := &excelize.Alignment{Horizontal: "left", Vertical: "center"}
	sunday := excelize.Fill{Type: "pattern", Color: []string{sundayFill}, Pattern: 1}
	font := func(bold, italic bool, size float64) *excelize.Font {
		return &excelize.Font{Family: fontName, Bold: bold, Italic: italic, Size: size}
	}

	defs := map[export.Style]*excelize.Style{
		export.StyleTitle:        {Font: font(true, false, 14), Alignment: center},
		export.StyleHeader:       {Font: font(true, false, 10), Alignment: center, Border: border},
		export.StyleHeaderSunday: {Font: font(true, false, 10), Alignment: center, Border: border, Fill: sunday},
		export.StyleName:         {Font: font(false, false, 11), Alignment: left, Border: border},
		export.StyleCell:         {Font: font(false, false, 10), Alignment: center, Border: border},
		export.StyleCellSunday:   {Font: font(false, false, 10), Alignment: center, Border: border, Fill: sunday},
		export.StyleTotal:        {Font: font(true, false, 10), Alignment: center, Border: border},
		export.StyleTotalSunday:  {Font: font(true, false, 10), Alignment: center, Border: border, Fill: sunday},
		export.StyleFooter:       {Font: font(false, false, 11), Alignment: left},
		export.StyleFooterBold:   {Font: font(true, false, 11), Alignment: center},
		export.StyleFooterItalic: {Font: font(false, true, 11), Alignment: center},
	}

	out := make(map[export.Style]int, len(defs))
	for st, def := range defs {
		id, err := f.NewStyle(def)
		if err != nil {
			return nil, fmt.Errorf("new style %d: %w", st, err)
		}
		out[st] = id
	}
	return out, nil
}
