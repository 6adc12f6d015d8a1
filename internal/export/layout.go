// Package export lays out a ledger as the two half-month pages of the paper
// meal book. The layout is a pure grid description; renderers in
// sub-packages turn it into files or remote spreadsheets.
package export

import (
	"fmt"
	"strings"

	"mealbook/internal/ledger"
)

// Style is the visual role of a cell. Renderers map roles to concrete formats.
type Style int

const (
	StyleNone Style = iota
	StyleTitle
	StyleHeader
	StyleHeaderSunday
	StyleName
	StyleCell
	StyleCellSunday
	StyleTotal
	StyleTotalSunday
	StyleFooter
	StyleFooterBold
	StyleFooterItalic
)

// Sunday returns the rest-day variant of s, if any.
func (s Style) Sunday() Style {
	switch s {
	case StyleHeader:
		return StyleHeaderSunday
	case StyleCell:
		return StyleCellSunday
	case StyleTotal:
		return StyleTotalSunday
	}
	return s
}

// Bordered reports whether the style draws a thin border around the cell.
func (s Style) Bordered() bool {
	switch s {
	case StyleHeader, StyleHeaderSunday, StyleName, StyleCell, StyleCellSunday, StyleTotal, StyleTotalSunday:
		return true
	}
	return false
}

// Cell is one grid cell. Value is nil, a string or an int.
type Cell struct {
	Value any
	Style Style
}

// Range is an inclusive, zero-based rectangle of cells.
type Range struct {
	Row, Col       int
	EndRow, EndCol int
}

// Page is one worksheet of the export.
type Page struct {
	Name       string
	Days       []int
	Summary    bool
	Cells      [][]Cell
	Merges     []Range
	ColWidths  []float64
	RowHeights map[int]float64
	// TotalsRow is the row index of the headcount row.
	TotalsRow int
}

// Workbook is the complete export of one ledger.
type Workbook struct {
	Pages []Page
}

// Options tunes the rendering.
type Options struct {
	// MarkSymbol is written in cells of marked meals. Defaults to "+".
	MarkSymbol string
}

const (
	DefaultMarkSymbol = "+"

	// HeaderRows is the number of rows above the first student row: the
	// title plus the three header rows.
	HeaderRows = 4
	// SplitDay is the last day printed on the first page.
	SplitDay = 16
	// SummaryCols is the number of monthly total columns on the second page.
	SummaryCols = 6
	// LeadCols are the sequence number and name columns.
	LeadCols = 2

	footerSpan = 12
)

// Labels printed on the form.
const (
	LabelNo          = "STT"
	LabelFullName    = "Họ và tên"
	LabelTotal       = "Tổng cộng"
	LabelMonthTotals = "TỔNG CỘNG THÁNG"
	LabelReported    = "Đã báo ăn"
	LabelNotReported = "Không báo ăn"
	LabelRole        = "GIÁO VIÊN CHỦ NHIỆM"
)

const (
	widthNo      = 5
	widthName    = 28
	widthMeal    = 3.2
	widthSummary = 5.5
)

// Build lays out both pages for l's month. It never fails: an empty roster
// yields pages with only headers, a totals row and the footer.
func Build(l ledger.Ledger, opts Options) Workbook {
	if opts.MarkSymbol == "" {
		opts.MarkSymbol = DefaultMarkSymbol
	}
	n := l.DaysInMonth()
	first := dayRange(1, SplitDay)
	second := dayRange(SplitDay+1, n)

	return Workbook{Pages: []Page{
		buildPage(l, opts, fmt.Sprintf("Ngày 1-%d", SplitDay), first, false),
		buildPage(l, opts, fmt.Sprintf("Ngày %d-%d", SplitDay+1, n), second, true),
	}}
}

func dayRange(from, to int) []int {
	days := make([]int, 0, to-from+1)
	for d := from; d <= to; d++ {
		days = append(days, d)
	}
	return days
}

// Columns returns the column count of a page covering days days.
func Columns(days int, summary bool) int {
	cols := LeadCols + days*len(ledger.Meals)
	if summary {
		cols += SummaryCols
	}
	return cols
}

// DayColumn returns the column of (day position k, meal m) on a page.
func DayColumn(k int, m ledger.Meal) int {
	return LeadCols + k*len(ledger.Meals) + int(m)
}

type grid struct {
	page *Page
	cols int
}

func (g *grid) ensureRows(n int) {
	for len(g.page.Cells) < n {
		g.page.Cells = append(g.page.Cells, make([]Cell, g.cols))
	}
}

func (g *grid) set(row, col int, v any, st Style) {
	g.ensureRows(row + 1)
	g.page.Cells[row][col] = Cell{Value: v, Style: st}
}

// merge records a merged range and styles every covered cell so borders are
// drawn around the whole block.
func (g *grid) merge(r Range, st Style) {
	g.ensureRows(r.EndRow + 1)
	for row := r.Row; row <= r.EndRow; row++ {
		for col := r.Col; col <= r.EndCol; col++ {
			g.page.Cells[row][col].Style = st
		}
	}
	if r.Row != r.EndRow || r.Col != r.EndCol {
		g.page.Merges = append(g.page.Merges, r)
	}
}

func buildPage(l ledger.Ledger, opts Options, name string, days []int, summary bool) Page {
	cols := Columns(len(days), summary)
	p := Page{Name: name, Days: days, Summary: summary, RowHeights: map[int]float64{}}
	g := &grid{page: &p, cols: cols}
	meals := len(ledger.Meals)

	// Title.
	g.set(0, 0, title(l, summary), StyleTitle)
	g.merge(Range{0, 0, 0, cols - 1}, StyleTitle)
	p.RowHeights[0] = 30

	// Lead header columns.
	g.set(1, 0, LabelNo, StyleHeader)
	g.merge(Range{1, 0, 2, 0}, StyleHeader)
	g.set(1, 1, LabelFullName, StyleHeader)
	g.merge(Range{1, 1, 2, 1}, StyleHeader)
	g.set(3, 0, LabelFullName, StyleHeader)
	g.merge(Range{3, 0, 3, 1}, StyleHeader)

	// Day headers.
	for k, day := range days {
		st := StyleHeader
		if ledger.IsSunday(day, l.Month, l.Year) {
			st = st.Sunday()
		}
		c := DayColumn(k, ledger.Breakfast)
		g.set(1, c, day, st)
		g.merge(Range{1, c, 1, c + meals - 1}, st)
		g.set(2, c, ledger.WeekdayLabel(day, l.Month, l.Year), st)
		g.merge(Range{2, c, 2, c + meals - 1}, st)
		for _, m := range ledger.Meals {
			g.set(3, c+int(m), m.Label(), st)
		}
	}

	// Summary headers.
	sc := LeadCols + len(days)*meals
	if summary {
		g.set(1, sc, LabelMonthTotals, StyleHeader)
		g.merge(Range{1, sc, 1, sc + SummaryCols - 1}, StyleHeader)
		g.set(2, sc, LabelReported, StyleHeader)
		g.merge(Range{2, sc, 2, sc + meals - 1}, StyleHeader)
		g.set(2, sc+meals, LabelNotReported, StyleHeader)
		g.merge(Range{2, sc + meals, 2, sc + SummaryCols - 1}, StyleHeader)
		for i := 0; i < SummaryCols; i++ {
			g.set(3, sc+i, ledger.Meals[i%meals].Label(), StyleHeader)
		}
	}

	// Student rows.
	for i, s := range l.Students {
		r := HeaderRows + i
		g.set(r, 0, i+1, StyleCell)
		g.set(r, 1, s.Name, StyleName)
		for k, day := range days {
			st := StyleCell
			if ledger.IsSunday(day, l.Month, l.Year) {
				st = st.Sunday()
			}
			mk := s.Meals.Get(day)
			for _, m := range ledger.Meals {
				var v any
				if mk.Get(m) {
					v = opts.MarkSymbol
				}
				g.set(r, DayColumn(k, m), v, st)
			}
		}
		if summary {
			t := ledger.CalculateStudentTotals(s, l.StandardMeals)
			for j, m := range ledger.Meals {
				g.set(r, sc+j, t.Fulfilled.Get(m), StyleCell)
				g.set(r, sc+meals+j, t.Unfulfilled.Get(m), StyleCell)
			}
		}
	}

	// Totals row.
	tr := HeaderRows + len(l.Students)
	p.TotalsRow = tr
	g.set(tr, 0, LabelTotal, StyleTotal)
	g.merge(Range{tr, 0, tr, 1}, StyleTotal)
	for k, day := range days {
		st := StyleTotal
		if ledger.IsSunday(day, l.Month, l.Year) {
			st = st.Sunday()
		}
		for _, m := range ledger.Meals {
			g.set(tr, DayColumn(k, m), l.Headcount(day, m), st)
		}
	}
	if summary {
		for i := 0; i < SummaryCols; i++ {
			g.set(tr, sc+i, nil, StyleTotal)
		}
		buildFooter(g, l, tr+2)
	}

	p.ColWidths = make([]float64, cols)
	p.ColWidths[0] = widthNo
	p.ColWidths[1] = widthName
	for c := LeadCols; c < cols; c++ {
		if summary && c >= sc {
			p.ColWidths[c] = widthSummary
		} else {
			p.ColWidths[c] = widthMeal
		}
	}
	for r := 1; r < HeaderRows; r++ {
		p.RowHeights[r] = 18
	}
	return p
}

func buildFooter(g *grid, l ledger.Ledger, row int) {
	cols := g.cols
	start := cols - footerSpan
	if start < LeadCols {
		start = LeadCols
	}
	last := cols - 1

	q := l.StandardMeals
	g.set(row, 0, fmt.Sprintf("Định mức tháng: Sáng %d - Trưa %d - Tối %d", q.S, q.T1, q.T2), StyleFooter)
	g.merge(Range{row, 0, row, start - 1}, StyleFooter)

	g.set(row, start, SignatureLine(l), StyleFooterItalic)
	g.merge(Range{row, start, row, last}, StyleFooterItalic)

	g.set(row+1, start, LabelRole, StyleFooterBold)
	g.merge(Range{row + 1, start, row + 1, last}, StyleFooterBold)

	// Rows row+2..row+4 are left empty for the handwritten signature.
	g.ensureRows(row + 5)
	g.set(row+5, start, l.TeacherName, StyleFooterBold)
	g.merge(Range{row + 5, start, row + 5, last}, StyleFooterBold)
}

// SignatureLine renders "<location>, ngày <d> tháng <m> năm <y>".
func SignatureLine(l ledger.Ledger) string {
	d := l.EffectiveSignatureDate()
	loc := strings.TrimSpace(l.Location)
	if loc == "" {
		loc = "........"
	}
	return fmt.Sprintf("%s, ngày %d tháng %d năm %d", loc, d.Day, d.Month, d.Year)
}

func title(l ledger.Ledger, continued bool) string {
	var b strings.Builder
	if s := strings.TrimSpace(l.SchoolName); s != "" {
		b.WriteString("TRƯỜNG ")
		b.WriteString(strings.ToUpper(s))
		b.WriteString(" - ")
	}
	fmt.Fprintf(&b, "THEO DÕI SUẤT ĂN BÁN TRÚ THÁNG %d NĂM %d", l.Month+1, l.Year)
	if c := strings.TrimSpace(l.ClassName); c != "" {
		b.WriteString(" - LỚP ")
		b.WriteString(c)
	}
	if continued {
		b.WriteString(" (tiếp theo)")
	}
	return b.String()
}

// NumRows returns the number of rows of the page.
func (p Page) NumRows() int { return len(p.Cells) }

// NumCols returns the number of columns of the page.
func (p Page) NumCols() int { return len(p.ColWidths) }

// At returns the cell at (row, col), or the zero Cell when out of range.
func (p Page) At(row, col int) Cell {
	if row < 0 || row >= len(p.Cells) || col < 0 || col >= len(p.Cells[row]) {
		return Cell{}
	}
	return p.Cells[row][col]
}
