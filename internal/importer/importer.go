// Package importer extracts a roster of student names from an arbitrary
// spreadsheet. Detection is best effort: a header cell naming the column wins,
// otherwise the column with the most name-like cells is used.
package importer

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// ErrAmbiguous is returned when no name column can be found or it yields no
// usable names. The roster must be left unchanged.
var ErrAmbiguous = errors.New("import ambiguous")

// Rejection reasons
const (
	ReasonEmpty   = "empty"
	ReasonShort   = "too short"
	ReasonNumeric = "numeric"
	ReasonKeyword = "keyword"
)

// headerScanRows bounds how far down a header is looked for.
const headerScanRows = 20

// headerKeywords are folded header labels of a name column, strongest first.
var headerKeywords = []string{"ho va ten", "ho ten", "ten hoc sinh", "full name", "student name", "ten", "name"}

// labelPhrases are folded multi-word labels. A cell starting with one is a
// label, whatever follows.
var labelPhrases = []string{
	"tong cong", "tong so", "si so", "nam hoc", "danh sach", "giao vien",
	"ho va ten", "ho ten", "ten hoc sinh", "ghi chu", "full name", "student name",
}

// labelWords are folded single-word labels. Several double as Vietnamese
// surnames or name syllables (Trương, Tống, Tên), so a cell is a label only
// when it is the word alone or the word followed by a colon, a number or a
// school type.
var labelWords = []string{
	"total", "class", "school", "teacher", "name", "grade",
	"tong", "lop", "truong", "stt", "ten",
}

// schoolTypes are folded words that follow "truong" in a school name.
var schoolTypes = []string{"tieu hoc", "trung hoc", "thcs", "thpt", "mam non", "dai hoc"}

// Rejection records a candidate cell that failed validation.
type Rejection struct {
	Row    int    `json:"row"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

func (r Rejection) Error() string {
	return fmt.Sprintf("row %d %q: %s", r.Row+1, r.Value, r.Reason)
}

// Result is the outcome of a name extraction. Rows and columns are 0-based.
type Result struct {
	Names     []string    `json:"names"`
	Column    int         `json:"column"`
	HeaderRow int         `json:"headerRow"`
	Rejected  []Rejection `json:"rejected,omitempty"`
}

// Import reads the spreadsheet and extracts names from it.
func Import(r io.Reader) (Result, error) {
	rows, err := ReadRows(r)
	if err != nil {
		return Result{}, err
	}
	return ExtractNames(rows)
}

// ReadRows returns the cell text of the first worksheet that has any
// non-blank cell.
func ReadRows(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", name, err)
		}
		if hasContent(rows) {
			return rows, nil
		}
	}
	return nil, fmt.Errorf("%w: workbook has no data", ErrAmbiguous)
}

func hasContent(rows [][]string) bool {
	for _, row := range rows {
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				return true
			}
		}
	}
	return false
}

// ExtractNames picks the name column of rows and returns its valid names in
// row order.
func ExtractNames(rows [][]string) (Result, error) {
	res := Result{Column: -1, HeaderRow: -1}

	start := 0
	if hr, col, ok := findHeader(rows); ok {
		res.HeaderRow, res.Column = hr, col
		start = hr + 1
	} else if col, ok := bestColumn(rows); ok {
		res.Column = col
	} else {
		return res, fmt.Errorf("%w: no name column found", ErrAmbiguous)
	}

	for i := start; i < len(rows); i++ {
		raw := cellAt(rows, i, res.Column)
		name := Clean(raw)
		if name == "" {
			continue
		}
		if reason := Validate(name); reason != "" {
			res.Rejected = append(res.Rejected, Rejection{Row: i, Value: name, Reason: reason})
			continue
		}
		res.Names = append(res.Names, name)
	}

	if len(res.Names) == 0 {
		return res, fmt.Errorf("%w: no usable names in column %d", ErrAmbiguous, res.Column+1)
	}
	return res, nil
}

// Validate returns the reason a cleaned cell is not a name, or "".
func Validate(name string) string {
	switch {
	case name == "":
		return ReasonEmpty
	case utf8.RuneCountInString(name) <= 2:
		return ReasonShort
	case strings.IndexFunc(name, unicode.IsLetter) < 0:
		return ReasonNumeric
	case isKeyword(Fold(name)):
		return ReasonKeyword
	}
	return ""
}

func isKeyword(folded string) bool {
	folded = strings.TrimSpace(strings.TrimSuffix(folded, ":"))
	for _, p := range labelPhrases {
		if folded == p || strings.HasPrefix(folded, p+" ") || strings.HasPrefix(folded, p+":") {
			return true
		}
	}
	for _, w := range labelWords {
		if rest, ok := strings.CutPrefix(folded, w); ok && qualifiesLabel(rest) {
			return true
		}
	}
	return false
}

// qualifiesLabel reports whether rest, the text after a label word, keeps
// the cell a label.
func qualifiesLabel(rest string) bool {
	if rest == "" {
		return true
	}
	if rest[0] == ':' || isDigit(rest[0]) {
		return true
	}
	if rest[0] != ' ' {
		// Another word that merely starts with the label.
		return false
	}
	rest = strings.TrimSpace(rest)
	if rest != "" && (rest[0] == ':' || isDigit(rest[0])) {
		return true
	}
	for _, t := range schoolTypes {
		if rest == t || strings.HasPrefix(rest, t+" ") {
			return true
		}
	}
	return false
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// findHeader looks for a cell naming the name column in the top rows.
func findHeader(rows [][]string) (row, col int, ok bool) {
	limit := min(len(rows), headerScanRows)
	for _, kw := range headerKeywords {
		for r := 0; r < limit; r++ {
			for c, cell := range rows[r] {
				if Fold(cell) == kw {
					return r, c, true
				}
			}
		}
	}
	return 0, 0, false
}

// bestColumn returns the column with the most name-like cells. Ties go to
// the leftmost column.
func bestColumn(rows [][]string) (int, bool) {
	counts := map[int]int{}
	width := 0
	for _, row := range rows {
		width = max(width, len(row))
		for c, cell := range row {
			if name := Clean(cell); name != "" && Validate(name) == "" {
				counts[c]++
			}
		}
	}
	best, bestCount := -1, 0
	for c := 0; c < width; c++ {
		if counts[c] > bestCount {
			best, bestCount = c, counts[c]
		}
	}
	return best, best >= 0
}

func cellAt(rows [][]string, r, c int) string {
	if r < 0 || r >= len(rows) || c < 0 || c >= len(rows[r]) {
		return ""
	}
	return rows[r][c]
}
