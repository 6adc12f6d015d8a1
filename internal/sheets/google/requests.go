package google

import (
	"strconv"

	gsheet "google.golang.org/api/sheets/v4"

	"mealbook/internal/export"
)

// pixelsPerWidthUnit converts spreadsheet character widths to pixels.
const pixelsPerWidthUnit = 7

// layoutRequests unmerges the whole tab, then applies the page merges and
// column widths.
func layoutRequests(sheetID int64, p export.Page) []*gsheet.Request {
	reqs := []*gsheet.Request{{
		UnmergeCells: &gsheet.UnmergeCellsRequest{Range: &gsheet.GridRange{
			SheetId:         sheetID,
			ForceSendFields: []string{"SheetId"},
		}},
	}}
	for _, m := range p.Merges {
		reqs = append(reqs, &gsheet.Request{
			MergeCells: &gsheet.MergeCellsRequest{Range: gridRange(sheetID, m), MergeType: "MERGE_ALL"},
		})
	}
	for i, w := range p.ColWidths {
		reqs = append(reqs, &gsheet.Request{
			UpdateDimensionProperties: &gsheet.UpdateDimensionPropertiesRequest{
				Range: &gsheet.DimensionRange{
					SheetId:         sheetID,
					Dimension:       "COLUMNS",
					StartIndex:      int64(i),
					EndIndex:        int64(i + 1),
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
				Properties: &gsheet.DimensionProperties{PixelSize: int64(w*pixelsPerWidthUnit + 0.5)},
				Fields:     "pixelSize",
			},
		})
	}
	return reqs
}

// gridRange converts an inclusive layout range to the API's half-open form.
func gridRange(sheetID int64, r export.Range) *gsheet.GridRange {
	return &gsheet.GridRange{
		SheetId:          sheetID,
		StartRowIndex:    int64(r.Row),
		EndRowIndex:      int64(r.EndRow + 1),
		StartColumnIndex: int64(r.Col),
		EndColumnIndex:   int64(r.EndCol + 1),
		ForceSendFields:  []string{"SheetId", "StartRowIndex", "StartColumnIndex"},
	}
}

// columnName returns the A1 letters of a 0-based column index.
func columnName(col int) string {
	name := ""
	for col++; col > 0; col = (col - 1) / 26 {
		name = string(rune('A'+(col-1)%26)) + name
	}
	return name
}

func a1Cell(row, col int) string {
	return columnName(col) + strconv.Itoa(row+1)
}
