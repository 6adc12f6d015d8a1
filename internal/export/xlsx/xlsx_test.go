package xlsx

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"mealbook/internal/export"
	"mealbook/internal/ledger"
)

func sampleLedger() ledger.Ledger {
	l := ledger.New(ledger.Key{OwnerID: "o", Month: 3, Year: 2024})
	l.Details = ledger.Details{ClassName: "3A / Bán trú", TeacherName: "Cô Hoa", Location: "Huế"}
	l.StandardMeals = ledger.Quota{S: 20, T1: 20, T2: 16}
	l.Students = []ledger.Student{
		{ID: "a", Name: "Linh", Meals: ledger.DayMarks{1: {S: true}}},
		{ID: "b", Name: "Mai", Meals: ledger.DayMarks{20: {T1: true}}},
	}
	return l
}

func TestFilename(t *testing.T) {
	if got := Filename(sampleLedger()); got != "SoAn_3A_Bán_trú_T04_2024.xlsx" {
		t.Fatalf("unexpected filename %q", got)
	}
	l := ledger.New(ledger.Key{OwnerID: "o", Month: 11, Year: 2023})
	if got := Filename(l); got != "SoAn_Lop_T12_2023.xlsx" {
		t.Fatalf("unexpected filename %q", got)
	}
}

func TestRenderRoundTrip(t *testing.T) {
	l := sampleLedger()
	data, err := Render(l, export.Options{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open rendered file: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 2 || sheets[0] != "Ngày 1-16" || sheets[1] != "Ngày 17-30" {
		t.Fatalf("unexpected sheets %v", sheets)
	}

	name, err := f.GetCellValue(sheets[0], "B5")
	if err != nil || name != "Linh" {
		t.Fatalf("B5 = %q, %v", name, err)
	}
	mark, err := f.GetCellValue(sheets[0], "C5")
	if err != nil || mark != export.DefaultMarkSymbol {
		t.Fatalf("C5 = %q, %v", mark, err)
	}

	merges, err := f.GetMergeCells(sheets[1])
	if err != nil {
		t.Fatalf("merge cells: %v", err)
	}
	wb := export.Build(l, export.Options{})
	if len(merges) != len(wb.Pages[1].Merges) {
		t.Fatalf("page B has %d merges, want %d", len(merges), len(wb.Pages[1].Merges))
	}

	rows, err := f.GetRows(sheets[1])
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) <= wb.Pages[1].TotalsRow {
		t.Fatalf("page B has %d rows, want more than %d", len(rows), wb.Pages[1].TotalsRow)
	}
	last := rows[len(rows)-1]
	found := false
	for _, v := range last {
		if v == "Cô Hoa" {
			found = true
		}
	}
	if !found {
		t.Fatalf("last row %v does not carry the teacher name", last)
	}
}
