// Package sheets mirrors saved ledgers into an external spreadsheet.
package sheets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"mealbook/internal/export"
	"mealbook/internal/ledger"
)

// LedgerMirror replaces the mirrored copy of a ledger with its current
// export layout.
type LedgerMirror interface {
	Mirror(ctx context.Context, l ledger.Ledger) error
}

// maxOwnerLabel bounds the owner part of a tab title. Sheets caps titles at
// 100 characters.
const maxOwnerLabel = 40

// TabName names the tab holding one page of a ledger, e.g.
// "teacher-1 2024-04 Ngày 1-16". Every owner shares the spreadsheet, so the
// owner leads the title.
func TabName(l ledger.Ledger, page export.Page) string {
	return fmt.Sprintf("%s %04d-%02d %s", OwnerLabel(l.OwnerID), l.Year, l.Month+1, page.Name)
}

// OwnerLabel returns owner as it may appear in a tab title. Characters
// spreadsheets reject in titles become "_". A label that had to be altered
// gets a short digest of the original so distinct owners stay distinct.
func OwnerLabel(owner string) string {
	label := strings.Map(func(r rune) rune {
		if r < 32 || strings.ContainsRune(`[]*?:/\'`, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(owner))
	if utf8.RuneCountInString(label) > maxOwnerLabel {
		label = string([]rune(label)[:maxOwnerLabel])
	}
	if label == owner && label != "" {
		return label
	}
	sum := sha256.Sum256([]byte(owner))
	return label + "~" + hex.EncodeToString(sum[:4])
}

// Values flattens a page into a rectangular matrix of cell values. Empty
// cells become "".
func Values(p export.Page) [][]interface{} {
	out := make([][]interface{}, p.NumRows())
	for r := range out {
		row := make([]interface{}, p.NumCols())
		for c := range row {
			v := p.At(r, c).Value
			if v == nil {
				v = ""
			}
			row[c] = v
		}
		out[r] = row
	}
	return out
}
