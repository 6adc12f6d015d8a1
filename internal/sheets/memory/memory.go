package memory

import (
	"context"
	"sync"

	"mealbook/internal/export"
	"mealbook/internal/ledger"
	"mealbook/internal/sheets"
)

// Mirror keeps mirrored tabs in memory. Used when no spreadsheet is
// configured and in tests.
type Mirror struct {
	opts export.Options

	mu      sync.Mutex
	tabs    map[string][][]interface{}
	mirrors int
}

var _ sheets.LedgerMirror = (*Mirror)(nil)

func New(opts export.Options) *Mirror {
	return &Mirror{opts: opts, tabs: make(map[string][][]interface{})}
}

func (m *Mirror) Mirror(_ context.Context, l ledger.Ledger) error {
	wb := export.Build(l, m.opts)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range wb.Pages {
		m.tabs[sheets.TabName(l, p)] = sheets.Values(p)
	}
	m.mirrors++
	return nil
}

// Tab returns the values of a mirrored tab.
func (m *Mirror) Tab(name string) ([][]interface{}, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.tabs[name]
	return v, ok
}

// Count returns how many times Mirror was called.
func (m *Mirror) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mirrors
}
