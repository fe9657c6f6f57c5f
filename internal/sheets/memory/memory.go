// Package memory is an in-process sheets.Mirror used when no spreadsheet is
// configured and by worker tests.
package memory

import (
	"context"
	"slices"
	"sync"

	"gota/internal/sheets"
)

type Mirror struct {
	mu   sync.Mutex
	tabs map[string][][]string
}

var _ sheets.Mirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{tabs: make(map[string][][]string)}
}

func (m *Mirror) SyncUser(_ context.Context, tab string, rows [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make([][]string, len(rows))
	for i, row := range rows {
		copied[i] = slices.Clone(row)
	}
	m.tabs[tab] = copied
	return nil
}

func (m *Mirror) DeleteUser(_ context.Context, tab string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tabs, tab)
	return nil
}

// Rows returns the mirrored rows of tab and whether the tab exists.
func (m *Mirror) Rows(tab string) ([][]string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.tabs[tab]
	return rows, ok
}

// Tabs returns the names of every tab, sorted.
func (m *Mirror) Tabs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.tabs))
	for tab := range m.tabs {
		out = append(out, tab)
	}
	slices.Sort(out)
	return out
}
