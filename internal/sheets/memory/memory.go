package memory

import (
	"context"
	"fmt"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/sheets"
)

var _ sheets.ExportWriter = (*Store)(nil)

// Store keeps exported rows in memory. It backs the export endpoint when no
// spreadsheet is configured, and tests.
type Store struct {
	mu   sync.Mutex
	rows [][]any
}

func New() *Store {
	return &Store{}
}

// AppendRows stores the rows, writing the header first on an empty store, and
// returns a synthetic range reference.
func (s *Store) AppendRows(_ context.Context, rows []core.ExportRow) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rows) == 0 {
		s.rows = append(s.rows, sheets.Header)
	}
	first := len(s.rows) + 1
	for _, r := range rows {
		s.rows = append(s.rows, sheets.RowValues(r))
	}
	return fmt.Sprintf("mem:%d-%d", first, len(s.rows)), nil
}

// Rows returns a copy of everything written so far, header included.
func (s *Store) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]any(nil), s.rows...)
}
