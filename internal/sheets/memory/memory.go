package memory

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	ports "gastos/internal/sheets"
)

// Ensure interface conformance
var _ ports.Store = (*Store)(nil)

// Store keeps tables in memory. It backs local development
// (DATA_BACKEND=memory) and tests.
type Store struct {
	mu     sync.Mutex
	tables map[string][][]string
}

// New creates a store with the given tables and their header rows.
func New(headers map[string][]string) *Store {
	s := &Store{tables: make(map[string][][]string, len(headers))}
	for name, h := range headers {
		s.tables[name] = [][]string{append([]string(nil), h...)}
	}
	return s
}

// NewFromDir creates the tables and seeds each one from "<dir>/<table>.csv"
// when such a file exists. The CSV must not repeat the header row.
func NewFromDir(dir string, headers map[string][]string) (*Store, error) {
	s := New(headers)
	for name := range headers {
		rows, err := readCSV(filepath.Join(dir, name+".csv"))
		if err != nil {
			return nil, err
		}
		s.tables[name] = append(s.tables[name], rows...)
	}
	return s, nil
}

// Seed appends raw string rows, bypassing cell conversion.
func (s *Store) Seed(table string, rows ...[]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.tables[table] = append(s.tables[table], append([]string(nil), r...))
	}
}

// AppendRow stores the fields rendered as cell strings.
func (s *Store) AppendRow(_ context.Context, table string, fields []any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[table]; !ok {
		return fmt.Errorf("%w: %s", ports.ErrUnknownTable, table)
	}
	row := make([]string, len(fields))
	for i, f := range fields {
		row[i] = ports.CellString(f)
	}
	s.tables[table] = append(s.tables[table], row)
	return nil
}

// ReadAllRows returns a copy of every row, header included.
func (s *Store) ReadAllRows(_ context.Context, table string) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrUnknownTable, table)
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out, nil
}

func (s *Store) ReadAllRecords(ctx context.Context, table string) ([]map[string]string, error) {
	rows, err := s.ReadAllRows(ctx, table)
	if err != nil {
		return nil, err
	}
	return ports.RecordsFromRows(rows), nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open seed %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.Comment = '#'
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	for _, row := range rows {
		for i := range row {
			row[i] = strings.TrimSpace(row[i])
		}
	}
	return rows, nil
}
