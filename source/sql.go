package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fulldump/windowdb/window"
)

var ErrSourceClosed = errors.New("source is closed")

// SQL serves the result of a database/sql query. Rows are read forward only;
// asking for a row before the current one executes the query again and skips
// up to it.
type SQL struct {
	db    *sql.DB
	query string
	args  []any

	mu       sync.Mutex
	columns  []string
	blobs    []bool
	rows     *sql.Rows
	pos      int64 // position of the scanned row, -1 before the first
	current  []window.Value
	done     bool
	closed   bool
	executed int
}

// NewSQL runs the query once to learn its columns and keeps the result open
// for the first reads. The caller keeps ownership of db.
func NewSQL(ctx context.Context, db *sql.DB, query string, args ...any) (*SQL, error) {
	s := &SQL{
		db:    db,
		query: query,
		args:  args,
	}

	if err := s.execute(ctx); err != nil {
		return nil, err
	}

	columns, err := s.rows.Columns()
	if err != nil {
		s.rows.Close()
		return nil, fmt.Errorf("read columns: %w", err)
	}
	s.columns = columns

	s.blobs = make([]bool, len(columns))
	if types, err := s.rows.ColumnTypes(); err == nil {
		for i, t := range types {
			s.blobs[i] = isBinaryType(t.DatabaseTypeName())
		}
	}

	return s, nil
}

func isBinaryType(name string) bool {
	name = strings.ToUpper(name)
	return name == "BLOB" || name == "BYTEA" || strings.HasSuffix(name, "BINARY") || strings.HasSuffix(name, "BLOB")
}

func (s *SQL) execute(ctx context.Context) error {
	if s.rows != nil {
		s.rows.Close()
	}

	// The result outlives the request that opened it.
	rows, err := s.db.QueryContext(context.WithoutCancel(ctx), s.query, s.args...)
	if err != nil {
		s.rows = nil
		return fmt.Errorf("execute query: %w", err)
	}

	s.rows = rows
	s.pos = -1
	s.current = nil
	s.done = false
	s.executed++
	return nil
}

// Executions counts how many times the query ran.
func (s *SQL) Executions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executed
}

func (s *SQL) ColumnCount() int {
	return len(s.columns)
}

func (s *SQL) ColumnNames() []string {
	return append([]string{}, s.columns...)
}

// seek leaves the result positioned at `row` and reports whether it exists.
func (s *SQL) seek(ctx context.Context, row int64) (bool, error) {
	if s.closed {
		return false, ErrSourceClosed
	}
	if row < 0 {
		return false, nil
	}
	if s.pos == row && s.current != nil {
		return true, nil
	}
	if s.rows == nil || row < s.pos || (s.pos == row && s.current == nil) {
		if err := s.execute(ctx); err != nil {
			return false, err
		}
	}

	for s.pos < row {
		if s.done {
			return false, nil
		}
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if !s.rows.Next() {
			if err := s.rows.Err(); err != nil {
				return false, fmt.Errorf("read row %d: %w", s.pos+1, err)
			}
			s.done = true
			return false, nil
		}
		s.pos++
		s.current = nil
	}

	return true, s.scan()
}

func (s *SQL) scan() error {
	cells := make([]any, len(s.columns))
	pointers := make([]any, len(s.columns))
	for i := range cells {
		pointers[i] = &cells[i]
	}
	if err := s.rows.Scan(pointers...); err != nil {
		return fmt.Errorf("scan row %d: %w", s.pos, err)
	}

	current := make([]window.Value, len(cells))
	for i, cell := range cells {
		v, err := s.value(i, cell)
		if err != nil {
			return fmt.Errorf("row %d column '%s': %w", s.pos, s.columns[i], err)
		}
		current[i] = v
	}
	s.current = current
	return nil
}

func (s *SQL) value(col int, cell any) (window.Value, error) {
	switch v := cell.(type) {
	case []byte:
		b := append([]byte{}, v...)
		if s.blobs[col] {
			return window.Blob(b), nil
		}
		return window.Value{Type: window.FieldString, Bytes: b}, nil
	case time.Time:
		return window.String(v.Format(time.RFC3339Nano)), nil
	case fmt.Stringer:
		return window.String(v.String()), nil
	}
	return window.ValueOf(cell)
}

func (s *SQL) Cell(ctx context.Context, row int64, col int) (window.Value, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.seek(ctx, row)
	if err != nil || !ok {
		return window.Value{}, false, err
	}
	if col < 0 || col >= len(s.current) {
		return window.Value{}, false, fmt.Errorf("%w: column %d", window.ErrColumnOutOfRange, col)
	}
	return s.current[col], true, nil
}

func (s *SQL) Exhausted(ctx context.Context, after int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.seek(ctx, after+1)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// Requery runs the query again on the next read.
func (s *SQL) Requery(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSourceClosed
	}
	if s.rows != nil {
		s.rows.Close()
		s.rows = nil
	}
	s.pos = -1
	s.current = nil
	s.done = false
	return nil
}

func (s *SQL) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.rows == nil {
		return nil
	}
	err := s.rows.Close()
	s.rows = nil
	return err
}
