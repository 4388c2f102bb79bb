package source

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fulldump/windowdb/window"
)

var ErrInjected = errors.New("injected failure")

// Slice serves in-memory rows. It can be slowed down and made to fail from a
// given row on, which makes it the source of choice for tests and benchmarks.
type Slice struct {
	mu      sync.Mutex
	columns []string
	rows    [][]any
	delay   time.Duration
	failAt  int64
	failErr error

	reads     atomic.Int64
	requeries atomic.Int64
}

func NewSlice(columns []string, rows [][]any) *Slice {
	return &Slice{
		columns: append([]string{}, columns...),
		rows:    rows,
		failAt:  -1,
	}
}

// Sequence returns a one column source with the integers [0, n).
func Sequence(column string, n int) *Slice {
	rows := make([][]any, n)
	for i := range rows {
		rows[i] = []any{int64(i)}
	}
	return NewSlice([]string{column}, rows)
}

// SetDelay makes every row read wait for d.
func (s *Slice) SetDelay(d time.Duration) {
	s.mu.Lock()
	s.delay = d
	s.mu.Unlock()
}

// FailFrom makes every read of row >= position return err (ErrInjected when
// nil). A negative position disables the failure.
func (s *Slice) FailFrom(position int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		err = ErrInjected
	}
	s.failAt = position
	s.failErr = err
}

// SetRows replaces the data. Cursors see it after a requery.
func (s *Slice) SetRows(rows [][]any) {
	s.mu.Lock()
	s.rows = rows
	s.mu.Unlock()
}

func (s *Slice) Append(rows ...[]any) {
	s.mu.Lock()
	s.rows = append(s.rows, rows...)
	s.mu.Unlock()
}

func (s *Slice) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// Reads counts the rows served so far.
func (s *Slice) Reads() int64 {
	return s.reads.Load()
}

func (s *Slice) Requeries() int64 {
	return s.requeries.Load()
}

func (s *Slice) ColumnCount() int {
	return len(s.columns)
}

func (s *Slice) ColumnNames() []string {
	return append([]string{}, s.columns...)
}

func (s *Slice) Cell(ctx context.Context, row int64, col int) (window.Value, bool, error) {
	s.mu.Lock()
	delay, failAt, failErr := s.delay, s.failAt, s.failErr
	var cells []any
	if row >= 0 && row < int64(len(s.rows)) {
		cells = s.rows[row]
	}
	s.mu.Unlock()

	if col == 0 {
		s.reads.Add(1)
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return window.Value{}, false, ctx.Err()
			}
		}
	}

	if failAt >= 0 && row >= failAt {
		return window.Value{}, false, fmt.Errorf("read row %d: %w", row, failErr)
	}
	if cells == nil {
		return window.Value{}, false, nil
	}
	if col < 0 || col >= len(s.columns) {
		return window.Value{}, false, fmt.Errorf("%w: column %d", window.ErrColumnOutOfRange, col)
	}
	if col >= len(cells) {
		return window.Null(), true, nil
	}

	v, err := window.ValueOf(cells[col])
	if err != nil {
		return window.Value{}, false, fmt.Errorf("row %d column %d: %w", row, col, err)
	}
	return v, true, nil
}

func (s *Slice) Exhausted(ctx context.Context, after int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return after+1 >= int64(len(s.rows)), nil
}

func (s *Slice) Requery(ctx context.Context) error {
	s.requeries.Add(1)
	return nil
}
