package cursor

import (
	"context"

	"github.com/fulldump/windowdb/window"
)

// RowSource produces the cells a cursor buffers. A cursor never calls a
// RowSource from two goroutines at the same time.
type RowSource interface {
	ColumnCount() int
	ColumnNames() []string

	// Cell returns the value at an absolute row and column. ok is false when
	// the row does not exist.
	Cell(ctx context.Context, row int64, col int) (v window.Value, ok bool, err error)

	// Exhausted reports whether there is no row after the `after` position.
	// Exhausted(ctx, -1) is true for an empty source.
	Exhausted(ctx context.Context, after int64) (bool, error)
}

// Requerier is implemented by sources that can rerun their query.
type Requerier interface {
	Requery(ctx context.Context) error
}
