package source

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/SierraSoftworks/connor"
	json2 "github.com/go-json-experiment/json"
	"github.com/tidwall/gjson"

	"github.com/fulldump/windowdb/collection"
	"github.com/fulldump/windowdb/window"
)

// DocumentColumn projects the whole document.
const DocumentColumn = "@this"

type QueryOptions struct {
	Filter map[string]any `json:"filter"`
	Skip   int64          `json:"skip"`
	// Columns are gjson paths evaluated on every matching document
	Columns []string `json:"columns"`
}

// Query serves the documents of a collection that match a filter. The
// matching rows are snapshotted on first use, so positions stay stable until
// the next Requery.
type Query struct {
	col     *collection.Collection
	filter  map[string]any
	skip    int64
	columns []string

	mu       sync.Mutex
	rows     []collection.Row
	loaded   bool
	version  int64
	matchErr error
}

func NewQuery(col *collection.Collection, options QueryOptions) (*Query, error) {
	if col == nil {
		return nil, fmt.Errorf("nil collection")
	}
	if options.Skip < 0 {
		return nil, fmt.Errorf("negative skip %d", options.Skip)
	}

	columns := options.Columns
	if len(columns) == 0 {
		columns = []string{DocumentColumn}
	}
	for _, column := range columns {
		if strings.TrimSpace(column) == "" {
			return nil, fmt.Errorf("empty column path")
		}
	}

	return &Query{
		col:     col,
		filter:  options.Filter,
		skip:    options.Skip,
		columns: append([]string{}, columns...),
	}, nil
}

func (q *Query) ColumnCount() int {
	return len(q.columns)
}

func (q *Query) ColumnNames() []string {
	return append([]string{}, q.columns...)
}

func (q *Query) load() error {
	if q.loaded {
		return q.matchErr
	}

	q.version = q.col.Version()
	q.rows = q.rows[:0]
	q.matchErr = nil
	q.loaded = true

	hasFilter := len(q.filter) > 0
	skip := q.skip
	for _, row := range q.col.Snapshot() {
		if hasFilter {
			rowData := map[string]any{}
			if err := json2.Unmarshal(row.Payload, &rowData); err != nil {
				continue
			}
			match, err := connor.Match(q.filter, rowData)
			if err != nil {
				q.matchErr = fmt.Errorf("match: %w", err)
				return q.matchErr
			}
			if !match {
				continue
			}
		}
		if skip > 0 {
			skip--
			continue
		}
		q.rows = append(q.rows, row)
	}

	return nil
}

func (q *Query) Cell(ctx context.Context, row int64, col int) (window.Value, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.load(); err != nil {
		return window.Value{}, false, err
	}
	if row < 0 || row >= int64(len(q.rows)) {
		return window.Value{}, false, nil
	}
	if col < 0 || col >= len(q.columns) {
		return window.Value{}, false, fmt.Errorf("%w: column %d", window.ErrColumnOutOfRange, col)
	}

	return JSONValue(gjson.GetBytes(q.rows[row].Payload, q.columns[col])), true, nil
}

func (q *Query) Exhausted(ctx context.Context, after int64) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.load(); err != nil {
		return false, err
	}
	return after+1 >= int64(len(q.rows)), nil
}

// Requery drops the snapshot. The next read takes a fresh one.
func (q *Query) Requery(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.loaded = false
	return nil
}

// Stale reports whether the collection changed since the snapshot was taken.
func (q *Query) Stale() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.loaded && q.version != q.col.Version()
}

// RowID returns the collection id of a matching row, for callers that need to
// act on the documents a cursor shows.
func (q *Query) RowID(row int64) (int64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.loaded || row < 0 || row >= int64(len(q.rows)) {
		return 0, false
	}
	return q.rows[row].I, true
}

// JSONValue maps a gjson result onto a cell: integral numbers are integers,
// booleans 0 or 1, objects and arrays their raw JSON.
func JSONValue(r gjson.Result) window.Value {
	switch r.Type {
	case gjson.String:
		return window.String(r.Str)
	case gjson.Number:
		if !strings.ContainsAny(r.Raw, ".eE") {
			return window.Int(r.Int())
		}
		return window.Float(r.Num)
	case gjson.True:
		return window.Int(1)
	case gjson.False:
		return window.Int(0)
	case gjson.JSON:
		return window.String(r.Raw)
	}
	return window.Null()
}
