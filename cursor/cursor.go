package cursor

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/fulldump/windowdb/window"
)

const noCount = -1

// Cursor exposes a RowSource as a seekable sequence of rows while holding at
// most one window of them in memory.
//
// A single mutex guards the window, the generation counter and every write
// made by the background filler. Each reposition, requery or close bumps the
// generation, which turns any running filler into a no-op.
type Cursor struct {
	mu sync.Mutex

	id      string
	src     RowSource
	columns []string
	policy  window.Policy
	// maxBytes is the byte budget of every window, 0 means unlimited
	maxBytes int64
	log      *logrus.Entry

	win        *window.Window
	pos        int64
	count      int64
	exact      bool
	generation uint64
	state      FillState
	filling    bool
	closed     bool

	bgErr    error // reported once by Count or MoveTo
	lastErr  error
	notifier *Notifier
	fillers  sync.WaitGroup
	stats    stats
}

type Option func(c *Cursor)

func WithPolicy(p window.Policy) Option {
	return func(c *Cursor) {
		c.policy = p
	}
}

func WithMaxBytes(n int64) Option {
	return func(c *Cursor) {
		c.maxBytes = n
	}
}

func WithLogger(l *logrus.Entry) Option {
	return func(c *Cursor) {
		c.log = l
	}
}

func WithID(id string) Option {
	return func(c *Cursor) {
		c.id = id
	}
}

func WithNotifier(n *Notifier) Option {
	return func(c *Cursor) {
		c.notifier = n
	}
}

func New(src RowSource, options ...Option) (*Cursor, error) {
	if src == nil {
		return nil, fmt.Errorf("nil row source")
	}

	c := &Cursor{
		src:      src,
		columns:  src.ColumnNames(),
		policy:   window.DefaultPolicy(),
		pos:      -1,
		count:    noCount,
		notifier: NewNotifier(),
	}
	for _, option := range options {
		option(c)
	}

	if err := c.policy.Validate(); err != nil {
		return nil, err
	}
	if c.maxBytes < 0 {
		return nil, fmt.Errorf("negative window byte budget %d", c.maxBytes)
	}
	if n := src.ColumnCount(); n != len(c.columns) {
		return nil, fmt.Errorf("row source reports %d columns but names %d", n, len(c.columns))
	}

	if c.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		c.log = logrus.NewEntry(l)
	}
	c.log = c.log.WithField("cursor", c.id)

	return c, nil
}

func (c *Cursor) ID() string {
	return c.id
}

func (c *Cursor) Policy() window.Policy {
	return c.policy
}

func (c *Cursor) Notifier() *Notifier {
	return c.notifier
}

func (c *Cursor) ColumnNames() []string {
	return append([]string{}, c.columns...)
}

func (c *Cursor) ColumnCount() int {
	return len(c.columns)
}

// ColumnIndex returns -1 for unknown columns. A "table.column" name is
// looked up by its column part.
func (c *Cursor) ColumnIndex(name string) int {
	if i := strings.LastIndex(name, "."); i != -1 {
		if idx := c.columnIndex(name); idx != -1 {
			return idx
		}
		name = name[i+1:]
	}
	return c.columnIndex(name)
}

func (c *Cursor) columnIndex(name string) int {
	for i, column := range c.columns {
		if column == name {
			return i
		}
	}
	return -1
}

// Count returns the number of rows known so far. The first call fills a
// window at offset 0. While a background fill is running the value may grow;
// it stops changing once the source is exhausted, see Exact.
func (c *Cursor) Count(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkLocked(); err != nil {
		return 0, err
	}

	if c.count == noCount {
		if err := c.fillLocked(ctx, 0); err != nil {
			return 0, err
		}
	}

	return c.count, nil
}

// Exact reports whether the count is final.
func (c *Cursor) Exact() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exact
}

// MoveTo positions the cursor at an absolute row, refilling the window when
// the row is not buffered. It returns false when the row does not exist.
func (c *Cursor) MoveTo(ctx context.Context, position int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.moveLocked(ctx, position)
}

// ReadAt moves to position and copies its row under the same lock, so a
// concurrent reposition cannot evict the row in between. The row is nil when
// the position does not exist.
func (c *Cursor) ReadAt(ctx context.Context, position int64) (bool, []window.Value, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ok, err := c.moveLocked(ctx, position)
	if err != nil || !ok {
		return ok, nil, err
	}

	row, err := c.rowLocked(position)
	if err != nil {
		return false, nil, err
	}
	return true, row, nil
}

func (c *Cursor) moveLocked(ctx context.Context, position int64) (bool, error) {
	if err := c.checkLocked(); err != nil {
		return false, err
	}

	if position < 0 {
		c.pos = -1
		return false, nil
	}

	if c.exact && position >= c.count {
		c.pos = c.count
		return false, nil
	}

	if c.win == nil || !c.win.Contains(position) {
		if err := c.fillLocked(ctx, position); err != nil {
			return false, err
		}
	}

	if c.exact && position >= c.count {
		c.pos = c.count
		return false, nil
	}

	if !c.win.Contains(position) {
		return false, fmt.Errorf("%w: row %d, byte budget %d", ErrRowTooLarge, position, c.maxBytes)
	}

	c.pos = position
	return true, nil
}

func (c *Cursor) Move(ctx context.Context, offset int64) (bool, error) {
	return c.MoveTo(ctx, c.Position()+offset)
}

func (c *Cursor) MoveToFirst(ctx context.Context) (bool, error) {
	return c.MoveTo(ctx, 0)
}

func (c *Cursor) MoveToLast(ctx context.Context) (bool, error) {
	n, err := c.Count(ctx)
	if err != nil {
		return false, err
	}
	return c.MoveTo(ctx, n-1)
}

func (c *Cursor) MoveToNext(ctx context.Context) (bool, error) {
	return c.Move(ctx, 1)
}

func (c *Cursor) MoveToPrevious(ctx context.Context) (bool, error) {
	return c.Move(ctx, -1)
}

func (c *Cursor) Position() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pos
}

func (c *Cursor) IsBeforeFirst() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pos < 0 || c.count == 0
}

func (c *Cursor) IsAfterLast() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exact && c.pos >= c.count
}

// Cell reads a cell of any buffered row. Reading outside of the current
// window is an error, the cursor never makes up values.
func (c *Cursor) Cell(position int64, col int) (window.Value, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cellLocked(position, col)
}

func (c *Cursor) cellLocked(position int64, col int) (window.Value, error) {
	if c.closed {
		return window.Value{}, ErrCursorClosed
	}
	if c.win == nil || !c.win.Contains(position) {
		start, end := int64(0), int64(0)
		if c.win != nil {
			start, end = c.win.StartOffset(), c.win.StartOffset()+c.win.RowCount()
		}
		return window.Value{}, fmt.Errorf("%w: row %d, window [%d,%d)", ErrNotInWindow, position, start, end)
	}
	return c.win.Cell(position, col)
}

// Row copies every cell of a buffered row.
func (c *Cursor) Row(position int64) ([]window.Value, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rowLocked(position)
}

func (c *Cursor) rowLocked(position int64) ([]window.Value, error) {
	row := make([]window.Value, len(c.columns))
	for col := range c.columns {
		v, err := c.cellLocked(position, col)
		if err != nil {
			return nil, err
		}
		row[col] = v
	}
	return row, nil
}

// Get reads a cell of the current row.
func (c *Cursor) Get(col int) (window.Value, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cellLocked(c.pos, col)
}

func (c *Cursor) GetType(col int) (window.FieldType, error) {
	v, err := c.Get(col)
	return v.Type, err
}

func (c *Cursor) IsNull(col int) (bool, error) {
	v, err := c.Get(col)
	return v.IsNull(), err
}

func (c *Cursor) GetInt(col int) (int64, error) {
	v, err := c.Get(col)
	if err != nil {
		return 0, err
	}
	return v.AsInt()
}

func (c *Cursor) GetFloat(col int) (float64, error) {
	v, err := c.Get(col)
	if err != nil {
		return 0, err
	}
	return v.AsFloat()
}

func (c *Cursor) GetString(col int) (string, error) {
	v, err := c.Get(col)
	if err != nil {
		return "", err
	}
	return v.AsString(), nil
}

func (c *Cursor) GetBlob(col int) ([]byte, error) {
	v, err := c.Get(col)
	if err != nil {
		return nil, err
	}
	switch v.Type {
	case window.FieldNull:
		return nil, nil
	case window.FieldBlob, window.FieldString:
		return v.Bytes, nil
	}
	return nil, fmt.Errorf("%w: %s as blob", window.ErrTypeMismatch, v.Type)
}

// WindowInfo is a consistent snapshot of the cursor and its window.
type WindowInfo struct {
	Generation uint64    `json:"generation"`
	Start      int64     `json:"start"`
	Rows       int64     `json:"rows"`
	Capacity   int64     `json:"capacity"`
	Bytes      int64     `json:"bytes"`
	State      FillState `json:"-"`
	StateName  string    `json:"state"`
	Filling    bool      `json:"filling"`
	Position   int64     `json:"position"`
	Count      int64     `json:"count"`
	Exact      bool      `json:"exact"`
}

func (c *Cursor) Window() WindowInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	info := WindowInfo{
		Generation: c.generation,
		State:      c.state,
		StateName:  c.state.String(),
		Filling:    c.filling,
		Position:   c.pos,
		Count:      c.count,
		Exact:      c.exact,
	}
	if c.win != nil {
		info.Start = c.win.StartOffset()
		info.Rows = c.win.RowCount()
		info.Capacity = c.win.Capacity()
		info.Bytes = c.win.UsedBytes()
	}
	return info
}

// Requery drops the window and the count so the next access reads the source
// again. It returns false on a closed cursor.
func (c *Cursor) Requery(ctx context.Context) (bool, error) {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		return false, nil
	}

	c.invalidateLocked()
	c.dropWindowLocked()
	c.pos = -1
	c.count = noCount
	c.exact = false
	c.bgErr = nil

	var err error
	if r, ok := c.src.(Requerier); ok {
		err = r.Requery(ctx)
	}
	c.mu.Unlock()

	if err != nil {
		return false, fmt.Errorf("requery: %w", err)
	}

	c.log.WithField("generation", c.generationValue()).Debug("requery")
	c.notify()
	return true, nil
}

// SetWindow hands a window to the cursor, replacing and releasing the current
// one. The count becomes unknown.
func (c *Cursor) SetWindow(w *window.Window) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.invalidateLocked()
	c.dropWindowLocked()
	c.win = w
	c.count = noCount
	c.exact = false
}

// Close orphans any background filler, releases the window and closes the
// source when it is an io.Closer. It is safe to call more than once.
func (c *Cursor) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.invalidateLocked()
	c.dropWindowLocked()
	c.log.Debug("closed")

	if closer, ok := c.src.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *Cursor) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Err returns the last background fill error, if any.
func (c *Cursor) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Wait blocks until every filler started so far has exited.
func (c *Cursor) Wait() {
	c.fillers.Wait()
}

func (c *Cursor) Stats() Stats {
	return c.stats.snapshot()
}

func (c *Cursor) generationValue() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func (c *Cursor) checkLocked() error {
	if c.closed {
		return ErrCursorClosed
	}
	if err := c.bgErr; err != nil {
		c.bgErr = nil
		return fmt.Errorf("background fill: %w", err)
	}
	return nil
}

// invalidateLocked starts a new generation; fillers of the previous one stop
// at their next lock acquisition.
func (c *Cursor) invalidateLocked() {
	c.generation++
	c.state = StateEmpty
	c.filling = false
}

func (c *Cursor) dropWindowLocked() {
	if c.win == nil {
		return
	}
	c.stats.clears.Add(1)
	c.stats.enterWriter()
	c.win.Release()
	c.stats.exitWriter()
	c.win = nil
}

func (c *Cursor) notify() {
	c.stats.notifications.Add(1)
	c.notifier.Notify()
}
