package window

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
)

var (
	ErrWindowClosed      = errors.New("window is closed")
	ErrRowOutOfRange     = errors.New("row out of window range")
	ErrColumnOutOfRange  = errors.New("column out of range")
	ErrTypeMismatch      = errors.New("type mismatch")
	ErrColumnCountFixed  = errors.New("column count already fixed")
	ErrWindowNotEmpty    = errors.New("window is not empty")
	ErrNegativeCapacity  = errors.New("negative capacity")
	ErrNegativeColumnNum = errors.New("negative column count")
)

// SlotSize is the number of bytes every cell accounts for in the byte budget,
// on top of its string or blob payload.
const SlotSize = 24

type slot struct {
	kind   FieldType
	bits   uint64 // int64 or float64 bits, stored inline
	offset int
	size   int
}

// arena is the backing storage of a window: one slot per cell plus the
// payload bytes of strings and blobs.
type arena struct {
	slots   []slot
	data    []byte
	rowData []int // data length at each row allocation
}

func (a *arena) reset() {
	a.slots = a.slots[:0]
	a.data = a.data[:0]
	a.rowData = a.rowData[:0]
}

var arenaPool = sync.Pool{
	New: func() interface{} {
		return &arena{}
	},
}

// Window buffers the contiguous run of rows [StartOffset, StartOffset+RowCount).
//
// A Window is not safe for concurrent use: its owner serializes every call
// (the cursor does it with its own mutex). Only Acquire and Release may be
// called concurrently.
type Window struct {
	start        int64
	columns      int
	columnsFixed bool
	rows         int64
	capacity     int64
	maxBytes     int64
	arena        *arena
	refs         atomic.Int32
}

// New returns a window able to hold `capacity` rows, whose cells may not use
// more than maxBytes (0 means no byte limit). The caller owns the first
// reference.
func New(capacity, maxBytes int64) *Window {
	if capacity < 0 {
		capacity = 0
	}
	if maxBytes < 0 {
		maxBytes = 0
	}
	a := arenaPool.Get().(*arena)
	a.reset()
	w := &Window{
		capacity: capacity,
		maxBytes: maxBytes,
		arena:    a,
	}
	w.refs.Store(1)
	return w
}

// Acquire takes an extra reference. It returns false when the window has
// already been released by all of its holders.
func (w *Window) Acquire() bool {
	for {
		n := w.refs.Load()
		if n <= 0 {
			return false
		}
		if w.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release drops one reference. The last one gives the backing storage back to
// the pool; from then on writes fail and reads return ErrWindowClosed.
func (w *Window) Release() {
	n := w.refs.Add(-1)
	if n > 0 {
		return
	}
	if n < 0 {
		w.refs.Store(0)
		return
	}
	a := w.arena
	w.arena = nil
	w.rows = 0
	if a != nil {
		a.reset()
		arenaPool.Put(a)
	}
}

func (w *Window) Closed() bool {
	return w.refs.Load() <= 0
}

func (w *Window) Refs() int {
	return int(w.refs.Load())
}

// Clear empties the window and moves its start back to 0. Capacity, byte
// budget and backing storage are kept for reuse.
func (w *Window) Clear() {
	w.start = 0
	w.rows = 0
	w.columns = 0
	w.columnsFixed = false
	if w.arena != nil {
		w.arena.reset()
	}
}

// SetStartOffset repositions the logical base. It is only valid on an empty
// window, right after Clear.
func (w *Window) SetStartOffset(n int64) error {
	if w.rows != 0 {
		return ErrWindowNotEmpty
	}
	w.start = n
	return nil
}

// SetColumnCount fixes the number of columns of every row. It fails once rows
// were allocated with a different count.
func (w *Window) SetColumnCount(n int) error {
	if n < 0 {
		return ErrNegativeColumnNum
	}
	if w.columnsFixed && n != w.columns {
		return fmt.Errorf("%w: %d, requested %d", ErrColumnCountFixed, w.columns, n)
	}
	w.columns = n
	return nil
}

// Grow raises the row capacity. It never shrinks it.
func (w *Window) Grow(capacity int64) error {
	if capacity < 0 {
		return ErrNegativeCapacity
	}
	if capacity > w.capacity {
		w.capacity = capacity
	}
	return nil
}

func (w *Window) StartOffset() int64 {
	return w.start
}

func (w *Window) RowCount() int64 {
	return w.rows
}

func (w *Window) ColumnCount() int {
	return w.columns
}

func (w *Window) Capacity() int64 {
	return w.capacity
}

func (w *Window) MaxBytes() int64 {
	return w.maxBytes
}

// UsedBytes accounts cell slots plus string and blob payloads.
func (w *Window) UsedBytes() int64 {
	if w.arena == nil {
		return 0
	}
	return int64(len(w.arena.slots))*SlotSize + int64(len(w.arena.data))
}

// Contains reports whether the absolute position is buffered.
func (w *Window) Contains(position int64) bool {
	return position >= w.start && position < w.start+w.rows
}

func (w *Window) fits(extra int64) bool {
	if w.maxBytes == 0 {
		return true
	}
	return w.UsedBytes()+extra <= w.maxBytes
}

// AllocateRow reserves one more row with all of its cells set to null. It
// returns false when the row capacity or the byte budget is exhausted; the
// window never grows by itself.
func (w *Window) AllocateRow() bool {
	if w.arena == nil {
		return false
	}
	if w.rows >= w.capacity {
		return false
	}
	if !w.fits(int64(w.columns) * SlotSize) {
		return false
	}
	w.columnsFixed = true
	a := w.arena
	a.rowData = append(a.rowData, len(a.data))
	for i := 0; i < w.columns; i++ {
		a.slots = append(a.slots, slot{})
	}
	w.rows++
	return true
}

// FreeLastRow rolls back the last allocated row and its payload bytes.
func (w *Window) FreeLastRow() {
	if w.arena == nil || w.rows == 0 {
		return
	}
	a := w.arena
	w.rows--
	a.data = a.data[:a.rowData[w.rows]]
	a.rowData = a.rowData[:w.rows]
	a.slots = a.slots[:w.rows*int64(w.columns)]
}

func (w *Window) slotFor(row int64, col int) (*slot, error) {
	if w.arena == nil {
		return nil, ErrWindowClosed
	}
	if !w.Contains(row) {
		return nil, fmt.Errorf("%w: row %d, window [%d,%d)", ErrRowOutOfRange, row, w.start, w.start+w.rows)
	}
	if col < 0 || col >= w.columns {
		return nil, fmt.Errorf("%w: column %d of %d", ErrColumnOutOfRange, col, w.columns)
	}
	return &w.arena.slots[(row-w.start)*int64(w.columns)+int64(col)], nil
}

func (w *Window) PutNull(row int64, col int) bool {
	s, err := w.slotFor(row, col)
	if err != nil {
		return false
	}
	*s = slot{kind: FieldNull}
	return true
}

func (w *Window) PutInt(v int64, row int64, col int) bool {
	s, err := w.slotFor(row, col)
	if err != nil {
		return false
	}
	*s = slot{kind: FieldInteger, bits: uint64(v)}
	return true
}

func (w *Window) PutFloat(v float64, row int64, col int) bool {
	s, err := w.slotFor(row, col)
	if err != nil {
		return false
	}
	*s = slot{kind: FieldFloat, bits: math.Float64bits(v)}
	return true
}

func (w *Window) PutString(v string, row int64, col int) bool {
	return w.putBytes(FieldString, []byte(v), row, col)
}

func (w *Window) PutBlob(v []byte, row int64, col int) bool {
	return w.putBytes(FieldBlob, v, row, col)
}

func (w *Window) putBytes(kind FieldType, v []byte, row int64, col int) bool {
	s, err := w.slotFor(row, col)
	if err != nil {
		return false
	}
	if !w.fits(int64(len(v))) {
		return false
	}
	a := w.arena
	offset := len(a.data)
	a.data = append(a.data, v...)
	*s = slot{kind: kind, offset: offset, size: len(v)}
	return true
}

// Put stores any typed cell.
func (w *Window) Put(v Value, row int64, col int) bool {
	switch v.Type {
	case FieldNull:
		return w.PutNull(row, col)
	case FieldInteger:
		return w.PutInt(v.Int, row, col)
	case FieldFloat:
		return w.PutFloat(v.Float, row, col)
	case FieldString:
		return w.putBytes(FieldString, v.Bytes, row, col)
	case FieldBlob:
		return w.putBytes(FieldBlob, v.Bytes, row, col)
	}
	return false
}

// Cell returns a copy of the cell at the absolute row position.
func (w *Window) Cell(row int64, col int) (Value, error) {
	s, err := w.slotFor(row, col)
	if err != nil {
		return Value{}, err
	}
	switch s.kind {
	case FieldInteger:
		return Int(int64(s.bits)), nil
	case FieldFloat:
		return Float(math.Float64frombits(s.bits)), nil
	case FieldString, FieldBlob:
		b := make([]byte, s.size)
		copy(b, w.arena.data[s.offset:s.offset+s.size])
		return Value{Type: s.kind, Bytes: b}, nil
	}
	return Null(), nil
}

func (w *Window) GetType(row int64, col int) (FieldType, error) {
	s, err := w.slotFor(row, col)
	if err != nil {
		return FieldNull, err
	}
	return s.kind, nil
}

func (w *Window) IsNull(row int64, col int) (bool, error) {
	t, err := w.GetType(row, col)
	return t == FieldNull, err
}

func (w *Window) GetInt(row int64, col int) (int64, error) {
	v, err := w.Cell(row, col)
	if err != nil {
		return 0, err
	}
	return v.AsInt()
}

func (w *Window) GetFloat(row int64, col int) (float64, error) {
	v, err := w.Cell(row, col)
	if err != nil {
		return 0, err
	}
	return v.AsFloat()
}

func (w *Window) GetString(row int64, col int) (string, error) {
	v, err := w.Cell(row, col)
	if err != nil {
		return "", err
	}
	return v.AsString(), nil
}

// Blob returns blob and string payloads; other types are a mismatch.
func (w *Window) GetBlob(row int64, col int) ([]byte, error) {
	v, err := w.Cell(row, col)
	if err != nil {
		return nil, err
	}
	switch v.Type {
	case FieldNull:
		return nil, nil
	case FieldBlob, FieldString:
		return v.Bytes, nil
	}
	return nil, fmt.Errorf("%w: %s as blob", ErrTypeMismatch, v.Type)
}
