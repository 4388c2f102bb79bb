package window

import (
	"errors"
	"testing"

	"github.com/fulldump/biff"
)

func TestWindow(t *testing.T) {

	biff.Alternative("New window", func(a *biff.A) {
		w := New(3, 0)
		biff.AssertNil(w.SetStartOffset(10))
		biff.AssertNil(w.SetColumnCount(2))

		a.Alternative("Put and read every type", func(a *biff.A) {
			biff.AssertTrue(w.AllocateRow())
			biff.AssertTrue(w.PutInt(7, 10, 0))
			biff.AssertTrue(w.PutString("seven", 10, 1))
			biff.AssertTrue(w.AllocateRow())
			biff.AssertTrue(w.PutFloat(1.5, 11, 0))
			biff.AssertTrue(w.PutBlob([]byte{1, 2}, 11, 1))
			biff.AssertTrue(w.AllocateRow())

			i, err := w.GetInt(10, 0)
			biff.AssertNil(err)
			biff.AssertEqual(i, int64(7))

			s, _ := w.GetString(10, 1)
			biff.AssertEqual(s, "seven")

			f, _ := w.GetFloat(11, 0)
			biff.AssertEqual(f, 1.5)

			b, _ := w.GetBlob(11, 1)
			biff.AssertEqual(b, []byte{1, 2})

			null, _ := w.IsNull(12, 0)
			biff.AssertTrue(null)

			_, err = w.GetInt(11, 1)
			biff.AssertTrue(errors.Is(err, ErrTypeMismatch))

			biff.AssertEqual(w.RowCount(), int64(3))
			biff.AssertTrue(w.Contains(12))
			biff.AssertFalse(w.Contains(13))
		})

		a.Alternative("Capacity is never exceeded", func(a *biff.A) {
			biff.AssertTrue(w.AllocateRow())
			biff.AssertTrue(w.AllocateRow())
			biff.AssertTrue(w.AllocateRow())
			biff.AssertFalse(w.AllocateRow())

			biff.AssertNil(w.Grow(4))
			biff.AssertTrue(w.AllocateRow())
			biff.AssertEqual(w.Capacity(), int64(4))
		})

		a.Alternative("Out of range reads are errors", func(a *biff.A) {
			w.AllocateRow()

			_, err := w.Cell(9, 0)
			biff.AssertTrue(errors.Is(err, ErrRowOutOfRange))

			_, err = w.Cell(10, 2)
			biff.AssertTrue(errors.Is(err, ErrColumnOutOfRange))

			biff.AssertFalse(w.PutInt(1, 11, 0))
		})

		a.Alternative("Column count is fixed by the first row", func(a *biff.A) {
			w.AllocateRow()

			err := w.SetColumnCount(3)
			biff.AssertTrue(errors.Is(err, ErrColumnCountFixed))

			biff.AssertEqual(w.SetStartOffset(0), ErrWindowNotEmpty)
		})

		a.Alternative("Clear keeps capacity", func(a *biff.A) {
			w.AllocateRow()
			w.PutString("hello", 10, 0)
			w.Clear()

			biff.AssertEqual(w.RowCount(), int64(0))
			biff.AssertEqual(w.StartOffset(), int64(0))
			biff.AssertEqual(w.UsedBytes(), int64(0))
			biff.AssertEqual(w.Capacity(), int64(3))
			biff.AssertNil(w.SetColumnCount(5))
		})

		a.Alternative("FreeLastRow rolls back payload", func(a *biff.A) {
			w.AllocateRow()
			w.PutString("keep", 10, 0)
			used := w.UsedBytes()
			w.AllocateRow()
			w.PutString("drop", 11, 0)
			w.FreeLastRow()

			biff.AssertEqual(w.RowCount(), int64(1))
			biff.AssertEqual(w.UsedBytes(), used)
		})

		a.Alternative("Release", func(a *biff.A) {
			biff.AssertTrue(w.Acquire())
			w.Release()
			biff.AssertFalse(w.Closed())

			w.Release()
			biff.AssertTrue(w.Closed())
			biff.AssertFalse(w.Acquire())
			biff.AssertFalse(w.AllocateRow())

			_, err := w.Cell(10, 0)
			biff.AssertEqual(err, ErrWindowClosed)
		})
	})
}

func TestWindow_ByteBudget(t *testing.T) {
	w := New(100, 2*SlotSize+4)
	w.SetColumnCount(1)

	biff.AssertTrue(w.AllocateRow())
	biff.AssertTrue(w.PutString("abcd", 0, 0))
	biff.AssertTrue(w.AllocateRow())
	biff.AssertFalse(w.PutString("x", 1, 0))
	biff.AssertFalse(w.AllocateRow())
	biff.AssertEqual(w.UsedBytes(), int64(2*SlotSize+4))
}

func TestValueOf(t *testing.T) {
	v, err := ValueOf(true)
	biff.AssertNil(err)
	biff.AssertEqual(v, Int(1))

	v, _ = ValueOf(uint64(1 << 63))
	biff.AssertEqual(v.Type, FieldFloat)

	_, err = ValueOf(struct{}{})
	biff.AssertTrue(errors.Is(err, ErrTypeMismatch))

	i, _ := String("12").AsInt()
	biff.AssertEqual(i, int64(12))
	biff.AssertEqual(Blob([]byte("hi")).AsString(), "aGk=")
}
