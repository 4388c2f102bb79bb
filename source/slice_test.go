package source

import (
	"context"
	"errors"
	"testing"

	"github.com/fulldump/biff"

	"github.com/fulldump/windowdb/window"
)

func TestSlice(t *testing.T) {
	ctx := context.Background()

	biff.Alternative("Slice", func(a *biff.A) {
		s := NewSlice([]string{"id", "name"}, [][]any{
			{1, "one"},
			{2, nil},
			{3},
		})

		biff.AssertEqual(s.ColumnCount(), 2)
		biff.AssertEqual(s.ColumnNames(), []string{"id", "name"})

		a.Alternative("Read cells", func(a *biff.A) {
			v, ok, err := s.Cell(ctx, 0, 1)
			biff.AssertNil(err)
			biff.AssertTrue(ok)
			biff.AssertEqual(v, window.String("one"))

			v, ok, _ = s.Cell(ctx, 1, 1)
			biff.AssertTrue(ok)
			biff.AssertTrue(v.IsNull())

			v, ok, _ = s.Cell(ctx, 2, 1)
			biff.AssertTrue(ok)
			biff.AssertTrue(v.IsNull())
		})

		a.Alternative("Past the end", func(a *biff.A) {
			_, ok, err := s.Cell(ctx, 3, 0)
			biff.AssertNil(err)
			biff.AssertFalse(ok)

			exhausted, _ := s.Exhausted(ctx, 1)
			biff.AssertFalse(exhausted)
			exhausted, _ = s.Exhausted(ctx, 2)
			biff.AssertTrue(exhausted)
		})

		a.Alternative("Injected failure", func(a *biff.A) {
			s.FailFrom(1, nil)

			_, _, err := s.Cell(ctx, 0, 0)
			biff.AssertNil(err)
			_, _, err = s.Cell(ctx, 1, 0)
			biff.AssertTrue(errors.Is(err, ErrInjected))
		})
	})
}

func TestSlice_EmptyIsExhausted(t *testing.T) {
	s := NewSlice([]string{"a"}, nil)
	exhausted, err := s.Exhausted(context.Background(), -1)
	biff.AssertNil(err)
	biff.AssertTrue(exhausted)
}

func TestSequence(t *testing.T) {
	s := Sequence("n", 10)
	v, ok, _ := s.Cell(context.Background(), 9, 0)
	biff.AssertTrue(ok)
	biff.AssertEqual(v, window.Int(9))
	biff.AssertEqual(s.Reads(), int64(1))
}
