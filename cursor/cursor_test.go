package cursor

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/fulldump/biff"

	"github.com/fulldump/windowdb/source"
	"github.com/fulldump/windowdb/window"
)

func mustPolicy(initial, growth, max int64) window.Policy {
	p, err := window.CustomPolicy(initial, growth, max)
	if err != nil {
		panic(err)
	}
	return p
}

func newCursor(t *testing.T, src RowSource, options ...Option) *Cursor {
	c, err := New(src, options...)
	biff.AssertNil(err)
	t.Cleanup(func() {
		c.Close()
		c.Wait()
	})
	return c
}

// windowValues reads column 0 of every buffered row.
func windowValues(c *Cursor) []int64 {
	info := c.Window()
	values := []int64{}
	for p := info.Start; p < info.Start+info.Rows; p++ {
		v, err := c.Cell(p, 0)
		if err != nil {
			panic(err)
		}
		values = append(values, v.Int)
	}
	return values
}

func TestCursor_FirstMoveFillsSynchronously(t *testing.T) {
	ctx := context.Background()
	src := source.Sequence("n", 10000)
	c := newCursor(t, src, WithPolicy(mustPolicy(100, 100, window.Unbounded)))

	ok, err := c.MoveTo(ctx, 0)
	biff.AssertNil(err)
	biff.AssertTrue(ok)

	info := c.Window()
	biff.AssertEqual(info.Start, int64(0))
	biff.AssertTrue(info.Rows >= 100)

	n, _ := c.GetInt(0)
	biff.AssertEqual(n, int64(0))

	c.Wait()

	count, err := c.Count(ctx)
	biff.AssertNil(err)
	biff.AssertEqual(count, int64(10000))
	biff.AssertTrue(c.Exact())
	biff.AssertEqual(c.Window().StateName, "bg_exhausted")

	// every row is reachable without another synchronous fill
	fills := c.Stats().SyncFills
	ok, _ = c.MoveTo(ctx, 9999)
	biff.AssertTrue(ok)
	biff.AssertEqual(c.Stats().SyncFills, fills)
}

func TestCursor_FixedPolicy(t *testing.T) {
	ctx := context.Background()

	biff.Alternative("Fixed window of 50 over 500 rows", func(a *biff.A) {
		src := source.Sequence("n", 500)
		c := newCursor(t, src, WithPolicy(window.FixedPolicy(50)))

		ok, err := c.MoveTo(ctx, 0)
		biff.AssertNil(err)
		biff.AssertTrue(ok)
		c.Wait()
		biff.AssertEqual(c.Window().Rows, int64(50))
		biff.AssertFalse(c.Exact())

		a.Alternative("Move far away", func(a *biff.A) {
			ok, err := c.MoveTo(ctx, 200)
			biff.AssertNil(err)
			biff.AssertTrue(ok)

			info := c.Window()
			biff.AssertEqual(info.Start, int64(200))
			biff.AssertEqual(info.Rows, int64(50))
			biff.AssertEqual(windowValues(c)[0], int64(200))

			_, err = c.Cell(0, 0)
			biff.AssertTrue(errors.Is(err, ErrNotInWindow))
		})

		a.Alternative("Move to the last row", func(a *biff.A) {
			ok, _ := c.MoveTo(ctx, 499)
			biff.AssertTrue(ok)
			biff.AssertTrue(c.Exact())

			count, _ := c.Count(ctx)
			biff.AssertEqual(count, int64(500))

			ok, _ = c.MoveTo(ctx, 500)
			biff.AssertFalse(ok)
			biff.AssertTrue(c.IsAfterLast())
		})

		a.Alternative("Move past the end", func(a *biff.A) {
			ok, err := c.MoveTo(ctx, 1000)
			biff.AssertNil(err)
			biff.AssertFalse(ok)
			biff.AssertTrue(c.Exact())

			count, _ := c.Count(ctx)
			biff.AssertEqual(count, int64(500))
		})

		a.Alternative("Window never grows", func(a *biff.A) {
			for _, p := range []int64{10, 120, 60, 499, 0} {
				c.MoveTo(ctx, p)
				c.Wait()
				biff.AssertTrue(c.Window().Rows <= 50)
				biff.AssertTrue(c.Window().Capacity <= 50)
			}
		})
	})
}

func TestCursor_CloseStopsFiller(t *testing.T) {
	ctx := context.Background()
	src := source.Sequence("n", 1000000)
	c := newCursor(t, src, WithPolicy(mustPolicy(100, 100, window.Unbounded)))

	c.MoveTo(ctx, 0)
	time.Sleep(time.Millisecond)

	biff.AssertNil(c.Close())
	reads := src.Reads()
	c.Wait()

	biff.AssertEqual(src.Reads(), reads)
	biff.AssertEqual(c.Stats().AbortedFillers, int64(1))
	biff.AssertTrue(c.Closed())

	_, err := c.MoveTo(ctx, 0)
	biff.AssertEqual(err, ErrCursorClosed)
	_, err = c.Count(ctx)
	biff.AssertEqual(err, ErrCursorClosed)
	biff.AssertNil(c.Close())
}

func TestCursor_StaleFillerNeverWrites(t *testing.T) {
	ctx := context.Background()
	src := source.Sequence("n", 1000)
	src.SetDelay(time.Millisecond)
	c := newCursor(t, src, WithPolicy(mustPolicy(10, 10, 40)))

	c.MoveTo(ctx, 0)
	ok, err := c.MoveTo(ctx, 500)
	biff.AssertNil(err)
	biff.AssertTrue(ok)
	c.Wait()

	info := c.Window()
	biff.AssertEqual(info.Start, int64(500))
	biff.AssertEqual(info.Rows, int64(40))
	biff.AssertEqual(info.StateName, "bg_capacity_limited")
	for i, v := range windowValues(c) {
		biff.AssertEqual(v, int64(500+i))
	}
	biff.AssertEqual(c.Stats().AbortedFillers, int64(1))
}

func TestCursor_CountIsMonotone(t *testing.T) {
	ctx := context.Background()
	src := source.Sequence("n", 300)
	src.SetDelay(50 * time.Microsecond)
	c := newCursor(t, src, WithPolicy(mustPolicy(10, 10, window.Unbounded)))

	last := int64(0)
	for !c.Exact() {
		n, err := c.Count(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if n < last {
			t.Fatalf("count went back from %d to %d", last, n)
		}
		last = n
	}

	n, _ := c.Count(ctx)
	biff.AssertEqual(n, int64(300))
}

func TestCursor_RepositionInsideWindowDoesNotRefill(t *testing.T) {
	ctx := context.Background()
	c := newCursor(t, source.Sequence("n", 100), WithPolicy(window.FixedPolicy(20)))

	c.MoveTo(ctx, 5)
	fills := c.Stats().SyncFills

	c.MoveTo(ctx, 5)
	c.MoveTo(ctx, 19)
	c.MoveTo(ctx, 5)
	biff.AssertEqual(c.Stats().SyncFills, fills)

	c.MoveToFirst(ctx)
	fills = c.Stats().SyncFills
	c.MoveTo(ctx, 0)
	biff.AssertEqual(c.Stats().SyncFills, fills)

	c.MoveToNext(ctx)
	biff.AssertEqual(c.Position(), int64(1))
	c.MoveToPrevious(ctx)
	c.MoveToPrevious(ctx)
	biff.AssertEqual(c.Position(), int64(-1))
	biff.AssertTrue(c.IsBeforeFirst())
}

func TestCursor_NoConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	src := source.Sequence("n", 5000)
	c := newCursor(t, src, WithPolicy(mustPolicy(16, 16, 256)))

	wg := &sync.WaitGroup{}
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			for i := 0; i < 50; i++ {
				p := r.Int63n(5000)
				ok, err := c.MoveTo(ctx, p)
				if err != nil || !ok {
					t.Errorf("move to %d: %v %v", p, ok, err)
					return
				}
				c.Cell(p, 0)
				c.Count(ctx)
			}
		}(int64(g))
	}
	wg.Wait()
	c.Wait()

	biff.AssertEqual(c.Stats().MaxConcurrentWriters, int64(1))

	// whatever window survived holds consistent rows
	info := c.Window()
	for i, v := range windowValues(c) {
		biff.AssertEqual(v, info.Start+int64(i))
	}
}

func TestCursor_ReadAtUnderConcurrentMoves(t *testing.T) {
	ctx := context.Background()
	src := source.Sequence("n", 1000)
	c := newCursor(t, src, WithPolicy(window.FixedPolicy(10)))

	wg := &sync.WaitGroup{}
	for g := 0; g < 2; g++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			for i := 0; i < 2000; i++ {
				p := r.Int63n(1000)
				ok, row, err := c.ReadAt(ctx, p)
				if err != nil || !ok {
					t.Errorf("read at %d: %v %v", p, ok, err)
					return
				}
				if row[0].Int != p {
					t.Errorf("read at %d: got row %d", p, row[0].Int)
					return
				}
			}
		}(int64(g))
	}
	wg.Wait()

	ok, row, err := c.ReadAt(ctx, 1000)
	biff.AssertNil(err)
	biff.AssertFalse(ok)
	biff.AssertEqual(len(row), 0)
}

func TestCursor_NotifierLatch(t *testing.T) {
	ctx := context.Background()
	c := newCursor(t, source.Sequence("n", 100), WithPolicy(mustPolicy(10, 10, window.Unbounded)))

	c.MoveTo(ctx, 0)
	c.Wait()
	biff.AssertTrue(c.Notifier().Pending())

	calls := 0
	c.Notifier().Register(func() { calls++ })
	biff.AssertEqual(calls, 1)
	biff.AssertFalse(c.Notifier().Pending())

	c.Notifier().Unregister()
	c.Requery(ctx)
	biff.AssertEqual(calls, 1)
	biff.AssertTrue(c.Notifier().Pending())
}

func TestCursor_Subscribe(t *testing.T) {
	ctx := context.Background()
	src := source.Sequence("n", 100)
	src.SetDelay(100 * time.Microsecond)
	c := newCursor(t, src, WithPolicy(mustPolicy(10, 10, window.Unbounded)))

	changes := c.Notifier().Subscribe()
	c.MoveTo(ctx, 0)

	select {
	case <-changes:
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}
	biff.AssertTrue(c.Stats().Notifications > 0)
}

func TestCursor_BackgroundErrorIsReportedOnce(t *testing.T) {
	ctx := context.Background()
	src := source.Sequence("n", 100)
	src.FailFrom(50, nil)
	c := newCursor(t, src, WithPolicy(mustPolicy(10, 10, window.Unbounded)))

	ok, err := c.MoveTo(ctx, 0)
	biff.AssertNil(err)
	biff.AssertTrue(ok)
	c.Wait()

	biff.AssertTrue(errors.Is(c.Err(), source.ErrInjected))
	biff.AssertEqual(c.Window().StateName, "bg_failed")
	biff.AssertEqual(c.Stats().FillErrors, int64(1))

	_, err = c.Count(ctx)
	biff.AssertTrue(errors.Is(err, source.ErrInjected))

	n, err := c.Count(ctx)
	biff.AssertNil(err)
	biff.AssertEqual(n, int64(50))
	biff.AssertFalse(c.Exact())

	a := c.Window().Rows
	biff.AssertEqual(a, int64(50))
}

func TestCursor_SyncErrorIsReturned(t *testing.T) {
	ctx := context.Background()
	src := source.Sequence("n", 100)
	src.FailFrom(60, nil)
	c := newCursor(t, src, WithPolicy(window.FixedPolicy(10)))

	_, err := c.MoveTo(ctx, 70)
	biff.AssertTrue(errors.Is(err, source.ErrInjected))

	ok, err := c.MoveTo(ctx, 20)
	biff.AssertNil(err)
	biff.AssertTrue(ok)
}

func TestCursor_EmptySource(t *testing.T) {
	ctx := context.Background()
	c := newCursor(t, source.NewSlice([]string{"a"}, nil))

	n, err := c.Count(ctx)
	biff.AssertNil(err)
	biff.AssertEqual(n, int64(0))
	biff.AssertTrue(c.Exact())

	ok, err := c.MoveToFirst(ctx)
	biff.AssertNil(err)
	biff.AssertFalse(ok)
	biff.AssertTrue(c.IsBeforeFirst())

	ok, _ = c.MoveToLast(ctx)
	biff.AssertFalse(ok)
}

func TestCursor_RowTooLarge(t *testing.T) {
	ctx := context.Background()
	c := newCursor(t, source.Sequence("n", 10), WithMaxBytes(window.SlotSize-1))

	_, err := c.MoveTo(ctx, 0)
	biff.AssertTrue(errors.Is(err, ErrRowTooLarge))
}

func TestCursor_ByteBudgetLimitsWindow(t *testing.T) {
	ctx := context.Background()
	c := newCursor(t, source.Sequence("n", 100), WithMaxBytes(10*window.SlotSize))

	ok, _ := c.MoveTo(ctx, 0)
	biff.AssertTrue(ok)
	c.Wait()
	biff.AssertEqual(c.Window().Rows, int64(10))

	ok, _ = c.MoveTo(ctx, 55)
	biff.AssertTrue(ok)
	biff.AssertEqual(c.Window().Start, int64(55))
}

func TestCursor_Requery(t *testing.T) {
	ctx := context.Background()
	src := source.Sequence("n", 10)
	c := newCursor(t, src, WithPolicy(window.FixedPolicy(5)))

	c.MoveTo(ctx, 9)
	n, _ := c.Count(ctx)
	biff.AssertEqual(n, int64(10))

	src.Append([]any{10}, []any{11})

	ok, err := c.Requery(ctx)
	biff.AssertNil(err)
	biff.AssertTrue(ok)
	biff.AssertEqual(c.Position(), int64(-1))
	biff.AssertEqual(src.Requeries(), int64(1))

	ok, _ = c.MoveTo(ctx, 11)
	biff.AssertTrue(ok)
	n, _ = c.Count(ctx)
	biff.AssertEqual(n, int64(12))

	c.Close()
	ok, err = c.Requery(ctx)
	biff.AssertNil(err)
	biff.AssertFalse(ok)
}

func TestCursor_SetWindow(t *testing.T) {
	ctx := context.Background()
	c := newCursor(t, source.Sequence("n", 30), WithPolicy(window.FixedPolicy(10)))
	c.MoveTo(ctx, 0)

	w := window.New(20, 0)
	c.SetWindow(w)
	biff.AssertEqual(c.Window().Rows, int64(0))

	ok, _ := c.MoveTo(ctx, 3)
	biff.AssertTrue(ok)
	biff.AssertEqual(c.Window().Capacity, int64(20))
}

func TestCursor_Columns(t *testing.T) {
	src := source.NewSlice([]string{"id", "name", "price"}, [][]any{{1, "one", 1.5}})
	c := newCursor(t, src)

	biff.AssertEqual(c.ColumnIndex("name"), 1)
	biff.AssertEqual(c.ColumnIndex("items.price"), 2)
	biff.AssertEqual(c.ColumnIndex("missing"), -1)

	c.MoveTo(context.Background(), 0)
	s, _ := c.GetString(1)
	biff.AssertEqual(s, "one")
	f, _ := c.GetFloat(2)
	biff.AssertEqual(f, 1.5)
	_, err := c.GetBlob(2)
	biff.AssertTrue(errors.Is(err, window.ErrTypeMismatch))

	row, _ := c.Row(0)
	biff.AssertEqual(len(row), 3)
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(nil)
	biff.AssertNotNil(err)

	_, err = New(source.Sequence("n", 1), WithMaxBytes(-1))
	biff.AssertNotNil(err)
}
