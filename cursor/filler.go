package cursor

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/fulldump/windowdb/window"
)

type fillResult struct {
	added     int64
	exhausted bool
	full      bool // the window refused a row or a cell
}

// fillLocked clears the window and fills it synchronously from `start`, with
// the policy's initial row budget. When the source still has rows afterwards
// a background filler keeps growing the same window.
func (c *Cursor) fillLocked(ctx context.Context, start int64) error {
	c.invalidateLocked()
	gen := c.generation

	if c.win == nil {
		c.win = window.New(c.policy.Initial(), c.maxBytes)
	} else {
		c.stats.clears.Add(1)
		c.stats.enterWriter()
		c.win.Clear()
		c.stats.exitWriter()
	}
	if err := c.win.SetStartOffset(start); err != nil {
		return err
	}
	if err := c.win.SetColumnCount(len(c.columns)); err != nil {
		return err
	}

	c.state = StateSyncFilling
	c.stats.syncFills.Add(1)

	res, err := c.writeRows(ctx, c.win, c.policy.Initial())
	if err != nil {
		c.state = StateEmpty
		return fmt.Errorf("fill window at %d: %w", start, err)
	}
	if err := c.applyCount(ctx, c.win, res); err != nil {
		return fmt.Errorf("fill window at %d: %w", start, err)
	}

	if res.exhausted {
		c.state = StateSyncFullExhausted
		return nil
	}
	c.state = StateSyncFullPartial

	if res.added < c.policy.Initial() || c.policy.Growth() == 0 {
		return nil
	}
	if c.policy.Bounded() && c.win.RowCount() >= c.policy.Max() {
		return nil
	}
	if !c.win.Acquire() {
		return nil
	}

	c.filling = true
	c.fillers.Add(1)
	go c.backgroundFill(context.WithoutCancel(ctx), gen, c.win)

	c.log.WithField("generation", gen).
		WithField("start", start).
		WithField("rows", c.win.RowCount()).
		Debug("background fill started")

	return nil
}

// writeRows appends up to `budget` rows at the end of the window. It stops
// early, without error, when the window is full or the source runs out.
func (c *Cursor) writeRows(ctx context.Context, w *window.Window, budget int64) (fillResult, error) {
	c.stats.enterWriter()
	defer c.stats.exitWriter()

	res := fillResult{}
	columns := len(c.columns)

	for res.added < budget {
		position := w.StartOffset() + w.RowCount()

		if columns == 0 {
			exhausted, err := c.src.Exhausted(ctx, position-1)
			if err != nil {
				return res, err
			}
			if exhausted {
				res.exhausted = true
				return res, nil
			}
		}

		if !w.AllocateRow() {
			res.full = true
			break
		}

		for col := 0; col < columns; col++ {
			v, ok, err := c.src.Cell(ctx, position, col)
			if err != nil {
				w.FreeLastRow()
				return res, err
			}
			if !ok {
				w.FreeLastRow()
				res.exhausted = true
				return res, nil
			}
			if !w.Put(v, position, col) {
				w.FreeLastRow()
				res.full = true
				break
			}
		}
		if res.full {
			break
		}
		res.added++
	}

	exhausted, err := c.src.Exhausted(ctx, w.StartOffset()+w.RowCount()-1)
	if err != nil {
		return res, err
	}
	res.exhausted = exhausted
	return res, nil
}

// applyCount turns what a fill learned into the cursor count. Exhaustion
// makes it final; otherwise it only grows.
func (c *Cursor) applyCount(ctx context.Context, w *window.Window, res fillResult) error {
	end := w.StartOffset() + w.RowCount()

	if !res.exhausted {
		if end > c.count {
			c.count = end
		}
		return nil
	}

	if w.RowCount() > 0 || w.StartOffset() == 0 {
		c.count = end
		c.exact = true
		return nil
	}

	// The window starts past the last row: find where the source ends.
	lo := c.count
	if lo < 0 || lo > w.StartOffset() {
		lo = 0
	}
	n, err := c.probeEnd(ctx, lo, w.StartOffset())
	if err != nil {
		return err
	}
	c.count = n
	c.exact = true
	return nil
}

// probeEnd returns the number of rows of the source knowing that row lo-1
// exists (or lo is 0) and row hi does not.
func (c *Cursor) probeEnd(ctx context.Context, lo, hi int64) (int64, error) {
	for lo < hi {
		mid := lo + (hi-lo)/2
		exhausted, err := c.src.Exhausted(ctx, mid-1)
		if err != nil {
			return 0, err
		}
		if exhausted {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo, nil
}

// backgroundFill keeps extending the window of generation `gen`. It owns one
// reference of the window and gives it back when it exits.
func (c *Cursor) backgroundFill(ctx context.Context, gen uint64, w *window.Window) {
	defer c.fillers.Done()
	defer w.Release()

	for {
		progressed, done := c.fillStep(ctx, gen, w)
		if progressed {
			c.notify()
		}
		if done {
			return
		}
	}
}

// fillStep runs one background step under the cursor lock.
func (c *Cursor) fillStep(ctx context.Context, gen uint64, w *window.Window) (progressed, done bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.generation != gen {
		c.stats.abortedFillers.Add(1)
		c.log.WithField("generation", gen).Debug("background fill aborted")
		return false, true
	}

	c.state = StateBgFilling
	c.stats.backgroundSteps.Add(1)

	if w.RowCount() >= w.Capacity() {
		next := c.policy.NextCapacity(w.Capacity())
		if next <= w.Capacity() {
			c.finishLocked(StateBgCapacityLimited)
			return false, true
		}
		w.Grow(next)
	}

	res, err := c.writeRows(ctx, w, c.policy.Growth())
	if err != nil {
		if end := w.StartOffset() + w.RowCount(); end > c.count {
			c.count = end
		}
		c.bgErr = err
		c.lastErr = err
		c.stats.fillErrors.Add(1)
		c.finishLocked(StateBgFailed)
		c.log.WithField("generation", gen).WithError(err).Error("background fill failed")
		return res.added > 0, true
	}
	if err := c.applyCount(ctx, w, res); err != nil {
		c.bgErr = err
		c.lastErr = err
		c.stats.fillErrors.Add(1)
		c.finishLocked(StateBgFailed)
		c.log.WithField("generation", gen).WithError(err).Error("background fill failed")
		return res.added > 0, true
	}

	switch {
	case res.exhausted:
		c.finishLocked(StateBgExhausted)
		return res.added > 0, true
	case res.full && !c.canGrow(w):
		c.finishLocked(StateBgCapacityLimited)
		return res.added > 0, true
	}

	return res.added > 0, false
}

// canGrow reports whether another background step could add rows: the byte
// budget did not refuse the last row and the policy leaves room.
func (c *Cursor) canGrow(w *window.Window) bool {
	if w.RowCount() < w.Capacity() {
		return false
	}
	return c.policy.NextCapacity(w.Capacity()) > w.Capacity()
}

func (c *Cursor) finishLocked(state FillState) {
	c.state = state
	c.filling = false
}

// Stats counts the work done by a cursor.
type Stats struct {
	SyncFills            int64 `json:"sync_fills"`
	BackgroundSteps      int64 `json:"background_steps"`
	Clears               int64 `json:"clears"`
	AbortedFillers       int64 `json:"aborted_fillers"`
	Notifications        int64 `json:"notifications"`
	FillErrors           int64 `json:"fill_errors"`
	MaxConcurrentWriters int64 `json:"max_concurrent_writers"`
}

type stats struct {
	syncFills       atomic.Int64
	backgroundSteps atomic.Int64
	clears          atomic.Int64
	abortedFillers  atomic.Int64
	notifications   atomic.Int64
	fillErrors      atomic.Int64
	writers         atomic.Int64
	maxWriters      atomic.Int64
}

func (s *stats) enterWriter() {
	n := s.writers.Add(1)
	for {
		max := s.maxWriters.Load()
		if n <= max || s.maxWriters.CompareAndSwap(max, n) {
			return
		}
	}
}

func (s *stats) exitWriter() {
	s.writers.Add(-1)
}

func (s *stats) snapshot() Stats {
	return Stats{
		SyncFills:            s.syncFills.Load(),
		BackgroundSteps:      s.backgroundSteps.Load(),
		Clears:               s.clears.Load(),
		AbortedFillers:       s.abortedFillers.Load(),
		Notifications:        s.notifications.Load(),
		FillErrors:           s.fillErrors.Load(),
		MaxConcurrentWriters: s.maxWriters.Load(),
	}
}
