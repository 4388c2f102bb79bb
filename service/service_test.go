package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/fulldump/biff"
	_ "github.com/mattn/go-sqlite3"

	"github.com/fulldump/windowdb/database"
	"github.com/fulldump/windowdb/source"
	"github.com/fulldump/windowdb/window"
)

func newTestService(t *testing.T, config Config) *Service {
	db := database.NewDatabase(&database.Config{Dir: t.TempDir()})
	biff.AssertNil(db.Load())

	s := NewServiceWithConfig(db, config)
	t.Cleanup(func() {
		s.CloseAll()
		db.Stop()
	})
	return s
}

func int64p(v int64) *int64 {
	return &v
}

func TestPolicyOptions(t *testing.T) {

	defaults := window.DefaultPolicy()

	biff.Alternative("Policy options", func(a *biff.A) {

		a.Alternative("Nil takes defaults", func(a *biff.A) {
			var options *PolicyOptions
			p, err := options.Policy(defaults)
			biff.AssertNil(err)
			biff.AssertEqual(p, defaults)
		})

		a.Alternative("Initial only", func(a *biff.A) {
			p, err := (&PolicyOptions{Initial: 10}).Policy(defaults)
			biff.AssertNil(err)
			biff.AssertEqual(p.Initial(), int64(10))
			biff.AssertEqual(p.Growth(), defaults.Growth())
			biff.AssertEqual(p.Max(), window.Unbounded)
		})

		a.Alternative("Zero growth caps at initial", func(a *biff.A) {
			p, err := (&PolicyOptions{Initial: 10, Growth: int64p(0)}).Policy(defaults)
			biff.AssertNil(err)
			biff.AssertEqual(p.Max(), int64(10))
		})

		a.Alternative("Explicit max lower than initial", func(a *biff.A) {
			_, err := (&PolicyOptions{Initial: 10, Max: int64p(5)}).Policy(defaults)
			biff.AssertTrue(errors.Is(err, window.ErrInvalidPolicy))
		})

		a.Alternative("Negative growth", func(a *biff.A) {
			_, err := (&PolicyOptions{Growth: int64p(-1)}).Policy(defaults)
			biff.AssertTrue(errors.Is(err, window.ErrInvalidPolicy))
		})
	})
}

func TestCursors(t *testing.T) {

	ctx := context.Background()

	biff.Alternative("Cursors", func(a *biff.A) {

		s := newTestService(t, Config{})

		col, err := s.CreateCollection("numbers")
		biff.AssertNil(err)
		for i := 0; i < 50; i++ {
			kind := "odd"
			if i%2 == 0 {
				kind = "even"
			}
			_, err := col.Insert(map[string]any{"i": i, "kind": kind})
			biff.AssertNil(err)
		}

		c, err := s.OpenCursor("numbers", OpenCursorOptions{
			QueryOptions: source.QueryOptions{
				Filter:  map[string]any{"kind": "even"},
				Columns: []string{"i"},
			},
			Policy: &PolicyOptions{Initial: 10, Growth: int64p(10)},
		})
		biff.AssertNil(err)
		biff.AssertEqual(c.Kind, KindQuery)
		biff.AssertEqual(c.Collection, "numbers")

		a.Alternative("Read", func(a *biff.A) {
			ok, err := c.MoveTo(ctx, 3)
			biff.AssertNil(err)
			biff.AssertTrue(ok)

			v, err := c.GetInt(0)
			biff.AssertNil(err)
			biff.AssertEqual(v, int64(6))

			c.Wait()
			n, err := c.Count(ctx)
			biff.AssertNil(err)
			biff.AssertEqual(n, int64(25))
			biff.AssertTrue(c.Exact())
		})

		a.Alternative("Get and list", func(a *biff.A) {
			found, err := s.GetCursor(c.ID())
			biff.AssertNil(err)
			biff.AssertEqual(found, c)

			_, err = s.GetCursor("missing")
			biff.AssertEqual(err, ErrorCursorNotFound)

			biff.AssertEqual(len(s.ListCursors()), 1)
		})

		a.Alternative("Close", func(a *biff.A) {
			biff.AssertNil(s.CloseCursor(c.ID()))
			biff.AssertTrue(c.Closed())
			biff.AssertEqual(s.CloseCursor(c.ID()), ErrorCursorNotFound)
			biff.AssertEqual(len(s.ListCursors()), 0)
		})

		a.Alternative("Stale", func(a *biff.A) {
			_, err := c.Count(ctx)
			biff.AssertNil(err)
			biff.AssertFalse(c.Stale())

			col.Insert(map[string]any{"i": 50, "kind": "even"})
			biff.AssertTrue(c.Stale())
		})

		a.Alternative("Close idle", func(a *biff.A) {
			biff.AssertEqual(s.CloseIdle(time.Now().Add(-time.Hour)), 0)
			biff.AssertEqual(s.CloseIdle(time.Now().Add(time.Second)), 1)
			biff.AssertTrue(c.Closed())
		})

		a.Alternative("Delete collection closes cursors", func(a *biff.A) {
			biff.AssertNil(s.DeleteCollection("numbers"))
			biff.AssertTrue(c.Closed())
			biff.AssertEqual(len(s.ListCursors()), 0)
		})

		a.Alternative("Missing collection", func(a *biff.A) {
			_, err := s.OpenCursor("nope", OpenCursorOptions{})
			biff.AssertEqual(err, ErrorCollectionNotFound)
		})

		a.Alternative("Invalid options", func(a *biff.A) {
			_, err := s.OpenCursor("numbers", OpenCursorOptions{
				QueryOptions: source.QueryOptions{Skip: -1},
			})
			biff.AssertTrue(errors.Is(err, ErrorInvalidInput))
		})
	})
}

func TestJanitor(t *testing.T) {

	s := newTestService(t, Config{IdleTimeout: 20 * time.Millisecond})

	_, err := s.CreateCollection("things")
	biff.AssertNil(err)
	c, err := s.OpenCursor("things", OpenCursorOptions{})
	biff.AssertNil(err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.RunJanitor(ctx)
		close(done)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for !c.Closed() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	biff.AssertTrue(c.Closed())

	cancel()
	<-done
}

func TestSQLCursors(t *testing.T) {

	ctx := context.Background()

	biff.Alternative("SQL cursors", func(a *biff.A) {

		a.Alternative("Disabled", func(a *biff.A) {
			s := newTestService(t, Config{})
			_, err := s.OpenSQLCursor(ctx, OpenSQLCursorOptions{Query: "SELECT 1"})
			biff.AssertEqual(err, ErrorSQLDisabled)
		})

		a.Alternative("Sqlite", func(a *biff.A) {
			sqlDB, err := sql.Open("sqlite3", ":memory:")
			biff.AssertNil(err)
			sqlDB.SetMaxOpenConns(1)
			defer sqlDB.Close()

			_, err = sqlDB.Exec(`CREATE TABLE t (n INTEGER, label TEXT)`)
			biff.AssertNil(err)
			for i := 0; i < 30; i++ {
				_, err := sqlDB.Exec(`INSERT INTO t VALUES (?, ?)`, i, "row")
				biff.AssertNil(err)
			}

			s := newTestService(t, Config{SQL: sqlDB})

			a.Alternative("Empty query", func(a *biff.A) {
				_, err := s.OpenSQLCursor(ctx, OpenSQLCursorOptions{})
				biff.AssertTrue(errors.Is(err, ErrorInvalidInput))
			})

			a.Alternative("Query", func(a *biff.A) {
				c, err := s.OpenSQLCursor(ctx, OpenSQLCursorOptions{
					Query:  `SELECT n, label FROM t WHERE n >= ? ORDER BY n`,
					Args:   []any{10},
					Policy: &PolicyOptions{Initial: 5, Growth: int64p(0)},
				})
				biff.AssertNil(err)
				biff.AssertEqual(c.Kind, KindSQL)
				biff.AssertEqual(c.ColumnNames(), []string{"n", "label"})

				ok, err := c.MoveTo(ctx, 12)
				biff.AssertNil(err)
				biff.AssertTrue(ok)
				v, err := c.GetInt(0)
				biff.AssertNil(err)
				biff.AssertEqual(v, int64(22))

				// a fixed window only knows the rows it has seen
				n, err := c.Count(ctx)
				biff.AssertNil(err)
				biff.AssertEqual(n, int64(17))
				biff.AssertFalse(c.Exact())

				ok, err = c.MoveTo(ctx, 25)
				biff.AssertNil(err)
				biff.AssertFalse(ok)

				n, err = c.Count(ctx)
				biff.AssertNil(err)
				biff.AssertEqual(n, int64(20))
				biff.AssertTrue(c.Exact())

				biff.AssertNil(s.CloseCursor(c.ID()))
			})
		})
	})
}
