package database

import (
	"errors"
	"testing"

	"github.com/fulldump/biff"
)

func TestDatabase(t *testing.T) {

	biff.Alternative("Database", func(a *biff.A) {
		dir := t.TempDir()
		db := NewDatabase(&Config{Dir: dir})
		biff.AssertEqual(db.GetStatus(), StatusOpening)
		biff.AssertNil(db.Load())
		biff.AssertEqual(db.GetStatus(), StatusOperating)

		col, err := db.CreateCollection("people")
		biff.AssertNil(err)
		col.Insert(map[string]any{"name": "Alice"})

		a.Alternative("Already exists", func(a *biff.A) {
			_, err := db.CreateCollection("people")
			biff.AssertTrue(errors.Is(err, ErrCollectionAlreadyExists))
		})

		a.Alternative("Reload", func(a *biff.A) {
			biff.AssertNil(db.Stop())

			other := NewDatabase(&Config{Dir: dir})
			biff.AssertNil(other.Load())
			biff.AssertEqual(other.ListCollections(), []string{"people"})

			col, err := other.GetCollection("people")
			biff.AssertNil(err)
			biff.AssertEqual(col.Len(), 1)
			other.Stop()
		})

		a.Alternative("Drop", func(a *biff.A) {
			biff.AssertNil(db.DropCollection("people"))

			_, err := db.GetCollection("people")
			biff.AssertTrue(errors.Is(err, ErrCollectionNotFound))

			err = db.DropCollection("people")
			biff.AssertTrue(errors.Is(err, ErrCollectionNotFound))
		})

		a.Alternative("Invalid name", func(a *biff.A) {
			_, err := db.CreateCollection("../escape")
			biff.AssertNotNil(err)
		})
	})
}
