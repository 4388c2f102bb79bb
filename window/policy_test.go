package window

import (
	"errors"
	"testing"

	"github.com/fulldump/biff"
)

func TestPolicy(t *testing.T) {

	biff.Alternative("Default", func(a *biff.A) {
		p := DefaultPolicy()
		biff.AssertEqual(p.Initial(), int64(1024))
		biff.AssertEqual(p.Growth(), int64(1024))
		biff.AssertFalse(p.Bounded())
		biff.AssertEqual(p.NextCapacity(2048), int64(3072))
	})

	biff.Alternative("Fixed", func(a *biff.A) {
		p := FixedPolicy(50)
		biff.AssertEqual(p.Initial(), int64(50))
		biff.AssertEqual(p.Max(), int64(50))
		biff.AssertEqual(p.NextCapacity(50), int64(50))
		biff.AssertEqual(p.String(), "initial=50 growth=0 max=50")
	})

	biff.Alternative("Custom", func(a *biff.A) {
		p, err := CustomPolicy(10, 10, 25)
		biff.AssertNil(err)
		biff.AssertEqual(p.NextCapacity(10), int64(20))
		biff.AssertEqual(p.NextCapacity(20), int64(25))
		biff.AssertEqual(p.NextCapacity(25), int64(25))

		a.Alternative("Invalid", func(a *biff.A) {
			_, err := CustomPolicy(0, 10, 0)
			biff.AssertTrue(errors.Is(err, ErrInvalidPolicy))

			_, err = CustomPolicy(10, -1, 0)
			biff.AssertTrue(errors.Is(err, ErrInvalidPolicy))

			_, err = CustomPolicy(10, 1, 5)
			biff.AssertTrue(errors.Is(err, ErrInvalidPolicy))
		})
	})
}
