package window

import (
	"errors"
	"fmt"
)

// Unbounded is the Max value of a policy without a row ceiling.
const Unbounded int64 = 0

const defaultRows = 1024

var ErrInvalidPolicy = errors.New("invalid window policy")

// Policy decides how many rows a window receives on its first synchronous fill,
// how many rows every background step adds, and the hard row ceiling.
type Policy struct {
	initial int64
	growth  int64
	max     int64
}

// DefaultPolicy reads a large first chunk and keeps growing without limit.
func DefaultPolicy() Policy {
	return Policy{
		initial: defaultRows,
		growth:  defaultRows,
		max:     Unbounded,
	}
}

// FixedPolicy never grows past the first fill.
func FixedPolicy(rows int64) Policy {
	if rows <= 0 {
		rows = defaultRows
	}
	return Policy{
		initial: rows,
		growth:  0,
		max:     rows,
	}
}

func CustomPolicy(initial, growth, max int64) (Policy, error) {
	p := Policy{
		initial: initial,
		growth:  growth,
		max:     max,
	}
	return p, p.Validate()
}

func (p Policy) Validate() error {
	if p.initial <= 0 {
		return fmt.Errorf("%w: initial must be greater than 0", ErrInvalidPolicy)
	}
	if p.growth < 0 {
		return fmt.Errorf("%w: growth must be greater than or equal to 0", ErrInvalidPolicy)
	}
	if p.max < 0 {
		return fmt.Errorf("%w: max must be greater than or equal to 0", ErrInvalidPolicy)
	}
	if p.max != Unbounded && p.max < p.initial {
		return fmt.Errorf("%w: max (%d) is lower than initial (%d)", ErrInvalidPolicy, p.max, p.initial)
	}
	return nil
}

func (p Policy) Initial() int64 {
	return p.initial
}

func (p Policy) Growth() int64 {
	return p.growth
}

func (p Policy) Max() int64 {
	return p.max
}

func (p Policy) IsZero() bool {
	return p == Policy{}
}

// Bounded reports whether the policy carries a row ceiling.
func (p Policy) Bounded() bool {
	return p.max != Unbounded
}

// NextCapacity returns the row capacity a window holding `capacity` rows may
// grow to in one background step. It returns `capacity` when no growth is left.
func (p Policy) NextCapacity(capacity int64) int64 {
	if p.growth == 0 {
		return capacity
	}
	next := capacity + p.growth
	if p.Bounded() && next > p.max {
		next = p.max
	}
	if next < capacity {
		return capacity
	}
	return next
}

func (p Policy) String() string {
	max := "unbounded"
	if p.Bounded() {
		max = fmt.Sprintf("%d", p.max)
	}
	return fmt.Sprintf("initial=%d growth=%d max=%s", p.initial, p.growth, max)
}
