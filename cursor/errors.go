package cursor

import "errors"

var (
	ErrCursorClosed = errors.New("cursor is closed")
	ErrNotInWindow  = errors.New("position is not in the current window")
	ErrRowTooLarge  = errors.New("row does not fit in an empty window")
)
