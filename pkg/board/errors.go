package board

import "errors"

var (
	ErrUnknownPosition = errors.New("position is not on the board")
	ErrUnknownStage    = errors.New("stage does not belong to the workflow")

	// ErrMovePending is returned when a move for the same position is still outstanding.
	ErrMovePending = errors.New("a move for this position is already in progress")

	// ErrClosed is returned after the board has been closed.
	ErrClosed = errors.New("board is closed")

	// ErrInconsistent is returned by Check when a position is not in exactly one bucket.
	ErrInconsistent = errors.New("board buckets are inconsistent")
)
