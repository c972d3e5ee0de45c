package index

import "errors"

var (
	// ErrDimensionMismatch means a vector's length disagrees with the
	// configured dimension. This is a configuration fault and aborts the
	// operation; vectors are never truncated or padded.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmptyIndex means search was called before any vectors were built
	// or loaded.
	ErrEmptyIndex = errors.New("index is empty")

	// ErrNotFound means an index or metadata file does not exist on disk.
	ErrNotFound = errors.New("index file not found")

	// ErrIndexCorrupt means the vector count and the metadata record count
	// disagree. The pair must never be used in that state.
	ErrIndexCorrupt = errors.New("index corrupt: vector count does not match metadata count")
)
