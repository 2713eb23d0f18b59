package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist or no row matched the update guard.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict indicates a uniqueness constraint rejected the write.
	ErrConflict = errors.New("repository: conflict")
	// ErrRangeTooWide indicates a time-range read exceeded the store's maximum window.
	ErrRangeTooWide = errors.New("repository: range too wide")
)
