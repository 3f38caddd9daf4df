package progress

import "errors"

var (
	// ErrInvalidTotal is returned by Init when the total size is not positive.
	ErrInvalidTotal = errors.New("total size must be a positive integer")
)
