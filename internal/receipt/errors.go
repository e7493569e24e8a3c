package receipt

import "errors"

var (
	// ErrNotFound is returned when no receipt exists for a file name
	ErrNotFound = errors.New("receipt not found")
	// ErrInvalidUpload is returned when uploaded image data cannot be decoded
	ErrInvalidUpload = errors.New("invalid image data")
)
