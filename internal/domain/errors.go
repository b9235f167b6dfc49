package domain

import "errors"

var (
	ErrInvalidStatus = errors.New("invalid status")
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrUnsupportedSnapshot is returned by stores when the persisted document
	// was written by a newer version.
	ErrUnsupportedSnapshot = errors.New("unsupported snapshot version")

	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
)
