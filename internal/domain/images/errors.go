package images

import "errors"

var (
	// ErrNotFound is returned by a Repository when no record has the requested id.
	ErrNotFound = errors.New("image not found")
	// ErrAlreadyExists is returned by Insert when the id is taken.
	ErrAlreadyExists = errors.New("image already exists")
	// ErrInvalidRecord marks a stored item that cannot be decoded into a record.
	ErrInvalidRecord = errors.New("invalid analysis record")
)
