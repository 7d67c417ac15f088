package store

import "errors"

var (
	// ErrLightBlockNotFound is returned when a store does not have the
	// requested light block.
	ErrLightBlockNotFound = errors.New("light block not found")

	// ErrZeroHeight is returned when a light block is requested or saved at
	// height 0. Stores only hold positive heights.
	ErrZeroHeight = errors.New("height must be greater than zero")

	// ErrNilLightBlock is returned when saving a light block without a header.
	ErrNilLightBlock = errors.New("nil light block or header")
)
