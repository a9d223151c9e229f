package configuration

import "errors"

var (
	ErrCapacityExceeded = errors.New("selection would exceed the book ceiling")
	ErrEmptySelection   = errors.New("no books selected")
	ErrInvalidOption    = errors.New("completion option cannot be toggled")
	ErrUnknownTier      = errors.New("no achievement tier with that book count")
	ErrNotSaved         = errors.New("configuration has not been saved")
	ErrAlreadyReleased  = errors.New("configuration already released")
	ErrLocked           = errors.New("released configuration cannot be changed")
)
