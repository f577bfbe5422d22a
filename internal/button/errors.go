package button

import "errors"

var (
	// ErrClosed is returned for any operation after Manager.Close.
	ErrClosed = errors.New("button manager closed")

	// ErrForgotten is returned when operating on a button reference that
	// already reached PhaseForgotten.
	ErrForgotten = errors.New("button forgotten")

	// ErrUnknownButton is returned when an identifier is not in the registry.
	ErrUnknownButton = errors.New("unknown button")
)
