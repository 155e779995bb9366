package sensor

import "errors"

var (
	// ErrSocketBind is returned by NewListener and New when the broadcast
	// port cannot be bound (typically because it is already in use).
	ErrSocketBind = errors.New("sensor: cannot bind broadcast socket")

	// ErrInvalidOptions is returned by New when required options are missing.
	ErrInvalidOptions = errors.New("sensor: invalid options")
)
