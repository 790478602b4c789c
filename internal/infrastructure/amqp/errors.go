package amqp

import "errors"

// Sentinel errors for AMQP operations.
var (
	// ErrConnectionFailed indicates the broker could not be reached.
	ErrConnectionFailed = errors.New("amqp: connection failed")

	// ErrInvalidConfig indicates the AMQP section is unusable.
	ErrInvalidConfig = errors.New("amqp: invalid configuration")
)
