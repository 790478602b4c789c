package device

import "errors"

// Domain errors for the device package.
//
// Services wrap these with context using fmt.Errorf("%w: ..."). Check them
// with errors.Is, or classify with KindOf:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrInvalidInput is returned when an argument fails validation,
	// including ids that are not UUIDs.
	ErrInvalidInput = errors.New("device: invalid input")

	// ErrDeviceNotFound is returned when a well-formed device id does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDataNotFound is returned when a well-formed data id does not exist.
	ErrDataNotFound = errors.New("device: data not found")

	// ErrDeviceExists is returned by a DeviceStore when the address is taken.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrDeviceCreationFailed is returned when registration cannot persist
	// or recover a device.
	ErrDeviceCreationFailed = errors.New("device: creation failed")

	// ErrDataCreationFailed is returned when a reading cannot be persisted.
	ErrDataCreationFailed = errors.New("device: data creation failed")

	// ErrUpdateFailed is returned when the store rejects an update.
	ErrUpdateFailed = errors.New("device: update failed")

	// ErrConstraint is returned by a DeviceStore when a write breaks a
	// schema constraint.
	ErrConstraint = errors.New("device: constraint violation")

	// ErrUnavailable wraps infrastructure failures: refused or broken
	// connections, a busy or locked database, deadlines.
	ErrUnavailable = errors.New("device: store unavailable")
)

// Kind classifies an error for adapters that map outcomes to a transport
// status.
type Kind int

// Error kinds, from most to least specific.
const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindNotFound
	KindUnavailable
	KindConflict
)

// String returns the kind name used in logs.
func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindUnavailable:
		return "unavailable"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// KindOf reports the kind of err. When err wraps several sentinels the
// precedence is InvalidInput, NotFound, Unavailable, Conflict.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrDeviceNotFound), errors.Is(err, ErrDataNotFound):
		return KindNotFound
	case errors.Is(err, ErrUnavailable):
		return KindUnavailable
	case errors.Is(err, ErrDeviceCreationFailed),
		errors.Is(err, ErrDataCreationFailed),
		errors.Is(err, ErrUpdateFailed),
		errors.Is(err, ErrDeviceExists),
		errors.Is(err, ErrConstraint):
		return KindConflict
	default:
		return KindUnknown
	}
}
