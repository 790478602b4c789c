package device

import "context"

// DeviceStore defines persistence operations for devices.
//
// Implementations wrap infrastructure failures with ErrUnavailable.
type DeviceStore interface {
	// Insert persists a new device. It assigns ID when empty, sets
	// CreatedAt when zero and always sets UpdatedAt.
	// Returns ErrDeviceExists if the address (or id) is already taken.
	Insert(ctx context.Context, d *Device) error

	// FindByAddress returns every device with exactly this address,
	// oldest first. Normally zero or one.
	FindByAddress(ctx context.Context, address string) ([]Device, error)

	// FindByID retrieves a device by its id.
	// Returns ErrDeviceNotFound if no such device exists.
	FindByID(ctx context.Context, id string) (*Device, error)

	// FindAll returns every device in creation order.
	FindAll(ctx context.Context) ([]Device, error)

	// Find returns devices matching the filter in creation order.
	Find(ctx context.Context, filter DeviceFilter) ([]Device, error)

	// Update persists the mutable fields of an existing device and
	// refreshes UpdatedAt.
	// Returns ErrDeviceNotFound if the device does not exist and
	// ErrConstraint if the write breaks a schema constraint.
	Update(ctx context.Context, d *Device) error
}

// DataStore defines persistence operations for device readings.
// Readings are append-only.
//
// Implementations wrap infrastructure failures with ErrUnavailable.
type DataStore interface {
	// Insert persists a new reading. It assigns ID when empty and sets
	// the timestamps. It does not check that DeviceID exists.
	Insert(ctx context.Context, d *DeviceData) error

	// Find returns readings matching DeviceID and Name. Stores should
	// return the newest Limit readings when Limit > 0; DataService still
	// sorts and truncates, so a store that ignores Limit stays correct.
	Find(ctx context.Context, filter DataFilter) ([]DeviceData, error)

	// FindByID retrieves a reading by its id.
	// Returns ErrDataNotFound if no such reading exists.
	FindByID(ctx context.Context, id string) (*DeviceData, error)
}
