package device

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// QueryService provides read access to devices.
type QueryService struct {
	devices DeviceStore
}

// NewQueryService creates a query service over devices.
func NewQueryService(devices DeviceStore) *QueryService {
	return &QueryService{devices: devices}
}

// GetAll returns every device in creation order.
func (s *QueryService) GetAll(ctx context.Context) (devices []Device, err error) {
	start := time.Now()
	defer func() { observe(opGetAll, start, err) }()

	devices, err = s.devices.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	return devices, nil
}

// Find returns devices matching the filter by exact name and address.
func (s *QueryService) Find(ctx context.Context, filter DeviceFilter) (devices []Device, err error) {
	start := time.Now()
	defer func() { observe(opFind, start, err) }()

	if err = validateLimit(filter.Limit); err != nil {
		return nil, err
	}

	devices, err = s.devices.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("finding devices: %w", err)
	}
	return devices, nil
}

// GetByID retrieves a device. A malformed id is InvalidInput; a
// well-formed id with no device is NotFound.
func (s *QueryService) GetByID(ctx context.Context, id string) (d *Device, err error) {
	start := time.Now()
	defer func() { observe(opGetByID, start, err) }()

	if id, err = NormalizeID(id); err != nil {
		return nil, err
	}

	d, err = s.devices.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			return nil, fmt.Errorf("device %s: %w", id, err)
		}
		return nil, fmt.Errorf("getting device %s: %w", id, err)
	}
	return d, nil
}
