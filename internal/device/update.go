package device

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// UpdateService applies partial updates to devices.
type UpdateService struct {
	devices DeviceStore
	logger  Logger
}

// NewUpdateService creates an update service over devices.
func NewUpdateService(devices DeviceStore) *UpdateService {
	return &UpdateService{
		devices: devices,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the service.
func (s *UpdateService) SetLogger(logger Logger) {
	s.logger = logger
}

// Update merges patch into the stored device and returns the result.
// Fields left nil in the patch keep their stored values.
func (s *UpdateService) Update(ctx context.Context, id string, patch *Patch) (d *Device, err error) {
	start := time.Now()
	defer func() { observe(opUpdate, start, err) }()

	if id, err = NormalizeID(id); err != nil {
		return nil, err
	}
	if err = ValidatePatch(patch); err != nil {
		return nil, err
	}

	d, err = s.devices.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", id, err)
	}

	patch.Apply(d)

	if err = s.devices.Update(ctx, d); err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			return nil, fmt.Errorf("device %s: %w", id, err)
		}
		return nil, fmt.Errorf("%w: device %s: %w", ErrUpdateFailed, id, err)
	}

	s.logger.Info("device updated", "device_id", d.ID)
	return d, nil
}
