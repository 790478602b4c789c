package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RegistrationService registers devices by address. Registration is
// idempotent: a known address returns the stored device unchanged.
type RegistrationService struct {
	devices DeviceStore
	logger  Logger
}

// NewRegistrationService creates a registration service over devices.
func NewRegistrationService(devices DeviceStore) *RegistrationService {
	return &RegistrationService{
		devices: devices,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the service.
func (s *RegistrationService) SetLogger(logger Logger) {
	s.logger = logger
}

// Register returns the device registered at address, creating it with meta
// if none exists. Metadata is ignored for an existing device.
//
// When two callers race on a new address the store's unique index lets one
// insert through; the loser re-reads the address and returns the winner.
func (s *RegistrationService) Register(ctx context.Context, address string, meta Metadata) (d *Device, err error) {
	start := time.Now()
	defer func() { observe(opRegister, start, err) }()

	address = strings.TrimSpace(address)
	meta.Name = strings.TrimSpace(meta.Name)
	if err = ValidateAddress(address); err != nil {
		return nil, err
	}
	if err = ValidateMetadata(meta); err != nil {
		return nil, err
	}

	existing, err := s.devices.FindByAddress(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("looking up address %q: %w", address, err)
	}
	if len(existing) > 0 {
		s.logger.Debug("device already registered", "device_id", existing[0].ID, "address", address)
		return &existing[0], nil
	}

	name := meta.Name
	if name == "" {
		name = DefaultDeviceName
	}
	d = &Device{
		Name:         name,
		Address:      address,
		HeartbeatURL: meta.HeartbeatURL,
		PictureURL:   meta.PictureURL,
	}

	err = s.devices.Insert(ctx, d)
	switch {
	case err == nil:
		s.logger.Info("device registered", "device_id", d.ID, "address", address, "name", d.Name)
		return d, nil

	case errors.Is(err, ErrDeviceExists):
		winners, findErr := s.devices.FindByAddress(ctx, address)
		if findErr != nil {
			return nil, fmt.Errorf("%w: re-reading address %q: %w", ErrDeviceCreationFailed, address, findErr)
		}
		if len(winners) == 0 {
			return nil, fmt.Errorf("%w: address %q conflicted but no device was found", ErrDeviceCreationFailed, address)
		}
		s.logger.Debug("concurrent registration resolved", "device_id", winners[0].ID, "address", address)
		return &winners[0], nil

	default:
		return nil, fmt.Errorf("%w: %w", ErrDeviceCreationFailed, err)
	}
}
