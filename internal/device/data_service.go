package device

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// DataService appends and queries device readings.
type DataService struct {
	devices DeviceStore
	data    DataStore
	logger  Logger

	mu        sync.RWMutex
	listeners []func(DeviceData)
}

// NewDataService creates a data service. devices is consulted on every Add
// so readings are never stored for unknown devices.
func NewDataService(devices DeviceStore, data DataStore) *DataService {
	return &DataService{
		devices: devices,
		data:    data,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the service.
func (s *DataService) SetLogger(logger Logger) {
	s.logger = logger
}

// OnAdded registers fn to run after every successful Add. Listeners run
// synchronously in registration order; a panicking listener is logged and
// does not affect the caller or later listeners.
func (s *DataService) OnAdded(fn func(DeviceData)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Add stores one reading for deviceID.
//
// Input is validated before the device is looked up, so a malformed
// request is InvalidInput even when the device is also missing.
func (s *DataService) Add(ctx context.Context, deviceID, name, value, unit string) (d *DeviceData, err error) {
	start := time.Now()
	defer func() { observe(opAddData, start, err) }()

	if err = ValidateReading(deviceID, name, value, unit); err != nil {
		return nil, err
	}
	if deviceID, err = NormalizeID(deviceID); err != nil {
		return nil, err
	}

	if _, err = s.devices.FindByID(ctx, deviceID); err != nil {
		return nil, fmt.Errorf("device %s: %w", deviceID, err)
	}

	d = &DeviceData{
		DeviceID: deviceID,
		Name:     name,
		Value:    value,
		Unit:     unit,
	}
	if err = s.data.Insert(ctx, d); err != nil {
		return nil, fmt.Errorf("%w: device %s: %w", ErrDataCreationFailed, deviceID, err)
	}

	s.logger.Debug("device data added", "device_id", deviceID, "name", name, "data_id", d.ID)
	s.notify(*d)
	return d, nil
}

// Find returns readings newest first. Ties on created_at break on id,
// which is time ordered. Limit > 0 keeps the newest Limit readings.
func (s *DataService) Find(ctx context.Context, filter DataFilter) (data []DeviceData, err error) {
	start := time.Now()
	defer func() { observe(opFindData, start, err) }()

	if filter.DeviceID != "" {
		if filter.DeviceID, err = NormalizeID(filter.DeviceID); err != nil {
			return nil, err
		}
	}
	if err = validateLimit(filter.Limit); err != nil {
		return nil, err
	}

	data, err = s.data.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("finding device data: %w", err)
	}

	// Store order is a hint only.
	SortNewestFirst(data)
	if filter.Limit > 0 && len(data) > filter.Limit {
		data = data[:filter.Limit]
	}
	return data, nil
}

// Get retrieves one reading by id.
func (s *DataService) Get(ctx context.Context, id string) (d *DeviceData, err error) {
	start := time.Now()
	defer func() { observe(opGetData, start, err) }()

	if id, err = NormalizeID(id); err != nil {
		return nil, err
	}

	d, err = s.data.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("device data %s: %w", id, err)
	}
	return d, nil
}

// SortNewestFirst orders readings by created_at descending, then id
// descending.
func SortNewestFirst(data []DeviceData) {
	slices.SortFunc(data, func(a, b DeviceData) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}

func (s *DataService) notify(d DeviceData) {
	s.mu.RLock()
	listeners := slices.Clone(s.listeners)
	s.mu.RUnlock()

	for _, fn := range listeners {
		s.call(fn, d)
	}
}

func (s *DataService) call(fn func(DeviceData), d DeviceData) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("data listener panicked", "data_id", d.ID, "device_id", d.DeviceID, "panic", r)
		}
	}()
	fn(d)
}
