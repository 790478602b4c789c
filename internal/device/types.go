package device

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// DefaultDeviceName is used when a device registers without a name.
const DefaultDeviceName = "New Device"

// Device is a registered network-connected entity.
// This matches the devices table in migrations/*/20260301_120000_create_devices.up.sql.
type Device struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Address      string `json:"address"`
	HeartbeatURL string `json:"heartbeat_url"`
	PictureURL   string `json:"picture_url,omitempty"`
	Online       bool   `json:"online"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeviceData is one named reading belonging to a Device. Value is kept as
// the text the producer sent; no numeric typing is applied.
type DeviceData struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Value    string `json:"value"`
	Unit     string `json:"unit"`
	DeviceID string `json:"device_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Metadata is the optional information supplied at registration.
type Metadata struct {
	Name         string `json:"name"`
	HeartbeatURL string `json:"heartbeat_url"`
	PictureURL   string `json:"picture_url"`
}

// Patch is a partial device update. Nil fields are left untouched.
// An empty URL clears the stored URL; an empty name is rejected.
type Patch struct {
	Name         *string `json:"name,omitempty"`
	HeartbeatURL *string `json:"heartbeat_url,omitempty"`
	PictureURL   *string `json:"picture_url,omitempty"`
	Online       *bool   `json:"online,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p *Patch) IsEmpty() bool {
	return p == nil || (p.Name == nil && p.HeartbeatURL == nil && p.PictureURL == nil && p.Online == nil)
}

// Apply copies the non-nil fields of p onto d.
func (p *Patch) Apply(d *Device) {
	if p == nil || d == nil {
		return
	}
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.HeartbeatURL != nil {
		d.HeartbeatURL = *p.HeartbeatURL
	}
	if p.PictureURL != nil {
		d.PictureURL = *p.PictureURL
	}
	if p.Online != nil {
		d.Online = *p.Online
	}
}

// DeviceFilter selects devices by exact match. Zero fields match everything.
type DeviceFilter struct {
	Name    string
	Address string
	// Limit > 0 keeps only the first Limit devices.
	Limit int
}

// DataFilter selects readings by exact match. Zero fields match everything.
type DataFilter struct {
	DeviceID string
	Name     string
	// Limit > 0 keeps only the newest Limit readings.
	Limit int
}

// Value is a reading value decoded from JSON. Producers send strings,
// numbers or booleans; all three are kept as their literal text so
// {"value": 21.50} stores "21.50".
type Value string

// UnmarshalJSON accepts a JSON string, number, boolean or null.
func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return fmt.Errorf("%w: empty value", ErrInvalidInput)
	}

	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("%w: value: %v", ErrInvalidInput, err)
		}
		*v = Value(s)
	case 't', 'f':
		parsed, err := strconv.ParseBool(string(b))
		if err != nil {
			return fmt.Errorf("%w: value: %v", ErrInvalidInput, err)
		}
		*v = Value(strconv.FormatBool(parsed))
	case 'n':
		*v = ""
	case '{', '[':
		return fmt.Errorf("%w: value must be a string, number or boolean", ErrInvalidInput)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("%w: value: %v", ErrInvalidInput, err)
		}
		*v = Value(b)
	}
	return nil
}

// String returns the literal text of the value.
func (v Value) String() string {
	return string(v)
}
