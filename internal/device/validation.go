package device

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxNameLength    = 100
	maxAddressLength = 255
	maxUnitLength    = 32
	maxURLLength     = 2048
)

// ValidateID checks that id is a UUID. Any UUID version is accepted so ids
// minted elsewhere still resolve to NotFound rather than InvalidInput.
func ValidateID(id string) error {
	_, err := NormalizeID(id)
	return err
}

// NormalizeID parses id and returns its canonical lowercase hyphenated
// form, which is how ids are stored. Uppercase, braced, urn:uuid: and
// undashed spellings all map to the same device.
func NormalizeID(id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	u, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%w: id %q is not a UUID", ErrInvalidInput, id)
	}
	return u.String(), nil
}

// ValidateAddress checks a registration address. The caller trims it first.
func ValidateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("%w: address is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(address) > maxAddressLength {
		return fmt.Errorf("%w: address exceeds %d characters", ErrInvalidInput, maxAddressLength)
	}
	return nil
}

// ValidateName checks a device or reading name.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidInput, maxNameLength)
	}
	return nil
}

// ValidateURL checks an optional URL field. Empty is allowed; anything else
// must be an absolute http or https URL with a host.
func ValidateURL(field, raw string) error {
	if raw == "" {
		return nil
	}
	if len(raw) > maxURLLength {
		return fmt.Errorf("%w: %s exceeds %d characters", ErrInvalidInput, field, maxURLLength)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidInput, field, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %s must be an absolute http(s) URL", ErrInvalidInput, field)
	}
	return nil
}

// ValidateMetadata checks registration metadata. An empty name is allowed
// because registration substitutes DefaultDeviceName.
func ValidateMetadata(m Metadata) error {
	if m.Name != "" {
		if err := ValidateName(m.Name); err != nil {
			return err
		}
	}
	if err := ValidateURL("heartbeat_url", m.HeartbeatURL); err != nil {
		return err
	}
	return ValidateURL("picture_url", m.PictureURL)
}

// ValidatePatch checks the present fields of a patch.
func ValidatePatch(p *Patch) error {
	if p == nil {
		return fmt.Errorf("%w: patch is required", ErrInvalidInput)
	}
	if p.Name != nil {
		if err := ValidateName(*p.Name); err != nil {
			return err
		}
	}
	if p.HeartbeatURL != nil {
		if err := ValidateURL("heartbeat_url", *p.HeartbeatURL); err != nil {
			return err
		}
	}
	if p.PictureURL != nil {
		if err := ValidateURL("picture_url", *p.PictureURL); err != nil {
			return err
		}
	}
	return nil
}

// ValidateReading checks the fields of a reading before it is stored.
func ValidateReading(deviceID, name, value, unit string) error {
	if err := ValidateID(deviceID); err != nil {
		return err
	}
	if err := ValidateName(name); err != nil {
		return err
	}
	if value == "" {
		return fmt.Errorf("%w: value is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(unit) > maxUnitLength {
		return fmt.Errorf("%w: unit exceeds %d characters", ErrInvalidInput, maxUnitLength)
	}
	return nil
}

// validateLimit rejects negative limits. Zero means unlimited.
func validateLimit(limit int) error {
	if limit < 0 {
		return fmt.Errorf("%w: limit must not be negative", ErrInvalidInput)
	}
	return nil
}

// GenerateID creates a new time-ordered UUIDv7.
func GenerateID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating id: %w", err)
	}
	return id.String(), nil
}
