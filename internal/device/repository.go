package device

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/devicehub/internal/infrastructure/database"
)

// timeLayout is fixed-width RFC 3339 with nanoseconds. Times are always UTC
// so the zone renders as "Z" and lexical order equals chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const deviceColumns = `id, name, address, heartbeat_url, picture_url, online, created_at, updated_at`

// SQLRepository implements DeviceStore on a database.DB. Queries are
// written with ? placeholders and rebound for the active dialect.
type SQLRepository struct {
	db *database.DB
}

// NewSQLRepository creates a device repository backed by db.
func NewSQLRepository(db *database.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

// Insert persists a new device.
func (r *SQLRepository) Insert(ctx context.Context, d *Device) error {
	if d.ID == "" {
		id, err := GenerateID()
		if err != nil {
			return err
		}
		d.ID = id
	}

	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	query := `
		INSERT INTO devices (` + deviceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		d.ID,
		d.Name,
		d.Address,
		d.HeartbeatURL,
		d.PictureURL,
		d.Online,
		formatTime(d.CreatedAt),
		formatTime(d.UpdatedAt),
	)
	if err != nil {
		if r.db.Dialect().IsUniqueViolation(err) {
			return fmt.Errorf("%w: address %q", ErrDeviceExists, d.Address)
		}
		return r.classify("inserting device", err)
	}

	return nil
}

// FindByAddress returns devices with exactly this address.
func (r *SQLRepository) FindByAddress(ctx context.Context, address string) ([]Device, error) {
	return r.queryDevices(ctx, `
		SELECT `+deviceColumns+`
		FROM devices
		WHERE address = ?
		ORDER BY created_at, id`, address)
}

// FindByID retrieves a device by id.
func (r *SQLRepository) FindByID(ctx context.Context, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+deviceColumns+`
		FROM devices
		WHERE id = ?`, id)

	d, err := scanDevice(row)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, ErrDeviceNotFound
		}
		return nil, r.classify("querying device", err)
	}
	return d, nil
}

// FindAll returns every device in creation order.
func (r *SQLRepository) FindAll(ctx context.Context) ([]Device, error) {
	return r.queryDevices(ctx, `
		SELECT `+deviceColumns+`
		FROM devices
		ORDER BY created_at, id`)
}

// Find returns devices matching the filter.
func (r *SQLRepository) Find(ctx context.Context, filter DeviceFilter) ([]Device, error) {
	var (
		where []string
		args  []any
	)
	if filter.Name != "" {
		where = append(where, "name = ?")
		args = append(args, filter.Name)
	}
	if filter.Address != "" {
		where = append(where, "address = ?")
		args = append(args, filter.Address)
	}

	var b strings.Builder
	b.WriteString("SELECT " + deviceColumns + " FROM devices")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY created_at, id")
	if filter.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, filter.Limit)
	}

	return r.queryDevices(ctx, b.String(), args...)
}

// Update persists name, URLs and online state. Address and id are immutable.
func (r *SQLRepository) Update(ctx context.Context, d *Device) error {
	d.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE devices SET
			name = ?, heartbeat_url = ?, picture_url = ?, online = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		d.Name,
		d.HeartbeatURL,
		d.PictureURL,
		d.Online,
		formatTime(d.UpdatedAt),
		d.ID,
	)
	if err != nil {
		if r.db.Dialect().IsConstraintViolation(err) {
			return fmt.Errorf("%w: %w", ErrConstraint, err)
		}
		return r.classify("updating device", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return r.classify("checking rows affected", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// queryDevices runs a query and scans every row into a Device.
func (r *SQLRepository) queryDevices(ctx context.Context, query string, args ...any) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.classify("querying devices", err)
	}
	defer rows.Close()

	devices := []Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, r.classify("iterating devices", err)
	}

	return devices, nil
}

// classify wraps err with ErrUnavailable when the store could not answer.
func (r *SQLRepository) classify(op string, err error) error {
	return classifyStoreError(r.db.Dialect(), op, err)
}

func classifyStoreError(dialect database.Dialect, op string, err error) error {
	if dialect.IsUnavailable(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(scanner rowScanner) (*Device, error) {
	var (
		d                    Device
		createdAt, updatedAt string
	)

	err := scanner.Scan(
		&d.ID,
		&d.Name,
		&d.Address,
		&d.HeartbeatURL,
		&d.PictureURL,
		&d.Online,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if d.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if d.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &d, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// Rows written by hand or by older tooling may lack the fixed width.
		t, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, err
		}
	}
	return t.UTC(), nil
}

// compile-time interface check
var _ DeviceStore = (*SQLRepository)(nil)
