package device

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/devicehub/internal/infrastructure/database"
)

const dataColumns = `id, device_id, name, value, unit, created_at, updated_at`

// SQLDataRepository implements DataStore on a database.DB.
type SQLDataRepository struct {
	db *database.DB
}

// NewSQLDataRepository creates a reading repository backed by db.
func NewSQLDataRepository(db *database.DB) *SQLDataRepository {
	return &SQLDataRepository{db: db}
}

// Insert persists a new reading.
func (r *SQLDataRepository) Insert(ctx context.Context, d *DeviceData) error {
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
		INSERT INTO device_data (` + dataColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		d.ID,
		d.DeviceID,
		d.Name,
		d.Value,
		d.Unit,
		formatTime(d.CreatedAt),
		formatTime(d.UpdatedAt),
	)
	if err != nil {
		return classifyStoreError(r.db.Dialect(), "inserting device data", err)
	}

	return nil
}

// Find returns readings matching the filter, newest first. created_at is
// stored fixed width in UTC, so text order is time order.
func (r *SQLDataRepository) Find(ctx context.Context, filter DataFilter) ([]DeviceData, error) {
	var (
		where []string
		args  []any
	)
	if filter.DeviceID != "" {
		where = append(where, "device_id = ?")
		args = append(args, filter.DeviceID)
	}
	if filter.Name != "" {
		where = append(where, "name = ?")
		args = append(args, filter.Name)
	}

	query := "SELECT " + dataColumns + " FROM device_data"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyStoreError(r.db.Dialect(), "querying device data", err)
	}
	defer rows.Close()

	data := []DeviceData{}
	for rows.Next() {
		d, err := scanDeviceData(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device data: %w", err)
		}
		data = append(data, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, classifyStoreError(r.db.Dialect(), "iterating device data", err)
	}

	return data, nil
}

// FindByID retrieves a reading by id.
func (r *SQLDataRepository) FindByID(ctx context.Context, id string) (*DeviceData, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+dataColumns+`
		FROM device_data
		WHERE id = ?`, id)

	d, err := scanDeviceData(row)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, ErrDataNotFound
		}
		return nil, classifyStoreError(r.db.Dialect(), "querying device data", err)
	}
	return d, nil
}

func scanDeviceData(scanner rowScanner) (*DeviceData, error) {
	var (
		d                    DeviceData
		createdAt, updatedAt string
	)

	err := scanner.Scan(
		&d.ID,
		&d.DeviceID,
		&d.Name,
		&d.Value,
		&d.Unit,
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

var _ DataStore = (*SQLDataRepository)(nil)
