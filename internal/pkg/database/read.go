package database

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// GetLatestValues returns the stored values of one device, or of every device
// when identifier is empty.
func (db *Database) GetLatestValues(ctx context.Context, identifier string) (LatestValues, error) {
	const query = `
	SELECT identifier, slug, key, value, label, unit_of_measurement, time_stamp
	FROM latest_value
	WHERE $1 = '' OR identifier = $1
	ORDER BY identifier, slug;
	`

	rows, err := db.pool.Query(ctx, query, identifier)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (LatestValue, error) {
		var v LatestValue
		err := row.Scan(&v.Identifier, &v.Slug, &v.Key, &v.Value, &v.Label, &v.Unit, &v.TimeStamp)
		return v, err
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

func (db *Database) GetDevices(ctx context.Context) ([]Device, error) {
	rows, err := db.pool.Query(ctx, `
	SELECT id, model, serial_number, firmware_version, hardware_version, registered_at
	FROM device
	ORDER BY id;
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Device, error) {
		var d Device
		err := row.Scan(&d.ID, &d.Model, &d.SerialNumber, &d.FirmwareVersion, &d.HardwareVersion, &d.RegisteredAt)
		return d, err
	})
}
