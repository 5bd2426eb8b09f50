package database

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/anicoll/solax-http-integration/internal/pkg/model"
)

const upsertLatestValueSQL = `
	INSERT INTO latest_value (identifier, slug, key, value, label, unit_of_measurement, time_stamp)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (identifier, slug) DO UPDATE SET
		key = EXCLUDED.key,
		value = EXCLUDED.value,
		label = EXCLUDED.label,
		unit_of_measurement = EXCLUDED.unit_of_measurement,
		time_stamp = EXCLUDED.time_stamp
`

func (db *Database) Write(ctx context.Context, records []model.Record) error {
	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(upsertLatestValueSQL, r.Identifier, r.Slug, r.Key, r.Value.Ptr(), r.Label, r.Unit, r.Timestamp)
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (db *Database) RegisterDevice(ctx context.Context, device model.Device, _ []*model.Descriptor) error {
	_, err := db.pool.Exec(ctx, `
		INSERT INTO device (id, model, serial_number, firmware_version, hardware_version)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			firmware_version = EXCLUDED.firmware_version,
			hardware_version = EXCLUDED.hardware_version;`,
		device.ID, device.Model, device.SerialNumber, device.FirmwareVersion, device.HardwareVersion)
	return err
}
