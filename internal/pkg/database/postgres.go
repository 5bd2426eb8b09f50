package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/anicoll/solax-http-integration/internal/pkg/database/migration"
)

// Database keeps the latest value of every sensor. It holds no history: each
// write replaces the previous row for the same sensor.
type Database struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// Connect migrates the schema and opens a pool.
func Connect(ctx context.Context, dsn string) (*Database, error) {
	if err := migration.Migrate(dsn); err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return NewDatabase(pool), nil
}

func NewDatabase(pool *pgxpool.Pool) *Database {
	return &Database{
		pool:   pool,
		logger: zap.L(),
	}
}

func (db *Database) Close() error {
	if db.pool != nil {
		db.pool.Close()
	}
	return nil
}

// LatestValue is one stored sensor value. Value is nil when the sensor was
// unavailable at its last update.
type LatestValue struct {
	Identifier string    `json:"identifier"`
	Slug       string    `json:"slug"`
	Key        string    `json:"key"`
	Value      *float64  `json:"value"`
	Label      string    `json:"label,omitempty"`
	Unit       string    `json:"unit_of_measurement"`
	TimeStamp  time.Time `json:"timestamp"`
}

type LatestValues []LatestValue

type Device struct {
	ID              string    `json:"id"`
	Model           string    `json:"model"`
	SerialNumber    string    `json:"serial_number"`
	FirmwareVersion string    `json:"firmware_version"`
	HardwareVersion string    `json:"hardware_version"`
	RegisteredAt    time.Time `json:"registered_at"`
}
