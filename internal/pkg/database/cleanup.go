package database

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Cleanup removes values that have not been updated for more than a week,
// which leaves only sensors the device still reports.
func (db *Database) Cleanup(ctx context.Context) error {
	tag, err := db.pool.Exec(ctx, "DELETE FROM latest_value WHERE time_stamp < $1", time.Now().AddDate(0, 0, -8))
	if err != nil {
		return err
	}
	db.logger.Info("cleaned up stale values", zap.Int64("rows", tag.RowsAffected()))
	return nil
}
