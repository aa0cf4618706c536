package store

import (
	"context"
	"database/sql"
)

// LastCheckedHeight returns the singleton network_state row's height, and
// false if the row does not yet exist (first run).
func (db *DB) LastCheckedHeight(ctx context.Context) (height int64, ok bool, err error) {
	var h sql.NullInt64
	err = db.sqlDB.QueryRowContext(ctx,
		`SELECT last_checked_height FROM network_state WHERE id = 1`,
	).Scan(&h)

	switch {
	case err == sql.ErrNoRows:
		return 0, false, nil
	case err != nil:
		return 0, false, err
	case !h.Valid:
		return 0, false, nil
	default:
		return h.Int64, true, nil
	}
}

// SetLastCheckedHeight writes the cycle-resumption height. It must only be
// called after the notification scheduler has run successfully for the
// cycle, so a crash mid-cycle always resumes from a point where
// notifications for the previous window have already been scheduled.
func (db *DB) SetLastCheckedHeight(ctx context.Context, height int64) error {
	_, err := db.sqlDB.ExecContext(ctx, `
		INSERT INTO network_state (id, last_checked_height) VALUES (1, ?)
		ON CONFLICT (id) DO UPDATE SET last_checked_height = excluded.last_checked_height`,
		height,
	)
	return err
}
