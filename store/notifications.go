package store

import (
	"context"
	"database/sql"
	"time"
)

// Retry cadence thresholds governing notification delivery scheduling.
const (
	MaxRetryWindow     = 7 * 24 * time.Hour
	FirstDayWindow     = 24 * time.Hour
	FirstDayRetryDelay = 6 * time.Hour
	AfterFirstDayRetry = 24 * time.Hour
)

// NotificationRegistration mirrors a single notifications row, joined with
// its trigger's current status where relevant.
type NotificationRegistration struct {
	PushToken      string
	VaultID        string
	WalletID       string
	WalletName     string
	VaultNumber    int
	WatchtowerID   string
	Locale         string
	FirstAttemptAt *time.Time
	LastAttemptAt  *time.Time
	AttemptCount   int
	Acknowledged   bool

	// Populated by DueNotifications via a join; not a notifications
	// column.
	TriggerTxid           string
	TriggerStatus         TriggerStatus
	TriggerCommitmentTxid string
}

// DueNotifications selects registrations that are due for delivery. A
// vault may have more than one trigger txid and any one of them being
// reversible or irreversible makes the registration eligible, but each
// (pushToken, vaultId) pair is returned at most once per call, carrying a
// single representative trigger (irreversible preferred) so the scheduler
// can run the spend-proof check and compose "txid" into the push payload
// without ever attempting the same registration twice in one cycle.
func (db *DB) DueNotifications(ctx context.Context, now time.Time) ([]NotificationRegistration, error) {
	rows, err := db.sqlDB.QueryContext(ctx, `
		SELECT
			n.push_token, n.vault_id, n.wallet_id, n.wallet_name, n.vault_number,
			n.watchtower_id, n.locale, n.first_attempt_at, n.last_attempt_at,
			n.attempt_count, n.acknowledged,
			v.txid, v.status, COALESCE(v.commitment_txid, '')
		FROM notifications n
		JOIN vault_txids v ON v.vault_id = n.vault_id
		WHERE n.acknowledged = 0
		  AND v.status IN (?, ?)
		ORDER BY n.push_token, n.vault_id, (v.status = ?) DESC
	`, StatusReversible, StatusIrreversible, StatusIrreversible)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type regKey struct {
		pushToken string
		vaultID   string
	}
	seen := make(map[regKey]struct{})

	var out []NotificationRegistration
	for rows.Next() {
		var (
			r                         NotificationRegistration
			firstAttempt, lastAttempt sql.NullInt64
			ack                       int
		)

		if err := rows.Scan(
			&r.PushToken, &r.VaultID, &r.WalletID, &r.WalletName, &r.VaultNumber,
			&r.WatchtowerID, &r.Locale, &firstAttempt, &lastAttempt,
			&r.AttemptCount, &ack,
			&r.TriggerTxid, &r.TriggerStatus, &r.TriggerCommitmentTxid,
		); err != nil {
			return nil, err
		}

		key := regKey{r.PushToken, r.VaultID}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		r.Acknowledged = ack != 0
		if firstAttempt.Valid {
			t := time.Unix(firstAttempt.Int64, 0).UTC()
			r.FirstAttemptAt = &t
		}
		if lastAttempt.Valid {
			t := time.Unix(lastAttempt.Int64, 0).UTC()
			r.LastAttemptAt = &t
		}

		if isDue(r, now) {
			out = append(out, r)
		}
	}

	return out, rows.Err()
}

// isDue applies the retry cadence predicate to a single registration that
// has already been filtered to acknowledged=0 and trigger status
// reversible/irreversible.
func isDue(r NotificationRegistration, now time.Time) bool {
	if r.FirstAttemptAt != nil && now.Sub(*r.FirstAttemptAt) > MaxRetryWindow {
		return false
	}

	if r.AttemptCount == 0 {
		return true
	}

	since := now.Sub(*r.FirstAttemptAt)
	sinceLast := now.Sub(*r.LastAttemptAt)

	if since <= FirstDayWindow {
		return sinceLast >= FirstDayRetryDelay
	}

	return sinceLast >= AfterFirstDayRetry
}

// RecordAttempt persists attempt bookkeeping before a push is sent, so a
// crash between bookkeeping and delivery never causes a duplicate count.
func (db *DB) RecordAttempt(ctx context.Context, pushToken, vaultID string, now time.Time) error {
	_, err := db.sqlDB.ExecContext(ctx, `
		UPDATE notifications
		SET
			first_attempt_at = COALESCE(first_attempt_at, ?),
			last_attempt_at = ?,
			attempt_count = attempt_count + 1
		WHERE push_token = ? AND vault_id = ?`,
		now.Unix(), now.Unix(), pushToken, vaultID,
	)
	return err
}

// SetAcknowledged marks a registration acknowledged, a terminal state after
// which no further delivery attempts are made.
func (db *DB) SetAcknowledged(ctx context.Context, pushToken, vaultID string) error {
	res, err := db.sqlDB.ExecContext(ctx, `
		UPDATE notifications SET acknowledged = 1
		WHERE push_token = ? AND vault_id = ?`,
		pushToken, vaultID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// ResetDeliveryBookkeeping clears firstAttemptAt/lastAttemptAt/attemptCount
// for every registration of the given vaultId, as required when a trigger
// disappears due to a reorg or mempool purge.
func (db *DB) ResetDeliveryBookkeeping(ctx context.Context, vaultID string) error {
	_, err := db.sqlDB.ExecContext(ctx, `
		UPDATE notifications
		SET first_attempt_at = NULL, last_attempt_at = NULL, attempt_count = 0
		WHERE vault_id = ?`,
		vaultID,
	)
	return err
}

// NotificationsForDevice returns every unacknowledged, already-attempted
// registration for the given push token whose trigger is reversible or
// irreversible -- backing the /watchtower/notifications endpoint.
func (db *DB) NotificationsForDevice(ctx context.Context, pushToken string) ([]NotificationRegistration, error) {
	rows, err := db.sqlDB.QueryContext(ctx, `
		SELECT
			n.push_token, n.vault_id, n.wallet_id, n.wallet_name, n.vault_number,
			n.watchtower_id, n.locale, n.first_attempt_at, n.last_attempt_at,
			n.attempt_count, n.acknowledged,
			v.txid, v.status, COALESCE(v.commitment_txid, '')
		FROM notifications n
		JOIN vault_txids v ON v.vault_id = n.vault_id
		WHERE n.push_token = ?
		  AND n.acknowledged = 0
		  AND n.attempt_count > 0
		  AND v.status IN (?, ?)`,
		pushToken, StatusReversible, StatusIrreversible,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []NotificationRegistration
	for rows.Next() {
		var (
			r                         NotificationRegistration
			firstAttempt, lastAttempt sql.NullInt64
			ack                       int
		)

		if err := rows.Scan(
			&r.PushToken, &r.VaultID, &r.WalletID, &r.WalletName, &r.VaultNumber,
			&r.WatchtowerID, &r.Locale, &firstAttempt, &lastAttempt,
			&r.AttemptCount, &ack,
			&r.TriggerTxid, &r.TriggerStatus, &r.TriggerCommitmentTxid,
		); err != nil {
			return nil, err
		}

		r.Acknowledged = ack != 0
		if firstAttempt.Valid {
			t := time.Unix(firstAttempt.Int64, 0).UTC()
			r.FirstAttemptAt = &t
		}
		if lastAttempt.Valid {
			t := time.Unix(lastAttempt.Int64, 0).UTC()
			r.LastAttemptAt = &t
		}

		out = append(out, r)
	}

	return out, rows.Err()
}
