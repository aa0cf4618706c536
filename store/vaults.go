package store

import (
	"context"
	"database/sql"
	"fmt"
)

// VaultRegistration is the atomic unit of work accepted by RegisterVault: a
// single device's registration of interest in a single vault, along with
// the vault's trigger txids and an optional already-authorized commitment
// txid.
type VaultRegistration struct {
	PushToken      string
	WalletID       string
	WalletName     string
	WatchtowerID   string
	Locale         string
	VaultID        string
	VaultNumber    int
	TriggerTxids   []string
	CommitmentTxid string // empty when --with-commitments is disabled
}

// RegisterVault commits the commitment row (if any), the notification row,
// and all trigger rows in a single transaction. It is idempotent: repeat
// calls with the same (pushToken, vaultId) and the same trigger txids are
// observationally identical to a single call. A commitment txid already
// bound to a different vaultId fails the whole registration with
// ErrCommitmentReused. Triggers are keyed by txid alone: a txid already
// registered under another vaultId keeps its first binding, and no trigger
// row is added for it here.
func (db *DB) RegisterVault(ctx context.Context, reg VaultRegistration) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if reg.CommitmentTxid != "" {
			var existingVaultID string
			err := tx.QueryRowContext(ctx,
				`SELECT vault_id FROM commitments WHERE txid = ?`,
				reg.CommitmentTxid,
			).Scan(&existingVaultID)

			switch {
			case err == sql.ErrNoRows:
				_, err = tx.ExecContext(ctx,
					`INSERT INTO commitments (txid, vault_id, created_at) VALUES (?, ?, strftime('%s','now'))`,
					reg.CommitmentTxid, reg.VaultID,
				)
				if err != nil {
					return fmt.Errorf("insert commitment: %w", err)
				}
			case err != nil:
				return fmt.Errorf("lookup commitment: %w", err)
			case existingVaultID != reg.VaultID:
				return ErrCommitmentReused
			}
			// existingVaultID == reg.VaultID: idempotent re-registration,
			// nothing to do.
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO notifications (
				push_token, vault_id, wallet_id, wallet_name,
				vault_number, watchtower_id, locale, attempt_count, acknowledged
			) VALUES (?, ?, ?, ?, ?, ?, ?, 0, 0)
			ON CONFLICT (push_token, vault_id) DO NOTHING`,
			reg.PushToken, reg.VaultID, reg.WalletID, reg.WalletName,
			reg.VaultNumber, reg.WatchtowerID, reg.Locale,
		)
		if err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}

		var commitmentTxid interface{}
		if reg.CommitmentTxid != "" {
			commitmentTxid = reg.CommitmentTxid
		}

		for _, txid := range reg.TriggerTxids {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO vault_txids (txid, vault_id, status, commitment_txid)
				VALUES (?, ?, ?, ?)
				ON CONFLICT (txid) DO NOTHING`,
				txid, reg.VaultID, StatusUnchecked, commitmentTxid,
			)
			if err != nil {
				return fmt.Errorf("insert trigger %s: %w", txid, err)
			}
		}

		return nil
	})
}

// VaultSpent reports whether vaultId already has a trigger in the
// irreversible status that has been delivered at least once. The state
// transition to irreversible cannot be undone, so a caller re-registering
// such a vault should log a warning rather than treat it as an error: the
// registration itself is still permitted.
func (db *DB) VaultSpent(ctx context.Context, vaultID string) (bool, error) {
	var count int
	err := db.sqlDB.QueryRowContext(ctx, `
		SELECT COUNT(1)
		FROM vault_txids v
		JOIN notifications n ON n.vault_id = v.vault_id
		WHERE v.vault_id = ? AND v.status = ? AND n.attempt_count > 0`,
		vaultID, StatusIrreversible,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// TriggerTx mirrors a single vault_txids row.
type TriggerTx struct {
	Txid           string
	VaultID        string
	Status         TriggerStatus
	CommitmentTxid string // empty if unbound
}

// TriggersByStatuses enumerates all triggers whose status is one of the
// given statuses. Used by the monitor's unchecked reconciliation
// (unchecked), window scan (reversible/unseen) and disappearance sweep
// (reversible).
func (db *DB) TriggersByStatuses(ctx context.Context, statuses ...TriggerStatus) ([]TriggerTx, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	placeholders := ""
	args := make([]interface{}, len(statuses))
	for i, s := range statuses {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args[i] = s
	}

	rows, err := db.sqlDB.QueryContext(ctx, fmt.Sprintf(
		`SELECT txid, vault_id, status, COALESCE(commitment_txid, '') FROM vault_txids WHERE status IN (%s)`,
		placeholders,
	), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTriggers(rows)
}

// AnyTriggerNotUnchecked reports whether a trigger exists whose status is
// not "unchecked" -- used by the monitor's first-run guard, which fails the
// cycle with ErrCorruption when this network has never completed a cycle
// yet already holds such a trigger.
func (db *DB) AnyTriggerNotUnchecked(ctx context.Context) (bool, error) {
	var count int
	err := db.sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM vault_txids WHERE status != ?`, StatusUnchecked,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SetTriggerStatus updates a single trigger's status.
func (db *DB) SetTriggerStatus(ctx context.Context, txid string, status TriggerStatus) error {
	_, err := db.sqlDB.ExecContext(ctx,
		`UPDATE vault_txids SET status = ? WHERE txid = ?`, status, txid,
	)
	return err
}

func scanTriggers(rows *sql.Rows) ([]TriggerTx, error) {
	var out []TriggerTx
	for rows.Next() {
		var t TriggerTx
		if err := rows.Scan(&t.Txid, &t.VaultID, &t.Status, &t.CommitmentTxid); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
