package store

import (
	"context"
	"database/sql"
)

// CommitmentVaultID returns the vaultId a commitment txid is already bound
// to, and false if no such commitment has been recorded yet.
func (db *DB) CommitmentVaultID(ctx context.Context, txid string) (vaultID string, found bool, err error) {
	err = db.sqlDB.QueryRowContext(ctx,
		`SELECT vault_id FROM commitments WHERE txid = ?`, txid,
	).Scan(&vaultID)

	switch {
	case err == sql.ErrNoRows:
		return "", false, nil
	case err != nil:
		return "", false, err
	default:
		return vaultID, true, nil
	}
}
