package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func registerAndConfirm(t *testing.T, db *DB, pushToken, vaultID, txid string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, db.RegisterVault(ctx, VaultRegistration{
		PushToken:    pushToken,
		WalletID:     "wallet-1",
		WalletName:   "Cold Vault",
		WatchtowerID: "wt-1",
		Locale:       "en",
		VaultID:      vaultID,
		TriggerTxids: []string{txid},
	}))
	require.NoError(t, db.SetTriggerStatus(ctx, txid, StatusReversible))
}

func TestDueNotificationsSkipsAcknowledged(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	registerAndConfirm(t, db, "push-1", "vault-1", "txid-a")

	now := time.Unix(1_700_000_000, 0).UTC()
	due, err := db.DueNotifications(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1)

	require.NoError(t, db.SetAcknowledged(ctx, "push-1", "vault-1"))

	due, err = db.DueNotifications(ctx, now)
	require.NoError(t, err)
	require.Empty(t, due)
}

func TestDueNotificationsDeduplicatesMultiTriggerVaults(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.RegisterVault(ctx, VaultRegistration{
		PushToken:    "push-1",
		WalletID:     "wallet-1",
		WalletName:   "Cold Vault",
		WatchtowerID: "wt-1",
		Locale:       "en",
		VaultID:      "vault-1",
		TriggerTxids: []string{"txid-a", "txid-b"},
	}))
	require.NoError(t, db.SetTriggerStatus(ctx, "txid-a", StatusReversible))
	require.NoError(t, db.SetTriggerStatus(ctx, "txid-b", StatusIrreversible))

	now := time.Unix(1_700_000_000, 0).UTC()
	due, err := db.DueNotifications(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1, "one row per (pushToken, vaultId), not per trigger")
	require.Equal(t, "txid-b", due[0].TriggerTxid, "irreversible trigger is the representative")
	require.Equal(t, StatusIrreversible, due[0].TriggerStatus)
}

func TestIsDueFirstAttemptAlwaysDue(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	r := NotificationRegistration{AttemptCount: 0}
	require.True(t, isDue(r, now))
}

func TestIsDueFirstDayCadence(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	first := now.Add(-12 * time.Hour)

	tooSoon := NotificationRegistration{
		AttemptCount:   1,
		FirstAttemptAt: &first,
		LastAttemptAt:  timePtr(now.Add(-5 * time.Hour)),
	}
	require.False(t, isDue(tooSoon, now))

	due := NotificationRegistration{
		AttemptCount:   1,
		FirstAttemptAt: &first,
		LastAttemptAt:  timePtr(now.Add(-6 * time.Hour)),
	}
	require.True(t, isDue(due, now))
}

func TestIsDueAfterFirstDayCadence(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	first := now.Add(-48 * time.Hour)

	tooSoon := NotificationRegistration{
		AttemptCount:   3,
		FirstAttemptAt: &first,
		LastAttemptAt:  timePtr(now.Add(-10 * time.Hour)),
	}
	require.False(t, isDue(tooSoon, now))

	due := NotificationRegistration{
		AttemptCount:   3,
		FirstAttemptAt: &first,
		LastAttemptAt:  timePtr(now.Add(-24 * time.Hour)),
	}
	require.True(t, isDue(due, now))
}

func TestIsDueStopsAfterMaxRetryWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	first := now.Add(-8 * 24 * time.Hour)

	r := NotificationRegistration{
		AttemptCount:   5,
		FirstAttemptAt: &first,
		LastAttemptAt:  timePtr(now.Add(-25 * time.Hour)),
	}
	require.False(t, isDue(r, now))
}

func TestResetDeliveryBookkeeping(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	registerAndConfirm(t, db, "push-1", "vault-1", "txid-a")

	now := time.Unix(1_700_000_000, 0).UTC()
	require.NoError(t, db.RecordAttempt(ctx, "push-1", "vault-1", now))

	require.NoError(t, db.ResetDeliveryBookkeeping(ctx, "vault-1"))

	due, err := db.DueNotifications(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, 0, due[0].AttemptCount)
}

func timePtr(t time.Time) *time.Time {
	return &t
}
