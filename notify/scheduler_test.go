package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rewindbitcoin/watchtower/store"
)

func newTestPusher(t *testing.T, handler http.HandlerFunc) *ExpoPusher {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &ExpoPusher{httpClient: srv.Client(), url: srv.URL}
}

func openTestStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func registerReversibleVault(t *testing.T, db *store.DB, pushToken, vaultID, txid, commitmentTxid string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, db.RegisterVault(ctx, store.VaultRegistration{
		PushToken:      pushToken,
		WalletID:       "wallet-1",
		WalletName:     "Cold Vault",
		WatchtowerID:   "wt-1",
		Locale:         "en",
		VaultID:        vaultID,
		TriggerTxids:   []string{txid},
		CommitmentTxid: commitmentTxid,
	}))
	require.NoError(t, db.SetTriggerStatus(ctx, txid, store.StatusReversible))
}

func TestRunDueDeliversAndRecordsAttempt(t *testing.T) {
	var calls int32
	pusher := newTestPusher(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]string{"status": "ok"}})
	})

	db := openTestStore(t)
	registerReversibleVault(t, db, "push-1", "vault-1", "txid-a", "")

	sched := NewScheduler(db, pusher, nil)
	verifySpend := func(string, string) bool { return true }

	require.NoError(t, sched.RunDue(context.Background(), "bitcoin", verifySpend))
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))

	regs, err := db.NotificationsForDevice(context.Background(), "push-1")
	require.NoError(t, err)
	require.Len(t, regs, 1)
	require.Equal(t, 1, regs[0].AttemptCount)
}

func TestRunDueSinglePushForMultiTriggerVault(t *testing.T) {
	var calls int32
	pusher := newTestPusher(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]string{"status": "ok"}})
	})

	db := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, db.RegisterVault(ctx, store.VaultRegistration{
		PushToken:    "push-1",
		WalletID:     "wallet-1",
		WalletName:   "Cold Vault",
		WatchtowerID: "wt-1",
		Locale:       "en",
		VaultID:      "vault-1",
		TriggerTxids: []string{"txid-a", "txid-b"},
	}))
	require.NoError(t, db.SetTriggerStatus(ctx, "txid-a", store.StatusReversible))
	require.NoError(t, db.SetTriggerStatus(ctx, "txid-b", store.StatusReversible))

	sched := NewScheduler(db, pusher, nil)
	require.NoError(t, sched.RunDue(ctx, "bitcoin", func(string, string) bool { return true }))
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))

	regs, err := db.NotificationsForDevice(ctx, "push-1")
	require.NoError(t, err)
	require.NotEmpty(t, regs)
	for _, reg := range regs {
		require.Equal(t, 1, reg.AttemptCount)
	}
}

func TestRunDueGatesFirstAttemptOnSpendProof(t *testing.T) {
	var calls int32
	pusher := newTestPusher(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]string{"status": "ok"}})
	})

	db := openTestStore(t)
	registerReversibleVault(t, db, "push-1", "vault-1", "txid-a", "commitment-1")

	sched := NewScheduler(db, pusher, nil)
	verifySpend := func(string, string) bool { return false }

	require.NoError(t, sched.RunDue(context.Background(), "bitcoin", verifySpend))
	require.EqualValues(t, 0, atomic.LoadInt32(&calls))

	regs, err := db.NotificationsForDevice(context.Background(), "push-1")
	require.NoError(t, err)
	require.Empty(t, regs, "attempt_count should still be 0 so NotificationsForDevice excludes it")
}

func TestRunDueSkipsAcknowledgedRegistrations(t *testing.T) {
	var calls int32
	pusher := newTestPusher(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]string{"status": "ok"}})
	})

	db := openTestStore(t)
	ctx := context.Background()
	registerReversibleVault(t, db, "push-1", "vault-1", "txid-a", "")
	require.NoError(t, db.SetAcknowledged(ctx, "push-1", "vault-1"))

	sched := NewScheduler(db, pusher, nil)
	require.NoError(t, sched.RunDue(ctx, "bitcoin", func(string, string) bool { return true }))
	require.EqualValues(t, 0, atomic.LoadInt32(&calls))
}

func TestRunDueDeliveryFailureDoesNotAbortCycle(t *testing.T) {
	pusher := newTestPusher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	db := openTestStore(t)
	registerReversibleVault(t, db, "push-1", "vault-1", "txid-a", "")

	sched := NewScheduler(db, pusher, nil)
	err := sched.RunDue(context.Background(), "bitcoin", func(string, string) bool { return true })
	require.NoError(t, err, "individual delivery failures must not propagate")

	regs, err := db.NotificationsForDevice(context.Background(), "push-1")
	require.NoError(t, err)
	require.Len(t, regs, 1, "bookkeeping is persisted before delivery is attempted")
}
