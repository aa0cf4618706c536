// Package notify implements the notification scheduler: selecting due
// registrations, gating the first attempt on spend-proof, composing
// localized messages, and delivering them idempotently.
//
// The shape is adapted from invoices/invoiceregistry.go's central
// registry mutated on a schedule, reworked from an event-driven
// subscription registry into a polled, cycle-driven one.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btclog"

	"github.com/rewindbitcoin/watchtower/notify/localization"
	"github.com/rewindbitcoin/watchtower/store"
)

// VerifySpendFunc proves that a trigger spends from its bound commitment.
// It returns false (never an error) on any inability to prove it yet --
// the caller will retry in a later cycle.
type VerifySpendFunc func(triggerTxid, commitmentTxid string) bool

// Scheduler selects and delivers due notifications for a single network.
type Scheduler struct {
	db     *store.DB
	pusher *ExpoPusher
	log    btclog.Logger
}

// NewScheduler constructs a Scheduler bound to a single network's store.
func NewScheduler(db *store.DB, pusher *ExpoPusher, log btclog.Logger) *Scheduler {
	return &Scheduler{db: db, pusher: pusher, log: log}
}

// RunDue selects due registrations and attempts delivery for each. Store
// errors abort and propagate (the enclosing cycle treats them as fatal to
// this cycle); individual delivery failures are logged and skipped, never
// propagated, since bookkeeping has already been persisted and the
// regular schedule will retry.
func (s *Scheduler) RunDue(ctx context.Context, networkID string, verifySpend VerifySpendFunc) error {
	now := time.Now()

	due, err := s.db.DueNotifications(ctx, now)
	if err != nil {
		return fmt.Errorf("notify: select due notifications: %w", err)
	}

	for _, r := range due {
		if r.AttemptCount == 0 && r.TriggerCommitmentTxid != "" {
			if !verifySpend(r.TriggerTxid, r.TriggerCommitmentTxid) {
				continue
			}
		}

		firstAttempt := r.AttemptCount == 0
		firstDetectedAt := now
		if r.FirstAttemptAt != nil {
			firstDetectedAt = *r.FirstAttemptAt
		}

		// Bookkeeping is persisted before the push is sent.
		if err := s.db.RecordAttempt(ctx, r.PushToken, r.VaultID, now); err != nil {
			return fmt.Errorf("notify: record attempt for %s/%s: %w", r.PushToken, r.VaultID, err)
		}

		msg := localization.Compose(r.Locale, r.WalletName, r.VaultNumber, firstDetectedAt, now, firstAttempt)

		data := PushData{
			VaultID:         r.VaultID,
			WalletID:        r.WalletID,
			WalletName:      r.WalletName,
			VaultNumber:     r.VaultNumber,
			WatchtowerID:    r.WatchtowerID,
			Txid:            r.TriggerTxid,
			AttemptCount:    r.AttemptCount + 1,
			FirstDetectedAt: firstDetectedAt.Unix(),
			NetworkID:       networkID,
		}

		if err := s.pusher.Push(ctx, r.PushToken, msg.Title, msg.Body, data); err != nil {
			if s.log != nil {
				s.log.Warnf("push delivery failed for %s/%s: %v", r.PushToken, r.VaultID, err)
			}
			continue
		}
	}

	return nil
}
