// Package monitor implements the per-network engine: a single-threaded,
// eight-step cycle that reconciles an Esplora-style chain view against
// the local store, tolerates bounded reorgs and mempool purges, and
// drives the notification scheduler.
package monitor

import (
	"context"
	"fmt"

	"github.com/btcsuite/btclog"
	"github.com/davecgh/go-spew/spew"

	"github.com/rewindbitcoin/watchtower/chainclient"
	"github.com/rewindbitcoin/watchtower/commitment"
	"github.com/rewindbitcoin/watchtower/internal/build"
	"github.com/rewindbitcoin/watchtower/notify"
	"github.com/rewindbitcoin/watchtower/store"
)

// Monitor owns one network's private state: its store handle, chain
// client, commitment verifier, block cache, and notification scheduler.
// It is not safe for concurrent calls to RunCycle; the supervisor
// guarantees a single goroutine drives it.
type Monitor struct {
	NetworkID string

	db        *store.DB
	chain     *chainclient.Client
	verifier  *commitment.Verifier
	scheduler *notify.Scheduler
	cache     *blockCache
	threshold int64

	log btclog.Logger
}

// Config bundles a Monitor's dependencies.
type Config struct {
	NetworkID string
	DB        *store.DB
	Chain     *chainclient.Client
	Verifier  *commitment.Verifier
	Scheduler *notify.Scheduler
	Log       btclog.Logger
}

// New constructs a Monitor for one network.
func New(cfg Config) *Monitor {
	return &Monitor{
		NetworkID: cfg.NetworkID,
		db:        cfg.DB,
		chain:     cfg.Chain,
		verifier:  cfg.Verifier,
		scheduler: cfg.Scheduler,
		cache:     newBlockCache(IrreversibleThreshold),
		threshold: IrreversibleThreshold,
		log:       cfg.Log,
	}
}

// RunCycle executes the full eight-step reconciliation cycle once. On any
// error the block cache is cleared and last_checked_height is left
// untouched, so the next cycle retries from the same height.
func (m *Monitor) RunCycle(ctx context.Context) error {
	if err := m.runCycle(ctx); err != nil {
		m.cache.clear()
		return err
	}
	return nil
}

func (m *Monitor) runCycle(ctx context.Context) error {
	lastHeight, hasLast, err := m.db.LastCheckedHeight(ctx)
	if err != nil {
		return fmt.Errorf("monitor[%s]: read last checked height: %w", m.NetworkID, err)
	}

	currentHeight, err := m.chain.TipHeight(ctx)
	if err != nil {
		return fmt.Errorf("monitor[%s]: fetch tip height: %w", m.NetworkID, err)
	}

	if !hasLast {
		corrupt, err := m.db.AnyTriggerNotUnchecked(ctx)
		if err != nil {
			return fmt.Errorf("monitor[%s]: first-run guard: %w", m.NetworkID, err)
		}
		if corrupt {
			return fmt.Errorf("monitor[%s]: %w", m.NetworkID, store.ErrCorruption)
		}
	}

	mempoolTxids, err := m.chain.MempoolTxids(ctx)
	if err != nil {
		return fmt.Errorf("monitor[%s]: fetch mempool: %w", m.NetworkID, err)
	}

	scannedBlockTxids, err := m.reconcileUnchecked(ctx, currentHeight, mempoolTxids)
	if err != nil {
		return err
	}

	if hasLast && lastHeight > 0 {
		if err := m.windowScan(ctx, lastHeight, currentHeight, mempoolTxids, scannedBlockTxids); err != nil {
			return err
		}
	}

	if err := m.disappearanceSweep(ctx, scannedBlockTxids, mempoolTxids); err != nil {
		return err
	}

	if err := m.scheduler.RunDue(ctx, m.NetworkID, m.verifySpend(ctx)); err != nil {
		return fmt.Errorf("monitor[%s]: notification scheduler: %w", m.NetworkID, err)
	}

	if err := m.db.SetLastCheckedHeight(ctx, currentHeight); err != nil {
		return fmt.Errorf("monitor[%s]: commit height: %w", m.NetworkID, err)
	}

	return nil
}

// verifySpend adapts the commitment verifier's spend-proof check into the
// callback shape the notification scheduler expects.
func (m *Monitor) verifySpend(ctx context.Context) func(triggerTxid, commitmentTxid string) bool {
	return func(triggerTxid, commitmentTxid string) bool {
		return m.verifier.VerifySpend(ctx, m.chain, triggerTxid, commitmentTxid)
	}
}

// reconcileUnchecked resolves every trigger still in the unchecked status
// against the current mempool and chain tip. It returns the set of txids
// it found confirmed in a block, which seeds the window's observed txids:
// a trigger whose confirming block sits outside the scan window (or whose
// cycle is the first ever) must not read as disappeared to the sweep.
func (m *Monitor) reconcileUnchecked(ctx context.Context, currentHeight int64, mempoolTxids map[string]struct{}) (map[string]struct{}, error) {
	unchecked, err := m.db.TriggersByStatuses(ctx, store.StatusUnchecked)
	if err != nil {
		return nil, fmt.Errorf("monitor[%s]: enumerate unchecked triggers: %w", m.NetworkID, err)
	}

	confirmedTxids := make(map[string]struct{})
	for _, t := range unchecked {
		status, found, err := m.chain.TxStatus(ctx, t.Txid)
		if err != nil {
			return nil, fmt.Errorf("monitor[%s]: tx_status(%s): %w", m.NetworkID, t.Txid, err)
		}

		var s sighting
		switch {
		case found && status.Confirmed:
			s.inBlock = true
			if status.BlockHeight != nil {
				s.confirmations = currentHeight - *status.BlockHeight + 1
			}
			confirmedTxids[t.Txid] = struct{}{}
		case found:
			s.inMempool = true
		default:
			_, s.inMempool = mempoolTxids[t.Txid]
		}

		newStatus := nextStatus(t.Status, s)
		if newStatus == t.Status {
			continue
		}
		if err := m.db.SetTriggerStatus(ctx, t.Txid, newStatus); err != nil {
			return nil, fmt.Errorf("monitor[%s]: set status for %s: %w", m.NetworkID, t.Txid, err)
		}
	}

	return confirmedTxids, nil
}

// windowScan reconciles triggers not yet irreversible against the
// confirmation window, adding every txid seen across the scanned blocks
// to scannedBlockTxids.
func (m *Monitor) windowScan(ctx context.Context, lastHeight, currentHeight int64, mempoolTxids map[string]struct{}, scannedBlockTxids map[string]struct{}) error {
	start := lastHeight - m.threshold
	if start < 0 {
		start = 0
	}

	for h := start; h <= currentHeight; h++ {
		hash, err := m.chain.BlockHash(ctx, h)
		if err != nil {
			return fmt.Errorf("monitor[%s]: block_hash(%d): %w", m.NetworkID, h, err)
		}

		txids, cached := m.cache.get(hash)
		if !cached {
			txids, err = m.chain.BlockTxids(ctx, hash)
			if err != nil {
				return fmt.Errorf("monitor[%s]: block_txids(%s): %w", m.NetworkID, hash, err)
			}
			m.cache.put(hash, txids)
		}

		blockTxidSet := make(map[string]struct{}, len(txids))
		for _, txid := range txids {
			blockTxidSet[txid] = struct{}{}
			scannedBlockTxids[txid] = struct{}{}
		}

		triggers, err := m.db.TriggersByStatuses(ctx, store.StatusUnseen, store.StatusReversible)
		if err != nil {
			return fmt.Errorf("monitor[%s]: enumerate scan triggers: %w", m.NetworkID, err)
		}

		for _, t := range triggers {
			var newStatus store.TriggerStatus

			if _, inBlock := blockTxidSet[t.Txid]; inBlock {
				newStatus = confirmedStatus(currentHeight - h + 1)
			} else if _, inMempool := mempoolTxids[t.Txid]; inMempool && t.Status == store.StatusUnseen {
				newStatus = store.StatusReversible
			} else {
				continue
			}

			if newStatus == t.Status {
				continue
			}
			if err := m.db.SetTriggerStatus(ctx, t.Txid, newStatus); err != nil {
				return fmt.Errorf("monitor[%s]: set status for %s: %w", m.NetworkID, t.Txid, err)
			}
		}
	}

	return nil
}

// disappearanceSweep demotes reversible triggers that are absent from both
// the scanned blocks and the current mempool to unseen, and resets the
// delivery bookkeeping of their vault.
func (m *Monitor) disappearanceSweep(ctx context.Context, scannedBlockTxids, mempoolTxids map[string]struct{}) error {
	reversible, err := m.db.TriggersByStatuses(ctx, store.StatusReversible)
	if err != nil {
		return fmt.Errorf("monitor[%s]: enumerate reversible triggers: %w", m.NetworkID, err)
	}

	for _, t := range reversible {
		_, inBlocks := scannedBlockTxids[t.Txid]
		_, inMempool := mempoolTxids[t.Txid]
		if inBlocks || inMempool {
			continue
		}

		if err := m.db.SetTriggerStatus(ctx, t.Txid, store.StatusUnseen); err != nil {
			return fmt.Errorf("monitor[%s]: disappearance set status for %s: %w", m.NetworkID, t.Txid, err)
		}
		if err := m.db.ResetDeliveryBookkeeping(ctx, t.VaultID); err != nil {
			return fmt.Errorf("monitor[%s]: disappearance reset bookkeeping for %s: %w", m.NetworkID, t.VaultID, err)
		}
		if m.log != nil {
			m.log.Debugf("trigger %s for vault %s disappeared, reset to unseen", t.Txid, t.VaultID)
			m.log.Tracef("disappeared trigger row: %v", build.NewLogClosure(func() string {
				return spew.Sdump(t)
			}))
		}
	}

	return nil
}
