package monitor

import "github.com/rewindbitcoin/watchtower/store"

// IrreversibleThreshold is the minimum confirmation count at which a
// trigger is considered permanently in the chain.
const IrreversibleThreshold = 4

// sighting describes where, if anywhere, a trigger txid was observed
// during a single reconciliation step.
type sighting struct {
	// inBlock is true if the txid was found confirmed in a block.
	inBlock bool
	// confirmations is only meaningful when inBlock is true:
	// currentHeight - blockHeight + 1.
	confirmations int64
	// inMempool is true if the txid is present in the current mempool
	// snapshot.
	inMempool bool
}

// nextStatus is a pure function over the trigger status diagram,
// independent of any I/O, so it can be unit tested directly. current is
// the trigger's status before this reconciliation step; s describes what
// was observed this step.
//
// LND's txConfNotifier tracks confirmations of one already-known txid via
// a push model, which doesn't fit here: this instead reconciles many
// txids' visibility each cycle against a batch chain view, a shape
// grounded on the graduation classes in daemon/utxonursery.go
// (kindergarten/crib/graveyard), adapted to this system's four states.
func nextStatus(current store.TriggerStatus, s sighting) store.TriggerStatus {
	if current == store.StatusIrreversible {
		// Terminal: preserved even across a later disappearance.
		return store.StatusIrreversible
	}

	switch current {
	case store.StatusUnchecked:
		switch {
		case s.inBlock:
			return confirmedStatus(s.confirmations)
		case s.inMempool:
			return store.StatusReversible
		default:
			return store.StatusUnseen
		}

	case store.StatusUnseen:
		switch {
		case s.inBlock:
			return confirmedStatus(s.confirmations)
		case s.inMempool:
			return store.StatusReversible
		default:
			return store.StatusUnseen
		}

	case store.StatusReversible:
		switch {
		case s.inBlock:
			return confirmedStatus(s.confirmations)
		case s.inMempool:
			return store.StatusReversible
		default:
			return store.StatusUnseen
		}
	}

	return current
}

func confirmedStatus(confirmations int64) store.TriggerStatus {
	if confirmations >= IrreversibleThreshold {
		return store.StatusIrreversible
	}
	return store.StatusReversible
}
