package monitor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rewindbitcoin/watchtower/store"
)

func TestNextStatusMempoolFirstSighting(t *testing.T) {
	got := nextStatus(store.StatusUnchecked, sighting{inMempool: true})
	require.Equal(t, store.StatusReversible, got)
}

func TestNextStatusUncheckedWithNoSightingGoesUnseen(t *testing.T) {
	got := nextStatus(store.StatusUnchecked, sighting{})
	require.Equal(t, store.StatusUnseen, got)
}

func TestNextStatusConfirmationDeepensTowardIrreversible(t *testing.T) {
	got := nextStatus(store.StatusReversible, sighting{inBlock: true, confirmations: 1})
	require.Equal(t, store.StatusReversible, got)

	got = nextStatus(store.StatusReversible, sighting{inBlock: true, confirmations: IrreversibleThreshold})
	require.Equal(t, store.StatusIrreversible, got)
}

func TestNextStatusDisappearanceDemotesToUnseen(t *testing.T) {
	got := nextStatus(store.StatusReversible, sighting{})
	require.Equal(t, store.StatusUnseen, got)

	got = nextStatus(store.StatusUnseen, sighting{})
	require.Equal(t, store.StatusUnseen, got)
}

func TestNextStatusIrreversibleIsTerminal(t *testing.T) {
	got := nextStatus(store.StatusIrreversible, sighting{})
	require.Equal(t, store.StatusIrreversible, got)

	got = nextStatus(store.StatusIrreversible, sighting{inBlock: false, inMempool: false})
	require.Equal(t, store.StatusIrreversible, got)
}

func TestConfirmedStatusThreshold(t *testing.T) {
	require.Equal(t, store.StatusReversible, confirmedStatus(IrreversibleThreshold-1))
	require.Equal(t, store.StatusIrreversible, confirmedStatus(IrreversibleThreshold))
	require.Equal(t, store.StatusIrreversible, confirmedStatus(IrreversibleThreshold+10))
}
