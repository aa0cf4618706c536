// Package commitment implements two independent checks: authorizing a
// registration's commitment transaction against an external, read-only
// authorized-addresses database, and later proving that a trigger
// transaction spends from its bound commitment.
//
// Address extraction uses txscript.ExtractPkScriptAddrs (see e.g.
// submarine.go's GetUtxos and chainntnfs/neutrinonotify's rescan filter
// elsewhere in this dependency stack), adapted from scanning wallet
// outputs to scanning a single registration-time transaction's outputs.
package commitment

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"

	"github.com/rewindbitcoin/watchtower/chainclient"
	"github.com/rewindbitcoin/watchtower/store"
)

// commitmentStore is the subset of *store.DB the verifier needs, so tests
// can substitute a stand-in without touching SQLite.
type commitmentStore interface {
	CommitmentVaultID(ctx context.Context, txid string) (string, bool, error)
}

// Verifier authorizes commitments against the external addresses database
// and proves trigger-spends-commitment relationships.
type Verifier struct {
	dbFolder string
}

// New returns a Verifier that looks up authorized-addresses databases
// under dbFolder.
func New(dbFolder string) *Verifier {
	return &Verifier{dbFolder: dbFolder}
}

// decodeTx parses a hex-encoded legacy-serialized Bitcoin transaction.
func decodeTx(hexTx string) (*wire.MsgTx, error) {
	raw, err := hex.DecodeString(hexTx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTransaction, err)
	}

	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTransaction, err)
	}

	return &tx, nil
}

// Authorize checks a registration's commitment transaction against the
// external authorized-addresses database, rejecting reuse across vaults.
// On success it returns the commitment's txid.
func (v *Verifier) Authorize(ctx context.Context, db commitmentStore, networkID, hexTx, vaultID string) (string, error) {
	tx, err := decodeTx(hexTx)
	if err != nil {
		return "", err
	}
	txid := tx.TxHash().String()

	existingVaultID, found, err := db.CommitmentVaultID(ctx, txid)
	if err != nil {
		return "", fmt.Errorf("commitment: lookup existing binding: %w", err)
	}
	if found {
		if existingVaultID != vaultID {
			return "", ErrCommitmentReused
		}
		return txid, nil
	}

	params, ok := paramsForNetwork(networkID)
	if !ok {
		return "", errUnknownNetwork
	}

	addresses := make([]string, 0, len(tx.TxOut))
	for _, out := range tx.TxOut {
		var addrs []btcutil.Address
		var extractErr error
		_, addrs, _, extractErr = txscript.ExtractPkScriptAddrs(out.PkScript, params)
		if extractErr != nil || len(addrs) == 0 {
			// Non-standard output; not eligible for address matching.
			continue
		}
		for _, a := range addrs {
			addresses = append(addresses, a.String())
		}
	}

	book, err := store.OpenAddressBook(v.dbFolder, networkID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthorizationUnavailable, err)
	}
	defer book.Close()

	for _, addr := range addresses {
		ok, err := book.Contains(ctx, addr)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrAuthorizationUnavailable, err)
		}
		if ok {
			return txid, nil
		}
	}

	return "", ErrUnauthorized
}

// VerifySpend fetches the trigger's details from the chain client and
// reports whether any input spends from the commitment txid. Any
// chain-client error is treated as "not yet provable" rather than
// propagated: the caller retries in a later cycle.
func (v *Verifier) VerifySpend(ctx context.Context, client *chainclient.Client, triggerTxid, commitmentTxid string) bool {
	details, found, err := client.TxDetails(ctx, triggerTxid)
	if err != nil || !found {
		return false
	}

	for _, in := range details.Vin {
		if in.Txid == commitmentTxid {
			return true
		}
	}
	return false
}
