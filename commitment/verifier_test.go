package commitment

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

// fakeCommitmentStore is a minimal commitmentStore stand-in so these tests
// don't need a real SQLite handle, the way watchtower/wtmock stands in for
// watchtower/wtdb elsewhere in this codebase.
type fakeCommitmentStore struct {
	bindings map[string]string
}

func (f *fakeCommitmentStore) CommitmentVaultID(ctx context.Context, txid string) (string, bool, error) {
	v, ok := f.bindings[txid]
	return v, ok, nil
}

// buildP2PKHTx constructs a single-output legacy transaction paying the
// given address, returning its hex encoding and computed txid.
func buildP2PKHTx(t *testing.T, addr btcutil.Address) (string, string) {
	t.Helper()

	script, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)

	tx := wire.NewMsgTx(wire.TxVersion)
	var prevHash chainhash.Hash
	_, err = rand.Read(prevHash[:])
	require.NoError(t, err)
	outpoint := wire.NewOutPoint(&prevHash, 0)
	tx.AddTxIn(wire.NewTxIn(outpoint, nil, nil))
	tx.AddTxOut(wire.NewTxOut(50000, script))

	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))

	return hex.EncodeToString(buf.Bytes()), tx.TxHash().String()
}

// newAddressBookFixture creates a throwaway {networkID}.sqlite file under
// dir containing the given authorized addresses.
func newAddressBookFixture(t *testing.T, dir, networkID string, addresses ...string) {
	t.Helper()

	path := filepath.Join(dir, fmt.Sprintf("%s.sqlite", networkID))
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE addresses (address TEXT PRIMARY KEY, created_at INTEGER NOT NULL)`)
	require.NoError(t, err)

	for _, a := range addresses {
		_, err := db.Exec(`INSERT INTO addresses (address, created_at) VALUES (?, strftime('%s','now'))`, a)
		require.NoError(t, err)
	}
}

func TestAuthorizeSucceedsWhenOutputPaysAuthorizedAddress(t *testing.T) {
	pkHash := bytes.Repeat([]byte{0x01}, 20)
	addr, err := btcutil.NewAddressPubKeyHash(pkHash, &chaincfg.RegressionNetParams)
	require.NoError(t, err)

	hexTx, txid := buildP2PKHTx(t, addr)

	dir := t.TempDir()
	newAddressBookFixture(t, dir, "regtest", addr.EncodeAddress())

	v := New(dir)
	store := &fakeCommitmentStore{bindings: map[string]string{}}

	gotTxid, err := v.Authorize(context.Background(), store, "regtest", hexTx, "vault-1")
	require.NoError(t, err)
	require.Equal(t, txid, gotTxid)
}

func TestAuthorizeFailsWhenNoOutputIsAuthorized(t *testing.T) {
	pkHash := bytes.Repeat([]byte{0x02}, 20)
	addr, err := btcutil.NewAddressPubKeyHash(pkHash, &chaincfg.RegressionNetParams)
	require.NoError(t, err)

	hexTx, _ := buildP2PKHTx(t, addr)

	dir := t.TempDir()
	otherAddr, err := btcutil.NewAddressPubKeyHash(bytes.Repeat([]byte{0x03}, 20), &chaincfg.RegressionNetParams)
	require.NoError(t, err)
	newAddressBookFixture(t, dir, "regtest", otherAddr.EncodeAddress())

	v := New(dir)
	store := &fakeCommitmentStore{bindings: map[string]string{}}

	_, err = v.Authorize(context.Background(), store, "regtest", hexTx, "vault-1")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthorizeFailsWhenAddressBookMissing(t *testing.T) {
	pkHash := bytes.Repeat([]byte{0x04}, 20)
	addr, err := btcutil.NewAddressPubKeyHash(pkHash, &chaincfg.RegressionNetParams)
	require.NoError(t, err)
	hexTx, _ := buildP2PKHTx(t, addr)

	v := New(t.TempDir())
	store := &fakeCommitmentStore{bindings: map[string]string{}}

	_, err = v.Authorize(context.Background(), store, "regtest", hexTx, "vault-1")
	require.ErrorIs(t, err, ErrAuthorizationUnavailable)
}

func TestAuthorizeIsIdempotentForSameVault(t *testing.T) {
	pkHash := bytes.Repeat([]byte{0x05}, 20)
	addr, err := btcutil.NewAddressPubKeyHash(pkHash, &chaincfg.RegressionNetParams)
	require.NoError(t, err)
	hexTx, txid := buildP2PKHTx(t, addr)

	store := &fakeCommitmentStore{bindings: map[string]string{txid: "vault-1"}}
	v := New(t.TempDir())

	gotTxid, err := v.Authorize(context.Background(), store, "regtest", hexTx, "vault-1")
	require.NoError(t, err)
	require.Equal(t, txid, gotTxid)
}

func TestAuthorizeRejectsReuseAcrossVaults(t *testing.T) {
	pkHash := bytes.Repeat([]byte{0x06}, 20)
	addr, err := btcutil.NewAddressPubKeyHash(pkHash, &chaincfg.RegressionNetParams)
	require.NoError(t, err)
	hexTx, txid := buildP2PKHTx(t, addr)

	store := &fakeCommitmentStore{bindings: map[string]string{txid: "vault-1"}}
	v := New(t.TempDir())

	_, err = v.Authorize(context.Background(), store, "regtest", hexTx, "vault-2")
	require.ErrorIs(t, err, ErrCommitmentReused)
}

func TestAuthorizeRejectsMalformedHex(t *testing.T) {
	v := New(t.TempDir())
	store := &fakeCommitmentStore{bindings: map[string]string{}}

	_, err := v.Authorize(context.Background(), store, "regtest", "not-hex", "vault-1")
	require.ErrorIs(t, err, ErrMalformedTransaction)
}
