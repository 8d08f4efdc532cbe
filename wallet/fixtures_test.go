package wallet

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/bitgo/utxocore/chaincode"
	"github.com/bitgo/utxocore/keychain"
	"github.com/bitgo/utxocore/multisig"
	"github.com/bitgo/utxocore/netparams"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
)

const (
	// externalAddr and paygoAddr are testnet p2sh addresses that are not
	// derivable from the test keys.
	externalAddr = "2N6eb6Gosm2jt4o3djFLjb4kuKyPgAj8teZ"
	paygoAddr    = "2NBaZiQX2xdj2VrJwpAPo4swbzvDyozvbBR"
)

// testKeys is a wallet key triple with its private keys.
type testKeys struct {
	triple keychain.Triple
	prvs   [keychain.TripleSize]string
}

// newTestKeys derives a deterministic key triple from seedByte.
func newTestKeys(t testing.TB, seedByte byte) *testKeys {
	t.Helper()

	k := &testKeys{}
	for i := range k.triple {
		seed := bytes.Repeat([]byte{seedByte + byte(i)}, 32)
		pair, err := keychain.GenerateKeyPair(seed)
		require.NoError(t, err)

		k.triple[i] = keychain.Keychain{
			ID:  hex.EncodeToString(seed[:4]),
			Pub: pair.Pub,
		}
		k.prvs[i] = pair.Prv
	}

	return k
}

// withUserPrv returns the triple carrying the user private key.
func (k *testKeys) withUserPrv() keychain.Triple {
	triple := k.triple
	triple[keychain.UserIndex].Prv = k.prvs[keychain.UserIndex]

	return triple
}

// keySignatures signs the backup and custodian keys with the user key.
func (k *testKeys) keySignatures(t *testing.T) KeySignatures {
	t.Helper()

	userPrv := k.prvs[keychain.UserIndex]
	backup, err := keychain.SignKey(
		userPrv, k.triple[keychain.BackupIndex].Pub,
	)
	require.NoError(t, err)

	bitgo, err := keychain.SignKey(
		userPrv, k.triple[keychain.BitGoIndex].Pub,
	)
	require.NoError(t, err)

	return KeySignatures{BackupPub: backup, BitGoPub: bitgo}
}

// derive derives the wallet address at chain/index.
func (k *testKeys) derive(t testing.TB, net netparams.Network,
	chain chaincode.Code, index uint32) *multisig.Descriptor {

	t.Helper()

	d, err := multisig.DeriveAddress(
		net, k.triple.Pubs(), multisig.DeriveParams{
			Chain: chain,
			Index: index,
		},
	)
	require.NoError(t, err)

	return d
}

// unspentFor builds the unspent of outpoint op paying descriptor d.
func unspentFor(d *multisig.Descriptor, op wire.OutPoint,
	value int64) Unspent {

	u := Unspent{
		ID:      op.String(),
		Address: d.Address,
		Value:   value,
		Chain:   uint32(d.Chain),
		Index:   d.Index,
	}
	if d.AddressType != chaincode.P2wsh {
		u.RedeemScript = hex.EncodeToString(d.RedeemScript)
	}
	if d.AddressType.IsSegwit() {
		u.WitnessScript = hex.EncodeToString(d.WitnessScript)
	}

	return u
}

// detailsFor returns the address details of descriptor d.
func detailsFor(d *multisig.Descriptor) AddressDetails {
	u := unspentFor(d, wire.OutPoint{}, 0)

	return AddressDetails{
		Address:       d.Address,
		Chain:         fn.Some(uint32(d.Chain)),
		Index:         fn.Some(d.Index),
		RedeemScript:  u.RedeemScript,
		WitnessScript: u.WitnessScript,
	}
}

// payTo returns the output script of addr on net.
func payTo(t testing.TB, net netparams.Network, addr string) []byte {
	t.Helper()

	a, err := net.DecodeAddress(addr)
	require.NoError(t, err)

	script, err := txscript.PayToAddrScript(a)
	require.NoError(t, err)

	return script
}

// fundingTx returns a transaction paying value to each descriptor.
func fundingTx(t testing.TB, values []int64,
	descs ...*multisig.Descriptor) *wire.MsgTx {

	t.Helper()

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(
		wire.NewOutPoint(&chainhash.Hash{1}, 0), nil, nil,
	))
	for i, d := range descs {
		tx.AddTxOut(wire.NewTxOut(values[i], d.OutputScript))
	}

	return tx
}

// spendTx builds an unsigned transaction spending every output of parent.
func spendTx(t testing.TB, parent *wire.MsgTx,
	outs ...*wire.TxOut) *wire.MsgTx {

	t.Helper()

	hash := parent.TxHash()
	tx := wire.NewMsgTx(2)
	for i := range parent.TxOut {
		tx.AddTxIn(wire.NewTxIn(
			wire.NewOutPoint(&hash, uint32(i)), nil, nil,
		))
	}
	for _, out := range outs {
		tx.AddTxOut(out)
	}

	return tx
}

// mustEncode hex encodes tx.
func mustEncode(t testing.TB, tx *wire.MsgTx) string {
	t.Helper()

	txHex, err := EncodeTx(tx)
	require.NoError(t, err)

	return txHex
}
