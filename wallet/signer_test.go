// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"testing"

	"github.com/bitgo/utxocore/chaincode"
	"github.com/bitgo/utxocore/keychain"
	"github.com/bitgo/utxocore/multisig"
	"github.com/bitgo/utxocore/netparams"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
)

const (
	// The unsigned and fully signed forms of a testnet spend from a p2wsh
	// wallet address at 20/2, signed by fixtureUserPrv then
	// fixtureBackupPrv.
	fixtureUnsignedTx = "0100000001d58f82d996dd872012675adadf46067349" +
		"06b25a413f6e2ee535c0c10aef96020000000000ffffffff028de8880000" +
		"00000017a914c91aa24f65827eecec775037d886f2952b73cbe48740420f" +
		"000000000017a9149304d18497b9bfe9532778a0f06d9fff3b3befaf87c8" +
		"b11400"

	fixtureSignedTx = "01000000000101d58f82d996dd872012675adadf46067349" +
		"06b25a413f6e2ee535c0c10aef96020000000000ffffffff028de8880000" +
		"00000017a914c91aa24f65827eecec775037d886f2952b73cbe48740420f" +
		"000000000017a9149304d18497b9bfe9532778a0f06d9fff3b3befaf8704" +
		"00473044022023d7210ba6d8bbd7a28b8af226f40f7235caab79156f93f9" +
		"c9969fc459ea7f73022050fbdca788fba3de686b66b3501853695ff9d6f3" +
		"75867470207d233b099576e001483045022100a4d9f100e4054e56a93b8a" +
		"bb99bb67f399090f1918a30722bd01bfc9e38437eb022035e3bf74463800" +
		"00a514fe0791fc579b553542dc6204c40418ae24f05f3f03b80169522103" +
		"d4788cda52f91c1f6c82eb91491ca76108c9c5f0839bc4f02eccc55fedb3" +
		"311c210391bcef9dcc89570a79ba3c7514e65cd48e766a8868eca2769fa9" +
		"242fdcc796662102ef3c5ebac4b54df70dea1bb2655126368be10ca04623" +
		"82fcb730e55cddd2dd6a53aec8b11400"

	fixtureTxID = "5fb17d5ac94f180ba58be7f5a814a6e92a3c31bc00e39604c59c9" +
		"36dcef958bc"

	fixtureUserPrv = "xprv9s21ZrQH143K3xQwj4yx3fHjDieEdqFDweBvFxn28qGvfQG" +
		"vweUWuUuDRpepDu6opq3jiWHU9h3yYTKk5vvu4ykRuGA4i4Kz1vmFMPLTsoC"
	fixtureBackupPrv = "xprv9s21ZrQH143K3ZijERhwuqfED1hLNWMN6A1ByMs6LtcFw6" +
		"mexXLcPkRPXGPdMT658HJkaSCktjPNA6iujYdFgUwAVqwhtptvsQfHD2WEizC"

	fixtureWitnessScript = "522103d4788cda52f91c1f6c82eb91491ca76108c9c5" +
		"f0839bc4f02eccc55fedb3311c210391bcef9dcc89570a79ba3c7514e65c" +
		"d48e766a8868eca2769fa9242fdcc796662102ef3c5ebac4b54df70dea1b" +
		"b2655126368be10ca0462382fcb730e55cddd2dd6a53ae"

	fixtureChangeAddr = "2NBaZiQX2xdj2VrJwpAPo4swbzvDyozvbBR"
)

// fixturePrebuild returns the prebuild of the recorded testnet spend.
func fixturePrebuild(txHex string) Prebuild {
	return Prebuild{
		TxHex: txHex,
		TxInfo: TxInfo{
			Unspents: []Unspent{{
				ID: "0296ef0ac1c035e52e6e3f415ab20649730646dfda5a" +
					"67122087dd96d9828fd5:0",
				Address: "tb1qtxxqmkkdx4n4lcp0nt2cct89uh3h3dlcu94" +
					"0kw9fcqyyq36peh0st94hfp",
				Value:         10_000_000,
				Chain:         20,
				Index:         2,
				WitnessScript: fixtureWitnessScript,
			}},
			ChangeAddresses: []string{fixtureChangeAddr},
		},
	}
}

// TestSignTransactionFixture half-signs and then fully signs a recorded
// testnet transaction and expects the broadcast bytes.
func TestSignTransactionFixture(t *testing.T) {
	t.Parallel()

	net := netparams.MustLookup("tbtc")

	// Signing only adds witnesses, so both forms share a txid.
	unsigned, err := DecodeTx(fixtureUnsignedTx)
	require.NoError(t, err)
	require.Equal(t, fixtureTxID, unsigned.TxHash().String())
	require.Len(t, unsigned.TxOut, 2)

	half, err := SignTransaction(net, SignParams{
		Prebuild: fixturePrebuild(fixtureUnsignedTx),
		Prv:      fixtureUserPrv,
	})
	require.NoError(t, err)

	tx, err := DecodeTx(half.TxHex)
	require.NoError(t, err)
	require.Len(t, tx.TxIn[0].Witness, 5)

	var sigs int
	for _, elem := range tx.TxIn[0].Witness[1:4] {
		if len(elem) > 0 {
			sigs++
		}
	}
	require.Equal(t, 1, sigs)

	full, err := SignTransaction(net, SignParams{
		Prebuild:        fixturePrebuild(half.TxHex),
		Prv:             fixtureBackupPrv,
		IsLastSignature: true,
	})
	require.NoError(t, err)
	require.Equal(t, fixtureSignedTx, full.TxHex)

	tx, err = DecodeTx(full.TxHex)
	require.NoError(t, err)
	require.Equal(t, fixtureTxID, tx.TxHash().String())
}

// signAll signs every input of prebuild with first then second.
func signAll(t *testing.T, net netparams.Network, prebuild Prebuild,
	pubs []string, first, second string) string {

	t.Helper()

	half, err := SignTransaction(net, SignParams{
		Prebuild: prebuild,
		Prv:      first,
		Pubs:     pubs,
	})
	require.NoError(t, err)

	prebuild.TxHex = half.TxHex
	full, err := SignTransaction(net, SignParams{
		Prebuild:        prebuild,
		Prv:             second,
		Pubs:            pubs,
		IsLastSignature: true,
	})
	require.NoError(t, err)

	return full.TxHex
}

// TestSignOrderIndependence checks that every signing order of every
// address type yields the same valid transaction.
func TestSignOrderIndependence(t *testing.T) {
	t.Parallel()

	net := netparams.MustLookup("tbtc")
	keys := newTestKeys(t, 0x10)

	descs := []*multisig.Descriptor{
		keys.derive(t, net, chaincode.P2shExternal, 0),
		keys.derive(t, net, chaincode.P2shP2wshInternal, 4),
		keys.derive(t, net, chaincode.P2wshExternal, 9),
	}
	values := []int64{50_000, 60_000, 70_000}

	parent := fundingTx(t, values, descs...)
	tx := spendTx(t, parent, wire.NewTxOut(
		170_000, payTo(t, net, externalAddr),
	))

	prebuild := Prebuild{TxHex: mustEncode(t, tx)}
	for i, d := range descs {
		prebuild.TxInfo.Unspents = append(
			prebuild.TxInfo.Unspents,
			unspentFor(d, tx.TxIn[i].PreviousOutPoint, values[i]),
		)
	}

	user := keys.prvs[keychain.UserIndex]
	backup := keys.prvs[keychain.BackupIndex]
	bitgo := keys.prvs[keychain.BitGoIndex]
	pubs := keys.triple.Pubs()

	testCases := []struct {
		name          string
		first, second string
	}{
		{name: "user then backup", first: user, second: backup},
		{name: "backup then user", first: backup, second: user},
	}

	results := make([]string, len(testCases))
	for i, tc := range testCases {
		results[i] = signAll(t, net, prebuild, pubs, tc.first, tc.second)
	}
	require.Equal(t, results[0], results[1])

	signed, err := DecodeTx(results[0])
	require.NoError(t, err)
	for i := range signed.TxIn {
		require.True(t, multisig.VerifySignature(
			net, signed, i, fn.Some(values[i]),
			multisig.VerifyFilter{},
		))
		require.Equal(t, 2, multisig.CountValidSignatures(
			net, signed, i, fn.Some(values[i]),
		))
	}

	// A different pair signs the same inputs with different keys.
	other := signAll(t, net, prebuild, pubs, user, bitgo)
	require.NotEqual(t, results[0], other)
}

// TestSignForkNetwork signs a p2sh spend on a fork-id network.
func TestSignForkNetwork(t *testing.T) {
	t.Parallel()

	net := netparams.MustLookup("tbch")
	keys := newTestKeys(t, 0x20)

	d := keys.derive(t, net, chaincode.P2shInternal, 113)
	parent := fundingTx(t, []int64{300_000_000}, d)
	tx := spendTx(t, parent, wire.NewTxOut(
		299_990_000, payTo(t, net, externalAddr),
	))

	prebuild := Prebuild{
		TxHex: mustEncode(t, tx),
		TxInfo: TxInfo{Unspents: []Unspent{
			unspentFor(d, tx.TxIn[0].PreviousOutPoint, 300_000_000),
		}},
	}

	signed := signAll(
		t, net, prebuild, nil, keys.prvs[keychain.UserIndex],
		keys.prvs[keychain.BackupIndex],
	)

	signedTx, err := DecodeTx(signed)
	require.NoError(t, err)

	parsed, err := multisig.ParseSignatureScript(signedTx, 0)
	require.NoError(t, err)
	require.Equal(t, multisig.ClassScriptHash, parsed.Class)
	for _, sig := range parsed.NonEmptySignatures() {
		require.Equal(t, byte(0x41), sig[len(sig)-1])
	}

	// Fork-id signatures commit to the amount.
	require.True(t, multisig.VerifySignature(
		net, signedTx, 0, fn.Some(int64(300_000_000)),
		multisig.VerifyFilter{},
	))
	require.False(t, multisig.VerifySignature(
		net, signedTx, 0, fn.Some(int64(300_000_001)),
		multisig.VerifyFilter{},
	))
}

// TestSignReplayProtectionSkipped leaves replay protection inputs unsigned.
func TestSignReplayProtectionSkipped(t *testing.T) {
	t.Parallel()

	net := netparams.MustLookup("tbch")
	keys := newTestKeys(t, 0x30)

	d := keys.derive(t, net, chaincode.P2shExternal, 1)
	parent := fundingTx(t, []int64{10_000, 1_000}, d, d)
	tx := spendTx(t, parent, wire.NewTxOut(
		10_000, payTo(t, net, externalAddr),
	))

	replay := Unspent{
		ID:      tx.TxIn[1].PreviousOutPoint.String(),
		Address: "2MuMnPoSDgWEpNWH28X2nLtYMXQJCyT61eY",
		Value:   1_000,
	}
	prebuild := Prebuild{
		TxHex: mustEncode(t, tx),
		TxInfo: TxInfo{Unspents: []Unspent{
			unspentFor(d, tx.TxIn[0].PreviousOutPoint, 10_000),
			replay,
		}},
	}

	res, err := SignTransaction(net, SignParams{
		Prebuild: prebuild,
		Prv:      keys.prvs[keychain.UserIndex],
	})
	require.NoError(t, err)

	signed, err := DecodeTx(res.TxHex)
	require.NoError(t, err)
	require.NotEmpty(t, signed.TxIn[0].SignatureScript)
	require.Empty(t, signed.TxIn[1].SignatureScript)
}

// TestSignTransactionErrors covers the validation and aggregate failure
// paths.
func TestSignTransactionErrors(t *testing.T) {
	t.Parallel()

	net := netparams.MustLookup("tbtc")
	keys := newTestKeys(t, 0x40)
	strangers := newTestKeys(t, 0x50)

	d := keys.derive(t, net, chaincode.P2wshInternal, 3)
	parent := fundingTx(t, []int64{20_000, 30_000}, d, d)
	tx := spendTx(t, parent, wire.NewTxOut(
		40_000, payTo(t, net, externalAddr),
	))

	unspents := []Unspent{
		unspentFor(d, tx.TxIn[0].PreviousOutPoint, 20_000),
		unspentFor(d, tx.TxIn[1].PreviousOutPoint, 30_000),
	}
	txHex := mustEncode(t, tx)

	t.Run("unspent count", func(t *testing.T) {
		t.Parallel()

		_, err := SignTransaction(net, SignParams{
			Prebuild: Prebuild{
				TxHex:  txHex,
				TxInfo: TxInfo{Unspents: unspents[:1]},
			},
			Prv: keys.prvs[0],
		})
		require.ErrorIs(t, err, ErrUnspentCountMismatch)
	})

	t.Run("public key", func(t *testing.T) {
		t.Parallel()

		_, err := SignTransaction(net, SignParams{
			Prebuild: Prebuild{
				TxHex:  txHex,
				TxInfo: TxInfo{Unspents: unspents},
			},
			Prv: keys.triple[0].Pub,
		})
		require.ErrorIs(t, err, keychain.ErrNotPrivate)
	})

	t.Run("bad hex", func(t *testing.T) {
		t.Parallel()

		_, err := SignTransaction(net, SignParams{
			Prebuild: Prebuild{TxHex: "zz"},
			Prv:      keys.prvs[0],
		})
		require.ErrorIs(t, err, ErrInvalidTxHex)
	})

	t.Run("foreign key", func(t *testing.T) {
		t.Parallel()

		_, err := SignTransaction(net, SignParams{
			Prebuild: Prebuild{
				TxHex:  txHex,
				TxInfo: TxInfo{Unspents: unspents},
			},
			Prv: strangers.prvs[0],
		})

		var signErr *InputSigningError
		require.ErrorAs(t, err, &signErr)
		require.Equal(t, []int{0, 1}, signErr.Indices())
		require.Equal(t, InputSigningErrorCode, signErr.Code())
		require.Equal(t, "Failed to sign inputs at indices 0, 1",
			signErr.Error())
		require.ErrorIs(t, err, errNotCosigner)
	})

	t.Run("script mismatch", func(t *testing.T) {
		t.Parallel()

		_, err := SignTransaction(net, SignParams{
			Prebuild: Prebuild{
				TxHex:  txHex,
				TxInfo: TxInfo{Unspents: unspents},
			},
			Prv:  keys.prvs[0],
			Pubs: strangers.triple.Pubs(),
		})
		require.ErrorIs(t, err, ErrScriptMismatch)
	})

	t.Run("final with one signature", func(t *testing.T) {
		t.Parallel()

		_, err := SignTransaction(net, SignParams{
			Prebuild: Prebuild{
				TxHex:  txHex,
				TxInfo: TxInfo{Unspents: unspents},
			},
			Prv:             keys.prvs[0],
			IsLastSignature: true,
		})

		var signErr *InputSigningError
		require.ErrorAs(t, err, &signErr)
		require.Len(t, signErr.Issues, 2)
		require.ErrorContains(t, err, "Failed to sign inputs")
	})
}
