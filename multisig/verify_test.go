package multisig

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/bitgo/utxocore/keychain"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
)

const (
	// signedP2wshTx spends a 2-of-3 p2wsh output at 20/2 worth 10000000
	// sats, signed by the user and backup keys below.
	signedP2wshTx = "01000000000101d58f82d996dd872012675adadf4606734906" +
		"b25a413f6e2ee535c0c10aef96020000000000ffffffff028de88800000" +
		"0000017a914c91aa24f65827eecec775037d886f2952b73cbe48740420f" +
		"000000000017a9149304d18497b9bfe9532778a0f06d9fff3b3befaf870" +
		"400473044022023d7210ba6d8bbd7a28b8af226f40f7235caab79156f93" +
		"f9c9969fc459ea7f73022050fbdca788fba3de686b66b3501853695ff9d" +
		"6f375867470207d233b099576e001483045022100a4d9f100e4054e56a9" +
		"3b8abb99bb67f399090f1918a30722bd01bfc9e38437eb022035e3bf744" +
		"6380000a514fe0791fc579b553542dc6204c40418ae24f05f3f03b80169" +
		"522103d4788cda52f91c1f6c82eb91491ca76108c9c5f0839bc4f02eccc" +
		"55fedb3311c210391bcef9dcc89570a79ba3c7514e65cd48e766a8868ec" +
		"a2769fa9242fdcc796662102ef3c5ebac4b54df70dea1bb2655126368be" +
		"10ca0462382fcb730e55cddd2dd6a53aec8b11400"

	signedWitnessScript = "522103d4788cda52f91c1f6c82eb91491ca76108c9c5" +
		"f0839bc4f02eccc55fedb3311c210391bcef9dcc89570a79ba3c7514e65c" +
		"d48e766a8868eca2769fa9242fdcc796662102ef3c5ebac4b54df70dea1b" +
		"b2655126368be10ca0462382fcb730e55cddd2dd6a53ae"

	signedUserXpub = "xpub661MyMwAqRbcGSVQq6WxQoETmkUj3Hy5Js7X4MBdhAouYC" +
		"c5VBnmTHDhH7p9RpeGWjkcwbTVuqib1EdusAntf4VEgQJcVMatBU5thweF2Jz"
	signedBackupXpub = "xpub661MyMwAqRbcG3oCLTExGybxm3Xpmy5DTNvnmkGhuE9E" +
		"ou6oW4erwYjsNYmWrc5YBCZPgpR6hJGpgdFpNwta9zBnta8jL2vAjRF42KB1Xmv"

	signedAmount = 10_000_000
)

func decodeTx(t require.TestingT, txHex string) *wire.MsgTx {
	raw, err := hex.DecodeString(txHex)
	require.NoError(t, err)

	tx := wire.NewMsgTx(wire.TxVersion)
	require.NoError(t, tx.Deserialize(bytes.NewReader(raw)))

	return tx
}

// TestParseSignedWitnessInput checks the decomposition of a fully signed
// p2wsh input.
func TestParseSignedWitnessInput(t *testing.T) {
	t.Parallel()

	tx := decodeTx(t, signedP2wshTx)

	parsed, err := ParseSignatureScript(tx, 0)
	require.NoError(t, err)
	require.True(t, parsed.IsSegwitInput)
	require.Equal(t, ClassWitnessScriptHash, parsed.Class)
	require.Equal(t, 2, parsed.M)
	require.Equal(t, 3, parsed.N)
	require.Len(t, parsed.Signatures, 3)
	require.Empty(t, parsed.Signatures[0])
	require.Len(t, parsed.NonEmptySignatures(), 2)
	require.Len(t, parsed.PublicKeys, 3)
	require.Equal(t, signedWitnessScript,
		hex.EncodeToString(parsed.PubScript))

	// Re-parsing yields the same result.
	again, err := ParseSignatureScript(tx, 0)
	require.NoError(t, err)
	require.Equal(t, parsed, again)

	// The first two keys are the user and backup keys at 20/2.
	pubs, err := keychain.DerivePubKeys(
		[]string{signedUserXpub, signedBackupXpub}, 20, 2,
	)
	require.NoError(t, err)
	require.Equal(t, pubs[0].SerializeCompressed(), parsed.PublicKeys[0])
	require.Equal(t, pubs[1].SerializeCompressed(), parsed.PublicKeys[1])

	_, err = ParseSignatureScript(tx, 1)
	require.ErrorIs(t, err, ErrInputIndex)
}

// TestParseUnsignedAndP2pkh checks unsigned and single key inputs.
func TestParseUnsignedAndP2pkh(t *testing.T) {
	t.Parallel()

	tx := decodeTx(t, signedP2wshTx)
	tx.TxIn[0].Witness = nil

	parsed, err := ParseSignatureScript(tx, 0)
	require.NoError(t, err)
	require.False(t, parsed.HasSignatures())
	require.Empty(t, parsed.Signatures)

	sig := bytes.Repeat([]byte{0x30}, 71)
	pub := append([]byte{0x02}, bytes.Repeat([]byte{0x11}, 32)...)

	tx.TxIn[0].SignatureScript = append(
		append([]byte{byte(len(sig))}, sig...),
		append([]byte{byte(len(pub))}, pub...)...,
	)

	parsed, err = ParseSignatureScript(tx, 0)
	require.NoError(t, err)
	require.Equal(t, ClassPubKeyHash, parsed.Class)
	require.Equal(t, [][]byte{sig}, parsed.Signatures)
	require.Equal(t, [][]byte{pub}, parsed.PublicKeys)
	require.Len(t, parsed.PubScript, 25)
}

// TestParseMalformedSlots checks a multisig input with the wrong number of
// signature slots is rejected.
func TestParseMalformedSlots(t *testing.T) {
	t.Parallel()

	tx := decodeTx(t, signedP2wshTx)
	w := tx.TxIn[0].Witness
	tx.TxIn[0].Witness = wire.TxWitness{w[1], w[3]}

	_, err := ParseSignatureScript(tx, 0)
	require.ErrorIs(t, err, ErrMalformedMultisigScript)
}

// TestVerifySignatureFilters checks every verification policy on the
// signed fixture.
func TestVerifySignatureFilters(t *testing.T) {
	t.Parallel()

	tx := decodeTx(t, signedP2wshTx)
	amount := fn.Some(int64(signedAmount))

	parsed, err := ParseSignatureScript(tx, 0)
	require.NoError(t, err)
	userKey, bitgoKey := parsed.PublicKeys[0], parsed.PublicKeys[2]

	testCases := []struct {
		name   string
		amount fn.Option[int64]
		filter VerifyFilter
		want   bool
	}{
		{name: "all signatures", amount: amount, want: true},
		{name: "missing amount", amount: fn.None[int64]()},
		{
			name:   "wrong amount",
			amount: fn.Some(int64(signedAmount + 1)),
		},
		{
			name:   "first signature",
			amount: amount,
			filter: VerifyFilter{SignatureIndex: fn.Some(0)},
			want:   true,
		},
		{
			name:   "second signature",
			amount: amount,
			filter: VerifyFilter{SignatureIndex: fn.Some(1)},
			want:   true,
		},
		{
			name:   "signature index out of range",
			amount: amount,
			filter: VerifyFilter{SignatureIndex: fn.Some(2)},
		},
		{
			name:   "signed by user key",
			amount: amount,
			filter: VerifyFilter{PublicKey: fn.Some(userKey)},
			want:   true,
		},
		{
			name:   "not signed by custodian key",
			amount: amount,
			filter: VerifyFilter{PublicKey: fn.Some(bitgoKey)},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := VerifySignature(btc, tx, 0, tc.amount, tc.filter)
			require.Equal(t, tc.want, got)
		})
	}

	require.Equal(t, 2, CountValidSignatures(btc, tx, 0, amount))
	require.Zero(t, CountValidSignatures(btc, tx, 0, fn.None[int64]()))
}

// TestVerifyDuplicateSignature checks that one signature cannot be counted
// against two keys.
func TestVerifyDuplicateSignature(t *testing.T) {
	t.Parallel()

	tx := decodeTx(t, signedP2wshTx)
	w := tx.TxIn[0].Witness
	tx.TxIn[0].Witness = wire.TxWitness{w[0], w[1], w[1], w[3]}

	require.False(t, VerifySignature(
		btc, tx, 0, fn.Some(int64(signedAmount)), VerifyFilter{},
	))
}
