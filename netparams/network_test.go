// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netparams

import (
	"bytes"
	"strings"
	"testing"

	"github.com/bitgo/utxocore/chaincode"
	"github.com/bitgo/utxocore/pkg/btcunit"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"
)

// TestLookup checks the registry.
func TestLookup(t *testing.T) {
	t.Parallel()

	for _, name := range []string{
		"btc", "tbtc", "ltc", "tltc", "bch", "tbch", "bsv", "tbsv",
		"doge", "tdoge",
	} {
		n, err := Lookup(name)
		require.NoError(t, err)
		require.Equal(t, name, n.Name())
		require.Equal(t, strings.HasPrefix(name, "t"), n.IsTestnet())
		require.EqualValues(t, 100_000_000, n.BaseFactor())
	}

	_, err := Lookup("eth")
	require.ErrorIs(t, err, ErrUnknownNetwork)
	require.Len(t, Names(), 10)
}

// TestCapabilities checks the per-family overrides.
func TestCapabilities(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		segwit      bool
		forkID      bool
		crossChain  btcutil.Amount
		sigHash     txscript.SigHashType
		replayProto string
	}{
		{"btc", true, false, 80, txscript.SigHashAll, ""},
		{"ltc", true, false, 100, txscript.SigHashAll, ""},
		{
			"bch", false, true, 20, 0x41,
			"33p1q7mTGyeM5UnZERGiMcVUkY12SCsatA",
		},
		{
			"tbsv", false, true, 20, 0x41,
			"2MuMnPoSDgWEpNWH28X2nLtYMXQJCyT61eY",
		},
		{"doge", false, false, 1000, txscript.SigHashAll, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			n := MustLookup(tc.name)
			require.True(t, n.SupportsAddressType(chaincode.P2sh))
			require.Equal(t, tc.segwit,
				n.SupportsAddressType(chaincode.P2wsh))
			require.Equal(t, tc.segwit,
				n.SupportsChain(chaincode.P2shP2wshInternal))
			require.True(t, n.SupportsChain(chaincode.P2shInternal))
			require.False(t, n.SupportsChain(2))

			require.Equal(t, tc.forkID, n.UsesForkID())
			require.Equal(t, tc.sigHash, n.DefaultSigHash())
			require.Equal(t, tc.crossChain,
				n.CrossChainFeeRate().FeeForVByte(btcunit.NewVByte(1)))
			require.Equal(t, btcutil.Amount(100),
				n.RecoveryFeeRate().FeeForVByte(btcunit.NewVByte(1)))

			if tc.replayProto != "" {
				require.True(t, n.IsReplayProtectionAddress(
					tc.replayProto,
				))
			}
			require.False(t, n.IsReplayProtectionAddress(
				"34TTD5CefzLXWjuiSPDjvpJJRZe3Tqu2Mj",
			))
		})
	}
}

// TestDecodeAddress checks the two decoding branches.
func TestDecodeAddress(t *testing.T) {
	t.Parallel()

	btc := MustLookup("btc")

	addr, err := btc.DecodeAddress("34TTD5CefzLXWjuiSPDjvpJJRZe3Tqu2Mj")
	require.NoError(t, err)
	require.IsType(t, &btcutil.AddressScriptHash{}, addr)

	const bech = "bc1qnggwkkpnr62nx062d6hatup7gshp0cycdjpyuwfxgt589ap3" +
		"klhslqfmuc"

	addr, err = btc.DecodeAddress(bech)
	require.NoError(t, err)
	require.IsType(t, &btcutil.AddressWitnessScriptHash{}, addr)

	canonical, err := btc.CanonicalAddress(strings.ToUpper(bech))
	require.NoError(t, err)
	require.Equal(t, bech, canonical)

	// A testnet address is not valid on mainnet and vice versa.
	_, err = btc.DecodeAddress("2Mv1fGp8gHSqsiXYG7WqcYmHZdurDGVtUbn")
	require.ErrorIs(t, err, ErrInvalidAddress)

	_, err = MustLookup("tbtc").DecodeAddress(bech)
	require.ErrorIs(t, err, ErrInvalidAddress)

	// Fork coins never take the bech32 branch.
	_, err = MustLookup("bch").DecodeAddress(bech)
	require.ErrorIs(t, err, ErrInvalidAddress)

	_, err = btc.DecodeAddress("not-an-address")
	require.ErrorIs(t, err, ErrInvalidAddress)
}

// TestAltcoinAddressRoundTrip checks the derived parameters encode and
// decode their own addresses.
func TestAltcoinAddressRoundTrip(t *testing.T) {
	t.Parallel()

	hash := bytes.Repeat([]byte{0x11}, 20)
	program := bytes.Repeat([]byte{0x22}, 32)

	ltc := MustLookup("ltc")
	sh, err := btcutil.NewAddressScriptHashFromHash(hash, ltc.Params())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(sh.EncodeAddress(), "M"))

	decoded, err := ltc.DecodeAddress(sh.EncodeAddress())
	require.NoError(t, err)
	require.Equal(t, sh.ScriptAddress(), decoded.ScriptAddress())

	wsh, err := btcutil.NewAddressWitnessScriptHash(program, ltc.Params())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(wsh.EncodeAddress(), "ltc1q"))

	decoded, err = ltc.DecodeAddress(wsh.EncodeAddress())
	require.NoError(t, err)
	require.Equal(t, program, decoded.ScriptAddress())

	doge := MustLookup("doge")
	pkh, err := btcutil.NewAddressPubKeyHash(hash, doge.Params())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(pkh.EncodeAddress(), "D"))

	decoded, err = doge.DecodeAddress(pkh.EncodeAddress())
	require.NoError(t, err)
	require.IsType(t, &btcutil.AddressPubKeyHash{}, decoded)

	// A dogecoin address is rejected by litecoin.
	_, err = ltc.DecodeAddress(pkh.EncodeAddress())
	require.ErrorIs(t, err, ErrInvalidAddress)
}
