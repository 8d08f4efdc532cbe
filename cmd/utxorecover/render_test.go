package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/bitgo/utxocore/netparams"
	"github.com/bitgo/utxocore/recovery"
	"github.com/bitgo/utxocore/wallet"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
)

func TestAmount(t *testing.T) {
	t.Parallel()

	require.Equal(
		t, btcutil.Amount(150_000_000).Format(btcutil.AmountBTC),
		amount(netparams.MustLookup("tbtc"), 150_000_000),
	)
	require.Equal(t, "0 BTC", amount(netparams.MustLookup("btc"), 0))
}

func TestRenderExplanation(t *testing.T) {
	t.Parallel()

	e := &wallet.Explanation{
		ID: "f00d",
		Outputs: []wallet.Output{
			{Address: "2N6eb6Gosm2jt4o3djFLjb4kuKyPgAj8teZ",
				Amount: 100_000_000},
		},
		ChangeOutputs: []wallet.Output{
			{Address: "2NBaZiQX2xdj2VrJwpAPo4swbzvDyozvbBR",
				Amount: 50_000_000},
		},
		OutputAmount: 100_000_000,
		ChangeAmount: 50_000_000,
		Fee: fn.Some(wallet.FeeInfo{
			Fee: 3_520,
		}),
		LockTime:        812_000,
		InputSignatures: []int{2, 1},
		Signatures:      2,
	}

	net := netparams.MustLookup("tbtc")

	var buf bytes.Buffer
	renderExplanation(&buf, net, e)

	out := buf.String()
	require.Contains(t, out, "Transaction f00d")
	require.Contains(t, out, "2N6eb6Gosm2jt4o3djFLjb4kuKyPgAj8teZ")
	require.Contains(t, out, "2NBaZiQX2xdj2VrJwpAPo4swbzvDyozvbBR")
	require.Contains(t, out, amount(net, 150_000_000))
	require.Contains(t, out, amount(net, 3_520))
	require.Contains(t, out, "812000")
}

func TestRenderRecovery(t *testing.T) {
	t.Parallel()

	r := &recovery.Recovery{
		Inputs: []recovery.RecoveryInput{{
			Unspent: wallet.Unspent{
				ID:      "ab:0",
				Address: "2N6eb6Gosm2jt4o3djFLjb4kuKyPgAj8teZ",
				Value:   300_000_000,
			},
			ChainPath: "/0/0/1/113",
		}},
		RecoveryAmount: 299_964_800,
		NetworkFee:     35_200,
	}

	net := netparams.MustLookup("tbtc")

	var buf bytes.Buffer
	renderRecovery(&buf, net, r)

	out := buf.String()
	require.Contains(t, out, "/0/0/1/113")
	require.Contains(t, out, amount(net, 299_964_800))
	require.NotContains(t, strings.ToLower(out), "krs fee")
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, map[string]int{"fee": 1}))

	var got map[string]int
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Equal(t, 1, got["fee"])
}
