package wallet

import (
	"testing"

	"github.com/bitgo/utxocore/netparams"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
)

// TestExplainTransaction explains the recorded testnet spend in its unsigned,
// half signed and fully signed forms.
func TestExplainTransaction(t *testing.T) {
	t.Parallel()

	net := netparams.MustLookup("tbtc")

	half, err := SignTransaction(net, SignParams{
		Prebuild: fixturePrebuild(fixtureUnsignedTx),
		Prv:      fixtureUserPrv,
	})
	require.NoError(t, err)

	info := fixturePrebuild("").TxInfo

	testCases := []struct {
		name       string
		txHex      string
		info       fn.Option[TxInfo]
		signatures int
	}{
		{
			name:  "unsigned",
			txHex: fixtureUnsignedTx,
			info:  fn.Some(info),
		},
		{
			name:       "half signed",
			txHex:      half.TxHex,
			info:       fn.Some(info),
			signatures: 1,
		},
		{
			name:       "fully signed",
			txHex:      fixtureSignedTx,
			info:       fn.Some(info),
			signatures: 2,
		},
		{
			name:  "fully signed without amounts",
			txHex: fixtureSignedTx,
			info:  fn.None[TxInfo](),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			e, err := ExplainTransaction(net, ExplainParams{
				TxHex:  tc.txHex,
				TxInfo: tc.info,
			})
			require.NoError(t, err)

			require.Equal(t, uint32(1356232), e.LockTime)
			require.Equal(t, []int{tc.signatures}, e.InputSignatures)
			require.Equal(t, tc.signatures, e.Signatures)

			if tc.info.IsNone() {
				require.Empty(t, e.ChangeOutputs)
				require.Len(t, e.Outputs, 2)
				require.Equal(t, int64(9_972_429), e.OutputAmount)

				return
			}

			require.Equal(t, []Output{{
				Address: fixtureChangeAddr, Amount: 8_972_429,
			}}, e.ChangeOutputs)
			require.Equal(t, []Output{{
				Address: externalAddr, Amount: 1_000_000,
			}}, e.Outputs)
			require.Equal(t, int64(8_972_429), e.ChangeAmount)
			require.Equal(t, int64(1_000_000), e.OutputAmount)
		})
	}

	e, err := ExplainTransaction(net, ExplainParams{
		TxHex: fixtureSignedTx, TxInfo: fn.Some(info),
	})
	require.NoError(t, err)
	require.Equal(t, fixtureTxID, e.ID)

	_, err = ExplainTransaction(net, ExplainParams{TxHex: "00"})
	require.ErrorIs(t, err, ErrInvalidTxHex)
}
