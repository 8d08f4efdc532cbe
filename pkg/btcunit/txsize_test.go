package btcunit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestTxSizeConversion checks that the conversion between weight units and
// virtual bytes is correct.
func TestTxSizeConversion(t *testing.T) {
	t.Parallel()

	wu := NewWeightUnit(1000)
	require.Equal(t, NewVByte(250), wu.ToVB())
	require.Equal(t, wu, NewVByte(250).ToWU())
	require.Equal(t, NewVByte(1000), NewKVByte(1).ToVB())

	// A partial vbyte rounds up.
	require.EqualValues(t, 251, NewWeightUnit(1001).ToVB().Uint64())
	require.EqualValues(t, 300, NewVByte(100).Add(NewVByte(200)).Uint64())
}

// TestTxSizeStringer tests the stringer methods of the tx size types.
func TestTxSizeStringer(t *testing.T) {
	t.Parallel()

	require.Equal(t, "1000 wu", NewWeightUnit(1000).String())
	require.Equal(t, "250 vb", NewVByte(250).String())
	require.Equal(t, "1 kvb", NewKVByte(1).String())
}

// TestDimensionsVSize checks the estimator against hand-computed sizes.
func TestDimensionsVSize(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		dims Dimensions
		want uint64
	}{
		{
			name: "empty",
			want: 10,
		},
		{
			name: "one p2sh input to p2sh",
			dims: Dimensions{}.AddP2shInputs(1).AddOutputVSize(
				VirtualSizes.TxP2shOutputSize,
			),
			want: 10 + 298 + 32,
		},
		{
			name: "mixed inputs use the segwit overhead",
			dims: Dimensions{}.AddP2shInputs(1).AddP2shP2wshInputs(2).
				AddP2wshInputs(3).AddOutputVSize(
				VirtualSizes.TxP2wshOutputSize,
			),
			want: 11 + 298 + 2*140 + 3*105 + 43,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tc.want, tc.dims.VSize().Uint64())
		})
	}
}
