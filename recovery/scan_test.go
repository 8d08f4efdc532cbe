package recovery

import (
	"testing"

	"github.com/bitgo/utxocore/chaincode"
	"github.com/bitgo/utxocore/netparams"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
)

// TestBranchRecoveryState walks the gap accounting of a branch through a
// sequence of found and invalid indexes.
func TestBranchRecoveryState(t *testing.T) {
	t.Parallel()

	type step struct {
		index     uint32
		found     bool
		invalid   bool
		exhausted bool
	}

	tests := []struct {
		name   string
		window uint32
		steps  []step
	}{
		{
			name:   "empty branch",
			window: 3,
			steps: []step{
				{index: 0},
				{index: 1},
				{index: 2, exhausted: true},
			},
		},
		{
			name:   "found address extends the window",
			window: 2,
			steps: []step{
				{index: 0},
				{index: 1, found: true},
				{index: 2},
				{index: 3, exhausted: true},
			},
		},
		{
			name:   "invalid children do not count",
			window: 2,
			steps: []step{
				{index: 0},
				{index: 1, invalid: true},
				{index: 2, exhausted: true},
			},
		},
		{
			name:   "invalid children before a found one are forgotten",
			window: 2,
			steps: []step{
				{index: 0, invalid: true},
				{index: 1, found: true},
				{index: 2},
				{index: 3, exhausted: true},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			state := newBranchRecoveryState(tc.window)
			for _, s := range tc.steps {
				switch {
				case s.invalid:
					state.markInvalidChild(s.index)

				case s.found:
					state.reportFound(s.index)
				}

				if s.invalid {
					continue
				}
				require.Equal(t, s.exhausted,
					state.exhausted(s.index), "index %d",
					s.index)
			}
		})
	}
}

// TestBranchRecoveryStateReportOutOfOrder ignores reports of indexes below
// the highest found one.
func TestBranchRecoveryStateReportOutOfOrder(t *testing.T) {
	t.Parallel()

	state := newBranchRecoveryState(5)
	state.reportFound(10)
	state.reportFound(4)

	require.EqualValues(t, 11, state.nextUnfound)
	require.False(t, state.exhausted(3))
	require.False(t, state.exhausted(14))
	require.True(t, state.exhausted(15))
}

func TestBranches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		net    string
		ignore fn.Set[chaincode.AddressType]
		want   []chaincode.Code
	}{
		{
			name: "segwit network",
			net:  "tbtc",
			want: []chaincode.Code{
				chaincode.P2shExternal, chaincode.P2shInternal,
				chaincode.P2shP2wshExternal,
				chaincode.P2shP2wshInternal,
				chaincode.P2wshExternal, chaincode.P2wshInternal,
			},
		},
		{
			name: "fork network",
			net:  "bch",
			want: []chaincode.Code{
				chaincode.P2shExternal, chaincode.P2shInternal,
			},
		},
		{
			name:   "ignored types",
			net:    "ltc",
			ignore: fn.NewSet(chaincode.P2sh, chaincode.P2wsh),
			want: []chaincode.Code{
				chaincode.P2shP2wshExternal,
				chaincode.P2shP2wshInternal,
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ignore := tc.ignore
			if ignore == nil {
				ignore = fn.NewSet[chaincode.AddressType]()
			}

			got := branches(netparams.MustLookup(tc.net), ignore)
			require.Equal(t, tc.want, got)
		})
	}
}
