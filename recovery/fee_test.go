package recovery

import (
	"context"
	"errors"
	"testing"

	"github.com/bitgo/utxocore/netparams"
	"github.com/bitgo/utxocore/pkg/btcunit"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestApproximateFee(t *testing.T) {
	t.Parallel()

	rate := btcunit.NewSatPerVByte(btcutil.Amount(100))

	require.Equal(t, uint64(352), ApproximateVSize(1, 1).Uint64())
	require.Equal(t, int64(35200), ApproximateFee(1, 1, rate))
	require.Equal(t, int64(39500), ApproximateFee(1, 2, rate))
	require.Equal(t, int64(65000), ApproximateFee(2, 1, rate))
}

func TestKRSFee(t *testing.T) {
	t.Parallel()

	errFeed := errors.New("feed down")

	tests := []struct {
		name     string
		provider *KRSProvider
		net      string
		price    decimal.Decimal
		priceErr error
		noPrices bool
		want     int64
		err      error
		errMsg   string
	}{
		{
			name:     "flat usd fee",
			provider: DefaultKRSProviders()["keyternal"],
			net:      "btc",
			price:    decimal.NewFromInt(50000),
			want:     198000,
		},
		{
			name:     "fee rounds to the nearest unit",
			provider: DefaultKRSProviders()["keyternal"],
			net:      "btc",
			price:    decimal.NewFromInt(30000),
			want:     330000,
		},
		{
			name: "fractional price",
			provider: &KRSProvider{
				Name:         "acme",
				FeeType:      FeeTypeFlatUSD,
				FeeAmountUSD: decimal.NewFromInt(1),
			},
			net:   "ltc",
			price: decimal.RequireFromString("70.12"),
			want:  1426127,
		},
		{
			name:     "free provider",
			provider: DefaultKRSProviders()["dai"],
			net:      "bch",
			noPrices: true,
			want:     0,
		},
		{
			name: "unknown fee structure",
			provider: &KRSProvider{
				Name:         "acme",
				FeeType:      "percent",
				FeeAmountUSD: decimal.NewFromInt(1),
			},
			net: "btc",
			err: ErrFeeStructure,
		},
		{
			name:     "price failure",
			provider: DefaultKRSProviders()["keyternal"],
			net:      "btc",
			priceErr: errFeed,
			err:      errFeed,
		},
		{
			name:     "zero price",
			provider: DefaultKRSProviders()["keyternal"],
			net:      "btc",
			price:    decimal.Zero,
			errMsg:   "invalid btc price",
		},
		{
			name:     "no price source",
			provider: DefaultKRSProviders()["keyternal"],
			net:      "btc",
			noPrices: true,
			errMsg:   "no price source",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			net := netparams.MustLookup(tc.net)

			var prices PriceSource
			if !tc.noPrices {
				m := &mockPriceSource{}
				m.On("USDPrice", mock.Anything).Return(
					tc.price, tc.priceErr,
				)
				prices = m
			}

			fee, err := KRSFee(context.Background(), tc.provider, net,
				prices)

			switch {
			case tc.err != nil:
				require.ErrorIs(t, err, tc.err)

			case tc.errMsg != "":
				require.ErrorContains(t, err, tc.errMsg)

			default:
				require.NoError(t, err)
				require.Equal(t, tc.want, fee)
			}
		})
	}
}

func TestKRSProvidersLookup(t *testing.T) {
	t.Parallel()

	krs := DefaultKRSProviders()
	require.Equal(t, []string{"bitgoKRSv2", "dai", "keyternal"}, krs.Names())

	p, err := krs.Lookup("dai", netparams.MustLookup("ltc"))
	require.NoError(t, err)
	require.Equal(t, "dai", p.Name)

	_, err = krs.Lookup("keyternal", netparams.MustLookup("bch"))
	require.ErrorIs(t, err, ErrKRSUnsupportedCoin)

	_, err = krs.Lookup("", netparams.MustLookup("btc"))
	require.ErrorIs(t, err, ErrMissingKRSProvider)

	_, err = krs.Lookup("acme", netparams.MustLookup("btc"))
	require.ErrorIs(t, err, ErrUnknownKRSProvider)

	require.ErrorIs(t, krs.SetFeeAddress("acme", "btc", krsFeeAddr),
		ErrUnknownKRSProvider)

	require.NoError(t, krs.SetFeeAddress("dai", "ltc", "addr"))
	require.Equal(t, "addr", krs["dai"].FeeAddresses["ltc"])
}
