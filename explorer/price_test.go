package explorer

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// TestUSDPrice checks price parsing and the retry budget.
func TestUSDPrice(t *testing.T) {
	t.Parallel()

	const (
		btcPath  = "/simple/price?ids=bitcoin&vs_currencies=usd"
		ltcPath  = "/simple/price?ids=litecoin&vs_currencies=usd"
		dogePath = "/simple/price?ids=dogecoin&vs_currencies=usd"
		bchPath  = "/simple/price?ids=bitcoin-cash&vs_currencies=usd"
	)

	s := newTestServer(t, map[string]route{
		btcPath:  {body: `{"bitcoin":{"usd":64123.45}}`, fail: 2},
		ltcPath:  {fail: 5},
		dogePath: {body: `{"dogecoin":{"usd":0}}`},
		bchPath:  {body: `{}`},
	})

	feed := NewPriceFeed(&PriceFeedConfig{
		URL:            s.URL + "/",
		Attempts:       DefaultPriceAttempts,
		RequestTimeout: 5 * time.Second,
	})
	ctx := context.Background()

	price, err := feed.USDPrice(ctx, "bitcoin")
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("64123.45").Equal(price))
	require.EqualValues(t, 3, s.hits[btcPath].Load())

	_, err = feed.USDPrice(ctx, "litecoin")
	require.Error(t, err)
	require.EqualValues(t, DefaultPriceAttempts, s.hits[ltcPath].Load())

	_, err = feed.USDPrice(ctx, "dogecoin")
	require.ErrorIs(t, err, ErrPriceUnavailable)

	_, err = feed.USDPrice(ctx, "bitcoin-cash")
	require.ErrorIs(t, err, ErrPriceUnavailable)
}
