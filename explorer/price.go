// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrPriceUnavailable is returned when the feed has no usable USD price.
var ErrPriceUnavailable = errors.New("USD price unavailable")

const (
	// DefaultPriceFeedURL is the CoinGecko v3 API.
	DefaultPriceFeedURL = "https://api.coingecko.com/api/v3"

	// DefaultPriceAttempts is the number of attempts of a price lookup.
	DefaultPriceAttempts = 3
)

// PriceFeedConfig configures the USD price feed.
type PriceFeedConfig struct {
	// URL is the base URL of a CoinGecko compatible API.
	URL string

	// Attempts is the number of tries of a lookup, at least one.
	Attempts int

	// RequestTimeout bounds one HTTP request.
	RequestTimeout time.Duration
}

// DefaultPriceFeedConfig returns the CoinGecko configuration.
func DefaultPriceFeedConfig() *PriceFeedConfig {
	return &PriceFeedConfig{
		URL:            DefaultPriceFeedURL,
		Attempts:       DefaultPriceAttempts,
		RequestTimeout: DefaultRequestTimeout,
	}
}

// PriceFeed looks up coin prices in USD.
type PriceFeed struct {
	req *requester
}

// NewPriceFeed creates a price feed.
func NewPriceFeed(cfg *PriceFeedConfig) *PriceFeed {
	return &PriceFeed{
		req: newRequester(
			"pricefeed", strings.TrimSuffix(cfg.URL, "/"),
			cfg.RequestTimeout, cfg.Attempts, 0,
		),
	}
}

// USDPrice returns the USD price of one coin with the given feed id, e.g.
// "bitcoin".
func (p *PriceFeed) USDPrice(ctx context.Context,
	id string) (decimal.Decimal, error) {

	path := "/simple/price?ids=" + url.QueryEscape(id) + "&vs_currencies=usd"
	body, err := p.req.get(ctx, path)
	if err != nil {
		return decimal.Zero, err
	}

	var prices map[string]map[string]decimal.Decimal
	if err := json.Unmarshal(body, &prices); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode price: %w", err)
	}

	price, ok := prices[id]["usd"]
	if !ok || !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrPriceUnavailable, id)
	}

	log.Debugf("USD price of %s is %v", id, price)

	return price, nil
}
