// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package recovery

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/bitgo/utxocore/netparams"
	"github.com/bitgo/utxocore/pkg/btcunit"
	"github.com/shopspring/decimal"
)

// FeeTypeFlatUSD charges a fixed USD amount per recovery.
const FeeTypeFlatUSD = "flatUsd"

// PriceSource returns the USD price of one coin. It is satisfied by
// *explorer.PriceFeed.
type PriceSource interface {
	USDPrice(ctx context.Context, id string) (decimal.Decimal, error)
}

// FeeRateSource returns a current fee rate. It is satisfied by
// *explorer.Client.
type FeeRateSource interface {
	RecommendedFeeRate(ctx context.Context) (btcunit.SatPerVByte, error)
}

// KRSProvider is a key recovery service holding backup keys.
type KRSProvider struct {
	// Name identifies the provider, e.g. "keyternal".
	Name string

	// FeeType is how the provider charges. Only FeeTypeFlatUSD is
	// computed.
	FeeType string

	// FeeAmountUSD is the flat fee in USD.
	FeeAmountUSD decimal.Decimal

	// SupportedCoins lists the coin families the provider serves.
	SupportedCoins []string

	// FeeAddresses maps coin names to the address the fee is paid to.
	FeeAddresses map[string]string
}

// Supports reports whether the provider serves the network's family.
func (p *KRSProvider) Supports(net netparams.Network) bool {
	return slices.Contains(p.SupportedCoins, net.Family())
}

// KRSProviders is a registry of key recovery services by name.
type KRSProviders map[string]*KRSProvider

// DefaultKRSProviders returns the known providers. Keyternal has no fee
// address configured yet, so KRS recoveries through it fail until one is
// set.
func DefaultKRSProviders() KRSProviders {
	return KRSProviders{
		"keyternal": {
			Name:           "keyternal",
			FeeType:        FeeTypeFlatUSD,
			FeeAmountUSD:   decimal.NewFromInt(99),
			SupportedCoins: []string{"btc", "eth"},
			FeeAddresses:   map[string]string{},
		},
		"bitgoKRSv2": {
			Name:           "bitgoKRSv2",
			FeeType:        FeeTypeFlatUSD,
			FeeAmountUSD:   decimal.Zero,
			SupportedCoins: []string{"btc", "eth"},
		},
		"dai": {
			Name:         "dai",
			FeeType:      FeeTypeFlatUSD,
			FeeAmountUSD: decimal.Zero,
			SupportedCoins: []string{
				"btc", "eth", "xlm", "xrp", "dash", "zec", "ltc",
				"bch",
			},
		},
	}
}

// Names returns the registered provider names in sorted order.
func (k KRSProviders) Names() []string {
	names := make([]string, 0, len(k))
	for name := range k {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// SetFeeAddress records the fee address of a provider for a coin.
func (k KRSProviders) SetFeeAddress(provider, coin, address string) error {
	p, ok := k[provider]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKRSProvider, provider)
	}

	if p.FeeAddresses == nil {
		p.FeeAddresses = make(map[string]string)
	}
	p.FeeAddresses[coin] = address

	return nil
}

// Lookup returns the provider registered as name if it serves net.
func (k KRSProviders) Lookup(name string,
	net netparams.Network) (*KRSProvider, error) {

	if name == "" {
		return nil, ErrMissingKRSProvider
	}

	p, ok := k[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKRSProvider, name)
	}

	if !p.Supports(net) {
		return nil, fmt.Errorf("%w: %s does not serve %s",
			ErrKRSUnsupportedCoin, name, net.Name())
	}

	return p, nil
}

// KRSFee converts the provider's flat USD fee to base units of the coin,
// rounded to the nearest unit. A zero fee needs no price lookup. Price
// lookup failures are returned, never replaced by a default.
func KRSFee(ctx context.Context, p *KRSProvider, net netparams.Network,
	prices PriceSource) (int64, error) {

	if p.FeeType != FeeTypeFlatUSD {
		return 0, fmt.Errorf("%w: %s charges %q", ErrFeeStructure,
			p.Name, p.FeeType)
	}

	if p.FeeAmountUSD.IsZero() {
		return 0, nil
	}

	if prices == nil {
		return 0, fmt.Errorf("no price source to convert the %s fee",
			p.Name)
	}

	price, err := prices.USDPrice(ctx, net.PriceID())
	if err != nil {
		return 0, fmt.Errorf("unable to price %s fee: %w", p.Name, err)
	}
	if !price.IsPositive() {
		return 0, fmt.Errorf("invalid %s price %v", net.Name(), price)
	}

	fee := p.FeeAmountUSD.Div(price).
		Mul(decimal.NewFromInt(net.BaseFactor())).
		Round(0)

	log.Debugf("KRS fee of %s is %v USD at %v USD/%s: %v base units",
		p.Name, p.FeeAmountUSD, price, net.Name(), fee)

	return fee.IntPart(), nil
}

// ApproximateVSize is the conservative size of a recovery spending inputs
// wallet unspents to outputs outputs: segwit overhead, the largest output
// size and the largest input size.
func ApproximateVSize(inputs, outputs int) btcunit.VByte {
	sizes := btcunit.VirtualSizes

	return btcunit.NewVByte(sizes.TxSegOverheadVSize +
		uint64(outputs)*sizes.TxP2wshOutputSize +
		uint64(inputs)*sizes.TxP2shInputSize)
}

// ApproximateFee is the fee of ApproximateVSize at rate.
func ApproximateFee(inputs, outputs int, rate btcunit.SatPerVByte) int64 {
	return int64(rate.FeeForVByte(ApproximateVSize(inputs, outputs)))
}
