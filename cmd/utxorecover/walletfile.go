package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/bitgo/utxocore/keychain"
	"github.com/bitgo/utxocore/netparams"
	"github.com/bitgo/utxocore/wallet"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// walletExport is an offline export of a platform wallet: its record, its
// keychains and the addresses it derived.
type walletExport struct {
	Wallet    wallet.Info         `json:"wallet"`
	Keychains []keychain.Keychain `json:"keychains"`
	Addresses []exportedAddress   `json:"addresses"`
}

// exportedAddress is one derived wallet address.
type exportedAddress struct {
	Address string  `json:"address"`
	Chain   *uint32 `json:"chain,omitempty"`
	Index   *uint32 `json:"index,omitempty"`

	RedeemScript  string `json:"redeemScript,omitempty"`
	WitnessScript string `json:"witnessScript,omitempty"`
}

// heightSource returns the chain tip height.
type heightSource interface {
	TipHeight(ctx context.Context) (int32, error)
}

// filePlatform serves a wallet export as a wallet.Platform. Chain height
// lookups go to an explorer.
type filePlatform struct {
	export    *walletExport
	net       netparams.Network
	addresses map[string]exportedAddress
	keychains map[string]keychain.Keychain
	heights   heightSource
}

var _ wallet.Platform = (*filePlatform)(nil)

// loadWalletExport reads a wallet export of a wallet on net.
func loadWalletExport(path string, net netparams.Network,
	heights heightSource) (*filePlatform, error) {

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var export walletExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("invalid wallet export %s: %w", path, err)
	}

	p := &filePlatform{
		export:    &export,
		net:       net,
		addresses: make(map[string]exportedAddress),
		keychains: make(map[string]keychain.Keychain),
		heights:   heights,
	}

	for _, k := range export.Keychains {
		p.keychains[k.ID] = k
	}

	for _, a := range export.Addresses {
		canonical, err := net.CanonicalAddress(a.Address)
		if err != nil {
			return nil, fmt.Errorf("wallet export address %s: %w",
				a.Address, err)
		}
		p.addresses[canonical] = a
	}

	utxrLog.Debugf("Loaded wallet %s with %d keychains and %d addresses",
		export.Wallet.ID, len(export.Keychains), len(export.Addresses))

	return p, nil
}

func (p *filePlatform) GetKeychain(_ context.Context,
	id string) (*keychain.Keychain, error) {

	k, ok := p.keychains[id]
	if !ok {
		return nil, fmt.Errorf("keychain %s not in wallet export", id)
	}

	return &k, nil
}

func (p *filePlatform) GetWallet(_ context.Context,
	id string) (*wallet.Info, error) {

	if p.export.Wallet.ID != id {
		return nil, fmt.Errorf("wallet export holds wallet %s, not %s",
			p.export.Wallet.ID, id)
	}

	info := p.export.Wallet

	return &info, nil
}

func (p *filePlatform) GetAddressDetails(_ context.Context, walletID,
	address string) (*wallet.AddressDetails, error) {

	if p.export.Wallet.ID != walletID {
		return nil, fmt.Errorf("wallet %s not in wallet export",
			walletID)
	}

	canonical, err := p.net.CanonicalAddress(address)
	if err != nil {
		return nil, err
	}

	a, ok := p.addresses[canonical]
	if !ok {
		return nil, fmt.Errorf("%w: %s", wallet.ErrWalletAddressNotFound,
			address)
	}

	d := &wallet.AddressDetails{
		Address:       a.Address,
		RedeemScript:  a.RedeemScript,
		WitnessScript: a.WitnessScript,
	}
	if a.Chain != nil {
		d.Chain = fn.Some(*a.Chain)
	}
	if a.Index != nil {
		d.Index = fn.Some(*a.Index)
	}

	return d, nil
}

func (p *filePlatform) GetLatestBlockHeight(ctx context.Context) (int32,
	error) {

	return p.heights.TipHeight(ctx)
}
