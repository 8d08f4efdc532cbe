// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package netparams describes every UTXO network the wallet can derive,
// sign and recover on. Each network is a small capability set layered over
// a btcd chaincfg.Params copy so the btcsuite script and address packages
// can be used unchanged.
package netparams

import (
	"errors"
	"fmt"
	"sort"

	"github.com/bitgo/utxocore/chaincode"
	"github.com/bitgo/utxocore/pkg/btcunit"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

const (
	// SigHashForkID is the flag fork coins OR into the sighash type to
	// select the BIP143 digest for every input.
	SigHashForkID txscript.SigHashType = 0x40

	// DefaultRecoveryFeeRate is the static sat/vB rate used for backup key
	// recoveries when no fee source is configured.
	DefaultRecoveryFeeRate = 100

	// baseFactor is the number of base units per coin.
	baseFactor = 1e8
)

var (
	// ErrUnknownNetwork is returned when a network name is not registered.
	ErrUnknownNetwork = errors.New("unknown network")

	// ErrInvalidAddress is returned when an address cannot be decoded for a
	// network.
	ErrInvalidAddress = errors.New("invalid address")
)

// Network is the capability set of one UTXO chain. A base implementation
// supplies the bitcoin defaults and each chain family overrides the few
// behaviours that differ.
type Network interface {
	// Name is the short coin identifier, e.g. "btc" or "tltc".
	Name() string

	// Family is the mainnet identifier of the chain family, e.g. "ltc" for
	// both ltc and tltc.
	Family() string

	// Params returns the btcd-typed chain parameters.
	Params() *chaincfg.Params

	// IsTestnet reports whether this is a test network.
	IsTestnet() bool

	// SupportsAddressType reports whether multisig addresses of the type
	// can be created on this network.
	SupportsAddressType(t chaincode.AddressType) bool

	// SupportsChain reports whether the chain code is valid and its
	// address type is supported.
	SupportsChain(c chaincode.Code) bool

	// DefaultSigHash is the sighash type every signature is made with.
	DefaultSigHash() txscript.SigHashType

	// UsesForkID reports whether the network hashes every input with the
	// BIP143 digest and the fork-id flag.
	UsesForkID() bool

	// IsReplayProtectionAddress reports whether the address belongs to the
	// platform's replay protection unspents, which are never signed.
	IsReplayProtectionAddress(addr string) bool

	// CrossChainFeeRate is the static fee rate used when sweeping coins
	// sent to this chain by mistake.
	CrossChainFeeRate() btcunit.SatPerVByte

	// RecoveryFeeRate is the static fee rate of backup key recoveries.
	RecoveryFeeRate() btcunit.SatPerVByte

	// PriceID is the identifier of the coin in the USD price feed.
	PriceID() string

	// BaseFactor is the number of base units in one coin.
	BaseFactor() int64

	// ExplorerURL is the default Esplora compatible explorer API, if any.
	ExplorerURL() string

	// DecodeAddress decodes a base58check or bech32 address of this
	// network.
	DecodeAddress(addr string) (btcutil.Address, error)

	// CanonicalAddress returns the normalized form of an address so it can
	// be compared as a string.
	CanonicalAddress(addr string) (string, error)
}

// baseNetwork supplies the defaults shared by every bitcoin-like chain.
type baseNetwork struct {
	name          string
	family        string
	params        *chaincfg.Params
	testnet       bool
	segwit        bool
	crossChainFee btcutil.Amount
	priceID       string
	explorerURL   string
}

// A compile-time check to ensure baseNetwork implements Network.
var _ Network = (*baseNetwork)(nil)

// Name returns the coin identifier.
func (b *baseNetwork) Name() string { return b.name }

// Family returns the mainnet identifier of the chain family.
func (b *baseNetwork) Family() string { return b.family }

// Params returns the chain parameters.
func (b *baseNetwork) Params() *chaincfg.Params { return b.params }

// IsTestnet reports whether this is a test network.
func (b *baseNetwork) IsTestnet() bool { return b.testnet }

// SupportsAddressType returns true for p2sh everywhere and for the segwit
// types only on segwit chains.
func (b *baseNetwork) SupportsAddressType(t chaincode.AddressType) bool {
	switch t {
	case chaincode.P2sh:
		return true

	case chaincode.P2shP2wsh, chaincode.P2wsh:
		return b.segwit

	default:
		return false
	}
}

// SupportsChain reports whether the chain code's address type is supported.
func (b *baseNetwork) SupportsChain(c chaincode.Code) bool {
	t, err := c.Type()
	if err != nil {
		return false
	}

	return b.SupportsAddressType(t)
}

// DefaultSigHash returns SIGHASH_ALL.
func (b *baseNetwork) DefaultSigHash() txscript.SigHashType {
	return txscript.SigHashAll
}

// UsesForkID returns false.
func (b *baseNetwork) UsesForkID() bool { return false }

// IsReplayProtectionAddress returns false: only fork coins carry replay
// protection unspents.
func (b *baseNetwork) IsReplayProtectionAddress(string) bool { return false }

// CrossChainFeeRate returns the static cross chain recovery fee rate.
func (b *baseNetwork) CrossChainFeeRate() btcunit.SatPerVByte {
	return btcunit.NewSatPerVByte(b.crossChainFee)
}

// RecoveryFeeRate returns the static backup key recovery fee rate.
func (b *baseNetwork) RecoveryFeeRate() btcunit.SatPerVByte {
	return btcunit.NewSatPerVByte(DefaultRecoveryFeeRate)
}

// PriceID returns the price feed identifier.
func (b *baseNetwork) PriceID() string { return b.priceID }

// BaseFactor returns 1e8.
func (b *baseNetwork) BaseFactor() int64 { return baseFactor }

// ExplorerURL returns the default explorer API.
func (b *baseNetwork) ExplorerURL() string { return b.explorerURL }

// DecodeAddress decodes an address of this network.
func (b *baseNetwork) DecodeAddress(addr string) (btcutil.Address, error) {
	return decodeAddress(addr, b.params, b.segwit)
}

// CanonicalAddress returns the decoded address re-encoded, which lowercases
// bech32 addresses and leaves base58 addresses untouched.
func (b *baseNetwork) CanonicalAddress(addr string) (string, error) {
	a, err := b.DecodeAddress(addr)
	if err != nil {
		return "", err
	}

	return a.EncodeAddress(), nil
}

// forkNetwork is a bitcoin fork which signs with SIGHASH_FORKID and carries
// replay protection unspents.
type forkNetwork struct {
	baseNetwork

	replayProtection string
}

// DefaultSigHash returns SIGHASH_ALL|SIGHASH_FORKID.
func (f *forkNetwork) DefaultSigHash() txscript.SigHashType {
	return txscript.SigHashAll | SigHashForkID
}

// UsesForkID returns true.
func (f *forkNetwork) UsesForkID() bool { return true }

// IsReplayProtectionAddress compares the address with the network's replay
// protection address.
func (f *forkNetwork) IsReplayProtectionAddress(addr string) bool {
	return addr == f.replayProtection
}

var registry = map[string]Network{}

func register(n Network) {
	registry[n.Name()] = n
}

// Lookup returns the network registered under name.
func Lookup(name string) (Network, error) {
	n, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNetwork, name)
	}

	return n, nil
}

// MustLookup is like Lookup but panics for unknown names. It is meant for
// package level variables and tests.
func MustLookup(name string) Network {
	n, err := Lookup(name)
	if err != nil {
		panic(err)
	}

	return n
}

// Names returns every registered network name in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
