// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package multisig derives m-of-n wallet addresses, decomposes the unlocking
// data of multisig inputs and verifies their signatures.
package multisig

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/bitgo/utxocore/chaincode"
	"github.com/bitgo/utxocore/keychain"
	"github.com/bitgo/utxocore/netparams"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// DefaultThreshold is the number of signatures required when none is given.
const DefaultThreshold = 2

// Descriptor is the full spending condition of one wallet address.
type Descriptor struct {
	// Address is the encoded address.
	Address string

	// AddressType is the script template of the address.
	AddressType chaincode.AddressType

	// Chain and Index locate the address keys under `m/0/0`.
	Chain chaincode.Code
	Index uint32

	// Threshold is the number of signatures required to spend.
	Threshold int

	// OutputScript is the locking script paid to.
	OutputScript []byte

	// RedeemScript is the script committed to by a P2SH output: the
	// multisig script for p2sh, the witness program for p2shP2wsh.
	RedeemScript []byte

	// WitnessScript is the multisig script of segwit addresses.
	WitnessScript []byte
}

// MultisigScript returns the CHECKMULTISIG script signatures commit to.
func (d *Descriptor) MultisigScript() []byte {
	if d.AddressType.IsSegwit() {
		return d.WitnessScript
	}

	return d.RedeemScript
}

// witnessProgram returns `OP_0 <sha256(script)>`.
func witnessProgram(script []byte) ([]byte, error) {
	h := sha256.Sum256(script)

	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(h[:]).
		Script()
}

// CreateMultiSigAddress builds the descriptor of an m-of-n address over the
// given public keys, in the given order.
func CreateMultiSigAddress(net netparams.Network, pubKeys []*btcec.PublicKey,
	threshold int, addrType chaincode.AddressType) (*Descriptor, error) {

	if !net.SupportsAddressType(addrType) {
		return nil, fmt.Errorf("%w: %s on %s", ErrUnsupportedAddressType,
			addrType, net.Name())
	}

	if len(pubKeys) == 0 {
		return nil, ErrNoKeys
	}

	if threshold <= 0 || threshold > len(pubKeys) {
		return nil, fmt.Errorf("%w: %d of %d", ErrInvalidThreshold,
			threshold, len(pubKeys))
	}

	params := net.Params()

	addrPubKeys := make([]*btcutil.AddressPubKey, 0, len(pubKeys))
	for _, pub := range pubKeys {
		a, err := btcutil.NewAddressPubKey(
			pub.SerializeCompressed(), params,
		)
		if err != nil {
			return nil, err
		}
		addrPubKeys = append(addrPubKeys, a)
	}

	script, err := txscript.MultiSigScript(addrPubKeys, threshold)
	if err != nil {
		return nil, err
	}

	d := &Descriptor{AddressType: addrType, Threshold: threshold}

	var addr btcutil.Address
	switch addrType {
	case chaincode.P2sh:
		d.RedeemScript = script
		addr, err = btcutil.NewAddressScriptHash(script, params)

	case chaincode.P2shP2wsh:
		d.WitnessScript = script
		d.RedeemScript, err = witnessProgram(script)
		if err != nil {
			return nil, err
		}
		addr, err = btcutil.NewAddressScriptHash(d.RedeemScript, params)

	case chaincode.P2wsh:
		d.WitnessScript = script
		h := sha256.Sum256(script)
		addr, err = btcutil.NewAddressWitnessScriptHash(h[:], params)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAddressType,
			addrType)
	}
	if err != nil {
		return nil, err
	}

	d.OutputScript, err = txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, err
	}
	d.Address = addr.EncodeAddress()

	return d, nil
}

// DeriveParams locates the address to derive.
type DeriveParams struct {
	// Chain is the derivation chain code.
	Chain chaincode.Code

	// Index is the derivation index.
	Index uint32

	// AddressType, if set, must agree with Chain.
	AddressType fn.Option[chaincode.AddressType]

	// Threshold defaults to DefaultThreshold.
	Threshold fn.Option[int]
}

// resolveType returns the address type of the chain code, rejecting an
// explicit type that disagrees with it.
func resolveType(p DeriveParams) (chaincode.AddressType, error) {
	chainType, err := p.Chain.Type()
	if err != nil {
		return "", err
	}

	addrType := p.AddressType.UnwrapOr(chainType)
	if addrType != chainType {
		return "", &AddressTypeChainMismatchError{
			AddressType: addrType,
			Chain:       p.Chain,
		}
	}

	return addrType, nil
}

// DeriveAddress derives the `m/0/0/chain/index` child of every extended
// public key and builds the multisig address over them.
func DeriveAddress(net netparams.Network, xpubs []string,
	p DeriveParams) (*Descriptor, error) {

	addrType, err := resolveType(p)
	if err != nil {
		return nil, err
	}

	if !net.SupportsAddressType(addrType) {
		return nil, fmt.Errorf("%w: %s on %s", ErrUnsupportedAddressType,
			addrType, net.Name())
	}

	threshold := p.Threshold.UnwrapOr(DefaultThreshold)
	if len(xpubs) == 0 {
		return nil, ErrNoKeys
	}
	if threshold <= 0 || threshold > len(xpubs) {
		return nil, fmt.Errorf("%w: %d of %d", ErrInvalidThreshold,
			threshold, len(xpubs))
	}

	pubKeys, err := keychain.DerivePubKeys(
		xpubs, uint32(p.Chain), p.Index,
	)
	if err != nil {
		return nil, err
	}

	d, err := CreateMultiSigAddress(net, pubKeys, threshold, addrType)
	if err != nil {
		return nil, err
	}
	d.Chain = p.Chain
	d.Index = p.Index

	log.Tracef("Derived %s %s at %d/%d", net.Name(), d.Address,
		uint32(p.Chain), p.Index)

	return d, nil
}

// VerifyAddressParams describes a claimed wallet address.
type VerifyAddressParams struct {
	// Address is the claimed address.
	Address string

	// Chain and Index are the claimed derivation locator. Both must be
	// present.
	Chain fn.Option[uint32]
	Index fn.Option[uint32]

	// AddressType, if set, must agree with Chain.
	AddressType fn.Option[chaincode.AddressType]

	// Keychains are the wallet's extended public keys in order.
	Keychains []string

	// Threshold defaults to DefaultThreshold.
	Threshold fn.Option[int]
}

// VerifyAddress re-derives the claimed address from the wallet keys. It
// returns an *UnexpectedAddressError when the derived address differs and
// an *InvalidAddressDerivationPropertyError when the locator is missing or
// unusable.
func VerifyAddress(net netparams.Network, p VerifyAddressParams) error {
	canonical, err := net.CanonicalAddress(p.Address)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}

	if p.Chain.IsNone() || p.Index.IsNone() {
		return &InvalidAddressDerivationPropertyError{
			Address: p.Address,
			Reason:  "missing chain or index",
		}
	}

	chain := chaincode.Code(p.Chain.UnwrapOr(0))
	if !chain.IsValid() {
		return &InvalidAddressDerivationPropertyError{
			Address: p.Address,
			Reason:  fmt.Sprintf("invalid chain %d", uint32(chain)),
		}
	}

	d, err := DeriveAddress(net, p.Keychains, DeriveParams{
		Chain:       chain,
		Index:       p.Index.UnwrapOr(0),
		AddressType: p.AddressType,
		Threshold:   p.Threshold,
	})
	if err != nil {
		return err
	}

	if d.Address != canonical {
		return &UnexpectedAddressError{
			Expected: d.Address,
			Actual:   p.Address,
		}
	}

	return nil
}

// IsWalletAddress is VerifyAddress reporting a mismatching address as false
// rather than as an error. Malformed input is still an error.
func IsWalletAddress(net netparams.Network, p VerifyAddressParams) (bool,
	error) {

	err := VerifyAddress(net, p)

	var unexpected *UnexpectedAddressError
	switch {
	case err == nil:
		return true, nil

	case errors.As(err, &unexpected):
		return false, nil

	default:
		return false, err
	}
}
