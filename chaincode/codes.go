// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chaincode defines the multisig address types used by the wallet
// and the derivation chain codes that encode them.
//
// A chain code is the third element of the `m/0/0/chain/index` derivation
// path. Each address type owns a fixed pair of codes: one for external
// (receive) addresses and one for internal (change) addresses.
package chaincode

import (
	"errors"
	"fmt"
)

// AddressType identifies the output script template of a 2-of-3 (or m-of-n)
// multisig wallet address.
type AddressType string

const (
	// P2sh is a bare multisig script committed to by a pay-to-script-hash
	// output.
	P2sh AddressType = "p2sh"

	// P2shP2wsh is a multisig witness script wrapped in a witness program
	// which is itself committed to by a pay-to-script-hash output.
	P2shP2wsh AddressType = "p2shP2wsh"

	// P2wsh is a multisig witness script committed to by a native
	// pay-to-witness-script-hash output.
	P2wsh AddressType = "p2wsh"
)

// AddressTypes lists every supported multisig address type in scan order.
var AddressTypes = []AddressType{P2sh, P2shP2wsh, P2wsh}

// Purpose distinguishes receive addresses from change addresses.
type Purpose uint8

const (
	// External is the purpose of receive addresses.
	External Purpose = iota

	// Internal is the purpose of change addresses.
	Internal
)

// String returns a human readable purpose.
func (p Purpose) String() string {
	if p == Internal {
		return "internal"
	}

	return "external"
}

// Code is a derivation chain code.
type Code uint32

const (
	// P2shExternal and P2shInternal are the chain codes of legacy
	// pay-to-script-hash addresses.
	P2shExternal Code = 0
	P2shInternal Code = 1

	// P2shP2wshExternal and P2shP2wshInternal are the chain codes of
	// wrapped segwit addresses.
	P2shP2wshExternal Code = 10
	P2shP2wshInternal Code = 11

	// P2wshExternal and P2wshInternal are the chain codes of native segwit
	// addresses.
	P2wshExternal Code = 20
	P2wshInternal Code = 21
)

var (
	// ErrUnknownChainCode is returned when a chain code does not belong
	// to any known address type.
	ErrUnknownChainCode = errors.New("unknown chain code")

	// ErrUnknownAddressType is returned when an address type string is
	// not recognized.
	ErrUnknownAddressType = errors.New("unknown address type")
)

type codePair struct {
	external Code
	internal Code
}

var codesByType = map[AddressType]codePair{
	P2sh:      {external: P2shExternal, internal: P2shInternal},
	P2shP2wsh: {external: P2shP2wshExternal, internal: P2shP2wshInternal},
	P2wsh:     {external: P2wshExternal, internal: P2wshInternal},
}

// ParseAddressType validates an address type string.
func ParseAddressType(s string) (AddressType, error) {
	t := AddressType(s)
	if _, ok := codesByType[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAddressType, s)
	}

	return t, nil
}

// IsValid returns true if the code belongs to a known address type.
func (c Code) IsValid() bool {
	_, _, err := c.split()
	return err == nil
}

// Type returns the address type encoded by the chain code.
func (c Code) Type() (AddressType, error) {
	t, _, err := c.split()
	return t, err
}

// Purpose returns whether the chain code is external or internal.
func (c Code) Purpose() (Purpose, error) {
	_, p, err := c.split()
	return p, err
}

func (c Code) split() (AddressType, Purpose, error) {
	for t, pair := range codesByType {
		switch c {
		case pair.external:
			return t, External, nil
		case pair.internal:
			return t, Internal, nil
		}
	}

	return "", 0, fmt.Errorf("%w: %d", ErrUnknownChainCode, uint32(c))
}

// ExternalCode returns the receive chain code of the address type.
func ExternalCode(t AddressType) (Code, error) {
	pair, ok := codesByType[t]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownAddressType, t)
	}

	return pair.external, nil
}

// InternalCode returns the change chain code of the address type.
func InternalCode(t AddressType) (Code, error) {
	pair, ok := codesByType[t]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownAddressType, t)
	}

	return pair.internal, nil
}

// CodesForType returns the external and internal chain codes of the address
// type, in that order.
func CodesForType(t AddressType) ([2]Code, error) {
	pair, ok := codesByType[t]
	if !ok {
		return [2]Code{}, fmt.Errorf("%w: %q", ErrUnknownAddressType, t)
	}

	return [2]Code{pair.external, pair.internal}, nil
}

// IsSegwit reports whether spending the address type places its unlocking
// data in the witness.
func (t AddressType) IsSegwit() bool {
	return t == P2shP2wsh || t == P2wsh
}
