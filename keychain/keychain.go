// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package keychain holds the three extended keys that form the trust root of
// a multisig wallet and the BIP32 derivation used to reach every wallet
// address.
package keychain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// Index is the position of a keychain in the wallet triple.
type Index int

const (
	// UserIndex is the position of the user key.
	UserIndex Index = iota

	// BackupIndex is the position of the backup key.
	BackupIndex

	// BitGoIndex is the position of the custodian key.
	BitGoIndex

	// TripleSize is the number of keys in a wallet.
	TripleSize = 3
)

// DefaultDerivationPrefix is the path every wallet address key hangs off,
// followed by `/chain/index`.
const DefaultDerivationPrefix = "m/0/0"

var (
	// ErrMissingPub is returned when a keychain has no public key.
	ErrMissingPub = errors.New("keychain is missing its public key")

	// ErrInvalidPath is returned when a derivation path cannot be parsed.
	ErrInvalidPath = errors.New("invalid derivation path")

	// ErrNotPrivate is returned when a private key operation is attempted
	// on a public extended key.
	ErrNotPrivate = errors.New("extended key is not private")
)

// Keychain is one wallet key as known to the platform. Pub is always set;
// the private material is only present when the caller supplies it for a
// single operation.
type Keychain struct {
	// ID is the platform identifier of the keychain.
	ID string `json:"id,omitempty"`

	// Pub is the base58 extended public key.
	Pub string `json:"pub"`

	// Prv is a plaintext base58 extended private key.
	Prv string `json:"prv,omitempty"`

	// EncryptedPrv is the extended private key encrypted with the wallet
	// passphrase.
	EncryptedPrv string `json:"encryptedPrv,omitempty"`

	// KRSProvider names the key recovery service holding this key.
	KRSProvider string `json:"krsProvider,omitempty"`
}

// Triple is the ordered user, backup, custodian keychain set of a wallet.
type Triple [TripleSize]Keychain

// Pubs returns the extended public keys in wallet order.
func (t Triple) Pubs() []string {
	pubs := make([]string, 0, TripleSize)
	for _, k := range t {
		pubs = append(pubs, k.Pub)
	}

	return pubs
}

// Validate checks every keychain carries a parseable public key.
func (t Triple) Validate() error {
	for i, k := range t {
		if k.Pub == "" {
			return fmt.Errorf("keychain %d: %w", i, ErrMissingPub)
		}

		if _, err := ParseExtendedKey(k.Pub); err != nil {
			return fmt.Errorf("keychain %d: %w", i, err)
		}
	}

	return nil
}

// ParseExtendedKey decodes a base58 BIP32 key. The version bytes are not
// checked against a network since wallet keys always use the bitcoin
// encoding.
func ParseExtendedKey(key string) (*hdkeychain.ExtendedKey, error) {
	k, err := hdkeychain.NewKeyFromString(strings.TrimSpace(key))
	if err != nil {
		return nil, fmt.Errorf("unable to parse extended key: %w", err)
	}

	return k, nil
}

// IsValidPub reports whether key is a parseable extended public key.
func IsValidPub(key string) bool {
	k, err := ParseExtendedKey(key)
	return err == nil && !k.IsPrivate()
}

// IsValidPrv reports whether key is a parseable extended private key.
func IsValidPrv(key string) bool {
	k, err := ParseExtendedKey(key)
	return err == nil && k.IsPrivate()
}

// ParsePath parses a BIP32 path such as `m/0/0` or `m/45'/0`. Hardened
// elements are marked with a trailing `'` or `h`.
func ParsePath(path string) ([]uint32, error) {
	parts := strings.Split(strings.TrimSpace(path), "/")
	if len(parts) == 0 || parts[0] != "m" {
		return nil, fmt.Errorf("%w: %q must start with m", ErrInvalidPath,
			path)
	}

	elems := make([]uint32, 0, len(parts)-1)
	for _, p := range parts[1:] {
		hardened := strings.HasSuffix(p, "'") || strings.HasSuffix(p, "h")
		if hardened {
			p = p[:len(p)-1]
		}

		n, err := strconv.ParseUint(p, 10, 31)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPath, path,
				err)
		}

		elem := uint32(n)
		if hardened {
			elem += hdkeychain.HardenedKeyStart
		}
		elems = append(elems, elem)
	}

	return elems, nil
}

// DerivePath derives key along path.
func DerivePath(key *hdkeychain.ExtendedKey,
	path []uint32) (*hdkeychain.ExtendedKey, error) {

	var err error
	for _, elem := range path {
		key, err = key.Derive(elem)
		if err != nil {
			return nil, fmt.Errorf("unable to derive child %d: %w",
				elem, err)
		}
	}

	return key, nil
}

// DeriveAddressKey derives the `prefix/chain/index` child of key. An empty
// prefix means DefaultDerivationPrefix.
func DeriveAddressKey(key *hdkeychain.ExtendedKey, prefix string, chain,
	index uint32) (*hdkeychain.ExtendedKey, error) {

	if prefix == "" {
		prefix = DefaultDerivationPrefix
	}

	path, err := ParsePath(prefix)
	if err != nil {
		return nil, err
	}

	return DerivePath(key, append(path, chain, index))
}

// DerivePubKeys derives the `m/0/0/chain/index` public key of every
// extended key, preserving order.
func DerivePubKeys(xpubs []string, chain,
	index uint32) ([]*btcec.PublicKey, error) {

	pubs := make([]*btcec.PublicKey, 0, len(xpubs))
	for i, xpub := range xpubs {
		root, err := ParseExtendedKey(xpub)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}

		child, err := DeriveAddressKey(root, "", chain, index)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}

		pub, err := child.ECPubKey()
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
		pubs = append(pubs, pub)
	}

	return pubs, nil
}

// DerivePrivKey derives the `prefix/chain/index` private key of xprv.
func DerivePrivKey(xprv *hdkeychain.ExtendedKey, prefix string, chain,
	index uint32) (*btcec.PrivateKey, error) {

	if !xprv.IsPrivate() {
		return nil, ErrNotPrivate
	}

	child, err := DeriveAddressKey(xprv, prefix, chain, index)
	if err != nil {
		return nil, err
	}

	return child.ECPrivKey()
}

// Neuter returns the extended public key string of an extended private key
// string.
func Neuter(xprv string) (string, error) {
	k, err := ParseExtendedKey(xprv)
	if err != nil {
		return "", err
	}

	if !k.IsPrivate() {
		return "", ErrNotPrivate
	}

	pub, err := k.Neuter()
	if err != nil {
		return "", err
	}

	return pub.String(), nil
}
