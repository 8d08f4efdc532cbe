// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package keycrypt encrypts extended private keys with a passphrase. Keys
// are sealed with NaCl secretbox under a scrypt derived key and exchanged as
// a small JSON envelope.
package keycrypt

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/bitgo/utxocore/keychain"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

const (
	envelopeVersion = 1
	saltLen         = 16
	nonceLen        = 24
	keyLen          = 32
)

// DefaultParams are the scrypt cost parameters used for new envelopes.
var DefaultParams = Params{N: 1 << 15, R: 8, P: 1}

var (
	// ErrDecryptFailed is returned when the passphrase is wrong or the
	// envelope was tampered with.
	ErrDecryptFailed = errors.New("unable to decrypt: wrong passphrase " +
		"or corrupted data")

	// ErrUnsupportedEnvelope is returned for an unknown envelope version.
	ErrUnsupportedEnvelope = errors.New("unsupported envelope")
)

// Params are the scrypt cost parameters.
type Params struct {
	N int `json:"n"`
	R int `json:"r"`
	P int `json:"p"`
}

// envelope is the serialized form of an encrypted key.
type envelope struct {
	Version int    `json:"v"`
	Params  Params `json:"ks"`
	Salt    []byte `json:"salt"`
	Nonce   []byte `json:"iv"`
	Cipher  []byte `json:"ct"`
}

// Crypter implements keychain.Decrypter and can also produce envelopes.
type Crypter struct {
	params Params
	rand   io.Reader
}

// A compile-time check to ensure Crypter implements keychain.Decrypter.
var _ keychain.Decrypter = (*Crypter)(nil)

// New returns a Crypter sealing new envelopes with params.
func New(params Params) *Crypter {
	return &Crypter{params: params, rand: rand.Reader}
}

func deriveKey(passphrase string, salt []byte, p Params) (*[keyLen]byte,
	error) {

	raw, err := scrypt.Key([]byte(passphrase), salt, p.N, p.R, p.P, keyLen)
	if err != nil {
		return nil, err
	}

	var key [keyLen]byte
	copy(key[:], raw)

	return &key, nil
}

// Encrypt seals plaintext under passphrase.
func (c *Crypter) Encrypt(passphrase, plaintext string) (string, error) {
	env := envelope{
		Version: envelopeVersion,
		Params:  c.params,
		Salt:    make([]byte, saltLen),
		Nonce:   make([]byte, nonceLen),
	}

	if _, err := io.ReadFull(c.rand, env.Salt); err != nil {
		return "", err
	}
	if _, err := io.ReadFull(c.rand, env.Nonce); err != nil {
		return "", err
	}

	key, err := deriveKey(passphrase, env.Salt, env.Params)
	if err != nil {
		return "", err
	}

	var nonce [nonceLen]byte
	copy(nonce[:], env.Nonce)
	env.Cipher = secretbox.Seal(nil, []byte(plaintext), &nonce, key)

	out, err := json.Marshal(env)
	if err != nil {
		return "", err
	}

	return string(out), nil
}

// Decrypt opens an envelope produced by Encrypt. The cost parameters are
// taken from the envelope.
func (c *Crypter) Decrypt(passphrase, ciphertext string) (string, error) {
	var env envelope
	if err := json.Unmarshal([]byte(ciphertext), &env); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedEnvelope, err)
	}

	if env.Version != envelopeVersion || len(env.Salt) != saltLen ||
		len(env.Nonce) != nonceLen {

		return "", fmt.Errorf("%w: version %d", ErrUnsupportedEnvelope,
			env.Version)
	}

	key, err := deriveKey(passphrase, env.Salt, env.Params)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedEnvelope, err)
	}

	var nonce [nonceLen]byte
	copy(nonce[:], env.Nonce)

	plain, ok := secretbox.Open(nil, env.Cipher, &nonce, key)
	if !ok {
		return "", ErrDecryptFailed
	}

	return string(plain), nil
}
