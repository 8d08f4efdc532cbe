// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keychain

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// messageMagic is prepended to every signed message.
const messageMagic = "Bitcoin Signed Message:\n"

// ErrInvalidMessageSignature is returned when a message signature cannot be
// decoded.
var ErrInvalidMessageSignature = errors.New("invalid message signature")

// MessageHash returns the double-SHA256 digest signed by bitcoin message
// signatures.
func MessageHash(msg string) []byte {
	var buf bytes.Buffer
	_ = wire.WriteVarString(&buf, 0, messageMagic)
	_ = wire.WriteVarString(&buf, 0, msg)

	return chainhash.DoubleHashB(buf.Bytes())
}

// SignMessage produces a 65-byte compact signature over msg with key.
func SignMessage(key *btcec.PrivateKey, msg string) ([]byte, error) {
	return ecdsa.SignCompact(key, MessageHash(msg), true), nil
}

// VerifyMessage checks that sig over msg was made by the key hashing to
// pubKeyHash.
func VerifyMessage(pubKeyHash []byte, msg string, sig []byte) (bool, error) {
	recovered, compressed, err := ecdsa.RecoverCompact(
		sig, MessageHash(msg),
	)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidMessageSignature,
			err)
	}

	serialized := recovered.SerializeUncompressed()
	if compressed {
		serialized = recovered.SerializeCompressed()
	}

	return bytes.Equal(btcutil.Hash160(serialized), pubKeyHash), nil
}

// SigningAddress returns the bitcoin mainnet P2PKH address of the root
// public key of xpub. Key signatures are always made against this address
// regardless of the coin the wallet lives on.
func SigningAddress(xpub string) (*btcutil.AddressPubKeyHash, error) {
	k, err := ParseExtendedKey(xpub)
	if err != nil {
		return nil, err
	}

	pub, err := k.ECPubKey()
	if err != nil {
		return nil, err
	}

	return btcutil.NewAddressPubKeyHash(
		btcutil.Hash160(pub.SerializeCompressed()), &chaincfg.MainNetParams,
	)
}

// VerifyKeySignature checks that signatureHex is the user key's message
// signature over the extended public key pubToVerify.
func VerifyKeySignature(userPub, pubToVerify,
	signatureHex string) (bool, error) {

	addr, err := SigningAddress(userPub)
	if err != nil {
		return false, fmt.Errorf("unable to derive signing address: %w",
			err)
	}

	sig, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidMessageSignature,
			err)
	}

	ok, err := VerifyMessage(addr.ScriptAddress(), pubToVerify, sig)
	if err != nil {
		return false, err
	}

	log.Debugf("Key signature of %s by %s valid=%v", pubToVerify,
		addr.EncodeAddress(), ok)

	return ok, nil
}

// SignKey signs pubToSign with the root private key of userPrv, returning
// the hex signature stored in the wallet's key signatures.
func SignKey(userPrv, pubToSign string) (string, error) {
	k, err := ParseExtendedKey(userPrv)
	if err != nil {
		return "", err
	}

	priv, err := k.ECPrivKey()
	if err != nil {
		return "", err
	}

	sig, err := SignMessage(priv, pubToSign)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(sig), nil
}
