// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package multisig

import (
	"bytes"
	"fmt"

	"github.com/bitgo/utxocore/netparams"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// VerifyFilter narrows which signatures and keys VerifySignature checks.
type VerifyFilter struct {
	// SignatureIndex selects one signature, counted over non-empty
	// signatures only.
	SignatureIndex fn.Option[int]

	// PublicKey selects one serialized public key. Verification succeeds
	// as soon as any signature verifies against it.
	PublicKey fn.Option[[]byte]
}

// NewSigHashes returns the BIP143 midstate cache of tx. Only the v0 digest
// is used so the previous outputs are not needed.
func NewSigHashes(tx *wire.MsgTx) *txscript.TxSigHashes {
	return txscript.NewTxSigHashes(
		tx, txscript.NewCannedPrevOutputFetcher(nil, 0),
	)
}

// SigHash computes the digest of input idx for script and hashType. Segwit
// inputs and fork-id networks use the BIP143 digest, which commits to the
// spent amount.
func SigHash(net netparams.Network, tx *wire.MsgTx,
	sigHashes *txscript.TxSigHashes, idx int, script []byte,
	hashType txscript.SigHashType, segwit bool, amount int64) ([]byte,
	error) {

	if segwit || net.UsesForkID() {
		if sigHashes == nil {
			sigHashes = NewSigHashes(tx)
		}

		return txscript.CalcWitnessSigHash(
			script, sigHashes, hashType, tx, idx, amount,
		)
	}

	return txscript.CalcSignatureHash(script, hashType, tx, idx)
}

// decodeSignature splits the trailing hash type off a DER signature.
func decodeSignature(sig []byte) (*ecdsa.Signature, txscript.SigHashType,
	error) {

	if len(sig) < 2 {
		return nil, 0, fmt.Errorf("signature too short")
	}

	hashType := txscript.SigHashType(sig[len(sig)-1])
	parsed, err := ecdsa.ParseDERSignature(sig[:len(sig)-1])
	if err != nil {
		return nil, 0, err
	}

	return parsed, hashType, nil
}

// VerifySignature checks the signatures of input idx. amount is required
// for segwit inputs and on fork-id networks. Every failure, including an
// unparseable input, yields false.
//
// With no filter every non-empty signature must match a distinct public
// key. With a signature index only that signature is checked. With a public
// key the result is true as soon as one signature verifies against it.
func VerifySignature(net netparams.Network, tx *wire.MsgTx, idx int,
	amount fn.Option[int64], filter VerifyFilter) bool {

	ok, err := verifySignature(net, tx, idx, amount, filter)
	if err != nil {
		log.Debugf("Signature verification of input %d failed: %v", idx,
			err)

		return false
	}

	return ok
}

func verifySignature(net netparams.Network, tx *wire.MsgTx, idx int,
	amount fn.Option[int64], filter VerifyFilter) (bool, error) {

	parsed, err := ParseSignatureScript(tx, idx)
	if err != nil {
		return false, err
	}

	if !parsed.HasSignatures() {
		return false, fmt.Errorf("input %d is %s", idx, parsed.Class)
	}

	needsAmount := parsed.IsSegwitInput || net.UsesForkID()
	if needsAmount && amount.IsNone() {
		return false, fmt.Errorf("input %d requires the spent amount", idx)
	}

	sigs := parsed.NonEmptySignatures()
	if sigIdx, ok := unwrap(filter.SignatureIndex); ok {
		if sigIdx < 0 || sigIdx >= len(sigs) {
			return false, fmt.Errorf("signature index %d out of range",
				sigIdx)
		}
		sigs = [][]byte{sigs[sigIdx]}
	}

	if len(sigs) == 0 {
		return false, fmt.Errorf("input %d has no signatures", idx)
	}

	onlyKey, byKey := unwrap(filter.PublicKey)

	sigHashes := NewSigHashes(tx)
	matched := make(map[int]struct{}, len(parsed.PublicKeys))
	allValid := true

	for _, rawSig := range sigs {
		sig, hashType, err := decodeSignature(rawSig)
		if err != nil {
			return false, err
		}

		hash, err := SigHash(
			net, tx, sigHashes, idx, parsed.PubScript, hashType,
			parsed.IsSegwitInput, amount.UnwrapOr(0),
		)
		if err != nil {
			return false, err
		}

		valid := false
		for keyIdx, rawKey := range parsed.PublicKeys {
			if _, ok := matched[keyIdx]; ok {
				continue
			}
			if byKey && !bytes.Equal(rawKey, onlyKey) {
				continue
			}

			pub, err := btcec.ParsePubKey(rawKey)
			if err != nil {
				return false, err
			}

			if sig.Verify(hash, pub) {
				valid = true
				matched[keyIdx] = struct{}{}

				break
			}
		}

		if byKey && valid {
			return true, nil
		}

		allValid = allValid && valid
	}

	return allValid, nil
}

// unwrap returns the value of an option and whether it was set.
func unwrap[T any](o fn.Option[T]) (T, bool) {
	var (
		v  T
		ok bool
	)
	o.WhenSome(func(x T) {
		v, ok = x, true
	})

	return v, ok
}

// CountValidSignatures returns how many non-empty signatures of input idx
// verify against a distinct wallet key.
func CountValidSignatures(net netparams.Network, tx *wire.MsgTx, idx int,
	amount fn.Option[int64]) int {

	parsed, err := ParseSignatureScript(tx, idx)
	if err != nil || !parsed.HasSignatures() {
		return 0
	}

	count := 0
	for i := range parsed.NonEmptySignatures() {
		if VerifySignature(net, tx, idx, amount, VerifyFilter{
			SignatureIndex: fn.Some(i),
		}) {
			count++
		}
	}

	return count
}
