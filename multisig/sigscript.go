// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package multisig

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// InputClass is the classification of an input's unlocking data.
type InputClass string

const (
	// ClassPubKeyHash is a plain P2PKH spend.
	ClassPubKeyHash InputClass = "pubkeyhash"

	// ClassScriptHash is a P2SH multisig spend.
	ClassScriptHash InputClass = "scripthash"

	// ClassWitnessScriptHash is a P2WSH or P2SH-P2WSH multisig spend.
	ClassWitnessScriptHash InputClass = "witnessscripthash"

	// ClassNonStandard is anything else, including unsigned inputs.
	ClassNonStandard InputClass = "nonstandard"
)

// opSmallIntBase is subtracted from OP_1..OP_16 to get the integer.
const opSmallIntBase = txscript.OP_1 - 1

// ParsedSignatureScript is the decomposed unlocking data of one input.
type ParsedSignatureScript struct {
	// IsSegwitInput is true if the input carries witness data.
	IsSegwitInput bool

	// Class is the input classification.
	Class InputClass

	// Signatures holds every unlocking element before the committed
	// script. For multisig inputs this includes the leading OP_0 and
	// empty placeholders.
	Signatures [][]byte

	// PublicKeys are the keys embedded in the committed script.
	PublicKeys [][]byte

	// PubScript is the script each signature commits to.
	PubScript []byte

	// M and N are the multisig threshold and key count.
	M int
	N int
}

// NonEmptySignatures returns the signatures that are not placeholders.
func (p *ParsedSignatureScript) NonEmptySignatures() [][]byte {
	sigs := make([][]byte, 0, len(p.Signatures))
	for _, s := range p.Signatures {
		if len(s) > 0 {
			sigs = append(sigs, s)
		}
	}

	return sigs
}

// HasSignatures reports whether the input could be parsed into signatures.
func (p *ParsedSignatureScript) HasSignatures() bool {
	return p.Class != ClassNonStandard
}

// ParseSignatureScript decomposes the unlocking data of input idx. Inputs
// that are neither P2PKH nor multisig are returned as ClassNonStandard with
// no signatures; a multisig script that cannot be decoded is an error.
func ParseSignatureScript(tx *wire.MsgTx, idx int) (*ParsedSignatureScript,
	error) {

	if idx < 0 || idx >= len(tx.TxIn) {
		return nil, fmt.Errorf("%w: %d", ErrInputIndex, idx)
	}

	in := tx.TxIn[idx]
	parsed := &ParsedSignatureScript{
		IsSegwitInput: len(in.Witness) > 0,
		Class:         ClassNonStandard,
	}

	var elems [][]byte
	if parsed.IsSegwitInput {
		elems = in.Witness
	} else {
		if !txscript.IsPushOnlyScript(in.SignatureScript) {
			return parsed, nil
		}

		var err error
		elems, err = txscript.PushedData(in.SignatureScript)
		if err != nil || len(elems) == 0 {
			return parsed, nil
		}
	}

	last := elems[len(elems)-1]
	switch {
	case txscript.GetScriptClass(last) == txscript.MultiSigTy:
		parsed.Class = ClassScriptHash
		if parsed.IsSegwitInput {
			parsed.Class = ClassWitnessScriptHash
		}

		if err := parseMultisig(parsed, elems); err != nil {
			return nil, err
		}

	case !parsed.IsSegwitInput && len(elems) == 2 && isPubKey(last):
		parsed.Class = ClassPubKeyHash
		parsed.Signatures = [][]byte{elems[0]}
		parsed.PublicKeys = [][]byte{last}

		script, err := payToPubKeyHashScript(btcutil.Hash160(last))
		if err != nil {
			return nil, err
		}
		parsed.PubScript = script
	}

	return parsed, nil
}

// payToPubKeyHashScript builds a P2PKH script without needing network
// parameters.
func payToPubKeyHashScript(pkHash []byte) ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(pkHash).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
}

// isPubKey reports whether b has the length and prefix of a serialized
// secp256k1 public key.
func isPubKey(b []byte) bool {
	switch len(b) {
	case secp256k1.PubKeyBytesLenCompressed:
		return b[0] == secp256k1.PubKeyFormatCompressedEven ||
			b[0] == secp256k1.PubKeyFormatCompressedOdd

	case secp256k1.PubKeyBytesLenUncompressed:
		return b[0] == secp256k1.PubKeyFormatUncompressed

	default:
		return false
	}
}

// MultisigScript is a decoded `OP_m <keys> OP_n OP_CHECKMULTISIG` script.
type MultisigScript struct {
	M          int
	N          int
	PublicKeys [][]byte
}

// KeyIndex returns the position of the serialized key pub, or -1.
func (s *MultisigScript) KeyIndex(pub []byte) int {
	for i, k := range s.PublicKeys {
		if bytes.Equal(k, pub) {
			return i
		}
	}

	return -1
}

// ParseMultisigScript decodes a bare multisig script.
func ParseMultisigScript(script []byte) (*MultisigScript, error) {
	type token struct {
		op   byte
		data []byte
	}

	var tokens []token
	tokenizer := txscript.MakeScriptTokenizer(0, script)
	for tokenizer.Next() {
		tokens = append(tokens, token{
			op:   tokenizer.Opcode(),
			data: tokenizer.Data(),
		})
	}
	if err := tokenizer.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMultisigScript, err)
	}

	if len(tokens) < 4 {
		return nil, fmt.Errorf("%w: %d opcodes",
			ErrMalformedMultisigScript, len(tokens))
	}

	ms := &MultisigScript{
		M: int(tokens[0].op) - int(opSmallIntBase),
		N: int(tokens[len(tokens)-2].op) - int(opSmallIntBase),
	}

	for _, tok := range tokens[1 : len(tokens)-2] {
		if !isPubKey(tok.data) {
			return nil, fmt.Errorf("%w: invalid public key push",
				ErrMalformedMultisigScript)
		}
		ms.PublicKeys = append(ms.PublicKeys, tok.data)
	}

	if len(ms.PublicKeys) != ms.N {
		return nil, fmt.Errorf("%w: %d keys but n=%d",
			ErrMalformedMultisigScript, len(ms.PublicKeys), ms.N)
	}

	if ms.M <= 0 || ms.M > ms.N {
		return nil, fmt.Errorf("%w: %d-of-%d",
			ErrMalformedMultisigScript, ms.M, ms.N)
	}

	if tokens[len(tokens)-1].op != txscript.OP_CHECKMULTISIG {
		return nil, fmt.Errorf("%w: missing OP_CHECKMULTISIG",
			ErrMalformedMultisigScript)
	}

	return ms, nil
}

// parseMultisig decodes the committed script in the last element and checks
// the number of signature slots against it.
func parseMultisig(parsed *ParsedSignatureScript, elems [][]byte) error {
	script := elems[len(elems)-1]
	parsed.PubScript = script
	parsed.Signatures = elems[:len(elems)-1]

	ms, err := ParseMultisigScript(script)
	if err != nil {
		return err
	}
	parsed.M = ms.M
	parsed.N = ms.N
	parsed.PublicKeys = ms.PublicKeys

	// The extra slot is the OP_0 consumed by the CHECKMULTISIG off-by-one.
	sigCount := len(parsed.Signatures)
	if sigCount != parsed.M+1 && sigCount != parsed.N+1 {
		return fmt.Errorf("%w: %d signature slots for %d-of-%d",
			ErrMalformedMultisigScript, sigCount, parsed.M, parsed.N)
	}

	return nil
}
