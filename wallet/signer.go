// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wallet signs multisig wallet transactions and verifies platform
// built transactions against the caller's intent before they are signed.
package wallet

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/bitgo/utxocore/chaincode"
	"github.com/bitgo/utxocore/keychain"
	"github.com/bitgo/utxocore/multisig"
	"github.com/bitgo/utxocore/netparams"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txauthor"
	"github.com/lightningnetwork/lnd/fn/v2"
)

var (
	// errNotCosigner is recorded for an input whose script does not
	// contain the signing key.
	errNotCosigner = errors.New("private key is not a signer of the input")

	// errInvalidSignature is recorded for an input whose signatures do not
	// verify after signing.
	errInvalidSignature = errors.New("invalid signature")
)

// SignParams configures SignTransaction.
type SignParams struct {
	// Prebuild is the transaction to sign and its unspents.
	Prebuild Prebuild

	// Prv is the base58 extended private key of the signer.
	Prv string

	// IsLastSignature builds the final form of the transaction, dropping
	// signature placeholders.
	IsLastSignature bool

	// Pubs optionally holds the wallet's extended public keys. When set,
	// each unspent's scripts are re-derived from them and must match.
	Pubs []string

	// DerivationPrefix is the path of the address keys below Prv. Empty
	// means keychain.DefaultDerivationPrefix.
	DerivationPrefix string
}

// SignResult is a signed transaction.
type SignResult struct {
	TxHex string `json:"txHex"`
}

// DecodeTx parses a hex encoded transaction in legacy or witness form.
func DecodeTx(txHex string) (*wire.MsgTx, error) {
	raw, err := hex.DecodeString(txHex)
	if err != nil || len(raw) == 0 {
		return nil, fmt.Errorf("%w: must be a valid hex string",
			ErrInvalidTxHex)
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTxHex, err)
	}

	return tx, nil
}

// EncodeTx serializes tx to hex.
func EncodeTx(tx *wire.MsgTx) (string, error) {
	var buf bytes.Buffer
	buf.Grow(tx.SerializeSize())
	if err := tx.Serialize(&buf); err != nil {
		return "", err
	}

	return hex.EncodeToString(buf.Bytes()), nil
}

// inputContext is the spending condition of one input.
type inputContext struct {
	unspent  Unspent
	addrType chaincode.AddressType
	redeem   []byte
	witness  []byte
	script   *multisig.MultisigScript
}

// signScript is the script signatures commit to.
func (c *inputContext) signScript() []byte {
	if c.addrType.IsSegwit() {
		return c.witness
	}

	return c.redeem
}

// pkScript is the locking script of the spent output.
func (c *inputContext) pkScript(params *chaincfg.Params) ([]byte, error) {
	var (
		addr btcutil.Address
		err  error
	)
	switch c.addrType {
	case chaincode.P2wsh:
		h := sha256.Sum256(c.witness)
		addr, err = btcutil.NewAddressWitnessScriptHash(h[:], params)

	default:
		addr, err = btcutil.NewAddressScriptHash(c.redeem, params)
	}
	if err != nil {
		return nil, err
	}

	return txscript.PayToAddrScript(addr)
}

// newInputContext resolves the spending condition of unspent, checking it
// against pubs when given.
func newInputContext(net netparams.Network, u Unspent,
	pubs []string) (*inputContext, error) {

	addrType, err := u.AddressType()
	if err != nil {
		return nil, err
	}

	redeem, witness, err := u.scripts()
	if err != nil {
		return nil, err
	}

	c := &inputContext{
		unspent:  u,
		addrType: addrType,
		redeem:   redeem,
		witness:  witness,
	}

	if len(pubs) > 0 {
		d, err := multisig.DeriveAddress(net, pubs, multisig.DeriveParams{
			Chain:       chaincode.Code(u.Chain),
			Index:       u.Index,
			AddressType: fn.Some(addrType),
		})
		if err != nil {
			return nil, err
		}

		if !bytes.Equal(d.RedeemScript, redeem) ||
			!bytes.Equal(d.WitnessScript, witness) {

			return nil, ErrScriptMismatch
		}
	}

	c.script, err = multisig.ParseMultisigScript(c.signScript())
	if err != nil {
		return nil, err
	}

	return c, nil
}

// existingSignatures maps the signatures already present on input idx to the
// position of the key they verify against.
func existingSignatures(net netparams.Network, tx *wire.MsgTx, idx int,
	c *inputContext, sigHashes *txscript.TxSigHashes) map[int][]byte {

	sigs := make(map[int][]byte)

	parsed, err := multisig.ParseSignatureScript(tx, idx)
	if err != nil || parsed.Class == multisig.ClassNonStandard ||
		parsed.Class == multisig.ClassPubKeyHash {

		return sigs
	}

	for _, raw := range parsed.NonEmptySignatures() {
		sig, err := ecdsa.ParseDERSignature(raw[:len(raw)-1])
		if err != nil {
			continue
		}
		hashType := txscript.SigHashType(raw[len(raw)-1])

		hash, err := multisig.SigHash(
			net, tx, sigHashes, idx, c.signScript(), hashType,
			c.addrType.IsSegwit(), c.unspent.Value,
		)
		if err != nil {
			continue
		}

		for pos, rawKey := range c.script.PublicKeys {
			if _, ok := sigs[pos]; ok {
				continue
			}

			pub, err := btcec.ParsePubKey(rawKey)
			if err != nil {
				continue
			}

			if sig.Verify(hash, pub) {
				sigs[pos] = raw
				break
			}
		}
	}

	return sigs
}

// applySignatures writes the unlocking data of input idx. Incomplete builds
// keep one placeholder per key so later signers know the slot order.
func applySignatures(tx *wire.MsgTx, idx int, c *inputContext,
	sigs map[int][]byte, final bool) error {

	// The leading empty element is consumed by the CHECKMULTISIG
	// off-by-one.
	elems := [][]byte{nil}
	for pos := range c.script.PublicKeys {
		sig, ok := sigs[pos]
		switch {
		case ok && final && len(elems) > c.script.M:
			continue

		case ok:
			elems = append(elems, sig)

		case !final:
			elems = append(elems, nil)
		}
	}

	in := tx.TxIn[idx]
	if c.addrType.IsSegwit() {
		witness := make(wire.TxWitness, 0, len(elems)+1)
		for _, e := range elems {
			if e == nil {
				e = []byte{}
			}
			witness = append(witness, e)
		}
		in.Witness = append(witness, c.witness)

		in.SignatureScript = nil
		if c.addrType == chaincode.P2shP2wsh {
			script, err := txscript.NewScriptBuilder().
				AddData(c.redeem).Script()
			if err != nil {
				return err
			}
			in.SignatureScript = script
		}

		return nil
	}

	b := txscript.NewScriptBuilder()
	for _, e := range elems {
		if len(e) == 0 {
			b.AddOp(txscript.OP_0)
			continue
		}
		b.AddData(e)
	}
	script, err := b.AddData(c.redeem).Script()
	if err != nil {
		return err
	}
	in.SignatureScript = script
	in.Witness = nil

	return nil
}

// SignTransaction adds the signature of p.Prv to every input of the prebuild
// and re-verifies the result. Inputs spending replay protection addresses
// are left for the platform to sign. If any input fails, the call returns an
// *InputSigningError naming every failed input and no transaction.
func SignTransaction(net netparams.Network, p SignParams) (*SignResult,
	error) {

	if p.Prv == "" {
		return nil, ErrMissingPrv
	}

	tx, err := DecodeTx(p.Prebuild.TxHex)
	if err != nil {
		return nil, err
	}

	unspents := p.Prebuild.TxInfo.Unspents
	if len(tx.TxIn) != len(unspents) {
		return nil, ErrUnspentCountMismatch
	}

	root, err := keychain.ParseExtendedKey(p.Prv)
	if err != nil {
		return nil, err
	}
	if !root.IsPrivate() {
		return nil, keychain.ErrNotPrivate
	}

	var (
		issues    []SignatureIssue
		contexts  = make([]*inputContext, len(tx.TxIn))
		sigHashes = multisig.NewSigHashes(tx)
		hashType  = net.DefaultSigHash()
	)

	fail := func(idx int, err error) {
		log.Debugf("Input %d of %d failed: %v", idx+1, len(tx.TxIn), err)

		issues = append(issues, SignatureIssue{
			InputIndex: idx,
			Unspent:    unspents[idx],
			Err:        err,
		})
	}

	for idx, u := range unspents {
		if net.IsReplayProtectionAddress(u.Address) {
			log.Debugf("Skipping input %d of %d (unspent from replay "+
				"protection address which is platform signed only)",
				idx+1, len(tx.TxIn))

			continue
		}

		c, err := newInputContext(net, u, p.Pubs)
		if err != nil {
			fail(idx, err)
			continue
		}

		err = signInput(
			net, tx, idx, c, root, p.DerivationPrefix, sigHashes,
			hashType, p.IsLastSignature,
		)
		if err != nil {
			fail(idx, err)
			continue
		}
		contexts[idx] = c
	}

	for idx, c := range contexts {
		if c == nil {
			continue
		}

		ok := multisig.VerifySignature(
			net, tx, idx, fn.Some(c.unspent.Value),
			multisig.VerifyFilter{},
		)
		if !ok {
			fail(idx, errInvalidSignature)
			contexts[idx] = nil
		}
	}

	if p.IsLastSignature && !net.UsesForkID() && len(issues) == 0 {
		for _, issue := range validateFinalTx(net, tx, contexts) {
			fail(issue.InputIndex, issue.Err)
		}
	}

	if len(issues) > 0 {
		return nil, &InputSigningError{Issues: issues}
	}

	txHex, err := EncodeTx(tx)
	if err != nil {
		return nil, err
	}

	return &SignResult{TxHex: txHex}, nil
}

// signInput signs input idx with the address key of its unspent and rewrites
// the unlocking data.
func signInput(net netparams.Network, tx *wire.MsgTx, idx int,
	c *inputContext, root *hdkeychain.ExtendedKey, prefix string,
	sigHashes *txscript.TxSigHashes, hashType txscript.SigHashType,
	final bool) error {

	priv, err := keychain.DerivePrivKey(
		root, prefix, c.unspent.Chain, c.unspent.Index,
	)
	if err != nil {
		return err
	}

	pos := c.script.KeyIndex(priv.PubKey().SerializeCompressed())
	if pos < 0 {
		return errNotCosigner
	}

	sigs := existingSignatures(net, tx, idx, c, sigHashes)

	hash, err := multisig.SigHash(
		net, tx, sigHashes, idx, c.signScript(), hashType,
		c.addrType.IsSegwit(), c.unspent.Value,
	)
	if err != nil {
		return err
	}

	sig := ecdsa.Sign(priv, hash).Serialize()
	sigs[pos] = append(sig, byte(hashType))

	log.Tracef("Signed input %d (%s) with key %d of %d", idx,
		c.addrType, pos, len(c.script.PublicKeys))

	return applySignatures(tx, idx, c, sigs, final)
}

// validateFinalTx runs the script engine over every signed input of a fully
// signed transaction.
func validateFinalTx(net netparams.Network, tx *wire.MsgTx,
	contexts []*inputContext) []SignatureIssue {

	var issues []SignatureIssue

	prevScripts := make([][]byte, len(tx.TxIn))
	inputValues := make([]btcutil.Amount, len(tx.TxIn))
	for idx, c := range contexts {
		if c == nil {
			continue
		}

		script, err := c.pkScript(net.Params())
		if err != nil {
			issues = append(issues, SignatureIssue{
				InputIndex: idx, Unspent: c.unspent, Err: err,
			})
			continue
		}
		prevScripts[idx] = script
		inputValues[idx] = btcutil.Amount(c.unspent.Value)
	}
	if len(issues) > 0 {
		return issues
	}

	inputFetcher, err := txauthor.TXPrevOutFetcher(
		tx, prevScripts, inputValues,
	)
	if err != nil {
		return []SignatureIssue{{InputIndex: 0, Err: err}}
	}

	hashCache := txscript.NewTxSigHashes(tx, inputFetcher)
	for idx, c := range contexts {
		if c == nil {
			continue
		}

		vm, err := txscript.NewEngine(
			prevScripts[idx], tx, idx, txscript.StandardVerifyFlags,
			nil, hashCache, int64(inputValues[idx]), inputFetcher,
		)
		if err != nil {
			err = fmt.Errorf("cannot create script engine: %w", err)
		} else if err = vm.Execute(); err != nil {
			err = fmt.Errorf("cannot validate transaction: %w", err)
		}
		if err != nil {
			issues = append(issues, SignatureIssue{
				InputIndex: idx, Unspent: c.unspent, Err: err,
			})
		}
	}

	return issues
}
