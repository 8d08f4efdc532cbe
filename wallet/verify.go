// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"
	"fmt"

	"github.com/bitgo/utxocore/keychain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// PayGoLimitBps is the pay-as-you-go allowance in basis points of the
// explicit external spend.
const PayGoLimitBps = 150

// payGoLimit returns the allowance for the given option value.
func payGoLimit(allow bool, explicit int64) decimal.Decimal {
	if !allow {
		return decimal.Zero
	}

	return decimal.NewFromInt(explicit).
		Mul(decimal.NewFromInt(PayGoLimitBps)).
		Div(decimal.NewFromInt(10_000))
}

// VerifyTransaction checks that the prebuild does what the caller asked for
// and that the wallet keys are authentic. Any failure is fatal.
func (v *Verifier) VerifyTransaction(ctx context.Context,
	p VerifyParams) error {

	parsed, err := v.ParseTransaction(ctx, p)
	if err != nil {
		return err
	}

	disableNetworking := p.Verification.DisableNetworking
	keys := parsed.Keychains

	userVerified, err := v.verifyUserPublicKey(
		keys[keychain.UserIndex], p.TxParams.WalletPassphrase,
		disableNetworking,
	)
	if err != nil {
		return err
	}

	if !parsed.KeySignatures.IsEmpty() {
		userPub := keys[keychain.UserIndex].Pub
		backupOK := verifyKeySignature(
			userPub, keys[keychain.BackupIndex].Pub,
			parsed.KeySignatures.BackupPub,
		)
		bitgoOK := verifyKeySignature(
			userPub, keys[keychain.BitGoIndex].Pub,
			parsed.KeySignatures.BitGoPub,
		)
		if !backupOK || !bitgoOK {
			return ErrKeySignaturesInvalid
		}

		log.Debugf("Verified backup and custodian key signatures")
	} else if !disableNetworking {
		log.Warnf("Unsigned keys obtained online are being used for " +
			"address verification")
	}

	if parsed.NeedsCustomChangeKeySignatureVerification {
		if !userVerified {
			return ErrUserKeyUnverified
		}

		if err := verifyCustomChangeKeySignatures(
			parsed, keys[keychain.UserIndex].Pub,
		); err != nil {
			return err
		}

		log.Debugf("Verified user public key and custom change key " +
			"signatures")
	}

	if len(parsed.MissingOutputs) != 0 {
		return fmt.Errorf("%w: %d", ErrMissingOutputs,
			len(parsed.MissingOutputs))
	}

	limit := payGoLimit(
		p.Verification.AllowPaygoOutput.UnwrapOr(true),
		parsed.ExplicitExternalSpendAmount,
	)
	implicit := decimal.NewFromInt(parsed.ImplicitExternalSpendAmount)

	log.Debugf("Intended spend is %d, non-change amount is %v, paygo "+
		"limit is %v", parsed.ExplicitExternalSpendAmount, implicit,
		limit)

	if implicit.GreaterThan(limit) {
		return ErrUnintendedRecipients
	}

	tx, err := DecodeTx(p.Prebuild.TxHex)
	if err != nil {
		return err
	}

	inputAmount, err := v.inputAmount(ctx, tx, &p)
	if err != nil {
		return err
	}

	outputAmount := sumOutputs(parsed.Outputs)
	if inputAmount < outputAmount {
		return &NegativeFeeError{
			InputAmount:  inputAmount,
			OutputAmount: outputAmount,
		}
	}

	return nil
}

// verifyKeySignature reports whether sig is the user key's signature over
// pub. Malformed signatures are invalid.
func verifyKeySignature(userPub, pub, sig string) bool {
	if userPub == "" || pub == "" || sig == "" {
		return false
	}

	ok, err := keychain.VerifyKeySignature(userPub, pub, sig)
	if err != nil {
		log.Debugf("Error verifying key signature: %v", err)
		return false
	}

	return ok
}

// verifyUserPublicKey checks the user private key, decrypted if needed,
// belongs to the user public key. With networking disabled an unavailable
// private key is not an error but leaves the key unverified.
func (v *Verifier) verifyUserPublicKey(user keychain.Keychain,
	passphrase string, disableNetworking bool) (bool, error) {

	prv := user.Prv
	if prv == "" && passphrase != "" && user.EncryptedPrv != "" {
		var err error
		prv, err = keychain.DecryptPrv(user, v.cfg.Decrypter, passphrase)
		if err != nil {
			return false, err
		}
	}

	if prv == "" {
		if disableNetworking {
			log.Infof("%v", ErrUserKeyUnavailable)
			return false, nil
		}

		return false, ErrUserKeyUnavailable
	}

	k, err := keychain.ParseExtendedKey(prv)
	if err != nil {
		return false, err
	}
	if !k.IsPrivate() {
		return false, ErrUserKeyOnlyPublic
	}

	pub, err := keychain.Neuter(prv)
	if err != nil {
		return false, err
	}
	if pub != user.Pub {
		return false, ErrUserKeyMismatch
	}

	return true, nil
}

// verifyCustomChangeKeySignatures checks the user key signed every key of
// the custom change wallet. A missing signature is an error.
func verifyCustomChangeKeySignatures(parsed *ParsedTransaction,
	userPub string) error {

	if parsed.CustomChange.IsNone() {
		return fmt.Errorf("parsed transaction is missing required " +
			"custom change verification data")
	}
	custom := parsed.CustomChange.UnwrapOr(CustomChange{})

	names := [keychain.TripleSize]string{"user", "backup", "bitgo"}
	for i, k := range custom.Keys {
		if k.Pub == "" {
			return fmt.Errorf("missing required custom change %s "+
				"keychain public key", names[i])
		}
		if custom.Signatures[i] == "" {
			return fmt.Errorf("missing required custom change %s "+
				"keychain signature", names[i])
		}

		if !verifyKeySignature(userPub, k.Pub, custom.Signatures[i]) {
			log.Debugf("Failed to verify custom change %s key "+
				"signature", names[i])

			return ErrCustomChangeSignatures
		}
	}

	return nil
}

// inputAmount sums the values of the outputs spent by tx. Parent
// transactions embedded in the prebuild are used first; the rest are
// fetched once each.
func (v *Verifier) inputAmount(ctx context.Context, tx *wire.MsgTx,
	p *VerifyParams) (int64, error) {

	parents := make(map[chainhash.Hash]*wire.MsgTx)
	var toFetch []chainhash.Hash

	for _, in := range tx.TxIn {
		txid := in.PreviousOutPoint.Hash
		if _, ok := parents[txid]; ok {
			continue
		}

		txHex, ok := p.Prebuild.TxInfo.TxHexes[txid.String()]
		if !ok {
			parents[txid] = nil
			toFetch = append(toFetch, txid)

			continue
		}

		parent, err := DecodeTx(txHex)
		if err != nil {
			return 0, err
		}
		if parent.TxHash() != txid {
			return 0, fmt.Errorf("%w: %s", ErrParentTxMismatch, txid)
		}
		parents[txid] = parent
	}

	if len(toFetch) > 0 {
		if p.Verification.DisableNetworking || v.cfg.TxFetcher == nil {
			return 0, fmt.Errorf("attempting to retrieve transaction "+
				"details externally: %w", ErrNetworkingDisabled)
		}

		fetched := make([]*wire.MsgTx, len(toFetch))
		g, gctx := errgroup.WithContext(ctx)
		for i, txid := range toFetch {
			g.Go(func() error {
				parent, err := v.cfg.TxFetcher.FetchTx(gctx, txid)
				if err != nil {
					return fmt.Errorf("unable to fetch %s: %w",
						txid, err)
				}
				fetched[i] = parent

				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return 0, err
		}

		for i, txid := range toFetch {
			parents[txid] = fetched[i]
		}
	}

	var total int64
	for _, in := range tx.TxIn {
		op := in.PreviousOutPoint
		parent := parents[op.Hash]
		if int(op.Index) >= len(parent.TxOut) {
			return 0, fmt.Errorf("%w: %v", ErrInvalidOutPoint, op)
		}
		total += parent.TxOut[op.Index].Value
	}

	return total, nil
}
