// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrUnspentCountMismatch is returned when a prebuild carries a
	// different number of unspents than its transaction has inputs.
	ErrUnspentCountMismatch = errors.New("length of unspents array " +
		"should equal to the number of transaction inputs")

	// ErrInvalidTxHex is returned for a transaction that is not valid hex
	// or does not deserialize.
	ErrInvalidTxHex = errors.New("invalid transaction hex")

	// ErrInvalidOutPoint is returned for a malformed `txid:vout`.
	ErrInvalidOutPoint = errors.New("invalid outpoint")

	// ErrNoScripts is returned for an unspent without redeem or witness
	// script.
	ErrNoScripts = errors.New("unspent has neither redeem nor witness " +
		"script")

	// ErrScriptMismatch is returned when an unspent's scripts differ from
	// the ones derived from the wallet keys.
	ErrScriptMismatch = errors.New("unspent scripts do not match wallet " +
		"keys")

	// ErrMissingPrv is returned when no private key is given for signing.
	ErrMissingPrv = errors.New("missing prv parameter to sign transaction")

	// ErrUnsupportedOutputScript is returned when a transaction output
	// does not pay exactly one address, such as OP_RETURN data.
	ErrUnsupportedOutputScript = errors.New("output script has no " +
		"address")

	// ErrWalletAddressNotFound is returned by a Platform for an address
	// that does not belong to the wallet.
	ErrWalletAddressNotFound = errors.New("wallet address not found")

	// ErrNetworkingDisabled is returned when a lookup would need the
	// network but the caller disabled it.
	ErrNetworkingDisabled = errors.New("networking is disabled")

	// ErrMissingKeychains is returned when keychains cannot be obtained.
	ErrMissingKeychains = errors.New("keychains are required, but could " +
		"not be fetched")

	// ErrUserKeyUnavailable is returned when the user private key cannot
	// be obtained for verification.
	ErrUserKeyUnavailable = errors.New("user private key unavailable for " +
		"verification")

	// ErrUserKeyOnlyPublic is returned when the user "private" key is an
	// extended public key.
	ErrUserKeyOnlyPublic = errors.New("user private key is only public")

	// ErrUserKeyMismatch is returned when the user private key does not
	// belong to the claimed public key.
	ErrUserKeyMismatch = errors.New("user private key does not match " +
		"public key")

	// ErrKeySignaturesInvalid is returned when the backup or custodian
	// key signature does not verify.
	ErrKeySignaturesInvalid = errors.New("secondary public key " +
		"signatures invalid")

	// ErrUserKeyUnverified is returned when custom change must be checked
	// but the user key could not be verified.
	ErrUserKeyUnverified = errors.New("transaction requires verification " +
		"of user public key, but it was unable to be verified")

	// ErrCustomChangeSignatures is returned when the custom change key
	// signatures do not verify.
	ErrCustomChangeSignatures = errors.New("transaction requires " +
		"verification of custom change key signatures, but they were " +
		"unable to be verified")

	// ErrMissingOutputs is returned when a recipient has no matching
	// output.
	ErrMissingOutputs = errors.New("expected outputs missing in " +
		"transaction prebuild")

	// ErrUnintendedRecipients is returned when implicit external outputs
	// exceed the pay-as-you-go ceiling.
	ErrUnintendedRecipients = errors.New("prebuild attempts to spend to " +
		"unintended external recipients")

	// ErrParentTxMismatch is returned when an embedded parent transaction
	// does not hash to the id it is keyed by.
	ErrParentTxMismatch = errors.New("input transaction hex does not " +
		"match id")

	// ErrNegativeFee is returned when outputs exceed inputs.
	ErrNegativeFee = errors.New("outputs exceed the input amount")
)

// InputSigningErrorCode is the code carried by InputSigningError.
const InputSigningErrorCode = "input_signature_failure"

// SignatureIssue records why one input could not be signed or verified.
type SignatureIssue struct {
	// InputIndex is the index of the failed input.
	InputIndex int

	// Unspent is the unspent the input spends.
	Unspent Unspent

	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (s *SignatureIssue) Error() string {
	return fmt.Sprintf("input %d (%s): %v", s.InputIndex, s.Unspent.ID,
		s.Err)
}

// Unwrap returns the underlying failure.
func (s *SignatureIssue) Unwrap() error {
	return s.Err
}

// InputSigningError aggregates every failed input of one signing call.
type InputSigningError struct {
	Issues []SignatureIssue
}

// Code returns InputSigningErrorCode.
func (e *InputSigningError) Code() string {
	return InputSigningErrorCode
}

// Indices returns the failed input indices in order.
func (e *InputSigningError) Indices() []int {
	idx := make([]int, 0, len(e.Issues))
	for _, issue := range e.Issues {
		idx = append(idx, issue.InputIndex)
	}

	return idx
}

// Error implements the error interface.
func (e *InputSigningError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, i := range e.Indices() {
		parts = append(parts, strconv.Itoa(i))
	}

	return "Failed to sign inputs at indices " + strings.Join(parts, ", ")
}

// Unwrap exposes every issue to errors.Is and errors.As.
func (e *InputSigningError) Unwrap() []error {
	errs := make([]error, 0, len(e.Issues))
	for i := range e.Issues {
		errs = append(errs, &e.Issues[i])
	}

	return errs
}

// NegativeFeeError carries the amounts of a transaction whose outputs exceed
// its inputs.
type NegativeFeeError struct {
	InputAmount  int64
	OutputAmount int64
}

// Error implements the error interface.
func (e *NegativeFeeError) Error() string {
	return fmt.Sprintf("attempting to spend %d satoshis, which exceeds the "+
		"input amount (%d satoshis) by %d", e.OutputAmount,
		e.InputAmount, e.OutputAmount-e.InputAmount)
}

// Is matches ErrNegativeFee.
func (e *NegativeFeeError) Is(target error) bool {
	return target == ErrNegativeFee
}
