package multisig

import (
	"errors"
	"fmt"

	"github.com/bitgo/utxocore/chaincode"
)

var (
	// ErrUnsupportedAddressType is returned when the network cannot hold
	// multisig addresses of the requested type.
	ErrUnsupportedAddressType = errors.New("unsupported address type")

	// ErrInvalidThreshold is returned when the signature threshold is not
	// in 1..len(keys).
	ErrInvalidThreshold = errors.New("invalid signature threshold")

	// ErrNoKeys is returned when no public keys are supplied.
	ErrNoKeys = errors.New("at least one public key is required")

	// ErrInvalidAddress is returned when an address cannot be decoded for
	// the network.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrMalformedMultisigScript is returned when an input commits to a
	// script that does not decode as m-of-n CHECKMULTISIG.
	ErrMalformedMultisigScript = errors.New("malformed multisig script")

	// ErrInputIndex is returned for an input index outside the
	// transaction.
	ErrInputIndex = errors.New("input index out of range")
)

// AddressTypeChainMismatchError is returned when an explicit address type
// disagrees with the type encoded by the chain code.
type AddressTypeChainMismatchError struct {
	AddressType chaincode.AddressType
	Chain       chaincode.Code
}

// Error implements the error interface.
func (e *AddressTypeChainMismatchError) Error() string {
	return fmt.Sprintf("address type %s does not correspond to chain %d",
		e.AddressType, uint32(e.Chain))
}

// UnexpectedAddressError is returned when re-deriving an address from the
// wallet keys produces a different address.
type UnexpectedAddressError struct {
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *UnexpectedAddressError) Error() string {
	return fmt.Sprintf("address validation failure: expected %s but got %s",
		e.Expected, e.Actual)
}

// InvalidAddressDerivationPropertyError is returned when an address cannot
// be checked because its chain or index is missing or invalid.
type InvalidAddressDerivationPropertyError struct {
	Address string
	Reason  string
}

// Error implements the error interface.
func (e *InvalidAddressDerivationPropertyError) Error() string {
	return fmt.Sprintf("address validation failure for %s: %s", e.Address,
		e.Reason)
}
