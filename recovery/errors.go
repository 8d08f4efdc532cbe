package recovery

import (
	"errors"
	"fmt"
)

var (
	// ErrNoInputToRecover is returned when the scan found no funds.
	ErrNoInputToRecover = errors.New("No input to recover")

	// ErrMissingUserKey is returned when no user key is given.
	ErrMissingUserKey = errors.New("missing userKey")

	// ErrMissingBackupKey is returned when no backup key is given.
	ErrMissingBackupKey = errors.New("missing backupKey")

	// ErrInvalidBitGoKey is returned when the custodian key is not an
	// extended public key.
	ErrInvalidBitGoKey = errors.New("invalid bitgoKey")

	// ErrInvalidDestination is returned for a recovery destination that
	// does not decode on the network.
	ErrInvalidDestination = errors.New("invalid recoveryDestination")

	// ErrInvalidScan is returned for a negative scan depth.
	ErrInvalidScan = errors.New("scan must be a positive integer")

	// ErrMissingKRSProvider is returned for a KRS recovery without a
	// provider name.
	ErrMissingKRSProvider = errors.New("missing required param " +
		"krsProvider")

	// ErrUnknownKRSProvider is returned for an unregistered provider.
	ErrUnknownKRSProvider = errors.New("unknown key recovery service " +
		"provider")

	// ErrKRSUnsupportedCoin is returned when the provider does not serve
	// the coin.
	ErrKRSUnsupportedCoin = errors.New("specified key recovery service " +
		"does not support recoveries for this coin")

	// ErrKRSFeeAddress is returned when a provider charging a fee has no
	// fee address for the coin.
	ErrKRSFeeAddress = errors.New("this KRS provider has not configured " +
		"their fee structure yet - recovery cannot be completed")

	// ErrFeeStructure is returned for a provider fee type that cannot be
	// computed.
	ErrFeeStructure = errors.New("fee structure not implemented")

	// ErrTxIDMismatch is returned when the explorer decodes a signed
	// recovery to a different transaction id.
	ErrTxIDMismatch = errors.New("inconsistent recovery transaction id")

	// ErrVerifyUnavailable is wrapped by TxVerifier implementations that
	// cannot decode a transaction right now or at all.
	ErrVerifyUnavailable = errors.New("transaction verification " +
		"unavailable")

	// ErrDustOutput is returned when a recovery output would be dust.
	ErrDustOutput = errors.New("recovery output is dust")

	// ErrUnsupportedCrossChain is returned for a coin pair that cannot be
	// recovered across.
	ErrUnsupportedCrossChain = errors.New("unsupported cross chain " +
		"recovery")

	// ErrNoWalletOutputs is returned when no output of the faulty
	// transaction belongs to the recovery wallet.
	ErrNoWalletOutputs = errors.New("could not find tx outputs belonging " +
		"to the specified wallet")

	// ErrNoRecoveryUnspents is returned when none of the wallet outputs
	// is still unspent.
	ErrNoRecoveryUnspents = errors.New("No recovery unspents found.")

	// ErrSegwitUnspent is returned when a segwit unspent must be spent on
	// a chain without segwit.
	ErrSegwitUnspent = errors.New("unspent is on a segwit address which " +
		"the source chain cannot spend")

	// ErrCannotPayFees is returned when a cross chain recovery cannot pay
	// its own fee.
	ErrCannotPayFees = errors.New("this recovery transaction cannot pay " +
		"its own fees")

	// ErrMissingSigningKey is returned for a signed cross chain recovery
	// without key material.
	ErrMissingSigningKey = errors.New("must provide prv or passphrase")
)

// InsufficientFundsError is returned when the network and KRS fees consume
// the whole recoverable balance.
type InsufficientFundsError struct {
	Balance    int64
	NetworkFee int64
	KRSFee     int64
}

// Recoverable is the balance left after fees.
func (e *InsufficientFundsError) Recoverable() int64 {
	return e.Balance - e.NetworkFee - e.KRSFee
}

// Error implements the error interface.
func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("this wallet's balance is too low to pay the fees "+
		"specified by the KRS provider. Existing balance on wallet: %d. "+
		"Estimated network fee for the recovery transaction: %d, KRS "+
		"fee to pay: %d. After deducting fees, your total recoverable "+
		"balance is %d", e.Balance, e.NetworkFee, e.KRSFee,
		e.Recoverable())
}
