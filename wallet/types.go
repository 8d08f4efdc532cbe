package wallet

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/bitgo/utxocore/chaincode"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Unspent is one wallet output together with the data needed to spend it.
type Unspent struct {
	// ID is the outpoint in `txid:vout` form.
	ID string `json:"id"`

	// Address is the wallet address holding the output.
	Address string `json:"address"`

	// Value is the output amount in base units.
	Value int64 `json:"value"`

	// Chain and Index locate the address keys.
	Chain uint32 `json:"chain"`
	Index uint32 `json:"index"`

	// RedeemScript and WitnessScript are hex encoded. P2wsh unspents have
	// no redeem script, p2sh unspents no witness script.
	RedeemScript  string `json:"redeemScript,omitempty"`
	WitnessScript string `json:"witnessScript,omitempty"`
}

// OutPoint parses the unspent ID.
func (u *Unspent) OutPoint() (*wire.OutPoint, error) {
	return ParseOutPoint(u.ID)
}

// AddressType infers the address type of the unspent from its scripts.
func (u *Unspent) AddressType() (chaincode.AddressType, error) {
	return inferAddressType(u.RedeemScript != "", u.WitnessScript != "")
}

// scripts decodes the redeem and witness scripts.
func (u *Unspent) scripts() ([]byte, []byte, error) {
	redeem, err := hex.DecodeString(u.RedeemScript)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid redeem script: %w", err)
	}

	witness, err := hex.DecodeString(u.WitnessScript)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid witness script: %w", err)
	}

	return redeem, witness, nil
}

// ParseOutPoint parses a `txid:vout` string.
func ParseOutPoint(id string) (*wire.OutPoint, error) {
	txid, vout, ok := strings.Cut(id, ":")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOutPoint, id)
	}

	hash, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutPoint, err)
	}

	n, err := strconv.ParseUint(vout, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutPoint, err)
	}

	return wire.NewOutPoint(hash, uint32(n)), nil
}

// AddressDetails is what the platform knows about one wallet address.
type AddressDetails struct {
	Address string `json:"address"`

	// Chain and Index are absent for addresses that were not derived on
	// the standard path.
	Chain fn.Option[uint32] `json:"-"`
	Index fn.Option[uint32] `json:"-"`

	RedeemScript  string `json:"redeemScript,omitempty"`
	WitnessScript string `json:"witnessScript,omitempty"`
}

// IsEmpty reports whether nothing is known about the address.
func (d *AddressDetails) IsEmpty() bool {
	return d == nil || (d.Chain.IsNone() && d.Index.IsNone() &&
		d.RedeemScript == "" && d.WitnessScript == "")
}

// merge overlays the set fields of o onto d.
func (d AddressDetails) merge(o AddressDetails) AddressDetails {
	if o.Address != "" {
		d.Address = o.Address
	}
	if o.Chain.IsSome() {
		d.Chain = o.Chain
	}
	if o.Index.IsSome() {
		d.Index = o.Index
	}
	if o.RedeemScript != "" {
		d.RedeemScript = o.RedeemScript
	}
	if o.WitnessScript != "" {
		d.WitnessScript = o.WitnessScript
	}

	return d
}

// addressType infers the address type from the script presence. No scripts
// yields None and the chain code decides.
func (d *AddressDetails) addressType() fn.Option[chaincode.AddressType] {
	t, err := inferAddressType(d.RedeemScript != "", d.WitnessScript != "")
	if err != nil {
		return fn.None[chaincode.AddressType]()
	}

	return fn.Some(t)
}

// inferAddressType maps script presence to an address type.
func inferAddressType(redeem, witness bool) (chaincode.AddressType, error) {
	switch {
	case redeem && witness:
		return chaincode.P2shP2wsh, nil

	case redeem:
		return chaincode.P2sh, nil

	case witness:
		return chaincode.P2wsh, nil

	default:
		return "", ErrNoScripts
	}
}

// TxInfo is the side-channel metadata of a prebuild.
type TxInfo struct {
	// Unspents describes every input, in input order.
	Unspents []Unspent `json:"unspents"`

	// ChangeAddresses are the outputs the builder claims as change.
	ChangeAddresses []string `json:"changeAddresses,omitempty"`

	// WalletAddressDetails are address details shipped with the prebuild.
	WalletAddressDetails map[string]AddressDetails `json:"walletAddressDetails,omitempty"`

	// TxHexes maps parent txids to their raw transactions.
	TxHexes map[string]string `json:"txHexes,omitempty"`
}

// FeeInfo is the fee summary attached to a built transaction.
type FeeInfo struct {
	Size     int64 `json:"size"`
	Fee      int64 `json:"fee"`
	FeeRate  int64 `json:"feeRate"`
	PayGoFee int64 `json:"payGoFee"`
}

// Prebuild is an unsigned or half-signed transaction with its metadata.
type Prebuild struct {
	TxHex string `json:"txHex"`

	TxInfo TxInfo `json:"txInfo"`

	FeeInfo fn.Option[FeeInfo] `json:"-"`

	// BlockHeight is the height used for the lock time.
	BlockHeight fn.Option[int32] `json:"-"`
}

// Recipient is one intended payment.
type Recipient struct {
	Address string `json:"address"`
	Amount  int64  `json:"amount"`
}

// TxParams are the caller's intentions for a send.
type TxParams struct {
	Recipients []Recipient

	// ChangeAddress is a caller-chosen change address, which need not be
	// derivable from the wallet keys.
	ChangeAddress string

	// WalletPassphrase decrypts the user key for verification.
	WalletPassphrase string
}

// KeySignatures are the user key's message signatures over the other two
// wallet keys.
type KeySignatures struct {
	BackupPub string `json:"backupPub,omitempty"`
	BitGoPub  string `json:"bitgoPub,omitempty"`
}

// IsEmpty reports whether no key signatures are recorded.
func (k KeySignatures) IsEmpty() bool {
	return k.BackupPub == "" && k.BitGoPub == ""
}

// Info is the platform record of a wallet.
type Info struct {
	ID string `json:"id"`

	// KeyIDs are the user, backup and custodian keychain IDs.
	KeyIDs [3]string `json:"keys"`

	KeySignatures KeySignatures `json:"keySignatures"`

	// MigratedFrom is the base address of the wallet this one was
	// migrated from.
	MigratedFrom string `json:"migratedFrom,omitempty"`

	// CustomChangeWalletID names a wallet whose addresses are accepted as
	// change.
	CustomChangeWalletID string `json:"customChangeWalletId,omitempty"`

	// CustomChangeKeySignatures are the user key's signatures over the
	// custom change wallet's keys, in wallet order.
	CustomChangeKeySignatures [3]string `json:"customChangeKeySignatures"`
}

// Output is one transaction output as seen by the verification engine.
type Output struct {
	Address string `json:"address"`
	Amount  int64  `json:"amount"`

	// External is None when the output was not classified.
	External fn.Option[bool] `json:"-"`

	// NeedsCustomChangeKeySignatureVerification is set when the output
	// re-derives from the custom change wallet.
	NeedsCustomChangeKeySignatureVerification bool `json:"-"`
}

// IsExternal reports whether the output was classified external.
func (o Output) IsExternal() bool {
	return o.External.UnwrapOr(false)
}

// IsInternal reports whether the output was classified internal.
func (o Output) IsInternal() bool {
	return !o.External.UnwrapOr(true)
}

// key identifies outputs by address and amount.
func (o Output) key() string {
	return fmt.Sprintf("%s:%d", o.Address, o.Amount)
}
