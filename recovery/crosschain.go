// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package recovery

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/bitgo/utxocore/chaincode"
	"github.com/bitgo/utxocore/explorer"
	"github.com/bitgo/utxocore/keychain"
	"github.com/bitgo/utxocore/multisig"
	"github.com/bitgo/utxocore/netparams"
	"github.com/bitgo/utxocore/pkg/btcunit"
	"github.com/bitgo/utxocore/wallet"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// crossChainVersion is the version of exported cross chain recoveries.
const crossChainVersion = 2

// crossChainFamilies are the chain families coins can be recovered
// between.
var crossChainFamilies = fn.NewSet("btc", "bch", "ltc", "bsv")

// SourceProvider is the explorer of the chain holding the lost coins. It is
// satisfied by *explorer.Client.
type SourceProvider interface {
	// TransactionOutputs returns the outputs of a transaction.
	TransactionOutputs(ctx context.Context,
		txid string) ([]explorer.TxOutput, error)

	// UnspentsForAddresses returns the unspent outputs of addresses.
	UnspentsForAddresses(ctx context.Context,
		addresses []string) ([]explorer.UTXO, error)
}

// CrossChainParams describes the recovery of coins sent to a wallet
// address on the wrong chain.
type CrossChainParams struct {
	// Source is the chain the coins are on.
	Source netparams.Network

	// Recovery is the chain of the wallet the sender meant to pay.
	Recovery netparams.Network

	// WalletID is the recovery wallet.
	WalletID string

	// FaultyTxID is the transaction that paid the wrong chain.
	FaultyTxID string

	// RecoveryAddress is the Source address the coins are swept to.
	RecoveryAddress string

	// Signed defaults to true.
	Signed fn.Option[bool]

	// Prv is the user xprv. Without it the wallet's encrypted user key
	// is decrypted with Passphrase.
	Prv        string
	Passphrase string

	// Platform serves the recovery wallet.
	Platform wallet.Platform

	// Explorer reads the Source chain.
	Explorer SourceProvider

	// Decrypter opens the wallet's encrypted user key.
	Decrypter keychain.Decrypter
}

// CrossChainTxInfo summarizes a cross chain sweep.
type CrossChainTxInfo struct {
	InputAmount  int64            `json:"inputAmount"`
	OutputAmount int64            `json:"outputAmount"`
	SpendAmount  int64            `json:"spendAmount"`
	MinerFee     int64            `json:"minerFee"`
	PayGoFee     int64            `json:"payGoFee"`
	Unspents     []wallet.Unspent `json:"unspents"`
}

// CrossChainRecovery is a built cross chain sweep. Signed sweeps carry a
// version, unsigned ones their fee info.
type CrossChainRecovery struct {
	Version int `json:"version,omitempty"`

	TxHex  string           `json:"txHex"`
	TxInfo CrossChainTxInfo `json:"txInfo"`

	FeeInfo *wallet.FeeInfo `json:"feeInfo,omitempty"`

	WalletID     string `json:"walletId"`
	SourceCoin   string `json:"sourceCoin"`
	RecoveryCoin string `json:"recoveryCoin"`

	RecoveryAddress string `json:"recoveryAddress"`
	RecoveryAmount  int64  `json:"recoveryAmount"`

	Signed bool `json:"signed"`
}

// validateCrossChain rejects unsupported pairs and malformed parameters.
func validateCrossChain(p *CrossChainParams) error {
	if p.Source == nil || p.Recovery == nil {
		return fmt.Errorf("%w: source and recovery coins are required",
			ErrUnsupportedCrossChain)
	}

	src, dst := p.Source.Family(), p.Recovery.Family()
	if !crossChainFamilies.Contains(src) ||
		!crossChainFamilies.Contains(dst) || src == dst ||
		p.Source.IsTestnet() != p.Recovery.IsTestnet() {

		return fmt.Errorf("%w: %s to %s", ErrUnsupportedCrossChain,
			p.Source.Name(), p.Recovery.Name())
	}

	if p.WalletID == "" {
		return errors.New("please provide wallet id")
	}

	if _, err := chainhash.NewHashFromStr(p.FaultyTxID); err != nil ||
		p.FaultyTxID == "" {

		return fmt.Errorf("please provide a valid faultyTxId: %q",
			p.FaultyTxID)
	}

	if _, err := p.Source.DecodeAddress(p.RecoveryAddress); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDestination, err)
	}

	if p.Platform == nil || p.Explorer == nil {
		return errors.New("platform and explorer are required")
	}

	return nil
}

// TranslateAddress re-encodes an address of one chain for another chain
// sharing its script templates.
func TranslateAddress(from, to netparams.Network,
	address string) (string, error) {

	a, err := from.DecodeAddress(address)
	if err != nil {
		return "", err
	}

	var out btcutil.Address
	switch a := a.(type) {
	case *btcutil.AddressScriptHash:
		out, err = btcutil.NewAddressScriptHashFromHash(
			a.ScriptAddress(), to.Params(),
		)

	case *btcutil.AddressWitnessScriptHash:
		if !to.SupportsAddressType(chaincode.P2wsh) {
			return "", fmt.Errorf("%w: %s has no segwit",
				netparams.ErrInvalidAddress, to.Name())
		}
		out, err = btcutil.NewAddressWitnessScriptHash(
			a.ScriptAddress(), to.Params(),
		)

	case *btcutil.AddressPubKeyHash:
		out, err = btcutil.NewAddressPubKeyHash(
			a.ScriptAddress(), to.Params(),
		)

	default:
		return "", fmt.Errorf("%w: unsupported address %s",
			netparams.ErrInvalidAddress, address)
	}
	if err != nil {
		return "", err
	}

	return out.EncodeAddress(), nil
}

// walletOutputs returns the Source addresses among the faulty transaction's
// outputs that belong to the recovery wallet, with their details.
func walletOutputs(ctx context.Context, p *CrossChainParams) ([]string,
	map[string]*wallet.AddressDetails, error) {

	outputs, err := p.Explorer.TransactionOutputs(ctx, p.FaultyTxID)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to fetch faulty tx %s: %w",
			p.FaultyTxID, err)
	}

	var (
		addrs   []string
		details = make(map[string]*wallet.AddressDetails)
	)
	for _, out := range outputs {
		if out.Address == "" {
			continue
		}
		if _, ok := details[out.Address]; ok {
			continue
		}

		walletAddr, err := TranslateAddress(
			p.Source, p.Recovery, out.Address,
		)
		if err != nil {
			log.Debugf("Output %d address %s has no %s form: %v",
				out.Index, out.Address, p.Recovery.Name(), err)

			continue
		}

		d, err := p.Platform.GetAddressDetails(
			ctx, p.WalletID, walletAddr,
		)
		switch {
		case errors.Is(err, wallet.ErrWalletAddressNotFound):
			log.Infof("Address %s not found on wallet", walletAddr)
			continue

		case err != nil:
			return nil, nil, err
		}

		addrs = append(addrs, out.Address)
		details[out.Address] = d
	}

	if len(addrs) == 0 {
		return nil, nil, ErrNoWalletOutputs
	}

	return addrs, details, nil
}

// crossChainInput re-derives the descriptor of a wallet unspent on the
// Source chain and checks it pays the explorer's address.
func crossChainInput(p *CrossChainParams, pubs []string, u explorer.UTXO,
	d *wallet.AddressDetails) (*multisig.Descriptor, error) {

	if d.Chain.IsNone() || d.Index.IsNone() {
		return nil, &multisig.InvalidAddressDerivationPropertyError{
			Address: u.Address,
			Reason:  "missing chain or index",
		}
	}

	chain := chaincode.Code(d.Chain.UnwrapOr(0))
	addrType, err := chain.Type()
	if err != nil {
		return nil, err
	}

	if addrType.IsSegwit() && !p.Source.SupportsAddressType(addrType) {
		return nil, fmt.Errorf("%w: %s on %s", ErrSegwitUnspent,
			u.OutPoint(), p.Source.Name())
	}

	desc, err := multisig.DeriveAddress(p.Source, pubs, multisig.DeriveParams{
		Chain: chain,
		Index: d.Index.UnwrapOr(0),
	})
	if err != nil {
		return nil, err
	}

	canonical, err := p.Source.CanonicalAddress(u.Address)
	if err != nil {
		return nil, err
	}
	if desc.Address != canonical {
		return nil, &multisig.UnexpectedAddressError{
			Expected: desc.Address,
			Actual:   u.Address,
		}
	}

	return desc, nil
}

// addInputDimension counts one input of the address type.
func addInputDimension(dims btcunit.Dimensions,
	t chaincode.AddressType) btcunit.Dimensions {

	switch t {
	case chaincode.P2shP2wsh:
		return dims.AddP2shP2wshInputs(1)

	case chaincode.P2wsh:
		return dims.AddP2wshInputs(1)

	default:
		return dims.AddP2shInputs(1)
	}
}

// outputVSize is the serialized size of an output paying address.
func outputVSize(net netparams.Network, address string) (uint64, error) {
	addr, err := net.DecodeAddress(address)
	if err != nil {
		return 0, err
	}

	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return 0, err
	}

	return uint64(wire.NewTxOut(0, script).SerializeSize()), nil
}

// userPrv returns the explicit xprv or decrypts the wallet's user key.
func userPrv(p *CrossChainParams, user keychain.Keychain) (string, error) {
	if p.Prv != "" {
		return p.Prv, nil
	}

	if p.Passphrase == "" {
		return "", ErrMissingSigningKey
	}

	prv, err := keychain.DecryptPrv(user, p.Decrypter, p.Passphrase)
	if err != nil {
		return "", fmt.Errorf("error reading private key, please check "+
			"that you have the correct wallet passphrase: %w", err)
	}

	return prv, nil
}

// RecoverCrossChain sweeps the wallet owned outputs of a transaction that
// paid a recovery wallet address on the Source chain. The sweep pays the
// Source chain's static cross chain fee rate and is half signed with the
// wallet's user key unless an unsigned sweep is requested.
func RecoverCrossChain(ctx context.Context,
	p CrossChainParams) (*CrossChainRecovery, error) {

	if err := validateCrossChain(&p); err != nil {
		return nil, err
	}

	log.Infof("Recovering %s sent to %s wallet %s in %s", p.Source.Name(),
		p.Recovery.Name(), p.WalletID, p.FaultyTxID)

	info, err := p.Platform.GetWallet(ctx, p.WalletID)
	if err != nil {
		return nil, fmt.Errorf("cannot find %s wallet: %w",
			p.Recovery.Name(), err)
	}

	addrs, details, err := walletOutputs(ctx, &p)
	if err != nil {
		return nil, err
	}

	log.Debugf("Finding unspents for these output addresses: %v", addrs)

	utxos, err := p.Explorer.UnspentsForAddresses(ctx, addrs)
	if err != nil {
		return nil, err
	}
	if len(utxos) == 0 {
		return nil, ErrNoRecoveryUnspents
	}

	triple, err := wallet.FetchKeychains(ctx, p.Platform, info)
	if err != nil {
		return nil, err
	}
	pubs := triple.Pubs()

	var (
		dims     btcunit.Dimensions
		unspents = make([]wallet.Unspent, 0, len(utxos))
		total    int64
	)
	for _, u := range utxos {
		d, ok := details[u.Address]
		if !ok {
			return nil, fmt.Errorf("explorer returned unspent %s of "+
				"unrequested address %s", u.OutPoint(), u.Address)
		}

		desc, err := crossChainInput(&p, pubs, u, d)
		if err != nil {
			return nil, err
		}

		log.Infof("Found %d %s at address %s", u.Value, p.Source.Name(),
			u.Address)

		dims = addInputDimension(dims, desc.AddressType)
		unspents = append(unspents, newRecoveryInput(desc, u).Unspent)
		total += u.Value
	}

	outSize, err := outputVSize(p.Source, p.RecoveryAddress)
	if err != nil {
		return nil, err
	}
	dims = dims.AddOutputVSize(outSize)

	rate := p.Source.CrossChainFeeRate()
	fee := dims.Fee(rate)
	amount := total - fee
	if amount <= 0 {
		return nil, fmt.Errorf("%w: found %d, fee %d", ErrCannotPayFees,
			total, fee)
	}

	tx, err := buildSweep(p.Source, utxos, p.RecoveryAddress, amount)
	if err != nil {
		return nil, err
	}

	txHex, err := wallet.EncodeTx(tx)
	if err != nil {
		return nil, err
	}

	rec := &CrossChainRecovery{
		TxHex: txHex,
		TxInfo: CrossChainTxInfo{
			InputAmount:  total,
			OutputAmount: amount,
			SpendAmount:  amount,
			MinerFee:     fee,
			Unspents:     unspents,
		},
		WalletID:        info.ID,
		SourceCoin:      p.Source.Name(),
		RecoveryCoin:    p.Recovery.Name(),
		RecoveryAddress: p.RecoveryAddress,
		RecoveryAmount:  amount,
	}

	if !p.Signed.UnwrapOr(true) {
		rec.FeeInfo = &wallet.FeeInfo{
			Size:    int64(dims.VSize().Uint64()),
			Fee:     fee,
			FeeRate: int64(math.Round(rate.Float64())),
		}

		return rec, nil
	}

	prv, err := userPrv(&p, triple[keychain.UserIndex])
	if err != nil {
		return nil, err
	}

	half, err := wallet.SignTransaction(p.Source, wallet.SignParams{
		Prebuild: wallet.Prebuild{
			TxHex:  txHex,
			TxInfo: wallet.TxInfo{Unspents: unspents},
		},
		Prv:  prv,
		Pubs: pubs,
	})
	if err != nil {
		return nil, err
	}

	rec.Version = crossChainVersion
	rec.TxHex = half.TxHex
	rec.Signed = true

	return rec, nil
}
