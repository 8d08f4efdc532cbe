// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package recovery rebuilds wallet funds from public chain data when the
// custodial platform cannot be used: backup key recoveries sweep every
// funded wallet address to a destination, and cross chain recoveries sweep
// coins that were sent to a wallet address on the wrong chain.
package recovery

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/bitgo/utxocore/chaincode"
	"github.com/bitgo/utxocore/explorer"
	"github.com/bitgo/utxocore/keychain"
	"github.com/bitgo/utxocore/multisig"
	"github.com/bitgo/utxocore/netparams"
	"github.com/bitgo/utxocore/pkg/btcunit"
	"github.com/bitgo/utxocore/wallet"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/davecgh/go-spew/spew"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// recoveryTxVersion is the version of every recovery transaction.
const recoveryTxVersion = 2

// Compile-time checks that the explorer serves every recovery lookup.
var (
	_ Provider         = (*explorer.Client)(nil)
	_ SourceProvider   = (*explorer.Client)(nil)
	_ FeeRateSource    = (*explorer.Client)(nil)
	_ PriceSource      = (*explorer.PriceFeed)(nil)
	_ wallet.TxFetcher = (*explorer.Client)(nil)
)

// TxVerifier decodes a raw transaction on a third party service and
// returns its id. A Provider may implement it to cross check signed
// recoveries. Implementations wrap ErrVerifyUnavailable when the service
// cannot decode transactions of the coin or is down.
type TxVerifier interface {
	VerifyRecoveryTx(ctx context.Context, txHex string) (string, error)
}

// Config holds the collaborators of a Recoverer.
type Config struct {
	// Net is the network of the wallet.
	Net netparams.Network

	// Provider supplies address histories and unspents.
	Provider Provider

	// Prices converts KRS fees. It is only used when a provider charges
	// a fee.
	Prices PriceSource

	// FeeRates overrides the network's static recovery fee rate.
	FeeRates fn.Option[FeeRateSource]

	// Decrypter opens encrypted user and backup keys.
	Decrypter keychain.Decrypter

	// KRSProviders defaults to DefaultKRSProviders.
	KRSProviders KRSProviders
}

// Recoverer builds backup key recoveries.
type Recoverer struct {
	cfg *Config
}

// NewRecoverer creates a Recoverer.
func NewRecoverer(cfg *Config) *Recoverer {
	if cfg.KRSProviders == nil {
		cfg.KRSProviders = DefaultKRSProviders()
	}

	return &Recoverer{cfg: cfg}
}

// RecoverParams describes one backup key recovery.
type RecoverParams struct {
	// UserKey is an xprv, an encrypted xprv or, for unsigned sweeps, an
	// xpub.
	UserKey string

	// BackupKey is an xprv, an encrypted xprv or an xpub when the key is
	// held by a KRS provider or the sweep is unsigned.
	BackupKey string

	// BitGoKey is the custodian xpub.
	BitGoKey string

	// RecoveryDestination receives the recovered funds.
	RecoveryDestination string

	// Scan is the gap limit. It defaults to DefaultScan.
	Scan fn.Option[int]

	// KRSProvider names the provider holding the backup key.
	KRSProvider string

	// IgnoreAddressTypes are address types not scanned.
	IgnoreAddressTypes fn.Set[chaincode.AddressType]

	// WalletPassphrase decrypts encrypted keys.
	WalletPassphrase string

	// UserKeyPath replaces the `m/0/0` prefix of user address keys.
	UserKeyPath string
}

// mode is how the recovery transaction is finished.
type mode uint8

const (
	// modeFull signs with the user and backup keys.
	modeFull mode = iota

	// modeKRS signs with the user key only, the KRS provider cosigns.
	modeKRS

	// modeUnsigned returns the sweep for offline signing.
	modeUnsigned
)

func (m mode) String() string {
	switch m {
	case modeKRS:
		return "krs"

	case modeUnsigned:
		return "unsigned"

	default:
		return "full"
	}
}

// recoveryMode derives the mode from which keys are public.
func recoveryMode(p *RecoverParams) mode {
	userPub := keychain.IsValidPub(p.UserKey)
	backupPub := keychain.IsValidPub(p.BackupKey)

	switch {
	case userPub && backupPub:
		return modeUnsigned

	case backupPub:
		return modeKRS

	default:
		return modeFull
	}
}

// RecoveryInput is one swept unspent with its derivation path.
type RecoveryInput struct {
	wallet.Unspent

	// ChainPath is `/0/0/chain/index`.
	ChainPath string `json:"chainPath"`
}

// Recovery is a built recovery transaction.
type Recovery struct {
	// TxHex is the unsigned, half signed or fully signed transaction.
	TxHex string `json:"txHex"`

	// TxID is the id the explorer decoded a signed recovery to, if it
	// could.
	TxID string `json:"txid,omitempty"`

	Inputs []RecoveryInput `json:"inputs"`

	// Signed is false for unsigned sweeps.
	Signed bool `json:"signed"`

	Coin string `json:"coin,omitempty"`

	// BackupKey is the KRS held backup xpub of KRS recoveries.
	BackupKey string `json:"backupKey,omitempty"`

	RecoveryAmount int64 `json:"recoveryAmount"`
	NetworkFee     int64 `json:"networkFee"`
	KRSFee         int64 `json:"krsFee,omitempty"`

	// PSBT is the base64 PSBT of unsigned sweeps.
	PSBT string `json:"psbt,omitempty"`
}

// OfflineVault formats an unsigned sweep for offline signing tools.
func (r *Recovery) OfflineVault() *OfflineVaultTx {
	vault := &OfflineVaultTx{TxHex: r.TxHex, Coin: r.Coin}
	vault.TxInfo.Unspents = r.Inputs

	return vault
}

// sanitizePath turns legacy `/0/0` style paths into `m/0/0`.
func sanitizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" || strings.HasPrefix(path, "m") {
		return path
	}

	return "m/" + strings.TrimPrefix(path, "/")
}

// validate rejects malformed parameters before any key or network work.
func (r *Recoverer) validate(p *RecoverParams) error {
	if strings.TrimSpace(p.UserKey) == "" {
		return ErrMissingUserKey
	}

	if strings.TrimSpace(p.BackupKey) == "" {
		return ErrMissingBackupKey
	}

	if _, err := r.cfg.Net.DecodeAddress(p.RecoveryDestination); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDestination, err)
	}

	if p.Scan.UnwrapOr(DefaultScan) < 0 {
		return ErrInvalidScan
	}

	if !keychain.IsValidPub(p.BitGoKey) {
		return ErrInvalidBitGoKey
	}

	if p.UserKeyPath != "" {
		if _, err := keychain.ParsePath(sanitizePath(p.UserKeyPath)); err != nil {
			return err
		}
	}

	return nil
}

// openKey parses a plaintext extended key or decrypts an encrypted one.
func (r *Recoverer) openKey(name, key,
	passphrase string) (*hdkeychain.ExtendedKey, string, error) {

	key = strings.TrimSpace(key)
	if keychain.IsValidPub(key) || keychain.IsValidPrv(key) {
		k, err := keychain.ParseExtendedKey(key)
		return k, key, err
	}

	prv, err := keychain.DecryptPrv(
		keychain.Keychain{ID: name, EncryptedPrv: key}, r.cfg.Decrypter,
		passphrase,
	)
	if err != nil {
		return nil, "", fmt.Errorf("error decrypting %s keychain: %w",
			name, err)
	}

	k, err := keychain.ParseExtendedKey(prv)

	return k, prv, err
}

// signingKeys holds the opened keys of a recovery.
type signingKeys struct {
	walletKeys

	userPrv   string
	backupPrv string
}

// openKeys opens all three wallet keys.
func (r *Recoverer) openKeys(p *RecoverParams) (*signingKeys, error) {
	user, userPrv, err := r.openKey("user", p.UserKey, p.WalletPassphrase)
	if err != nil {
		return nil, err
	}

	backup, backupPrv, err := r.openKey(
		"backup", p.BackupKey, p.WalletPassphrase,
	)
	if err != nil {
		return nil, err
	}

	bitgo, err := keychain.ParseExtendedKey(p.BitGoKey)
	if err != nil {
		return nil, err
	}

	return &signingKeys{
		walletKeys: walletKeys{
			user:       user,
			backup:     backup,
			bitgo:      bitgo,
			userPrefix: sanitizePath(p.UserKeyPath),
		},
		userPrv:   userPrv,
		backupPrv: backupPrv,
	}, nil
}

// feeRate returns the configured fee rate source's rate or the network's
// static rate.
func (r *Recoverer) feeRate(ctx context.Context) (btcunit.SatPerVByte,
	error) {

	if r.cfg.FeeRates.IsNone() {
		return r.cfg.Net.RecoveryFeeRate(), nil
	}

	var (
		rate btcunit.SatPerVByte
		err  error
	)
	r.cfg.FeeRates.WhenSome(func(src FeeRateSource) {
		rate, err = src.RecommendedFeeRate(ctx)
	})
	if err != nil {
		return rate, fmt.Errorf("unable to fetch recovery fee rate: %w",
			err)
	}

	return rate, nil
}

// Recover scans the wallet's addresses for funds and sweeps them to the
// recovery destination. The result is signed by both held keys, by the
// user key only when the backup key is held by a KRS provider, or not at
// all when both keys are public.
func (r *Recoverer) Recover(ctx context.Context,
	p RecoverParams) (*Recovery, error) {

	net := r.cfg.Net
	if err := r.validate(&p); err != nil {
		return nil, err
	}

	m := recoveryMode(&p)

	var krs *KRSProvider
	if m == modeKRS {
		var err error
		krs, err = r.cfg.KRSProviders.Lookup(p.KRSProvider, net)
		if err != nil {
			return nil, err
		}
	}

	keys, err := r.openKeys(&p)
	if err != nil {
		return nil, err
	}

	log.Infof("Starting %s recovery of %s wallet to %s", m, net.Name(),
		p.RecoveryDestination)

	window := p.Scan.UnwrapOr(DefaultScan)
	if window == 0 {
		window = DefaultScan
	}

	s := &scanner{
		net:      net,
		provider: r.cfg.Provider,
		keys:     &keys.walletKeys,
		window:   uint32(window),
	}
	found, err := s.scan(ctx, branches(net, p.IgnoreAddressTypes))
	if err != nil {
		return nil, err
	}

	var (
		descs  []*multisig.Descriptor
		utxos  []explorer.UTXO
		inputs []RecoveryInput
		total  int64
	)
	for _, f := range found {
		for _, u := range f.utxos {
			descs = append(descs, f.desc)
			utxos = append(utxos, u)
			inputs = append(inputs, newRecoveryInput(f.desc, u))
			total += u.Value
		}
	}
	if total <= 0 {
		return nil, ErrNoInputToRecover
	}

	rate, err := r.feeRate(ctx)
	if err != nil {
		return nil, err
	}

	outputs := 1
	if m == modeKRS {
		outputs = 2
	}
	networkFee := ApproximateFee(len(utxos), outputs, rate)

	var krsFee int64
	if krs != nil {
		krsFee, err = KRSFee(ctx, krs, net, r.cfg.Prices)
		if err != nil {
			return nil, err
		}
	}

	amount := total - networkFee - krsFee
	if amount <= 0 {
		return nil, &InsufficientFundsError{
			Balance:    total,
			NetworkFee: networkFee,
			KRSFee:     krsFee,
		}
	}

	tx, err := buildSweep(net, utxos, p.RecoveryDestination, amount)
	if err != nil {
		return nil, err
	}

	if krs != nil && krsFee > 0 {
		feeAddr := krs.FeeAddresses[net.Name()]
		if feeAddr == "" {
			return nil, ErrKRSFeeAddress
		}

		if err := addOutput(net, tx, feeAddr, krsFee); err != nil {
			return nil, err
		}
	}

	log.Debugf("Recovery transaction: %v", newLogClosure(func() string {
		return spew.Sdump(tx)
	}))

	rec := &Recovery{
		Inputs:         inputs,
		RecoveryAmount: amount,
		NetworkFee:     networkFee,
		KRSFee:         krsFee,
	}

	txHex, err := wallet.EncodeTx(tx)
	if err != nil {
		return nil, err
	}

	if m == modeUnsigned {
		values := make([]int64, len(utxos))
		for i, u := range utxos {
			values[i] = u.Value
		}

		rec.TxHex = txHex
		rec.Coin = net.Name()
		rec.PSBT, err = exportPSBT(
			tx, descs, values, &keys.walletKeys,
			net.DefaultSigHash(),
		)
		if err != nil {
			return nil, err
		}

		return rec, nil
	}

	rec.TxHex, err = r.sign(net, txHex, inputs, keys, m)
	if err != nil {
		return nil, err
	}
	rec.Signed = true

	rec.TxID, err = r.verifyTxID(ctx, rec.TxHex)
	if err != nil {
		return nil, err
	}

	if m == modeKRS {
		rec.Coin = net.Name()
		rec.BackupKey = p.BackupKey
	}

	return rec, nil
}

// newRecoveryInput describes an explorer unspent of a wallet address.
func newRecoveryInput(d *multisig.Descriptor, u explorer.UTXO) RecoveryInput {
	in := RecoveryInput{
		Unspent: wallet.Unspent{
			ID:      u.OutPoint(),
			Address: d.Address,
			Value:   u.Value,
			Chain:   uint32(d.Chain),
			Index:   d.Index,
		},
		ChainPath: fmt.Sprintf("/0/0/%d/%d", uint32(d.Chain), d.Index),
	}

	if len(d.RedeemScript) > 0 {
		in.RedeemScript = hex.EncodeToString(d.RedeemScript)
	}
	if d.AddressType.IsSegwit() {
		in.WitnessScript = hex.EncodeToString(d.WitnessScript)
	}

	return in
}

// buildSweep spends every unspent to a single destination output.
func buildSweep(net netparams.Network, utxos []explorer.UTXO,
	destination string, amount int64) (*wire.MsgTx, error) {

	tx := wire.NewMsgTx(recoveryTxVersion)
	for _, u := range utxos {
		hash, err := chainhash.NewHashFromStr(u.TxID)
		if err != nil {
			return nil, fmt.Errorf("invalid unspent %s: %w",
				u.OutPoint(), err)
		}

		tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(hash, u.Vout), nil, nil))
	}

	if err := addOutput(net, tx, destination, amount); err != nil {
		return nil, err
	}

	return tx, nil
}

// addOutput pays amount to address, rejecting dust.
func addOutput(net netparams.Network, tx *wire.MsgTx, address string,
	amount int64) error {

	addr, err := net.DecodeAddress(address)
	if err != nil {
		return err
	}

	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return err
	}

	out := wire.NewTxOut(amount, script)
	if err := txrules.CheckOutput(out, txrules.DefaultRelayFeePerKb); err != nil {
		return fmt.Errorf("%w: %d to %s: %v", ErrDustOutput, amount,
			address, err)
	}
	tx.AddTxOut(out)

	return nil
}

// sign adds the held signatures. The user key always signs; the backup
// key completes the transaction unless it is held by a KRS provider.
func (r *Recoverer) sign(net netparams.Network, txHex string,
	inputs []RecoveryInput, keys *signingKeys, m mode) (string, error) {

	unspents := make([]wallet.Unspent, len(inputs))
	for i, in := range inputs {
		unspents[i] = in.Unspent
	}

	prebuild := wallet.Prebuild{
		TxHex:  txHex,
		TxInfo: wallet.TxInfo{Unspents: unspents},
	}

	half, err := wallet.SignTransaction(net, wallet.SignParams{
		Prebuild:         prebuild,
		Prv:              keys.userPrv,
		DerivationPrefix: keys.userPrefix,
	})
	if err != nil {
		return "", err
	}

	if m == modeKRS {
		return half.TxHex, nil
	}

	prebuild.TxHex = half.TxHex
	full, err := wallet.SignTransaction(net, wallet.SignParams{
		Prebuild:        prebuild,
		Prv:             keys.backupPrv,
		IsLastSignature: true,
	})
	if err != nil {
		return "", err
	}

	return full.TxHex, nil
}

// verifyTxID cross checks a signed recovery with the provider when it can
// decode transactions. An unavailable verifier is only logged.
func (r *Recoverer) verifyTxID(ctx context.Context,
	txHex string) (string, error) {

	v, ok := r.cfg.Provider.(TxVerifier)
	if !ok {
		log.Infof("Please verify your transaction by decoding the tx " +
			"hex using a third-party api of your choice")

		return "", nil
	}

	tx, err := wallet.DecodeTx(txHex)
	if err != nil {
		return "", err
	}

	txid, err := v.VerifyRecoveryTx(ctx, txHex)
	switch {
	case errors.Is(err, ErrVerifyUnavailable):
		log.Warnf("Unable to verify recovery transaction: %v. Please "+
			"verify your transaction by decoding the tx hex using a "+
			"third-party api of your choice", err)

		return "", nil

	case err != nil:
		return "", err
	}

	if txid != tx.TxHash().String() {
		return "", fmt.Errorf("%w: explorer decoded %s, expected %s",
			ErrTxIDMismatch, txid, tx.TxHash())
	}

	return txid, nil
}
