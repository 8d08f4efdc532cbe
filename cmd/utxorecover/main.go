// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// utxorecover derives multisig wallet addresses, explains transactions and
// builds backup key and cross chain recoveries from public chain data.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/bitgo/utxocore/chaincode"
	"github.com/bitgo/utxocore/explorer"
	"github.com/bitgo/utxocore/keycrypt"
	"github.com/bitgo/utxocore/multisig"
	"github.com/bitgo/utxocore/netparams"
	"github.com/bitgo/utxocore/recovery"
	"github.com/bitgo/utxocore/wallet"
	"github.com/davecgh/go-spew/spew"
	"github.com/jessevdk/go-flags"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) {
			if flagsErr.Type == flags.ErrHelp {
				fmt.Fprintln(os.Stdout, err)
				os.Exit(0)
			}

			// go-flags already printed it.
			os.Exit(1)
		}

		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, cmds, active, err := loadConfig(args)
	if err != nil {
		return err
	}

	logFile := filepath.Join(cfg.LogDir, defaultLogFilename)
	err = initLogRotator(logFile, cfg.MaxLogFileSize, cfg.MaxLogFiles)
	if err != nil {
		return err
	}
	defer func() {
		if logRotator != nil {
			_ = logRotator.Close()
		}
	}()

	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	if err := explorer.RegisterMetrics(reg); err != nil {
		return err
	}
	defer func() {
		if cfg.StatsFile == "" {
			return
		}
		if err := dumpStats(reg, cfg.StatsFile); err != nil {
			utxrLog.Errorf("Unable to write stats: %v", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	utxrLog.Debugf("Running %s on %s", active, cfg.net.Name())

	switch active {
	case addressCmd:
		return runAddress(cfg, &cmds.address)

	case explainCmd:
		return runExplain(cfg, &cmds.explain)

	case recoverCmd:
		return runRecover(ctx, cfg, &cmds.recover)

	case crossChainCmd:
		return runCrossChain(ctx, cfg, &cmds.crossChain)

	default:
		return fmt.Errorf("unknown command %q", active)
	}
}

// dumpStats appends the gathered metric families to path.
func dumpStats(g prometheus.Gatherer, path string) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, mf := range families {
		if _, err := w.WriteString(mf.String() + "\n"); err != nil {
			return err
		}
	}

	return w.Flush()
}

// newExplorer returns an explorer client of net.
func newExplorer(cfg *config, net netparams.Network) (*explorer.Client,
	error) {

	ecfg := cfg.explorerConfig(net)
	if ecfg.URL == "" {
		return nil, fmt.Errorf("no public explorer known for %s, set "+
			"--explorerurl", net.Name())
	}

	return explorer.NewClient(ecfg), nil
}

func runAddress(cfg *config, c *addressConfig) error {
	desc, err := multisig.DeriveAddress(cfg.net, c.XPubs, multisig.DeriveParams{
		Chain:     chaincode.Code(c.Chain),
		Index:     c.Index,
		Threshold: fn.Some(c.Threshold),
	})
	if err != nil {
		return err
	}

	utxrLog.Tracef("Derived descriptor: %v", spew.Sdump(desc))

	out := struct {
		Address       string `json:"address"`
		Type          string `json:"addressType"`
		Chain         uint32 `json:"chain"`
		Index         uint32 `json:"index"`
		OutputScript  string `json:"outputScript"`
		RedeemScript  string `json:"redeemScript,omitempty"`
		WitnessScript string `json:"witnessScript,omitempty"`
	}{
		Address:      desc.Address,
		Type:         string(desc.AddressType),
		Chain:        uint32(desc.Chain),
		Index:        desc.Index,
		OutputScript: fmt.Sprintf("%x", desc.OutputScript),
	}
	if len(desc.RedeemScript) > 0 {
		out.RedeemScript = fmt.Sprintf("%x", desc.RedeemScript)
	}
	if len(desc.WitnessScript) > 0 {
		out.WitnessScript = fmt.Sprintf("%x", desc.WitnessScript)
	}

	return writeJSON(os.Stdout, out)
}

func runExplain(cfg *config, c *explainConfig) error {
	e, err := wallet.ExplainTransaction(cfg.net, wallet.ExplainParams{
		TxHex: c.TxHex,
		TxInfo: fn.Some(wallet.TxInfo{
			ChangeAddresses: c.ChangeAddresses,
		}),
	})
	if err != nil {
		return err
	}

	renderExplanation(os.Stdout, cfg.net, e)

	return nil
}

func runRecover(ctx context.Context, cfg *config, c *recoverConfig) error {
	client, err := newExplorer(cfg, cfg.net)
	if err != nil {
		return err
	}

	krs, err := cfg.krsProviders()
	if err != nil {
		return err
	}

	ignore := fn.NewSet[chaincode.AddressType]()
	for _, s := range c.IgnoreTypes {
		t, err := chaincode.ParseAddressType(s)
		if err != nil {
			return err
		}
		ignore.Add(t)
	}

	rcfg := &recovery.Config{
		Net:      cfg.net,
		Provider: client,
		Prices: explorer.NewPriceFeed(&explorer.PriceFeedConfig{
			URL:            cfg.PriceFeedURL,
			Attempts:       explorer.DefaultPriceAttempts,
			RequestTimeout: cfg.RequestTimeout,
		}),
		Decrypter:    keycrypt.New(keycrypt.DefaultParams),
		KRSProviders: krs,
	}
	if c.LiveFees {
		rcfg.FeeRates = fn.Some[recovery.FeeRateSource](client)
	}

	params := recovery.RecoverParams{
		UserKey:             c.UserKey,
		BackupKey:           c.BackupKey,
		BitGoKey:            c.BitGoKey,
		RecoveryDestination: c.Destination,
		Scan:                fn.Some(c.Scan),
		KRSProvider:         c.KRSProvider,
		IgnoreAddressTypes:  ignore,
		UserKeyPath:         c.UserKeyPath,
	}

	if c.Passphrase {
		params.WalletPassphrase, err = promptPassphrase(
			"Wallet passphrase: ",
		)
		if err != nil {
			return err
		}
	}

	rec, err := recovery.NewRecoverer(rcfg).Recover(ctx, params)
	if err != nil {
		return err
	}

	renderRecovery(os.Stderr, cfg.net, rec)

	if !rec.Signed {
		return writeJSON(os.Stdout, struct {
			*recovery.OfflineVaultTx
			PSBT string `json:"psbt"`
		}{rec.OfflineVault(), rec.PSBT})
	}

	return writeJSON(os.Stdout, rec)
}

func runCrossChain(ctx context.Context, cfg *config,
	c *crossChainConfig) error {

	source, err := netparams.Lookup(c.Source)
	if err != nil {
		return err
	}

	sourceExplorer, err := newExplorer(cfg, source)
	if err != nil {
		return err
	}

	recoveryExplorer, err := newExplorer(cfg, cfg.net)
	if err != nil {
		return err
	}

	platform, err := loadWalletExport(
		cleanAndExpandPath(c.WalletFile), cfg.net, recoveryExplorer,
	)
	if err != nil {
		return err
	}

	params := recovery.CrossChainParams{
		Source:          source,
		Recovery:        cfg.net,
		WalletID:        c.WalletID,
		FaultyTxID:      c.TxID,
		RecoveryAddress: c.Destination,
		Signed:          fn.Some(!c.Unsigned),
		Prv:             c.XPrv,
		Platform:        platform,
		Explorer:        sourceExplorer,
		Decrypter:       keycrypt.New(keycrypt.DefaultParams),
	}

	if !c.Unsigned && c.XPrv == "" {
		params.Passphrase, err = promptPassphrase("Wallet passphrase: ")
		if err != nil {
			return err
		}
	}

	rec, err := recovery.RecoverCrossChain(ctx, params)
	if err != nil {
		return err
	}

	utxrLog.Infof("Recovering %d %s to %s", rec.RecoveryAmount,
		source.Name(), rec.RecoveryAddress)

	return writeJSON(os.Stdout, rec)
}
