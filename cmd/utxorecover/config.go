// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bitgo/utxocore/explorer"
	"github.com/bitgo/utxocore/netparams"
	"github.com/bitgo/utxocore/recovery"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "utxorecover.conf"
	defaultLogFilename    = "utxorecover.log"
	defaultLogLevel       = "info"
	defaultNetwork        = "btc"
	defaultMaxLogFiles    = 3
	defaultMaxLogFileSize = 10 * 1024

	addressCmd    = "address"
	explainCmd    = "explain"
	recoverCmd    = "recover"
	crossChainCmd = "crosschain"
)

var (
	defaultHomeDir    = btcutil.AppDataDir("utxorecover", false)
	defaultConfigFile = filepath.Join(defaultHomeDir, defaultConfigFilename)
	defaultLogDir     = filepath.Join(defaultHomeDir, "logs")
)

// config holds the options shared by every command.
type config struct {
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file"`
	LogDir     string `long:"logdir" description:"Directory to log output"`

	MaxLogFiles    int `long:"maxlogfiles" description:"Maximum logfiles to keep (0 for no rotation)"`
	MaxLogFileSize int `long:"maxlogfilesize" description:"Maximum logfile size in KB"`

	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems"`

	Network string `short:"n" long:"network" description:"Coin to operate on {btc, tbtc, ltc, tltc, bch, tbch, bsv, tbsv, doge, tdoge}"`

	ExplorerURL    string        `long:"explorerurl" description:"Esplora API base URL, defaults to the coin's public explorer"`
	PriceFeedURL   string        `long:"pricefeedurl" description:"CoinGecko compatible price API base URL"`
	RequestTimeout time.Duration `long:"requesttimeout" description:"Timeout of a single explorer request"`
	RequestsPerSec int           `long:"requestspersec" description:"Maximum explorer requests per second, 0 disables pacing"`

	KRSFeeAddresses []string `long:"krsfeeaddress" description:"KRS provider fee address as provider:coin:address, may be repeated"`

	StatsFile string `long:"statsfile" description:"Append explorer request metrics to this file on exit"`

	net netparams.Network
}

// addressConfig derives a wallet address.
type addressConfig struct {
	XPubs     []string `long:"xpub" description:"Wallet xpub in user, backup, bitgo order; repeat three times" required:"true"`
	Chain     uint32   `long:"chain" description:"Chain code {0, 1, 10, 11, 20, 21}"`
	Index     uint32   `long:"index" description:"Address index"`
	Threshold int      `long:"threshold" description:"Signatures required to spend" default:"2"`
}

// explainConfig summarizes a transaction.
type explainConfig struct {
	TxHex           string   `long:"txhex" description:"Transaction to explain" required:"true"`
	ChangeAddresses []string `long:"changeaddress" description:"Address to report as change, may be repeated"`
}

// recoverConfig builds a backup key recovery.
type recoverConfig struct {
	UserKey     string   `long:"userkey" description:"User xprv, encrypted xprv or xpub" required:"true"`
	BackupKey   string   `long:"backupkey" description:"Backup xprv, encrypted xprv or xpub" required:"true"`
	BitGoKey    string   `long:"bitgokey" description:"BitGo xpub" required:"true"`
	Destination string   `long:"destination" description:"Address receiving the recovered funds" required:"true"`
	Scan        int      `long:"scan" description:"Number of unused addresses ending a branch" default:"20"`
	KRSProvider string   `long:"krsprovider" description:"Key recovery service holding the backup key"`
	IgnoreTypes []string `long:"ignoretype" description:"Address type not to scan {p2sh, p2shP2wsh, p2wsh}, may be repeated"`
	UserKeyPath string   `long:"userkeypath" description:"Derivation prefix of user address keys" default:"m/0/0"`
	Passphrase  bool     `long:"passphrase" description:"Prompt for the wallet passphrase of encrypted keys"`
	LiveFees    bool     `long:"livefees" description:"Use the explorer's recommended fee rate instead of the static recovery rate"`
}

// crossChainConfig builds a cross chain recovery.
type crossChainConfig struct {
	Source      string `long:"source" description:"Coin the lost funds are on" required:"true"`
	WalletFile  string `long:"walletfile" description:"Wallet export of the recovery wallet" required:"true"`
	WalletID    string `long:"wallet" description:"Recovery wallet id" required:"true"`
	TxID        string `long:"txid" description:"Transaction that paid the wrong chain" required:"true"`
	Destination string `long:"destination" description:"Address on the source chain receiving the funds" required:"true"`
	XPrv        string `long:"xprv" description:"User xprv; without it the wallet export's encrypted key is used"`
	Unsigned    bool   `long:"unsigned" description:"Build the sweep without signing it"`
}

// commands holds the option groups of every sub-command.
type commands struct {
	address    addressConfig
	explain    explainConfig
	recover    recoverConfig
	crossChain crossChainConfig
}

func defaultConfig() config {
	return config{
		ConfigFile:     defaultConfigFile,
		LogDir:         defaultLogDir,
		MaxLogFiles:    defaultMaxLogFiles,
		MaxLogFileSize: defaultMaxLogFileSize,
		DebugLevel:     defaultLogLevel,
		Network:        defaultNetwork,
		PriceFeedURL:   explorer.DefaultPriceFeedURL,
		RequestTimeout: explorer.DefaultRequestTimeout,
		RequestsPerSec: explorer.DefaultRequestsPerSecond,
	}
}

// newParser registers the sub-commands on a parser over cfg.
func newParser(cfg *config, cmds *commands,
	options flags.Options) (*flags.Parser, error) {

	parser := flags.NewParser(cfg, options)

	for _, c := range []struct {
		name, short, long string
		data              any
	}{
		{
			addressCmd, "Derive a wallet address",
			"Derive the multisig address of a wallet at a chain " +
				"and index", &cmds.address,
		},
		{
			explainCmd, "Explain a transaction",
			"Summarize the outputs, change, fee and signatures of " +
				"a transaction", &cmds.explain,
		},
		{
			recoverCmd, "Recover funds with the backup key",
			"Scan the wallet's addresses on a public explorer and " +
				"sweep them to a destination", &cmds.recover,
		},
		{
			crossChainCmd, "Recover funds sent on the wrong chain",
			"Sweep the wallet owned outputs of a transaction that " +
				"paid a wallet address on another chain",
			&cmds.crossChain,
		},
	} {
		_, err := parser.AddCommand(c.name, c.short, c.long, c.data)
		if err != nil {
			return nil, err
		}
	}

	return parser, nil
}

// cleanAndExpandPath expands environment variables and a leading ~ in
// path.
func cleanAndExpandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(defaultHomeDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}

	return filepath.Clean(os.ExpandEnv(path))
}

// loadConfig parses the config file and command line. Command line options
// take precedence over the file, which overrides the defaults. It returns
// the name of the active command.
func loadConfig(args []string) (*config, *commands, string, error) {
	// Pre-parse for an alternative config file. Errors other than help
	// surface in the final parse.
	preCfg := defaultConfig()
	preCmds := &commands{}
	preParser, err := newParser(&preCfg, preCmds, flags.HelpFlag)
	if err != nil {
		return nil, nil, "", err
	}
	if _, err := preParser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, nil, "", err
		}
	}

	cfg := defaultConfig()
	cmds := &commands{}
	parser, err := newParser(&cfg, cmds, flags.Default)
	if err != nil {
		return nil, nil, "", err
	}

	configFile := cleanAndExpandPath(preCfg.ConfigFile)
	err = flags.NewIniParser(parser).ParseFile(configFile)
	if err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, nil, "", fmt.Errorf("error parsing config "+
				"file: %w", err)
		}
	}

	if _, err := parser.ParseArgs(args); err != nil {
		return nil, nil, "", err
	}

	if parser.Active == nil {
		return nil, nil, "", errors.New("no command given, use -h " +
			"to show usage")
	}

	if err := cfg.validate(); err != nil {
		return nil, nil, "", err
	}

	return &cfg, cmds, parser.Active.Name, nil
}

// validate resolves the network and checks option values.
func (c *config) validate() error {
	net, err := netparams.Lookup(c.Network)
	if err != nil {
		return err
	}
	c.net = net

	c.LogDir = cleanAndExpandPath(c.LogDir)
	if c.StatsFile != "" {
		c.StatsFile = cleanAndExpandPath(c.StatsFile)
	}

	if c.MaxLogFiles < 0 || c.MaxLogFileSize <= 0 {
		return errors.New("maxlogfiles must not be negative and " +
			"maxlogfilesize must be positive")
	}

	if c.RequestsPerSec < 0 {
		return errors.New("requestspersec must not be negative")
	}

	_, err = c.krsProviders()

	return err
}

// krsProviders returns the default KRS providers with the configured fee
// addresses.
func (c *config) krsProviders() (recovery.KRSProviders, error) {
	providers := recovery.DefaultKRSProviders()

	for _, entry := range c.KRSFeeAddresses {
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" ||
			parts[2] == "" {

			return nil, fmt.Errorf("invalid krsfeeaddress %q, use "+
				"provider:coin:address", entry)
		}

		net, err := netparams.Lookup(parts[1])
		if err != nil {
			return nil, fmt.Errorf("krsfeeaddress %q: %w", entry, err)
		}

		if _, err := net.DecodeAddress(parts[2]); err != nil {
			return nil, fmt.Errorf("krsfeeaddress %q: %w", entry, err)
		}

		err = providers.SetFeeAddress(parts[0], parts[1], parts[2])
		if err != nil {
			return nil, err
		}
	}

	return providers, nil
}

// explorerConfig returns the explorer client configuration for net.
func (c *config) explorerConfig(net netparams.Network) *explorer.Config {
	url := net.ExplorerURL()
	if c.ExplorerURL != "" && net.Name() == c.net.Name() {
		url = c.ExplorerURL
	}

	cfg := explorer.DefaultConfig(url)
	cfg.RequestTimeout = c.RequestTimeout
	cfg.RequestsPerSecond = c.RequestsPerSec

	return cfg
}
