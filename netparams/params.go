// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netparams

import (
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
)

// Replay protection addresses of the bitcoin fork coins.
const (
	forkReplayProtectionMainnet = "33p1q7mTGyeM5UnZERGiMcVUkY12SCsatA"
	forkReplayProtectionTestnet = "2MuMnPoSDgWEpNWH28X2nLtYMXQJCyT61eY"
)

// chainOverrides lists the parameters that differ from the bitcoin network a
// chain is derived from. Extended key versions are kept from bitcoin since
// wallet keys are always exchanged as xpub/xprv.
type chainOverrides struct {
	name          string
	net           uint32
	pubKeyHashID  byte
	scriptHashID  byte
	privateKeyID  byte
	bech32HRP     string
	hdCoinType    uint32
	witnessPubKey byte
	witnessScript byte
}

// deriveParams copies base and applies the overrides, so that the result
// stays typed for the btcsuite script and address packages.
func deriveParams(base *chaincfg.Params, o chainOverrides) *chaincfg.Params {
	p := *base

	p.Name = o.name
	p.Net = wire.BitcoinNet(o.net)
	p.PubKeyHashAddrID = o.pubKeyHashID
	p.ScriptHashAddrID = o.scriptHashID
	p.PrivateKeyID = o.privateKeyID
	p.Bech32HRPSegwit = o.bech32HRP
	p.WitnessPubKeyHashAddrID = o.witnessPubKey
	p.WitnessScriptHashAddrID = o.witnessScript
	p.HDCoinType = o.hdCoinType

	return &p
}

var (
	// LitecoinMainNetParams are the litecoin mainnet parameters.
	LitecoinMainNetParams = deriveParams(&chaincfg.MainNetParams,
		chainOverrides{
			name:         "litecoin",
			net:          0xdbb6c0fb,
			pubKeyHashID: 0x30,
			scriptHashID: 0x32,
			privateKeyID: 0xb0,
			bech32HRP:    "ltc",
			hdCoinType:   2,
		})

	// LitecoinTestNetParams are the litecoin testnet4 parameters.
	LitecoinTestNetParams = deriveParams(&chaincfg.TestNet3Params,
		chainOverrides{
			name:         "litecoin-testnet",
			net:          0xf1c8d2fd,
			pubKeyHashID: 0x6f,
			scriptHashID: 0x3a,
			privateKeyID: 0xef,
			bech32HRP:    "tltc",
			hdCoinType:   1,
		})

	// BitcoinCashMainNetParams are the bitcoin cash mainnet parameters.
	BitcoinCashMainNetParams = deriveParams(&chaincfg.MainNetParams,
		chainOverrides{
			name:         "bitcoincash",
			net:          0xe8f3e1e3,
			pubKeyHashID: 0x00,
			scriptHashID: 0x05,
			privateKeyID: 0x80,
			hdCoinType:   145,
		})

	// BitcoinCashTestNetParams are the bitcoin cash testnet parameters.
	BitcoinCashTestNetParams = deriveParams(&chaincfg.TestNet3Params,
		chainOverrides{
			name:         "bitcoincash-testnet",
			net:          0xf4f3e5f4,
			pubKeyHashID: 0x6f,
			scriptHashID: 0xc4,
			privateKeyID: 0xef,
			hdCoinType:   1,
		})

	// BitcoinSVMainNetParams are the bitcoin sv mainnet parameters.
	BitcoinSVMainNetParams = deriveParams(&chaincfg.MainNetParams,
		chainOverrides{
			name:         "bitcoinsv",
			net:          0xe8f3e1e3,
			pubKeyHashID: 0x00,
			scriptHashID: 0x05,
			privateKeyID: 0x80,
			hdCoinType:   236,
		})

	// BitcoinSVTestNetParams are the bitcoin sv testnet parameters.
	BitcoinSVTestNetParams = deriveParams(&chaincfg.TestNet3Params,
		chainOverrides{
			name:         "bitcoinsv-testnet",
			net:          0xf4e5f3f4,
			pubKeyHashID: 0x6f,
			scriptHashID: 0xc4,
			privateKeyID: 0xef,
			hdCoinType:   1,
		})

	// DogecoinMainNetParams are the dogecoin mainnet parameters.
	DogecoinMainNetParams = deriveParams(&chaincfg.MainNetParams,
		chainOverrides{
			name:         "dogecoin",
			net:          0xc0c0c0c0,
			pubKeyHashID: 0x1e,
			scriptHashID: 0x16,
			privateKeyID: 0x9e,
			hdCoinType:   3,
		})

	// DogecoinTestNetParams are the dogecoin testnet parameters.
	DogecoinTestNetParams = deriveParams(&chaincfg.TestNet3Params,
		chainOverrides{
			name:         "dogecoin-testnet",
			net:          0xdcb7c1fc,
			pubKeyHashID: 0x71,
			scriptHashID: 0xc4,
			privateKeyID: 0xf1,
			hdCoinType:   1,
		})
)

func init() {
	register(&baseNetwork{
		name:          "btc",
		family:        "btc",
		params:        &chaincfg.MainNetParams,
		segwit:        true,
		crossChainFee: 80,
		priceID:       "bitcoin",
		explorerURL:   "https://blockstream.info/api",
	})
	register(&baseNetwork{
		name:          "tbtc",
		family:        "btc",
		params:        &chaincfg.TestNet3Params,
		testnet:       true,
		segwit:        true,
		crossChainFee: 80,
		priceID:       "bitcoin",
		explorerURL:   "https://blockstream.info/testnet/api",
	})

	register(&baseNetwork{
		name:          "ltc",
		family:        "ltc",
		params:        LitecoinMainNetParams,
		segwit:        true,
		crossChainFee: 100,
		priceID:       "litecoin",
		explorerURL:   "https://litecoinspace.org/api",
	})
	register(&baseNetwork{
		name:          "tltc",
		family:        "ltc",
		params:        LitecoinTestNetParams,
		testnet:       true,
		segwit:        true,
		crossChainFee: 100,
		priceID:       "litecoin",
		explorerURL:   "https://litecoinspace.org/testnet/api",
	})

	register(&forkNetwork{
		baseNetwork: baseNetwork{
			name:          "bch",
			family:        "bch",
			params:        BitcoinCashMainNetParams,
			crossChainFee: 20,
			priceID:       "bitcoin-cash",
		},
		replayProtection: forkReplayProtectionMainnet,
	})
	register(&forkNetwork{
		baseNetwork: baseNetwork{
			name:          "tbch",
			family:        "bch",
			params:        BitcoinCashTestNetParams,
			testnet:       true,
			crossChainFee: 20,
			priceID:       "bitcoin-cash",
		},
		replayProtection: forkReplayProtectionTestnet,
	})

	register(&forkNetwork{
		baseNetwork: baseNetwork{
			name:          "bsv",
			family:        "bsv",
			params:        BitcoinSVMainNetParams,
			crossChainFee: 20,
			priceID:       "bitcoin-cash-sv",
		},
		replayProtection: forkReplayProtectionMainnet,
	})
	register(&forkNetwork{
		baseNetwork: baseNetwork{
			name:          "tbsv",
			family:        "bsv",
			params:        BitcoinSVTestNetParams,
			testnet:       true,
			crossChainFee: 20,
			priceID:       "bitcoin-cash-sv",
		},
		replayProtection: forkReplayProtectionTestnet,
	})

	register(&baseNetwork{
		name:          "doge",
		family:        "doge",
		params:        DogecoinMainNetParams,
		crossChainFee: 1000,
		priceID:       "dogecoin",
	})
	register(&baseNetwork{
		name:          "tdoge",
		family:        "doge",
		params:        DogecoinTestNetParams,
		testnet:       true,
		crossChainFee: 1000,
		priceID:       "dogecoin",
	})
}
