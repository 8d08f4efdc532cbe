package keychain

import (
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

// KeyPair is a freshly generated extended key pair.
type KeyPair struct {
	Pub string `json:"pub"`
	Prv string `json:"prv"`
}

// GenerateKeyPair creates a BIP32 master key from seed, or from a random
// seed when seed is nil.
func GenerateKeyPair(seed []byte) (*KeyPair, error) {
	if seed == nil {
		var err error
		seed, err = hdkeychain.GenerateSeed(
			hdkeychain.RecommendedSeedLen,
		)
		if err != nil {
			return nil, err
		}
	}

	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}

	pub, err := master.Neuter()
	if err != nil {
		return nil, err
	}

	return &KeyPair{Pub: pub.String(), Prv: master.String()}, nil
}
