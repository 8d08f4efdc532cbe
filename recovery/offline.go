package recovery

import (
	"encoding/binary"
	"fmt"

	"github.com/bitgo/utxocore/keychain"
	"github.com/bitgo/utxocore/multisig"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// OfflineVaultTx is an unsigned sweep in the form offline signing tools
// consume.
type OfflineVaultTx struct {
	TxHex string `json:"txHex"`

	TxInfo struct {
		Unspents []RecoveryInput `json:"unspents"`
	} `json:"txInfo"`

	FeeInfo struct{} `json:"feeInfo"`

	Coin string `json:"coin"`
}

// fingerprint is the BIP32 fingerprint of a root key: the first four bytes
// of its public key hash, read little endian as PSBTs store it.
func fingerprint(root *hdkeychain.ExtendedKey) (uint32, error) {
	pub, err := root.ECPubKey()
	if err != nil {
		return 0, err
	}

	hash := btcutil.Hash160(pub.SerializeCompressed())

	return binary.LittleEndian.Uint32(hash[:4]), nil
}

// derivations returns the BIP32 derivation of every key of the address
// at chain/index, relative to each wallet root key.
func (k *walletKeys) derivations(chain,
	index uint32) ([]*psbt.Bip32Derivation, error) {

	roots := []*hdkeychain.ExtendedKey{k.user, k.backup, k.bitgo}
	prefixes := []string{k.userPrefix, "", ""}

	derivs := make([]*psbt.Bip32Derivation, 0, len(roots))
	for i, root := range roots {
		prefix := prefixes[i]
		if prefix == "" {
			prefix = keychain.DefaultDerivationPrefix
		}

		path, err := keychain.ParsePath(prefix)
		if err != nil {
			return nil, err
		}
		path = append(path, chain, index)

		child, err := keychain.DerivePath(root, path)
		if err != nil {
			return nil, err
		}

		pub, err := child.ECPubKey()
		if err != nil {
			return nil, err
		}

		fp, err := fingerprint(root)
		if err != nil {
			return nil, err
		}

		derivs = append(derivs, &psbt.Bip32Derivation{
			PubKey:               pub.SerializeCompressed(),
			MasterKeyFingerprint: fp,
			Bip32Path:            path,
		})
	}

	return derivs, nil
}

// exportPSBT wraps the unsigned sweep in a base64 PSBT carrying what an
// offline signer needs per input: the scripts, the key derivations and,
// for segwit inputs, the spent output.
func exportPSBT(tx *wire.MsgTx, inputs []*multisig.Descriptor,
	values []int64, keys *walletKeys,
	hashType txscript.SigHashType) (string, error) {

	packet, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return "", fmt.Errorf("unable to create psbt: %w", err)
	}

	for i, d := range inputs {
		in := &packet.Inputs[i]
		in.SighashType = hashType
		in.RedeemScript = d.RedeemScript
		in.WitnessScript = d.WitnessScript

		if d.AddressType.IsSegwit() {
			in.WitnessUtxo = wire.NewTxOut(values[i], d.OutputScript)
		}

		in.Bip32Derivation, err = keys.derivations(
			uint32(d.Chain), d.Index,
		)
		if err != nil {
			return "", fmt.Errorf("input %d: %w", i, err)
		}
	}

	return packet.B64Encode()
}
