package netparams

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/btcsuite/btcd/chaincfg"
)

const (
	hash160Len    = 20
	witnessV0SHLn = 32
)

// decodeAddress picks the encoding by prefix: an address starting with the
// network's bech32 HRP and separator is decoded as a witness v0 program,
// anything else as base58check. There is no fallback between the two.
func decodeAddress(addr string, params *chaincfg.Params,
	segwit bool) (btcutil.Address, error) {

	hrp := params.Bech32HRPSegwit
	if segwit && hrp != "" &&
		strings.HasPrefix(strings.ToLower(addr), hrp+"1") {

		log.Tracef("Decoding %s as bech32 on %s", addr, params.Name)

		return decodeBech32(addr, params)
	}

	log.Tracef("Decoding %s as base58check on %s", addr, params.Name)

	return decodeBase58(addr, params)
}

func decodeBech32(addr string, params *chaincfg.Params) (btcutil.Address,
	error) {

	hrp, data, version, err := bech32.DecodeGeneric(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidAddress, addr, err)
	}

	if hrp != params.Bech32HRPSegwit {
		return nil, fmt.Errorf("%w: %s: hrp %q does not match network",
			ErrInvalidAddress, addr, hrp)
	}

	if len(data) < 1 || data[0] != 0 || version != bech32.Version0 {
		return nil, fmt.Errorf("%w: %s: only witness version 0 is "+
			"supported", ErrInvalidAddress, addr)
	}

	program, err := bech32.ConvertBits(data[1:], 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidAddress, addr, err)
	}

	switch len(program) {
	case hash160Len:
		return btcutil.NewAddressWitnessPubKeyHash(program, params)

	case witnessV0SHLn:
		return btcutil.NewAddressWitnessScriptHash(program, params)

	default:
		return nil, fmt.Errorf("%w: %s: witness program length %d",
			ErrInvalidAddress, addr, len(program))
	}
}

func decodeBase58(addr string, params *chaincfg.Params) (btcutil.Address,
	error) {

	payload, version, err := base58.CheckDecode(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidAddress, addr, err)
	}

	if len(payload) != hash160Len {
		return nil, fmt.Errorf("%w: %s: payload length %d",
			ErrInvalidAddress, addr, len(payload))
	}

	switch version {
	case params.PubKeyHashAddrID:
		return btcutil.NewAddressPubKeyHash(payload, params)

	case params.ScriptHashAddrID:
		return btcutil.NewAddressScriptHashFromHash(payload, params)

	default:
		return nil, fmt.Errorf("%w: %s: version byte 0x%02x is not "+
			"valid for %s", ErrInvalidAddress, addr, version,
			params.Name)
	}
}
