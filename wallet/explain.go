// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"slices"

	"github.com/bitgo/utxocore/multisig"
	"github.com/bitgo/utxocore/netparams"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// ExplainParams is the input of ExplainTransaction.
type ExplainParams struct {
	TxHex string

	// TxInfo supplies change addresses and the input amounts needed to
	// count segwit signatures.
	TxInfo fn.Option[TxInfo]

	FeeInfo fn.Option[FeeInfo]
}

// Explanation is a human oriented summary of a transaction.
type Explanation struct {
	ID string `json:"id"`

	Outputs       []Output `json:"outputs"`
	ChangeOutputs []Output `json:"changeOutputs"`

	OutputAmount int64 `json:"outputAmount"`
	ChangeAmount int64 `json:"changeAmount"`

	Fee fn.Option[FeeInfo] `json:"-"`

	// LockTime is zero when the transaction has none.
	LockTime uint32 `json:"locktime,omitempty"`

	// InputSignatures counts the valid signatures of each input.
	InputSignatures []int `json:"inputSignatures"`

	// Signatures is the largest entry of InputSignatures.
	Signatures int `json:"signatures"`
}

// outputAddress returns the encoded address paid by pkScript, or the empty
// string for scripts without one.
func outputAddress(net netparams.Network, pkScript []byte) string {
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(
		pkScript, net.Params(),
	)
	if err != nil || len(addrs) != 1 {
		return ""
	}

	return addrs[0].EncodeAddress()
}

// ExplainTransaction splits the outputs of a transaction into payments and
// change and counts the valid signatures of every input.
func ExplainTransaction(net netparams.Network,
	p ExplainParams) (*Explanation, error) {

	tx, err := DecodeTx(p.TxHex)
	if err != nil {
		return nil, err
	}

	info := p.TxInfo.UnwrapOr(TxInfo{})

	e := &Explanation{
		ID:            tx.TxHash().String(),
		Outputs:       []Output{},
		ChangeOutputs: []Output{},
		Fee:           p.FeeInfo,
		LockTime:      tx.LockTime,
	}

	for _, out := range tx.TxOut {
		o := Output{
			Address: outputAddress(net, out.PkScript),
			Amount:  out.Value,
		}

		if o.Address != "" &&
			slices.Contains(info.ChangeAddresses, o.Address) {

			e.ChangeAmount += o.Amount
			e.ChangeOutputs = append(e.ChangeOutputs, o)

			continue
		}

		e.OutputAmount += o.Amount
		e.Outputs = append(e.Outputs, o)
	}

	values := make(map[string]int64, len(info.Unspents))
	for _, u := range info.Unspents {
		values[u.ID] = u.Value
	}

	e.InputSignatures = make([]int, len(tx.TxIn))
	for idx := range tx.TxIn {
		e.InputSignatures[idx] = inputSignatureCount(
			net, tx, idx, values,
		)
		e.Signatures = max(e.Signatures, e.InputSignatures[idx])
	}

	return e, nil
}

// inputSignatureCount counts the valid signatures of input idx. Inputs whose
// amount is required but unknown count zero.
func inputSignatureCount(net netparams.Network, tx *wire.MsgTx, idx int,
	values map[string]int64) int {

	in := tx.TxIn[idx]
	if len(in.SignatureScript) == 0 && len(in.Witness) == 0 {
		log.Tracef("No signature script or witness for input %d", idx)
		return 0
	}

	amount := fn.None[int64]()
	if v, ok := values[in.PreviousOutPoint.String()]; ok {
		amount = fn.Some(v)
	}

	needsAmount := len(in.Witness) > 0 || net.UsesForkID()
	if needsAmount && amount.IsNone() {
		log.Debugf("Unable to count signatures of input %d without its "+
			"amount", idx)

		return 0
	}

	return multisig.CountValidSignatures(net, tx, idx, amount)
}
