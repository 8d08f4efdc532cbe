package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/bitgo/utxocore/netparams"
	"github.com/bitgo/utxocore/recovery"
	"github.com/bitgo/utxocore/wallet"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/jedib0t/go-pretty/v6/table"
)

// amount formats base units as coins.
func amount(net netparams.Network, units int64) string {
	if net.BaseFactor() == btcutil.SatoshiPerBitcoin {
		return btcutil.Amount(units).Format(btcutil.AmountBTC)
	}

	return strconv.FormatInt(units, 10)
}

// renderExplanation writes the outputs, change, fee and signature counts of
// a transaction as tables.
func renderExplanation(w io.Writer, net netparams.Network,
	e *wallet.Explanation) {

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Transaction " + e.ID)
	t.AppendHeader(table.Row{"Kind", "Address", "Amount"})

	for _, o := range e.Outputs {
		t.AppendRow(table.Row{"output", o.Address, amount(net, o.Amount)})
	}
	for _, o := range e.ChangeOutputs {
		t.AppendRow(table.Row{"change", o.Address, amount(net, o.Amount)})
	}

	t.AppendFooter(table.Row{
		"total", "", amount(net, e.OutputAmount+e.ChangeAmount),
	})
	t.Render()

	s := table.NewWriter()
	s.SetOutputMirror(w)
	s.SetStyle(table.StyleLight)
	s.AppendHeader(table.Row{"Input", "Valid signatures"})
	for i, n := range e.InputSignatures {
		s.AppendRow(table.Row{i, n})
	}

	e.Fee.WhenSome(func(fee wallet.FeeInfo) {
		s.AppendFooter(table.Row{"fee", amount(net, fee.Fee)})
	})
	if e.LockTime != 0 {
		s.AppendFooter(table.Row{"locktime", e.LockTime})
	}
	s.Render()
}

// renderRecovery writes a summary table of a backup key recovery.
func renderRecovery(w io.Writer, net netparams.Network,
	r *recovery.Recovery) {

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Recovery of " + net.Name())
	t.AppendHeader(table.Row{"Unspent", "Address", "Path", "Value"})

	for _, in := range r.Inputs {
		t.AppendRow(table.Row{
			in.ID, in.Address, in.ChainPath, amount(net, in.Value),
		})
	}

	t.AppendFooter(table.Row{"recovered", "", "",
		amount(net, r.RecoveryAmount)})
	t.AppendFooter(table.Row{"network fee", "", "",
		amount(net, r.NetworkFee)})
	if r.KRSFee > 0 {
		t.AppendFooter(table.Row{"krs fee", "", "",
			amount(net, r.KRSFee)})
	}
	t.Render()
}

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(data))

	return err
}
