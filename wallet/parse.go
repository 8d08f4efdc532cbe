// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/bitgo/utxocore/keychain"
	"github.com/bitgo/utxocore/multisig"
	"github.com/bitgo/utxocore/netparams"
	"github.com/lightningnetwork/lnd/fn/v2"
	"golang.org/x/sync/errgroup"
)

// recipientThreshold is the recipient count above which outputs paying a
// recipient are left unclassified.
const recipientThreshold = 1000

// VerificationOptions tune how a prebuild is checked.
type VerificationOptions struct {
	// DisableNetworking forbids every platform and explorer lookup.
	DisableNetworking bool

	// Keychains are used instead of fetching the wallet keychains.
	Keychains fn.Option[keychain.Triple]

	// Addresses supplies address details out of band.
	Addresses map[string]AddressDetails

	// AllowPaygoOutput defaults to true. False drops the pay-as-you-go
	// allowance to zero.
	AllowPaygoOutput fn.Option[bool]

	// ConsiderMigratedFromAddressInternal defaults to true.
	ConsiderMigratedFromAddressInternal fn.Option[bool]
}

// VerifyParams is the input of ParseTransaction and VerifyTransaction.
type VerifyParams struct {
	TxParams     TxParams
	Prebuild     Prebuild
	Wallet       Info
	Verification VerificationOptions
}

// CustomChange holds the keys of a custom change wallet and the user key's
// signatures over them.
type CustomChange struct {
	Keys       keychain.Triple
	Signatures [3]string
}

// ParsedTransaction is the result of the parse phase.
type ParsedTransaction struct {
	Keychains     keychain.Triple
	KeySignatures KeySignatures

	// Outputs holds every output, classified.
	Outputs []Output

	// MissingOutputs are recipients without a matching output.
	MissingOutputs []Output

	// ExplicitExternalOutputs are external outputs the caller asked for.
	ExplicitExternalOutputs []Output

	// ImplicitExternalOutputs are external outputs nobody asked for.
	ImplicitExternalOutputs []Output

	// ChangeOutputs are the internal outputs.
	ChangeOutputs []Output

	ExplicitExternalSpendAmount int64
	ImplicitExternalSpendAmount int64

	NeedsCustomChangeKeySignatureVerification bool

	CustomChange fn.Option[CustomChange]
}

// VerifierConfig wires the collaborators of a Verifier.
type VerifierConfig struct {
	// Net is the network of the wallet.
	Net netparams.Network

	// Platform is consulted for keychains, wallets and address details.
	Platform Platform

	// TxFetcher resolves input amounts when the prebuild does not embed
	// the parent transactions. Optional.
	TxFetcher TxFetcher

	// Decrypter decrypts the user key for verification. Optional.
	Decrypter keychain.Decrypter
}

// Verifier is the transaction verification engine.
type Verifier struct {
	cfg VerifierConfig
}

// NewVerifier returns a Verifier using cfg.
func NewVerifier(cfg VerifierConfig) *Verifier {
	return &Verifier{cfg: cfg}
}

// outputDifference returns the outputs of a that are not matched by an
// output of b with the same address and amount, counting duplicates. The
// order of a is kept.
func outputDifference(a, b []Output) []Output {
	remove := make(map[string]int, len(b))
	for _, o := range b {
		remove[o.key()]++
	}

	total := make(map[string]int, len(a))
	for _, o := range a {
		total[o.key()]++
	}

	seen := make(map[string]int, len(a))
	diff := make([]Output, 0, len(a))
	for _, o := range a {
		k := o.key()
		keep := total[k] - min(remove[k], total[k])
		if seen[k] < keep {
			diff = append(diff, o)
		}
		seen[k]++
	}

	return diff
}

// sumOutputs adds the amounts of outs.
func sumOutputs(outs []Output) int64 {
	var sum int64
	for _, o := range outs {
		sum += o.Amount
	}

	return sum
}

// filterOutputs returns the outputs for which keep is true.
func filterOutputs(outs []Output, keep func(Output) bool) []Output {
	res := make([]Output, 0, len(outs))
	for _, o := range outs {
		if keep(o) {
			res = append(res, o)
		}
	}

	return res
}

// keychains returns the supplied keychains or fetches the wallet's.
func (v *Verifier) keychains(ctx context.Context,
	p *VerifyParams) (keychain.Triple, error) {

	if p.Verification.Keychains.IsSome() {
		triple := p.Verification.Keychains.UnwrapOr(keychain.Triple{})
		if err := triple.Validate(); err != nil {
			return triple, fmt.Errorf("%w: %v", ErrMissingKeychains, err)
		}

		return triple, nil
	}

	if p.Verification.DisableNetworking {
		return keychain.Triple{}, fmt.Errorf("cannot fetch keychains: %w",
			ErrNetworkingDisabled)
	}

	return FetchKeychains(ctx, v.cfg.Platform, &p.Wallet)
}

// customChange loads the keys of the wallet's custom change wallet, if any.
func (v *Verifier) customChange(ctx context.Context,
	p *VerifyParams) (fn.Option[CustomChange], error) {

	none := fn.None[CustomChange]()

	id := p.Wallet.CustomChangeWalletID
	if id == "" {
		return none, nil
	}

	if p.Verification.DisableNetworking {
		return none, fmt.Errorf("cannot fetch custom change wallet: %w",
			ErrNetworkingDisabled)
	}

	w, err := v.cfg.Platform.GetWallet(ctx, id)
	if err != nil {
		return none, fmt.Errorf("unable to fetch custom change wallet "+
			"%s: %w", id, err)
	}

	keys, err := FetchKeychains(ctx, v.cfg.Platform, w)
	if err != nil {
		return none, fmt.Errorf("failed to fetch keychains for custom "+
			"change wallet: %w", err)
	}

	return fn.Some(CustomChange{
		Keys:       keys,
		Signatures: p.Wallet.CustomChangeKeySignatures,
	}), nil
}

// ParseTransaction classifies every output of the prebuild as internal or
// external and sums the explicit and implicit external spend.
func (v *Verifier) ParseTransaction(ctx context.Context,
	p VerifyParams) (*ParsedTransaction, error) {

	net := v.cfg.Net

	if p.Prebuild.TxHex == "" {
		return nil, fmt.Errorf("missing required txPrebuild property "+
			"txHex: %w", ErrInvalidTxHex)
	}

	keys, err := v.keychains(ctx, &p)
	if err != nil {
		return nil, err
	}

	explanation, err := ExplainTransaction(net, ExplainParams{
		TxHex:  p.Prebuild.TxHex,
		TxInfo: fn.Some(p.Prebuild.TxInfo),
	})
	if err != nil {
		return nil, err
	}

	allOutputs := append(
		append([]Output{}, explanation.Outputs...),
		explanation.ChangeOutputs...,
	)

	// Only outputs paying an address can be classified.
	for _, out := range allOutputs {
		if out.Address == "" {
			return nil, fmt.Errorf("output of %d satoshis: %w",
				out.Amount, ErrUnsupportedOutputScript)
		}
	}

	expected := make([]Output, 0, len(p.TxParams.Recipients))
	for _, r := range p.TxParams.Recipients {
		addr, err := net.CanonicalAddress(r.Address)
		if err != nil {
			return nil, fmt.Errorf("invalid recipient %s: %w",
				r.Address, err)
		}
		expected = append(expected, Output{Address: addr, Amount: r.Amount})
	}

	missing := outputDifference(expected, allOutputs)

	custom, err := v.customChange(ctx, &p)
	if err != nil {
		return nil, err
	}

	classifier := &outputClassifier{
		net:      net,
		platform: v.cfg.Platform,
		params:   &p,
		pubs:     keys.Pubs(),
		custom:   custom,
	}

	details := make([]Output, len(allOutputs))
	g, gctx := errgroup.WithContext(ctx)
	for i, out := range allOutputs {
		g.Go(func() error {
			o, err := classifier.classify(gctx, out)
			if err != nil {
				return err
			}
			details[i] = o

			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	needsCustom := false
	for _, o := range details {
		needsCustom = needsCustom ||
			o.NeedsCustomChangeKeySignatureVerification
	}

	implicit := outputDifference(details, expected)
	explicit := outputDifference(details, implicit)

	explicitExternal := filterOutputs(explicit, Output.IsExternal)
	implicitExternal := filterOutputs(implicit, Output.IsExternal)

	parsed := &ParsedTransaction{
		Keychains:                   keys,
		KeySignatures:               p.Wallet.KeySignatures,
		Outputs:                     details,
		MissingOutputs:              missing,
		ExplicitExternalOutputs:     explicitExternal,
		ImplicitExternalOutputs:     implicitExternal,
		ChangeOutputs:               filterOutputs(details, Output.IsInternal),
		ExplicitExternalSpendAmount: sumOutputs(explicitExternal),
		ImplicitExternalSpendAmount: sumOutputs(implicitExternal),
		CustomChange:                custom,

		NeedsCustomChangeKeySignatureVerification: needsCustom,
	}

	log.Debugf("Parsed %d outputs: explicit external spend %d, implicit "+
		"external spend %d, %d missing", len(details),
		parsed.ExplicitExternalSpendAmount,
		parsed.ImplicitExternalSpendAmount, len(missing))

	return parsed, nil
}

// outputClassifier decides whether outputs belong to the wallet.
type outputClassifier struct {
	net      netparams.Network
	platform Platform
	params   *VerifyParams
	pubs     []string
	custom   fn.Option[CustomChange]
}

// addressDetails gathers the details of addr from the prebuild, the
// verification options and finally the platform.
func (c *outputClassifier) addressDetails(ctx context.Context,
	addr string) (AddressDetails, error) {

	details := AddressDetails{Address: addr}
	if d, ok := c.params.Prebuild.TxInfo.WalletAddressDetails[addr]; ok {
		details = details.merge(d)
	}
	if d, ok := c.params.Verification.Addresses[addr]; ok {
		details = details.merge(d)
	}

	if !details.IsEmpty() || c.params.Verification.DisableNetworking {
		return details, nil
	}

	fetched, err := c.platform.GetAddressDetails(
		ctx, c.params.Wallet.ID, addr,
	)
	if err != nil {
		return details, err
	}
	log.Tracef("Downloaded address %s details", addr)

	return details.merge(*fetched), nil
}

// verify re-derives addr from pubs using details.
func (c *outputClassifier) verify(addr string, details AddressDetails,
	pubs []string) error {

	return multisig.VerifyAddress(c.net, multisig.VerifyAddressParams{
		Address:     addr,
		Chain:       details.Chain,
		Index:       details.Index,
		AddressType: details.addressType(),
		Keychains:   pubs,
	})
}

// classify returns out with External set, or unset for large recipient
// lists.
func (c *outputClassifier) classify(ctx context.Context,
	out Output) (Output, error) {

	recipients := c.params.TxParams.Recipients
	if len(recipients) > recipientThreshold {
		for _, r := range recipients {
			if r.Address == out.Address {
				return out, nil
			}
		}
	}

	details, err := c.addressDetails(ctx, out.Address)
	if err == nil {
		err = c.verify(out.Address, details, c.pubs)
	}
	if err == nil {
		log.Tracef("Address %s verification passed", out.Address)

		out.External = fn.Some(false)
		return out, nil
	}

	log.Debugf("Address %s verification failed: %v", out.Address, err)

	return c.handleVerifyError(out, details, err)
}

// handleVerifyError classifies an output whose address did not re-derive
// from the wallet keys. Failures that do not prove the address foreign are
// returned.
func (c *outputClassifier) handleVerifyError(out Output,
	details AddressDetails, err error) (Output, error) {

	var (
		unexpected *multisig.UnexpectedAddressError
		badLocator *multisig.InvalidAddressDerivationPropertyError
	)
	notFound := errors.Is(err, ErrWalletAddressNotFound)
	isUnexpected := errors.As(err, &unexpected)

	switch {
	case notFound || isUnexpected:
		if isUnexpected && !notFound {
			if c.params.Wallet.MigratedFrom != "" &&
				c.params.Wallet.MigratedFrom == out.Address {

				log.Debugf("Address %s was migrated from a v1 wallet",
					out.Address)

				considerInternal := c.params.Verification.
					ConsiderMigratedFromAddressInternal.UnwrapOr(true)
				out.External = fn.Some(!considerInternal)

				return out, nil
			}

			if c.isCustomChange(out.Address, details) {
				log.Debugf("Address %s derived from the custom "+
					"change keys", out.Address)

				out.External = fn.Some(false)
				out.NeedsCustomChangeKeySignatureVerification = true

				return out, nil
			}
		}

		log.Debugf("Address %s presumed external", out.Address)
		out.External = fn.Some(true)

		return out, nil

	case errors.As(err, &badLocator) &&
		out.Address == c.params.TxParams.ChangeAddress:

		out.External = fn.Some(false)
		return out, nil

	default:
		log.Errorf("Address classification failed for address %s: %v",
			out.Address, err)

		return out, err
	}
}

// isCustomChange reports whether addr re-derives from the custom change
// wallet's keys.
func (c *outputClassifier) isCustomChange(addr string,
	details AddressDetails) bool {

	var ok bool
	c.custom.WhenSome(func(cc CustomChange) {
		ok = c.verify(addr, details, cc.Keys.Pubs()) == nil
	})

	return ok
}
