// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package recovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/bitgo/utxocore/chaincode"
	"github.com/bitgo/utxocore/explorer"
	"github.com/bitgo/utxocore/keychain"
	"github.com/bitgo/utxocore/multisig"
	"github.com/bitgo/utxocore/netparams"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/lightningnetwork/lnd/fn/v2"
	"golang.org/x/sync/errgroup"
)

// DefaultScan is the number of consecutive unused addresses after which a
// branch is considered exhausted.
const DefaultScan = 20

// Provider is the public chain data a backup key recovery scans. It is
// satisfied by *explorer.Client.
type Provider interface {
	// AddressInfo returns the transaction count and balance of an
	// address.
	AddressInfo(ctx context.Context,
		address string) (*explorer.AddressInfo, error)

	// AddressUTXOs returns the unspent outputs of an address.
	AddressUTXOs(ctx context.Context,
		address string) ([]explorer.UTXO, error)
}

// walletKeys are the three root keys of the wallet being recovered. The
// user key may hang its address keys off a custom prefix.
type walletKeys struct {
	user   *hdkeychain.ExtendedKey
	backup *hdkeychain.ExtendedKey
	bitgo  *hdkeychain.ExtendedKey

	userPrefix string
}

// pubKeys derives the address public keys at chain/index in wallet order.
func (k *walletKeys) pubKeys(chain, index uint32) ([]*btcec.PublicKey,
	error) {

	roots := []*hdkeychain.ExtendedKey{k.user, k.backup, k.bitgo}
	prefixes := []string{k.userPrefix, "", ""}

	pubs := make([]*btcec.PublicKey, 0, len(roots))
	for i, root := range roots {
		child, err := keychain.DeriveAddressKey(
			root, prefixes[i], chain, index,
		)
		if err != nil {
			return nil, err
		}

		pub, err := child.ECPubKey()
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, pub)
	}

	return pubs, nil
}

// descriptor builds the wallet address at chain/index.
func (k *walletKeys) descriptor(net netparams.Network, chain chaincode.Code,
	index uint32) (*multisig.Descriptor, error) {

	addrType, err := chain.Type()
	if err != nil {
		return nil, err
	}

	pubs, err := k.pubKeys(uint32(chain), index)
	if err != nil {
		return nil, err
	}

	d, err := multisig.CreateMultiSigAddress(
		net, pubs, multisig.DefaultThreshold, addrType,
	)
	if err != nil {
		return nil, err
	}
	d.Chain = chain
	d.Index = index

	return d, nil
}

// branchRecoveryState tracks the gap of one derivation branch: how many
// consecutive indexes past the last used one have been found unused.
type branchRecoveryState struct {
	// recoveryWindow is the number of consecutive unused indexes that
	// ends the branch.
	recoveryWindow uint32

	// nextUnfound is the successor of the highest used index.
	nextUnfound uint32

	// invalidChildren are indexes that derive to invalid keys. They do
	// not count towards the gap.
	invalidChildren map[uint32]struct{}
}

func newBranchRecoveryState(recoveryWindow uint32) *branchRecoveryState {
	return &branchRecoveryState{
		recoveryWindow:  recoveryWindow,
		invalidChildren: make(map[uint32]struct{}),
	}
}

// reportFound records a used index.
func (b *branchRecoveryState) reportFound(index uint32) {
	if index < b.nextUnfound {
		return
	}
	b.nextUnfound = index + 1

	for childIndex := range b.invalidChildren {
		if childIndex < index {
			delete(b.invalidChildren, childIndex)
		}
	}
}

// markInvalidChild records an index that cannot be derived.
func (b *branchRecoveryState) markInvalidChild(index uint32) {
	b.invalidChildren[index] = struct{}{}
}

// numInvalidInGap counts invalid indexes between the last used index and
// index.
func (b *branchRecoveryState) numInvalidInGap(index uint32) uint32 {
	var n uint32
	for childIndex := range b.invalidChildren {
		if b.nextUnfound <= childIndex && childIndex <= index {
			n++
		}
	}

	return n
}

// exhausted reports whether the window of unused indexes ending at index
// is complete.
func (b *branchRecoveryState) exhausted(index uint32) bool {
	if index+1 < b.nextUnfound {
		return false
	}

	gap := index + 1 - b.nextUnfound - b.numInvalidInGap(index)

	return gap >= b.recoveryWindow
}

// foundAddress is a funded wallet address with its unspents.
type foundAddress struct {
	desc  *multisig.Descriptor
	utxos []explorer.UTXO
}

// scanner walks the wallet's derivation branches on a public explorer.
type scanner struct {
	net      netparams.Network
	provider Provider
	keys     *walletKeys
	window   uint32
}

// scanBranch walks one chain code from index zero until the window of
// unused addresses is complete. Each step depends on the previous one, so
// a branch is scanned sequentially.
func (s *scanner) scanBranch(ctx context.Context,
	chain chaincode.Code) ([]foundAddress, error) {

	var (
		state = newBranchRecoveryState(s.window)
		found []foundAddress
	)
	for index := uint32(0); ; index++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		desc, err := s.keys.descriptor(s.net, chain, index)
		if errors.Is(err, hdkeychain.ErrInvalidChild) {
			log.Debugf("Skipping invalid child %d/%d", uint32(chain),
				index)

			state.markInvalidChild(index)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("derive %d/%d: %w", uint32(chain),
				index, err)
		}

		info, err := s.provider.AddressInfo(ctx, desc.Address)
		if err != nil {
			return nil, fmt.Errorf("unable to query %s: %w",
				desc.Address, err)
		}

		if info.TxCount > 0 {
			state.reportFound(index)

			if info.Balance > 0 {
				log.Infof("Found an address with balance: %s "+
					"with balance %d", desc.Address,
					info.Balance)

				utxos, err := s.provider.AddressUTXOs(
					ctx, desc.Address,
				)
				if err != nil {
					return nil, fmt.Errorf("unable to fetch "+
						"unspents of %s: %w",
						desc.Address, err)
				}

				found = append(found, foundAddress{
					desc: desc, utxos: utxos,
				})
			}
		}

		if state.exhausted(index) {
			log.Debugf("Branch %d exhausted at index %d",
				uint32(chain), index)

			return found, nil
		}
	}
}

// branches returns the external and internal chain codes of every address
// type the network supports and ignore does not name, in scan order.
func branches(net netparams.Network,
	ignore fn.Set[chaincode.AddressType]) []chaincode.Code {

	var codes []chaincode.Code
	for _, t := range chaincode.AddressTypes {
		if ignore.Contains(t) || !net.SupportsAddressType(t) {
			continue
		}

		pair, err := chaincode.CodesForType(t)
		if err != nil {
			continue
		}
		codes = append(codes, pair[0], pair[1])
	}

	return codes
}

// scan walks every branch concurrently and returns the funded addresses in
// branch order. The first failing branch cancels the others and its error
// is returned.
func (s *scanner) scan(ctx context.Context,
	codes []chaincode.Code) ([]foundAddress, error) {

	results := make([][]foundAddress, len(codes))

	g, gctx := errgroup.WithContext(ctx)
	for i, chain := range codes {
		g.Go(func() error {
			found, err := s.scanBranch(gctx, chain)
			if err != nil {
				return err
			}
			results[i] = found

			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []foundAddress
	for _, found := range results {
		all = append(all, found...)
	}

	return all, nil
}
