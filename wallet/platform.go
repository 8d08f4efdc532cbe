package wallet

import (
	"context"
	"fmt"

	"github.com/bitgo/utxocore/keychain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
	"golang.org/x/sync/errgroup"
)

// Platform is the custodial API the verification engine consults.
type Platform interface {
	// GetKeychain returns the keychain with the given id.
	GetKeychain(ctx context.Context, id string) (*keychain.Keychain, error)

	// GetWallet returns the wallet record with the given id.
	GetWallet(ctx context.Context, id string) (*Info, error)

	// GetAddressDetails returns what the platform knows about an address
	// of the wallet. An address that is not on the wallet yields an error
	// wrapping ErrWalletAddressNotFound.
	GetAddressDetails(ctx context.Context, walletID,
		address string) (*AddressDetails, error)

	// GetLatestBlockHeight returns the current chain tip height.
	GetLatestBlockHeight(ctx context.Context) (int32, error)
}

// TxFetcher looks up confirmed or mempool transactions.
type TxFetcher interface {
	// FetchTx returns the transaction with the given id.
	FetchTx(ctx context.Context, txid chainhash.Hash) (*wire.MsgTx, error)
}

// FetchKeychains fetches the three keychains of w concurrently.
func FetchKeychains(ctx context.Context, p Platform,
	w *Info) (keychain.Triple, error) {

	var triple keychain.Triple

	g, ctx := errgroup.WithContext(ctx)
	for i, id := range w.KeyIDs {
		g.Go(func() error {
			k, err := p.GetKeychain(ctx, id)
			if err != nil {
				return fmt.Errorf("unable to fetch keychain %s: %w",
					id, err)
			}
			triple[i] = *k

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return triple, err
	}

	if err := triple.Validate(); err != nil {
		return triple, fmt.Errorf("%w: %v", ErrMissingKeychains, err)
	}

	return triple, nil
}

// PostProcessPrebuild sets the lock time of the prebuild to one block past
// its block height, fetching the tip height when none is recorded.
func PostProcessPrebuild(ctx context.Context, p Platform,
	prebuild Prebuild) (Prebuild, error) {

	height, err := unwrapOrFetch(ctx, prebuild.BlockHeight, p)
	if err != nil {
		return prebuild, err
	}

	tx, err := DecodeTx(prebuild.TxHex)
	if err != nil {
		return prebuild, err
	}
	tx.LockTime = uint32(height) + 1

	prebuild.TxHex, err = EncodeTx(tx)
	if err != nil {
		return prebuild, err
	}
	prebuild.BlockHeight = fn.Some(height)

	return prebuild, nil
}

func unwrapOrFetch(ctx context.Context, height fn.Option[int32],
	p Platform) (int32, error) {

	if height.IsSome() {
		return height.UnwrapOr(0), nil
	}

	return p.GetLatestBlockHeight(ctx)
}
