package wallet

import (
	"context"

	"github.com/bitgo/utxocore/keychain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/mock"
)

var (
	_ Platform  = (*mockPlatform)(nil)
	_ TxFetcher = (*mockTxFetcher)(nil)
)

// mockPlatform is a mock implementation of the Platform interface.
type mockPlatform struct {
	mock.Mock
}

func (m *mockPlatform) GetKeychain(_ context.Context,
	id string) (*keychain.Keychain, error) {

	args := m.Called(id)
	k, _ := args.Get(0).(*keychain.Keychain)

	return k, args.Error(1)
}

func (m *mockPlatform) GetWallet(_ context.Context, id string) (*Info,
	error) {

	args := m.Called(id)
	w, _ := args.Get(0).(*Info)

	return w, args.Error(1)
}

func (m *mockPlatform) GetAddressDetails(_ context.Context, walletID,
	address string) (*AddressDetails, error) {

	args := m.Called(walletID, address)
	d, _ := args.Get(0).(*AddressDetails)

	return d, args.Error(1)
}

func (m *mockPlatform) GetLatestBlockHeight(_ context.Context) (int32,
	error) {

	args := m.Called()
	return int32(args.Int(0)), args.Error(1)
}

// mockTxFetcher is a mock implementation of the TxFetcher interface.
type mockTxFetcher struct {
	mock.Mock
}

func (m *mockTxFetcher) FetchTx(_ context.Context,
	txid chainhash.Hash) (*wire.MsgTx, error) {

	args := m.Called(txid)
	tx, _ := args.Get(0).(*wire.MsgTx)

	return tx, args.Error(1)
}
