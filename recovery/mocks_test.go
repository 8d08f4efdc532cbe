package recovery

import (
	"context"

	"github.com/bitgo/utxocore/explorer"
	"github.com/bitgo/utxocore/keychain"
	"github.com/bitgo/utxocore/pkg/btcunit"
	"github.com/bitgo/utxocore/wallet"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

var (
	_ Provider        = (*mockProvider)(nil)
	_ SourceProvider  = (*mockProvider)(nil)
	_ TxVerifier      = (*mockVerifyingProvider)(nil)
	_ PriceSource     = (*mockPriceSource)(nil)
	_ FeeRateSource   = (*mockFeeRateSource)(nil)
	_ wallet.Platform = (*mockPlatform)(nil)
)

// mockProvider is a mock implementation of the Provider and SourceProvider
// interfaces.
type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) AddressInfo(_ context.Context,
	address string) (*explorer.AddressInfo, error) {

	args := m.Called(address)
	info, _ := args.Get(0).(*explorer.AddressInfo)

	return info, args.Error(1)
}

func (m *mockProvider) AddressUTXOs(_ context.Context,
	address string) ([]explorer.UTXO, error) {

	args := m.Called(address)
	utxos, _ := args.Get(0).([]explorer.UTXO)

	return utxos, args.Error(1)
}

func (m *mockProvider) TransactionOutputs(_ context.Context,
	txid string) ([]explorer.TxOutput, error) {

	args := m.Called(txid)
	outputs, _ := args.Get(0).([]explorer.TxOutput)

	return outputs, args.Error(1)
}

func (m *mockProvider) UnspentsForAddresses(_ context.Context,
	addresses []string) ([]explorer.UTXO, error) {

	args := m.Called(addresses)
	utxos, _ := args.Get(0).([]explorer.UTXO)

	return utxos, args.Error(1)
}

// mockVerifyingProvider is a mockProvider that can also decode
// transactions.
type mockVerifyingProvider struct {
	mockProvider
}

func (m *mockVerifyingProvider) VerifyRecoveryTx(_ context.Context,
	txHex string) (string, error) {

	args := m.Called(txHex)
	if txid, ok := args.Get(0).(func(string) string); ok {
		return txid(txHex), args.Error(1)
	}

	return args.String(0), args.Error(1)
}

// mockPriceSource is a mock implementation of the PriceSource interface.
type mockPriceSource struct {
	mock.Mock
}

func (m *mockPriceSource) USDPrice(_ context.Context,
	id string) (decimal.Decimal, error) {

	args := m.Called(id)
	price, _ := args.Get(0).(decimal.Decimal)

	return price, args.Error(1)
}

// mockFeeRateSource is a mock implementation of the FeeRateSource
// interface.
type mockFeeRateSource struct {
	mock.Mock
}

func (m *mockFeeRateSource) RecommendedFeeRate(
	_ context.Context) (btcunit.SatPerVByte, error) {

	args := m.Called()
	rate, _ := args.Get(0).(btcunit.SatPerVByte)

	return rate, args.Error(1)
}

// mockPlatform is a mock implementation of the wallet.Platform interface.
type mockPlatform struct {
	mock.Mock
}

func (m *mockPlatform) GetKeychain(_ context.Context,
	id string) (*keychain.Keychain, error) {

	args := m.Called(id)
	k, _ := args.Get(0).(*keychain.Keychain)

	return k, args.Error(1)
}

func (m *mockPlatform) GetWallet(_ context.Context,
	id string) (*wallet.Info, error) {

	args := m.Called(id)
	w, _ := args.Get(0).(*wallet.Info)

	return w, args.Error(1)
}

func (m *mockPlatform) GetAddressDetails(_ context.Context, walletID,
	address string) (*wallet.AddressDetails, error) {

	args := m.Called(walletID, address)
	d, _ := args.Get(0).(*wallet.AddressDetails)

	return d, args.Error(1)
}

func (m *mockPlatform) GetLatestBlockHeight(_ context.Context) (int32,
	error) {

	args := m.Called()
	return int32(args.Int(0)), args.Error(1)
}
