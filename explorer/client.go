// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package explorer talks to public Esplora compatible block explorers and to
// a USD price feed. It is the only package performing network reads on
// behalf of recovery.
package explorer

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/bitgo/utxocore/pkg/btcunit"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNotFound is returned when the explorer does not know the queried
	// object.
	ErrNotFound = errors.New("not found")

	// ErrTxMismatch is returned when the explorer serves a transaction whose
	// hash differs from the requested id.
	ErrTxMismatch = errors.New("explorer returned a different transaction")
)

const (
	// DefaultRequestTimeout bounds one HTTP request.
	DefaultRequestTimeout = 30 * time.Second

	// DefaultMaxRetries is the number of retries of a failed lookup.
	DefaultMaxRetries = 2

	// DefaultRequestsPerSecond paces requests towards public explorers.
	DefaultRequestsPerSecond = 10

	// maxParallelLookups bounds concurrent per-address lookups.
	maxParallelLookups = 4
)

// Config holds the configuration of an explorer client.
type Config struct {
	// URL is the base URL of the Esplora API, without a trailing slash.
	URL string

	// RequestTimeout is the timeout of individual HTTP requests.
	RequestTimeout time.Duration

	// MaxRetries is the number of retries of a failed request.
	MaxRetries int

	// RequestsPerSecond paces requests. Zero disables pacing.
	RequestsPerSecond int
}

// DefaultConfig returns the default configuration for url.
func DefaultConfig(url string) *Config {
	return &Config{
		URL:               url,
		RequestTimeout:    DefaultRequestTimeout,
		MaxRetries:        DefaultMaxRetries,
		RequestsPerSecond: DefaultRequestsPerSecond,
	}
}

// TxStatus is the confirmation status of a transaction.
type TxStatus struct {
	Confirmed   bool  `json:"confirmed"`
	BlockHeight int64 `json:"block_height,omitempty"`
}

// UTXO is an unspent output of an address.
type UTXO struct {
	TxID   string   `json:"txid"`
	Vout   uint32   `json:"vout"`
	Value  int64    `json:"value"`
	Status TxStatus `json:"status"`

	// Address is the queried address. It is not part of the API response.
	Address string `json:"-"`
}

// OutPoint returns the `txid:vout` id of the output.
func (u *UTXO) OutPoint() string {
	return fmt.Sprintf("%s:%d", u.TxID, u.Vout)
}

// AddressInfo summarizes the history of an address.
type AddressInfo struct {
	// TxCount counts confirmed and mempool transactions touching the
	// address.
	TxCount int

	// Balance is the confirmed plus mempool balance.
	Balance int64
}

// TxOutput is an output of a transaction.
type TxOutput struct {
	Index   uint32
	Address string
	Value   int64
}

type addressStats struct {
	FundedTxoSum int64 `json:"funded_txo_sum"`
	SpentTxoSum  int64 `json:"spent_txo_sum"`
	TxCount      int   `json:"tx_count"`
}

type addressResponse struct {
	Address      string       `json:"address"`
	ChainStats   addressStats `json:"chain_stats"`
	MempoolStats addressStats `json:"mempool_stats"`
}

type txVout struct {
	ScriptPubKey     string `json:"scriptpubkey"`
	ScriptPubKeyAddr string `json:"scriptpubkey_address,omitempty"`
	Value            int64  `json:"value"`
}

type txResponse struct {
	TxID   string   `json:"txid"`
	Vout   []txVout `json:"vout"`
	Status TxStatus `json:"status"`
}

type recommendedFees struct {
	FastestFee  float64 `json:"fastestFee"`
	HalfHourFee float64 `json:"halfHourFee"`
	HourFee     float64 `json:"hourFee"`
}

// Client is an HTTP client for the Esplora REST API.
type Client struct {
	cfg *Config
	req *requester
}

// NewClient creates a new explorer client with the given configuration.
func NewClient(cfg *Config) *Client {
	url := strings.TrimSuffix(cfg.URL, "/")

	return &Client{
		cfg: cfg,
		req: newRequester(
			"explorer", url, cfg.RequestTimeout, cfg.MaxRetries+1,
			cfg.RequestsPerSecond,
		),
	}
}

// getJSON fetches path and decodes the JSON body into v.
func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	body, err := c.req.get(ctx, path)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// TipHeight returns the height of the best block.
func (c *Client) TipHeight(ctx context.Context) (int32, error) {
	body, err := c.req.get(ctx, "/blocks/tip/height")
	if err != nil {
		return 0, err
	}

	height, err := strconv.ParseInt(strings.TrimSpace(string(body)), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("failed to parse height: %w", err)
	}

	return int32(height), nil
}

// AddressInfo returns the transaction count and balance of address.
func (c *Client) AddressInfo(ctx context.Context,
	address string) (*AddressInfo, error) {

	var resp addressResponse
	if err := c.getJSON(ctx, "/address/"+address, &resp); err != nil {
		return nil, err
	}

	chain, mempool := resp.ChainStats, resp.MempoolStats

	return &AddressInfo{
		TxCount: chain.TxCount + mempool.TxCount,
		Balance: chain.FundedTxoSum - chain.SpentTxoSum +
			mempool.FundedTxoSum - mempool.SpentTxoSum,
	}, nil
}

// AddressUTXOs returns the unspent outputs of address.
func (c *Client) AddressUTXOs(ctx context.Context,
	address string) ([]UTXO, error) {

	var utxos []UTXO
	err := c.getJSON(ctx, "/address/"+address+"/utxo", &utxos)
	if err != nil {
		return nil, err
	}

	for i := range utxos {
		utxos[i].Address = address
	}

	return utxos, nil
}

// UnspentsForAddresses returns the unspent outputs of every address,
// grouped in the order of addresses.
func (c *Client) UnspentsForAddresses(ctx context.Context,
	addresses []string) ([]UTXO, error) {

	results := make([][]UTXO, len(addresses))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelLookups)
	for i, addr := range addresses {
		g.Go(func() error {
			utxos, err := c.AddressUTXOs(gctx, addr)
			if err != nil {
				return fmt.Errorf("unable to fetch unspents of %s: %w",
					addr, err)
			}
			results[i] = utxos

			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []UTXO
	for _, utxos := range results {
		all = append(all, utxos...)
	}

	return all, nil
}

// TransactionHex returns the raw hex of txid.
func (c *Client) TransactionHex(ctx context.Context,
	txid string) (string, error) {

	body, err := c.req.get(ctx, "/tx/"+txid+"/hex")
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(body)), nil
}

// FetchTx returns the transaction with the given id. The served bytes must
// hash to txid.
func (c *Client) FetchTx(ctx context.Context,
	txid chainhash.Hash) (*wire.MsgTx, error) {

	txHex, err := c.TransactionHex(ctx, txid.String())
	if err != nil {
		return nil, err
	}

	raw, err := hex.DecodeString(txHex)
	if err != nil {
		return nil, fmt.Errorf("failed to decode tx hex: %w", err)
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to deserialize tx: %w", err)
	}

	if tx.TxHash() != txid {
		return nil, fmt.Errorf("%w: requested %v, got %v", ErrTxMismatch,
			txid, tx.TxHash())
	}

	return tx, nil
}

// TransactionOutputs returns the outputs of txid. Outputs without an address
// have an empty Address.
func (c *Client) TransactionOutputs(ctx context.Context,
	txid string) ([]TxOutput, error) {

	var resp txResponse
	if err := c.getJSON(ctx, "/tx/"+txid, &resp); err != nil {
		return nil, err
	}

	outputs := make([]TxOutput, 0, len(resp.Vout))
	for i, out := range resp.Vout {
		outputs = append(outputs, TxOutput{
			Index:   uint32(i),
			Address: out.ScriptPubKeyAddr,
			Value:   out.Value,
		})
	}

	return outputs, nil
}

// RecommendedFeeRate returns the mempool `hourFee` estimate.
func (c *Client) RecommendedFeeRate(
	ctx context.Context) (btcunit.SatPerVByte, error) {

	var fees recommendedFees
	if err := c.getJSON(ctx, "/v1/fees/recommended", &fees); err != nil {
		return btcunit.SatPerVByte{}, err
	}

	if fees.HourFee <= 0 {
		return btcunit.SatPerVByte{}, fmt.Errorf("invalid hourFee %v",
			fees.HourFee)
	}

	rate := btcutil.Amount(math.Ceil(fees.HourFee))
	log.Debugf("Recommended fee rate from %s is %d sat/vB", c.cfg.URL,
		int64(rate))

	return btcunit.NewSatPerVByte(rate), nil
}
