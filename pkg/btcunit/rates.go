// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package btcunit provides fee rate and transaction size units, and the
// conservative virtual-size table used to estimate multisig sweep fees.
package btcunit

import (
	"log/slog"
	"math"
	"math/big"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
)

const (
	// kilo is a generic multiplier for kilo units.
	kilo = 1000

	// floatStringPrecision is the number of decimal places used when
	// printing a fee rate.
	floatStringPrecision = 3
)

var (
	// ZeroSatPerVByte is a fee rate of 0 sat/vb.
	ZeroSatPerVByte = NewSatPerVByte(0)

	// ZeroSatPerKVByte is a fee rate of 0 sat/kvb.
	ZeroSatPerKVByte = NewSatPerKVByte(0)
)

// baseFeeRate stores a fee rate as satoshis per kilo-weight-unit. All public
// rate types are views over this representation.
type baseFeeRate struct {
	satsPerKWU *big.Rat
}

// newBaseFeeRate creates a rate of numerator/denominator sat/kwu. A zero
// denominator yields a zero rate.
func newBaseFeeRate(numerator btcutil.Amount, denominator uint64) baseFeeRate {
	if denominator == 0 {
		return baseFeeRate{satsPerKWU: big.NewRat(0, 1)}
	}

	return baseFeeRate{satsPerKWU: big.NewRat(
		int64(numerator), safeUint64ToInt64(denominator),
	)}
}

// feeForWeight multiplies the rate by the weight, optionally rounding the
// result up to the next whole satoshi.
func (f baseFeeRate) feeForWeight(wu WeightUnit, roundUp bool) btcutil.Amount {
	fee := new(big.Rat).Mul(
		f.satsPerKWU, big.NewRat(safeUint64ToInt64(wu.wu), kilo),
	)

	num, denom := fee.Num(), fee.Denom()
	if roundUp {
		num = new(big.Int).Add(num, denom)
		num.Sub(num, big.NewInt(1))
	}

	return btcutil.Amount(new(big.Int).Quo(num, denom).Int64())
}

// FeeForWeight returns the fee for the given weight, rounded down.
func (f baseFeeRate) FeeForWeight(wu WeightUnit) btcutil.Amount {
	return f.feeForWeight(wu, false)
}

// FeeForWeightRoundUp returns the fee for the given weight, rounded up.
func (f baseFeeRate) FeeForWeightRoundUp(wu WeightUnit) btcutil.Amount {
	return f.feeForWeight(wu, true)
}

// FeeForVByte returns the fee for the given virtual size, rounded down.
func (f baseFeeRate) FeeForVByte(vb VByte) btcutil.Amount {
	return f.FeeForWeight(vb.ToWU())
}

// ToSatPerVByte views the rate in sat/vb.
func (f baseFeeRate) ToSatPerVByte() SatPerVByte {
	return SatPerVByte{f}
}

// ToSatPerKVByte views the rate in sat/kvb.
func (f baseFeeRate) ToSatPerKVByte() SatPerKVByte {
	return SatPerKVByte{f}
}

// perVByte returns the rate expressed in sat/vb as a rational.
func (f baseFeeRate) perVByte() *big.Rat {
	return new(big.Rat).Mul(
		f.satsPerKWU, big.NewRat(blockchain.WitnessScaleFactor, kilo),
	)
}

// SatPerVByte is a fee rate in sat/vbyte.
type SatPerVByte struct {
	baseFeeRate
}

// NewSatPerVByte creates a fee rate of rate sat/vb.
func NewSatPerVByte(rate btcutil.Amount) SatPerVByte {
	return CalcSatPerVByte(rate, NewVByte(1))
}

// CalcSatPerVByte derives the fee rate paid by fee over vb.
func CalcSatPerVByte(fee btcutil.Amount, vb VByte) SatPerVByte {
	return SatPerVByte{newBaseFeeRate(fee*kilo, vb.wu)}
}

// String returns the rate in sat/vb with three decimals.
func (s SatPerVByte) String() string {
	return s.perVByte().FloatString(floatStringPrecision) + " sat/vb"
}

// Float64 returns the rate in sat/vb as a float. It is only meant for
// reporting.
func (s SatPerVByte) Float64() float64 {
	f, _ := s.perVByte().Float64()
	return f
}

// Equal returns true if both rates are identical.
func (s SatPerVByte) Equal(other SatPerVByte) bool {
	return s.satsPerKWU.Cmp(other.satsPerKWU) == 0
}

// GreaterThan returns true if s is strictly higher than other.
func (s SatPerVByte) GreaterThan(other SatPerVByte) bool {
	return s.satsPerKWU.Cmp(other.satsPerKWU) > 0
}

// LessThan returns true if s is strictly lower than other.
func (s SatPerVByte) LessThan(other SatPerVByte) bool {
	return s.satsPerKWU.Cmp(other.satsPerKWU) < 0
}

// SatPerKVByte is a fee rate in sat/kvbyte, the unit used by relay policy.
type SatPerKVByte struct {
	baseFeeRate
}

// NewSatPerKVByte creates a fee rate of rate sat/kvb.
func NewSatPerKVByte(rate btcutil.Amount) SatPerKVByte {
	return SatPerKVByte{newBaseFeeRate(
		rate*kilo, NewKVByte(1).wu,
	)}
}

// String returns the rate in sat/kvb.
func (s SatPerKVByte) String() string {
	perKVB := new(big.Rat).Mul(s.perVByte(), big.NewRat(kilo, 1))
	return perKVB.FloatString(floatStringPrecision) + " sat/kvb"
}

// Amount returns the rate as a whole amount per kvbyte, rounded down.
func (s SatPerKVByte) Amount() btcutil.Amount {
	return s.FeeForVByte(NewVByte(kilo))
}

// safeUint64ToInt64 converts a uint64 to an int64, capping at
// math.MaxInt64.
func safeUint64ToInt64(u uint64) int64 {
	if u > math.MaxInt64 {
		slog.Warn("Capping uint64 value to math.MaxInt64",
			slog.Uint64("old", u), slog.Int64("new", math.MaxInt64))

		return math.MaxInt64
	}

	return int64(u)
}
