package btcunit

import (
	"fmt"

	"github.com/btcsuite/btcd/blockchain"
)

// baseUnit stores a transaction size in weight units. All other size units
// are derived from it.
type baseUnit struct {
	wu uint64
}

// ToWU converts the unit to a WeightUnit.
func (b baseUnit) ToWU() WeightUnit {
	return WeightUnit{b}
}

// ToVB converts the unit to a VByte.
func (b baseUnit) ToVB() VByte {
	return VByte{b}
}

// WeightUnit expresses a transaction size in weight units, where the weight
// is `base size * 3 + total size`.
type WeightUnit struct {
	baseUnit
}

// NewWeightUnit creates a new WeightUnit.
func NewWeightUnit(val uint64) WeightUnit {
	return WeightUnit{baseUnit{wu: val}}
}

// String returns the size in wu.
func (w WeightUnit) String() string {
	return fmt.Sprintf("%d wu", w.wu)
}

// VByte expresses a transaction size in virtual bytes, one quarter of a
// weight unit rounded up.
type VByte struct {
	baseUnit
}

// NewVByte creates a new VByte.
func NewVByte(val uint64) VByte {
	return VByte{baseUnit{wu: val * blockchain.WitnessScaleFactor}}
}

// Uint64 returns the size in whole vbytes, rounded up.
func (v VByte) Uint64() uint64 {
	return (v.wu + blockchain.WitnessScaleFactor - 1) /
		blockchain.WitnessScaleFactor
}

// Add returns the sum of both sizes.
func (v VByte) Add(other VByte) VByte {
	return VByte{baseUnit{wu: v.wu + other.wu}}
}

// String returns the size in vb.
func (v VByte) String() string {
	return fmt.Sprintf("%d vb", v.Uint64())
}

// KVByte expresses a transaction size in kilo-virtual-bytes.
type KVByte struct {
	baseUnit
}

// NewKVByte creates a new KVByte.
func NewKVByte(val uint64) KVByte {
	return KVByte{baseUnit{wu: val * kilo * blockchain.WitnessScaleFactor}}
}

// String returns the size in kvb.
func (k KVByte) String() string {
	return fmt.Sprintf("%d kvb", k.ToVB().Uint64()/kilo)
}
