// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package btcunit

// VirtualSizes holds the conservative virtual size, in vbytes, of each
// input and output kind a multisig wallet produces. Input sizes assume a
// fully signed 2-of-3 input with worst-case signature lengths.
var VirtualSizes = struct {
	TxOverheadSize       uint64
	TxSegOverheadVSize   uint64
	TxP2shInputSize      uint64
	TxP2shP2wshInputSize uint64
	TxP2wshInputSize     uint64
	TxP2pkhOutputSize    uint64
	TxP2shOutputSize     uint64
	TxP2wshOutputSize    uint64
}{
	TxOverheadSize:       10,
	TxSegOverheadVSize:   11,
	TxP2shInputSize:      298,
	TxP2shP2wshInputSize: 140,
	TxP2wshInputSize:     105,
	TxP2pkhOutputSize:    34,
	TxP2shOutputSize:     32,
	TxP2wshOutputSize:    43,
}

// Dimensions counts the inputs and outputs of a transaction under
// construction so its virtual size can be estimated before signing.
type Dimensions struct {
	NP2shInputs      int
	NP2shP2wshInputs int
	NP2wshInputs     int

	// OutputVSize is the summed virtual size of all outputs.
	OutputVSize uint64
}

// AddP2shInputs adds n legacy multisig inputs.
func (d Dimensions) AddP2shInputs(n int) Dimensions {
	d.NP2shInputs += n
	return d
}

// AddP2shP2wshInputs adds n wrapped segwit multisig inputs.
func (d Dimensions) AddP2shP2wshInputs(n int) Dimensions {
	d.NP2shP2wshInputs += n
	return d
}

// AddP2wshInputs adds n native segwit multisig inputs.
func (d Dimensions) AddP2wshInputs(n int) Dimensions {
	d.NP2wshInputs += n
	return d
}

// AddOutputVSize adds an output of the given virtual size.
func (d Dimensions) AddOutputVSize(vsize uint64) Dimensions {
	d.OutputVSize += vsize
	return d
}

// HasSegwitInputs reports whether any input spends a witness program.
func (d Dimensions) HasSegwitInputs() bool {
	return d.NP2shP2wshInputs > 0 || d.NP2wshInputs > 0
}

// VSize returns the estimated virtual size. The segwit marker and flag
// raise the overhead by one vbyte once any segwit input is present.
func (d Dimensions) VSize() VByte {
	overhead := VirtualSizes.TxOverheadSize
	if d.HasSegwitInputs() {
		overhead = VirtualSizes.TxSegOverheadVSize
	}

	inputs := uint64(d.NP2shInputs)*VirtualSizes.TxP2shInputSize +
		uint64(d.NP2shP2wshInputs)*VirtualSizes.TxP2shP2wshInputSize +
		uint64(d.NP2wshInputs)*VirtualSizes.TxP2wshInputSize

	return NewVByte(overhead + inputs + d.OutputVSize)
}

// Fee returns the fee paid by a transaction of these dimensions at rate.
func (d Dimensions) Fee(rate SatPerVByte) int64 {
	return int64(rate.FeeForVByte(d.VSize()))
}
