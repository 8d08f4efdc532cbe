// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestCodeType checks every chain code maps back to its address type and
// purpose.
func TestCodeType(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		code    Code
		typ     AddressType
		purpose Purpose
	}{
		{P2shExternal, P2sh, External},
		{P2shInternal, P2sh, Internal},
		{P2shP2wshExternal, P2shP2wsh, External},
		{P2shP2wshInternal, P2shP2wsh, Internal},
		{P2wshExternal, P2wsh, External},
		{P2wshInternal, P2wsh, Internal},
	}

	for _, tc := range testCases {
		typ, err := tc.code.Type()
		require.NoError(t, err)
		require.Equal(t, tc.typ, typ)

		purpose, err := tc.code.Purpose()
		require.NoError(t, err)
		require.Equal(t, tc.purpose, purpose)
		require.True(t, tc.code.IsValid())
	}
}

// TestUnknownCode checks codes outside the table are rejected.
func TestUnknownCode(t *testing.T) {
	t.Parallel()

	for _, c := range []Code{2, 9, 12, 19, 22, 30, 40} {
		_, err := c.Type()
		require.ErrorIs(t, err, ErrUnknownChainCode)
		require.False(t, c.IsValid())
	}
}

// TestCodesForType checks the external/internal pair lookup.
func TestCodesForType(t *testing.T) {
	t.Parallel()

	codes, err := CodesForType(P2wsh)
	require.NoError(t, err)
	require.Equal(t, [2]Code{20, 21}, codes)

	ext, err := ExternalCode(P2shP2wsh)
	require.NoError(t, err)
	require.Equal(t, Code(10), ext)

	in, err := InternalCode(P2sh)
	require.NoError(t, err)
	require.Equal(t, Code(1), in)

	_, err = CodesForType("p2tr")
	require.ErrorIs(t, err, ErrUnknownAddressType)

	_, err = ParseAddressType("p2tr")
	require.ErrorIs(t, err, ErrUnknownAddressType)

	typ, err := ParseAddressType("p2shP2wsh")
	require.NoError(t, err)
	require.True(t, typ.IsSegwit())
	require.False(t, P2sh.IsSegwit())
}
