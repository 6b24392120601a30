// This file is part of https://github.com/racingmars/tn3270e/
// Copyright 2020, 2025 by Matthew R. Wilson, licensed under the MIT license.
// See LICENSE in the project root for license information.

package tn3270e

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestEncodeAddr12Bit(t *testing.T) {
	encoded := encodeAddr(0, 1920, false)
	assert.Equal(t, []byte{0x40, 0x40}, encoded)

	encoded = encodeAddr(919, 1920, false)
	assert.Equal(t, []byte{0x4e, 0xd7}, encoded)
}

func TestDecodeAddr12Bit(t *testing.T) {
	decoded, err := decodeAddr(0x40, 0x40, false, false)
	require.NoError(t, err)
	assert.Equal(t, 0, decoded)

	decoded, err = decodeAddr(0x4e, 0xd7, false, false)
	require.NoError(t, err)
	assert.Equal(t, 919, decoded)
}

func TestDecodeAddrRejectsReserved14BitPattern(t *testing.T) {
	_, err := decodeAddr(0x80, 0x00, true, false)
	require.Error(t, err)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, ErrProtocolViolation, e.Kind)
}

func TestAddrModeForThresholds(t *testing.T) {
	assert.Equal(t, addr12Bit, addrModeFor(1920, false))
	assert.Equal(t, addr14Bit, addrModeFor(1920, true))
	assert.Equal(t, addr14Bit, addrModeFor(4096, false))
	assert.Equal(t, addr16Bit, addrModeFor(16384, false))
}

func TestBit6RoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		v := byte(rapid.IntRange(0, 63).Draw(rt, "v"))
		encoded := bit6(v)
		decoded, ok := bit6decode(encoded)
		require.True(rt, ok)
		assert.Equal(rt, v, decoded)
	})
}

func TestEncodeDecodeAddrRoundTrip12Bit(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		bufferSize := 1920
		a := rapid.IntRange(0, bufferSize-1).Draw(rt, "a")
		b := encodeAddr(a, bufferSize, false)
		decoded, err := decodeAddr(b[0], b[1], false, false)
		require.NoError(rt, err)
		assert.Equal(rt, a, decoded)
	})
}

func TestEncodeDecodeAddrRoundTrip14Bit(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		bufferSize := 3564
		a := rapid.IntRange(0, bufferSize-1).Draw(rt, "a")
		b := encodeAddr(a, bufferSize, true)
		decoded, err := decodeAddr(b[0], b[1], true, false)
		require.NoError(rt, err)
		assert.Equal(rt, a, decoded)
	})
}

func TestBufferCircularReadWrite(t *testing.T) {
	buf := newBuffer(10)
	require.NoError(t, buf.write(8, []byte{1, 2, 3, 4}))
	assert.Equal(t, []byte{1, 2}, buf.read(8, 10))
	assert.Equal(t, []byte{3, 4}, buf.read(0, 2))
}

func TestRowSegmentsWholeBufferOnEqualBounds(t *testing.T) {
	segs := rowSegments(5, 5, 80, 80)
	total := 0
	for _, s := range segs {
		n := s.End - s.Start
		if n <= 0 {
			n += 80
		}
		total += n
	}
	assert.Equal(t, 80, total)
}
