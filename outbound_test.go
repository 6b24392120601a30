// This file is part of https://github.com/racingmars/tn3270e/
// Copyright 2020, 2025 by Matthew R. Wilson, licensed under the MIT license.
// See LICENSE in the project root for license information.

package tn3270e

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession() *Session {
	return NewSession(Config{PrimaryCodepage: 37}, NewRuntime(nil))
}

func TestHandleWriteEWErasesScreen(t *testing.T) {
	s := newTestSession()
	s.Screen.dc.set(5, 0xc1)

	rec := []byte{cmdEW, 0xc0} // WCC with reset-MDT bit clear, just exercise erase
	require.NoError(t, s.processOutboundRecord(rec))
	assert.Equal(t, byte(0), s.Screen.dc.at(5))
}

func TestHandleWriteEWAResizesToAlternate(t *testing.T) {
	s := newTestSession()
	s.Config.AltRows, s.Config.AltCols = 27, 132

	rec := []byte{cmdEWA, 0x00}
	require.NoError(t, s.processOutboundRecord(rec))
	assert.Equal(t, 27*132, s.Screen.BufferSize())
}

func TestOrderSFStartsUnprotectedFieldByDefault(t *testing.T) {
	s := newTestSession()
	rec := []byte{cmdW, 0x00, orderSF, 0x00}
	require.NoError(t, s.processOutboundRecord(rec))

	addr, attr := s.Screen.Field(0)
	assert.Equal(t, 0, addr)
	assert.False(t, attr.Protected())
}

func TestOrderSFEDefaultsFieldAttributeWhenNoPairGiven(t *testing.T) {
	s := newTestSession()
	rec := []byte{cmdW, 0x00, orderSFE, 0x00} // count = 0 pairs
	require.NoError(t, s.processOutboundRecord(rec))

	addr, attr := s.Screen.Field(0)
	assert.Equal(t, 0, addr)
	assert.False(t, attr.Protected())
}

func TestOrderSBAMovesWritePosition(t *testing.T) {
	s := newTestSession()
	addrBytes := encodeAddr(100, s.Screen.BufferSize(), s.Screen.force14Bit)
	rec := append([]byte{cmdW, 0x00, orderSBA}, addrBytes...)
	rec = append(rec, 0xc1) // data byte written at bufadd after SBA
	require.NoError(t, s.processOutboundRecord(rec))
	assert.Equal(t, byte(0xc1), s.Screen.dc.at(100))
}

func TestOrderRARepeatsFillByte(t *testing.T) {
	s := newTestSession()
	stopBytes := encodeAddr(5, s.Screen.BufferSize(), s.Screen.force14Bit)
	rec := append([]byte{cmdW, 0x00, orderRA}, stopBytes...)
	rec = append(rec, 0xc1)
	require.NoError(t, s.processOutboundRecord(rec))
	for i := 0; i < 5; i++ {
		assert.Equal(t, byte(0xc1), s.Screen.dc.at(i), "position %d", i)
	}
}

func TestEraseAllUnprotectedClearsOnlyUnprotectedFields(t *testing.T) {
	s := newTestSession()
	s.Screen.fa.set(0, bit6(0)) // unprotected field at 0
	s.Screen.dc.set(1, 0xc1)
	s.Screen.fa.set(10, faProtected|faMDT)
	s.Screen.dc.set(11, 0xc2)

	s.eraseAllUnprotected()
	assert.Equal(t, byte(0), s.Screen.dc.at(1))
	assert.Equal(t, byte(0xc2), s.Screen.dc.at(11), "protected field data must survive EAU")
	assert.True(t, FieldAttr(s.Screen.fa.at(10)).MDT(), "protected field MDT untouched by EAU")
}

func TestHandleWriteResetsMDTWhenWCCBitSet(t *testing.T) {
	s := newTestSession()
	s.Screen.fa.set(0, faMDT)

	rec := []byte{cmdW, wccResetMDT}
	require.NoError(t, s.processOutboundRecord(rec))
	assert.False(t, FieldAttr(s.Screen.fa.at(0)).MDT())
}

func TestProcessOutboundRecordRejectsUnknownCommand(t *testing.T) {
	s := newTestSession()
	err := s.processOutboundRecord([]byte{0x00})
	require.Error(t, err)
}

func TestHandleWriteStructuredFieldRejectsBadLength(t *testing.T) {
	s := newTestSession()
	err := s.handleWriteStructuredField([]byte{0x00, 0x05, sfidEraseReset})
	require.Error(t, err)
}
