// This file is part of https://github.com/racingmars/tn3270e/
// Copyright 2020, 2025 by Matthew R. Wilson, licensed under the MIT license.
// See LICENSE in the project root for license information.

package tn3270e

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeCharRejectsProtectedField(t *testing.T) {
	s := newTestSession()
	s.Screen.fa.set(0, faProtected)
	s.Screen.SetCurAddr(0) // the field-attribute cell itself is always protected

	err := s.TypeChar(0xc1)
	require.Error(t, err)
}

func TestTypeCharSetsDataMDTAndAdvancesCursor(t *testing.T) {
	s := newTestSession()
	s.Screen.fa.set(0, bit6(0))
	s.Screen.SetCurAddr(1)

	require.NoError(t, s.TypeChar(0xc1))
	assert.Equal(t, byte(0xc1), s.Screen.dc.at(1))
	assert.True(t, FieldAttr(s.Screen.fa.at(0)).MDT())
	assert.Equal(t, 2, s.Screen.CurAddr())
}

func TestKeyDataStopsAtProtectedBoundary(t *testing.T) {
	s := newTestSession()
	s.Screen.fa.set(0, bit6(0))
	s.Screen.fa.set(3, faProtected)
	s.Screen.SetCurAddr(1)

	err := s.KeyData([]byte{0xc1, 0xc2, 0xc3})
	require.Error(t, err)
	assert.Equal(t, byte(0xc1), s.Screen.dc.at(1))
	assert.Equal(t, byte(0xc2), s.Screen.dc.at(2))
}

func TestHomeMovesToFirstUnprotectedField(t *testing.T) {
	s := newTestSession()
	s.Screen.fa.set(10, bit6(0))
	s.Screen.fa.set(40, faProtected)

	require.NoError(t, s.Home())
	assert.Equal(t, 11, s.Screen.CurAddr())
}

func TestTabAdvancesToNextField(t *testing.T) {
	s := newTestSession()
	s.Screen.fa.set(0, bit6(0))
	s.Screen.fa.set(20, bit6(0))
	s.Screen.SetCurAddr(1)

	require.NoError(t, s.Tab())
	assert.Equal(t, 21, s.Screen.CurAddr())
}

func TestEraseEOFClearsToFieldEnd(t *testing.T) {
	s := newTestSession()
	s.Screen.fa.set(0, bit6(0))
	s.Screen.fa.set(5, faProtected)
	s.Screen.dc.set(2, 0xc1)
	s.Screen.dc.set(3, 0xc2)
	s.Screen.SetCurAddr(2)

	require.NoError(t, s.EraseEOF())
	assert.Equal(t, byte(0), s.Screen.dc.at(2))
	assert.Equal(t, byte(0), s.Screen.dc.at(3))
}

func TestInsertCharShiftsFieldRight(t *testing.T) {
	s := newTestSession()
	s.Screen.fa.set(0, bit6(0))
	s.Screen.fa.set(4, faProtected)
	s.Screen.dc.set(1, 0xc1)
	s.Screen.dc.set(2, 0xc2)
	s.Screen.SetCurAddr(1)

	require.NoError(t, s.InsertChar(0xc9))
	assert.Equal(t, byte(0xc9), s.Screen.dc.at(1))
	assert.Equal(t, byte(0xc1), s.Screen.dc.at(2))
	assert.Equal(t, byte(0xc2), s.Screen.dc.at(3))
}

func TestDeleteShiftsFieldLeft(t *testing.T) {
	s := newTestSession()
	s.Screen.fa.set(0, bit6(0))
	s.Screen.fa.set(4, faProtected)
	s.Screen.dc.set(1, 0xc1)
	s.Screen.dc.set(2, 0xc2)
	s.Screen.SetCurAddr(1)

	require.NoError(t, s.Delete())
	assert.Equal(t, byte(0xc2), s.Screen.dc.at(1))
	assert.Equal(t, byte(0), s.Screen.dc.at(3))
}

func TestPFRejectsOutOfRangeNumber(t *testing.T) {
	s := newTestSession()
	err := s.PF(0)
	require.Error(t, err)
	err = s.PF(25)
	require.Error(t, err)
}

func TestCheckUnlockedRejectsWhenPWaitSet(t *testing.T) {
	s := newTestSession()
	s.pwait = true
	require.Error(t, s.MoveCursor(5))
	require.Error(t, s.Home())
	require.Error(t, s.Tab())
}
