// This file is part of https://github.com/racingmars/tn3270e/
// Copyright 2020, 2025 by Matthew R. Wilson, licensed under the MIT license.
// See LICENSE in the project root for license information.

package tn3270e

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAIDRecordSkipsProtectedAndUnmodifiedFields(t *testing.T) {
	s := newTestSession()
	s.Screen.fa.set(0, faProtected)
	s.Screen.fa.set(10, faMDT)
	s.Screen.dc.set(11, 0xc1)
	s.Screen.fa.set(20, bit6(0)) // unprotected but MDT not set

	rec := s.buildAIDRecord(AIDEnter)
	require.NotEmpty(t, rec)
	assert.Equal(t, byte(AIDEnter), rec[0])
	assert.Contains(t, rec, byte(0xc1))
	assert.Contains(t, rec, orderSBA)
}

func TestBuildAIDRecordCharacterModeEmitsSAPairs(t *testing.T) {
	s := newTestSession()
	s.replyMode = replyCharacter
	s.replyCattrs[attrExtHighlight] = true
	s.Screen.fa.set(0, faMDT)
	s.Screen.dc.set(1, 0xc1)
	s.Screen.eh.set(1, 0xf1)

	rec := s.buildAIDRecord(AIDEnter)
	assert.Contains(t, rec, orderSA)
	assert.Contains(t, rec, attrExtHighlight)
}

func TestSendAIDRejectedWhenKeyboardLocked(t *testing.T) {
	s := newTestSession()
	s.pwait = true
	err := s.SendAID(AIDEnter)
	require.Error(t, err)
}

func TestSendAIDAttnSendsNoRecordButLocksKeyboard(t *testing.T) {
	s := newTestSession()
	err := s.SendAID(AIDAttn)
	require.NoError(t, err)
	assert.True(t, s.pwait)
	assert.Nil(t, s.lastInbound)
}

func TestBuildReadBufferRecordEmitsSFMarkersForEveryField(t *testing.T) {
	s := newTestSession()
	s.Screen.fa.set(5, faProtected)
	s.Screen.dc.set(6, 0xc1)

	rec := s.buildReadBufferRecord()
	assert.Equal(t, byte(AIDNone), rec[0])

	found := false
	for i := 0; i+1 < len(rec); i++ {
		if rec[i] == orderSF && rec[i+1] == faProtected {
			found = true
		}
	}
	assert.True(t, found, "expected an SF marker for the field-attribute cell")
}

func TestNextFieldBoundaryWrapsToFirstField(t *testing.T) {
	s := newTestSession()
	s.Screen.fa.set(10, bit6(0))
	s.Screen.fa.set(50, bit6(0))

	assert.Equal(t, 10, s.nextFieldBoundary(50))
	assert.Equal(t, 50, s.nextFieldBoundary(10))
}
