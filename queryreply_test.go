// This file is part of https://github.com/racingmars/tn3270e/
// Copyright 2020, 2025 by Matthew R. Wilson, licensed under the MIT license.
// See LICENSE in the project root for license information.

package tn3270e

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleSetReplyModeUpdatesMode(t *testing.T) {
	s := newTestSession()
	require.NoError(t, s.handleSetReplyMode([]byte{0x00, 0x01}))
	assert.Equal(t, replyExtendedField, s.replyMode)
}

func TestHandleSetReplyModeRejectsNonZeroPartition(t *testing.T) {
	s := newTestSession()
	err := s.handleSetReplyMode([]byte{0x01, 0x00})
	require.Error(t, err)
}

func TestHandleSetReplyModeRejectsUnknownMode(t *testing.T) {
	s := newTestSession()
	err := s.handleSetReplyMode([]byte{0x00, 0x09})
	require.Error(t, err)
}

func TestHandleEraseResetClearsScreenAndExtendedColor(t *testing.T) {
	s := newTestSession()
	s.extendedColorEntered = true
	s.Screen.dc.set(5, 0xc1)

	require.NoError(t, s.handleEraseReset([]byte{0x00}))
	assert.False(t, s.extendedColorEntered)
	assert.Equal(t, byte(0), s.Screen.dc.at(5))
}

func TestHandleOutbound3270DSQueryRequiresBroadcastPID(t *testing.T) {
	s, _ := newTestSessionWithConn()
	err := s.handleOutbound3270DS([]byte{0x00, 0x02})
	require.Error(t, err)
}

func TestHandleOutbound3270DSQuerySendsQueryReply(t *testing.T) {
	s, conn := newTestSessionWithConn()
	require.NoError(t, s.handleOutbound3270DS([]byte{0xff, 0x02}))
	assert.NotEmpty(t, conn.buf.Bytes())
}

func TestBuildQueryReplyIncludesExpectedQCodes(t *testing.T) {
	s := newTestSession()
	rec := s.buildQueryReply()
	assert.Equal(t, byte(0x88), rec[0])
	assert.Contains(t, rec, qcodeUsableArea)
	assert.Contains(t, rec, qcodeCharacterSets)
	assert.Contains(t, rec, qcodeDDM)
}

func TestDispatchStructuredFieldIgnoresUnknownID(t *testing.T) {
	s := newTestSession()
	err := s.dispatchStructuredField(0xfe, []byte{0x00})
	require.NoError(t, err)
}
