// This file is part of https://github.com/racingmars/tn3270e/
// Copyright 2020, 2025 by Matthew R. Wilson, licensed under the MIT license.
// See LICENSE in the project root for license information.

package tn3270e

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostOfStripsPort(t *testing.T) {
	assert.Equal(t, "mainframe.example.com", hostOf("mainframe.example.com:23"))
	assert.Equal(t, "bare-host", hostOf("bare-host"))
}

func TestConfigTerminalTypeDefaultsToDynamic(t *testing.T) {
	var c Config
	assert.Equal(t, "IBM-DYNAMIC", c.terminalType())
	c.TerminalType = "IBM-3278-2-E"
	assert.Equal(t, "IBM-3278-2-E", c.terminalType())
}

func TestConfigDefaultPortDependsOnSecure(t *testing.T) {
	c := Config{}
	assert.Equal(t, 23, c.defaultPort())
	c.Secure = true
	assert.Equal(t, 992, c.defaultPort())
}

func TestNewSessionFallsBackToCodepage1047WhenUnknown(t *testing.T) {
	s := NewSession(Config{PrimaryCodepage: 999999}, nil)
	assert.NotNil(t, s.Codecs)
	assert.Equal(t, "1047", s.Codecs.slots[0].ID())
	assert.Equal(t, 24, s.Screen.Rows())
	assert.Equal(t, 80, s.Screen.Cols())
}

func TestMarkLostIsIdempotent(t *testing.T) {
	s := newTestSession()
	err1 := wrapError(ErrTransportLost, "first", nil)
	err2 := wrapError(ErrTransportLost, "second", nil)
	s.markLost(err1)
	s.markLost(err2)

	lost, err := s.Lost()
	assert.True(t, lost)
	assert.Equal(t, err1, err)
}

func TestHandleInboundRecordWithTN3270EHeaderRequiresDataType(t *testing.T) {
	s, conn := newTestSessionWithConn()
	s.tn3270eActive = true

	hdr := RecordHeader{DataType: dtSCSData}
	rec := append(hdr.Encode(), cmdEAU)
	err := s.handleInboundRecord(rec)
	require.Error(t, err)
	assert.Empty(t, conn.buf.Bytes())
}

func TestHandleInboundRecordSendsResponseWhenFlagAlways(t *testing.T) {
	s, conn := newTestSessionWithConn()
	s.tn3270eActive = true

	hdr := RecordHeader{DataType: dtData3270, ResponseFlag: responseFlagAlways, SeqNumber: 7}
	rec := append(hdr.Encode(), cmdEAU)
	require.NoError(t, s.handleInboundRecord(rec))
	assert.NotEmpty(t, conn.buf.Bytes())
}

func TestScreenAccessorsDelegateToScreen(t *testing.T) {
	s := newTestSession()
	s.Screen.fa.set(0, bit6(0))
	s.Screen.fa.set(10, faProtected)

	assert.Len(t, s.Fields(), 2)
	addr, attr := s.FieldAt(5)
	assert.Equal(t, 0, addr)
	assert.False(t, attr.Protected())
	assert.True(t, s.IsProtected(10))
	assert.Contains(t, s.String(), s.ID)
}
