// This file is part of https://github.com/racingmars/tn3270e/
// Copyright 2020, 2025 by Matthew R. Wilson, licensed under the MIT license.
// See LICENSE in the project root for license information.

package tn3270e

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestFramerParsesRecord(t *testing.T) {
	f := NewFramer()
	data := []byte{0x01, 0x02, 0xff, 0xff, 0x03, tnIAC, tnEOR}
	events, err := f.Feed(data)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventRecord, events[0].Kind)
	assert.Equal(t, []byte{0x01, 0x02, 0xff, 0x03}, events[0].Record)
}

func TestFramerParsesNegotiationCommands(t *testing.T) {
	f := NewFramer()
	data := []byte{tnIAC, tnWILL, optBinary, tnIAC, tnDO, optEOR}
	events, err := f.Feed(data)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventWill, events[0].Kind)
	assert.Equal(t, optBinary, events[0].Option)
	assert.Equal(t, EventDo, events[1].Kind)
	assert.Equal(t, optEOR, events[1].Option)
}

func TestFramerParsesSubnegotiation(t *testing.T) {
	f := NewFramer()
	data := []byte{tnIAC, tnSB, optTermType, tnSendVal, tnIAC, tnSE}
	events, err := f.Feed(data)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventSubnegotiation, events[0].Kind)
	assert.Equal(t, []byte{optTermType, tnSendVal}, events[0].Subnegotiation)
}

func TestFramerHandlesSplitFeed(t *testing.T) {
	f := NewFramer()
	events1, err := f.Feed([]byte{0x01, 0x02, tnIAC})
	require.NoError(t, err)
	assert.Empty(t, events1)

	events2, err := f.Feed([]byte{tnEOR})
	require.NoError(t, err)
	require.Len(t, events2, 1)
	assert.Equal(t, []byte{0x01, 0x02}, events2[0].Record)
}

func TestEncodeRecordEscapesIAC(t *testing.T) {
	rec := EncodeRecord([]byte{0x01, tnIAC, 0x02})
	assert.Equal(t, []byte{0x01, tnIAC, tnIAC, 0x02, tnIAC, tnEOR}, rec)
}

func TestEncodeRecordFeedRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		payload := rapid.SliceOfN(rapid.Uint8(), 0, 32).Draw(rt, "payload")
		encoded := EncodeRecord(payload)

		f := NewFramer()
		events, err := f.Feed(encoded)
		require.NoError(rt, err)
		require.Len(rt, events, 1)
		assert.True(rt, bytes.Equal(payload, events[0].Record))
	})
}

func TestNegotiatorRepliesToDoTN3270E(t *testing.T) {
	var out bytes.Buffer
	cfg := &Config{UseTN3270E: true}
	n := newNegotiator(cfg, &out, discardLogger())

	err := n.HandleEvent(TelnetEvent{Kind: EventDo, Option: optTN3270E})
	require.NoError(t, err)
	assert.Equal(t, []byte{tnIAC, tnWILL, optTN3270E}, out.Bytes())
	assert.True(t, n.tn3270e)
}

func TestNegotiatorDeclinesUnknownOption(t *testing.T) {
	var out bytes.Buffer
	cfg := &Config{}
	n := newNegotiator(cfg, &out, discardLogger())

	err := n.HandleEvent(TelnetEvent{Kind: EventDo, Option: 99})
	require.NoError(t, err)
	assert.Equal(t, []byte{tnIAC, tnWONT, 99}, out.Bytes())
}
