// This file is part of https://github.com/racingmars/tn3270e/
// Copyright 2020, 2025 by Matthew R. Wilson, licensed under the MIT license.
// See LICENSE in the project root for license information.

package tn3270e

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTN3270ENegotiatorDeviceTypeAccepted(t *testing.T) {
	n := newTN3270ENegotiator("IBM-3278-2-E", "IBM-3278-2", "")

	reply, err := n.HandleSubnegotiation([]byte{tn3270eSend, tn3270eDeviceType})
	require.NoError(t, err)
	assert.Equal(t, tn3270eDeviceType, reply[0])
	assert.Equal(t, tn3270eRequest, reply[1])

	payload := append([]byte{tn3270eDeviceType, tn3270eIs}, []byte("IBM-3278-2-E")...)
	reply, err = n.HandleSubnegotiation(payload)
	require.NoError(t, err)
	assert.Equal(t, "IBM-3278-2-E", n.NegotiatedType)
	assert.Equal(t, tn3270eFunctions, reply[0])
}

func TestTN3270ENegotiatorDeviceTypeFallback(t *testing.T) {
	n := newTN3270ENegotiator("IBM-DYNAMIC", "IBM-3278-2", "")

	payload := append([]byte{tn3270eDeviceType, tn3270eIs}, []byte("IBM-UNKNOWN")...)
	reply, err := n.HandleSubnegotiation(payload)
	require.NoError(t, err)
	assert.True(t, n.triedFallback)
	assert.Equal(t, tn3270eDeviceType, reply[0])
	assert.Contains(t, string(reply), "IBM-3278-2")
}

func TestTN3270EFunctionsIsLocksFunctions(t *testing.T) {
	n := newTN3270ENegotiator("IBM-3278-2-E", "IBM-3278-2", "")
	_, err := n.HandleSubnegotiation([]byte{tn3270eFunctions, tn3270eIs, responseFlagAlways})
	require.NoError(t, err)
	assert.True(t, n.FunctionsLocked)
	assert.True(t, n.Done)
}

func TestRecordHeaderRoundTrip(t *testing.T) {
	h := RecordHeader{DataType: dtData3270, ResponseFlag: responseFlagAlways, SeqNumber: 0x1234}
	encoded := h.Encode()

	decoded, rest, err := decodeRecordHeader(append(encoded, 0xaa, 0xbb))
	require.NoError(t, err)
	assert.Equal(t, h, decoded)
	assert.Equal(t, []byte{0xaa, 0xbb}, rest)
}

func TestDecodeRecordHeaderTooShort(t *testing.T) {
	_, _, err := decodeRecordHeader([]byte{0x00, 0x01})
	require.Error(t, err)
}
