// This file is part of https://github.com/racingmars/tn3270e/
// Copyright 2020, 2025 by Matthew R. Wilson, licensed under the MIT license.
// See LICENSE in the project root for license information.

package tn3270e

import "bytes"

// TN3270E subnegotiation message types and functions, per RFC 2355 §4 and
// spec.md §4.4. No teacher precedent (go3270 never negotiates TN3270E); the
// device-type retry-with-fallback behavior is grounded on
// original_source/tnz/tnz.py's device-type negotiation loop.
const (
	tn3270eSend          byte = 0x08
	tn3270eDeviceType    byte = 0x02
	tn3270eFunctions     byte = 0x03
	tn3270eIs            byte = 0x04
	tn3270eRequest       byte = 0x07
	tn3270eConnect       byte = 0x01

	tn3270eAssociate byte = 0x00
)

// TN3270E per-record header, spec.md §4.4.
const (
	dtData3270     byte = 0x00
	dtSCSData      byte = 0x01
	dtResponse     byte = 0x02
	dtBindImage    byte = 0x03
	dtUnbind       byte = 0x04
	dtNVTData      byte = 0x05
	dtRequest      byte = 0x06
	dtSSCPLUData   byte = 0x07
	dtPrintEOJ     byte = 0x08

	responseFlagNone  byte = 0
	responseFlagError byte = 1
	responseFlagAlways byte = 2
)

// tn3270eNegotiator drives the device-type and functions exchange of
// spec.md §4.4: it receives TN3270E subnegotiation bytes and produces reply
// bytes, without any I/O of its own so it is independently testable.
type tn3270eNegotiator struct {
	requestedType    string
	fallbackType     string
	luName           string
	triedFallback    bool

	NegotiatedType string
	NegotiatedLU   string
	FunctionsLocked bool
	Functions      []byte

	Done bool
	Err  error
}

func newTN3270ENegotiator(termType, fallback, lu string) *tn3270eNegotiator {
	return &tn3270eNegotiator{requestedType: termType, fallbackType: fallback, luName: lu}
}

// HandleSubnegotiation processes one IAC SB 40 ... IAC SE payload (payload
// excludes the leading 0x28 option byte and the IAC SE terminator; it is
// everything in between). It returns any reply payload (without the
// IAC SB 40 / IAC SE wrapper; the caller adds that).
func (n *tn3270eNegotiator) HandleSubnegotiation(payload []byte) (reply []byte, err error) {
	if len(payload) < 2 {
		return nil, newError(ErrProtocolViolation, "short TN3270E subnegotiation")
	}

	switch payload[0] {
	case tn3270eSend:
		if len(payload) >= 2 && payload[1] == tn3270eDeviceType {
			return n.buildDeviceTypeRequest(), nil
		}

	case tn3270eDeviceType:
		if len(payload) >= 2 && payload[1] == tn3270eIs {
			return n.handleDeviceTypeIs(payload[2:])
		}

	case tn3270eFunctions:
		if len(payload) >= 2 && payload[1] == tn3270eIs {
			n.Functions = append([]byte(nil), payload[2:]...)
			n.FunctionsLocked = true
			n.Done = true
		}
	}
	return nil, nil
}

func (n *tn3270eNegotiator) buildDeviceTypeRequest() []byte {
	tt := n.requestedType
	if n.triedFallback {
		tt = n.fallbackType
	}
	var b bytes.Buffer
	b.WriteByte(tn3270eDeviceType)
	b.WriteByte(tn3270eRequest)
	b.WriteString(tt)
	if n.luName != "" {
		b.WriteByte(tn3270eConnect)
		b.WriteString(n.luName)
	}
	return b.Bytes()
}

func (n *tn3270eNegotiator) handleDeviceTypeIs(rest []byte) ([]byte, error) {
	parts := bytes.SplitN(rest, []byte{tn3270eConnect}, 2)
	typ := string(parts[0])

	if typ != n.requestedType && typ != n.fallbackType && !n.triedFallback {
		// Host rejected our requested type silently by echoing something
		// else; retry once with the fallback before giving up, matching
		// tnz.py's device-type negotiation loop.
		n.triedFallback = true
		return n.buildDeviceTypeRequest(), nil
	}

	n.NegotiatedType = typ
	if len(parts) == 2 {
		n.NegotiatedLU = string(parts[1])
	}

	var b bytes.Buffer
	b.WriteByte(tn3270eFunctions)
	b.WriteByte(tn3270eRequest)
	b.WriteByte(responseFlagAlways)
	return b.Bytes(), nil
}

// RecordHeader is the 5-byte TN3270E per-record prefix (spec.md §4.4).
type RecordHeader struct {
	DataType      byte
	RequestFlag   byte
	ResponseFlag  byte
	SeqNumber     uint16
}

func (h RecordHeader) Encode() []byte {
	return []byte{h.DataType, h.RequestFlag, h.ResponseFlag, byte(h.SeqNumber >> 8), byte(h.SeqNumber)}
}

func decodeRecordHeader(b []byte) (RecordHeader, []byte, error) {
	if len(b) < 5 {
		return RecordHeader{}, nil, newError(ErrProtocolViolation, "short TN3270E record header")
	}
	h := RecordHeader{
		DataType:     b[0],
		RequestFlag:  b[1],
		ResponseFlag: b[2],
		SeqNumber:    uint16(b[3])<<8 | uint16(b[4]),
	}
	return h, b[5:], nil
}

// responseRecord builds the positive-response record sent back when a
// record's ResponseFlag is responseFlagAlways, per spec.md §4.4.
func responseRecord(seq uint16) []byte {
	h := RecordHeader{DataType: dtResponse, RequestFlag: 0, ResponseFlag: 0, SeqNumber: seq}
	return append(h.Encode(), 0x00)
}
