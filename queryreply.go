// This file is part of https://github.com/racingmars/tn3270e/
// Copyright 2020, 2025 by Matthew R. Wilson, licensed under the MIT license.
// See LICENSE in the project root for license information.

package tn3270e

import "encoding/binary"

// Write-Structured-Field IDs, spec.md §4.9. Grounded byte-for-byte on
// original_source/tnz/tnz.py's process_wsf_0x* dispatch table.
const (
	sfidEraseReset     byte = 0x03
	sfidSetReplyMode   byte = 0x09
	sfidOutbound3270DS byte = 0x40
	sfidDDM            byte = 0xd0

	sfidQueryReply byte = 0x81 // the reply ID this engine sends back
)

// Query-Reply QCODEs, spec.md §4.9. Grounded on the same tnz.py
// __query_reply method.
const (
	qcodeSummary           byte = 0x80
	qcodeUsableArea        byte = 0x81
	qcodeColor             byte = 0x86
	qcodeHighlight         byte = 0x87
	qcodeReplyModes        byte = 0x88
	qcodeCharacterSets     byte = 0x85
	qcodeDDM               byte = 0x95
	qcodeImplicitPartition byte = 0xa6
)

// dispatchStructuredField routes one WSF payload (sfID plus the bytes after
// it) by ID, per spec.md §4.9.
func (s *Session) dispatchStructuredField(sfID byte, payload []byte) error {
	switch sfID {
	case sfidEraseReset:
		return s.handleEraseReset(payload)
	case sfidSetReplyMode:
		return s.handleSetReplyMode(payload)
	case sfidOutbound3270DS:
		return s.handleOutbound3270DS(payload)
	case sfidDDM:
		return s.handleDDMStructuredField(payload)
	default:
		// Unrecognized structured fields are ignored rather than treated as
		// fatal, matching tnz.py's willingness to skip ones it doesn't
		// implement in casual deployments; anything load-bearing (query,
		// reply mode, DDM) is handled above.
		s.Runtime.Log.Debug("ignoring unrecognized structured field", "id", sfID)
		return nil
	}
}

// handleEraseReset implements SFID 0x03 (Erase/Reset): clears extended-color
// mode and optionally switches to implicit partitions (the only partition
// model this engine supports, so the ipz flag is accepted but a no-op).
func (s *Session) handleEraseReset(payload []byte) error {
	if len(payload) < 1 {
		return newError(ErrProtocolViolation, "Erase/Reset structured field too short")
	}
	s.extendedColorEntered = false
	s.Screen.Resize(s.Screen.Rows(), s.Screen.Cols())
	s.Hooks.erase()
	return nil
}

// handleSetReplyMode implements SFID 0x09, spec.md §4.7/§4.9. For mode 2
// (Character), any bytes after the mode byte name the attribute types
// (restricted in practice to 0x41/0x42/0x45) the host wants SA orders for;
// grounded on original_source/tnz/tnz.py's _process_wsf_0x9, which stashes
// that tail verbatim as __reply_cattrs.
func (s *Session) handleSetReplyMode(payload []byte) error {
	if len(payload) < 2 {
		return newError(ErrProtocolViolation, "Set Reply Mode structured field too short")
	}
	pid := payload[0]
	if pid != 0 {
		return newError(ErrProtocolViolation, "non-zero partition id not supported")
	}
	mode := payload[1]
	for k := range s.replyCattrs {
		delete(s.replyCattrs, k)
	}
	switch mode {
	case 0:
		s.replyMode = replyField
	case 1:
		s.replyMode = replyExtendedField
	case 2:
		s.replyMode = replyCharacter
		for _, typ := range payload[2:] {
			s.replyCattrs[typ] = true
		}
	default:
		return newError(ErrProtocolViolation, "unknown reply mode")
	}
	return nil
}

// handleOutbound3270DS implements SFID 0x40 (Outbound 3270DS): a Read
// Partition Query / Query List / RM / RMA / RB request wrapped as a
// structured field instead of arriving as a bare command byte, per
// tnz.py's process_wsf_0x40/_process_rp dispatch.
func (s *Session) handleOutbound3270DS(payload []byte) error {
	if len(payload) < 2 {
		return newError(ErrProtocolViolation, "Outbound 3270DS structured field too short")
	}
	pid := payload[0]
	rpType := payload[1]

	switch rpType {
	case 0x02, 0x03: // Query, Query List
		if pid != 0xff {
			return newError(ErrProtocolViolation, "Query/Query List requires pid=0xff")
		}
		s.writeRecord(s.buildQueryReply())
	case 0x6e, cmdRM:
		if s.lastInbound != nil {
			s.writeRecord(s.lastInbound)
		}
	case cmdRB:
		s.writeRecord(s.buildReadBufferRecord())
	default:
		return newError(ErrProtocolViolation, "unknown Read Partition type")
	}
	return nil
}

// qrField appends one Query Reply structured field (length-prefixed,
// SFID 0x81) built from qcode+body to rec.
func qrField(rec []byte, qcode byte, body []byte) []byte {
	sf := append([]byte{sfidQueryReply, qcode}, body...)
	length := make([]byte, 2)
	binary.BigEndian.PutUint16(length, uint16(len(sf)+2))
	rec = append(rec, length...)
	rec = append(rec, sf...)
	return rec
}

// buildQueryReply assembles the full Query Reply record this engine sends
// in response to a Read Partition Query, per spec.md §4.9. Grounded
// field-for-field on tnz.py's __query_reply.
func (s *Session) buildQueryReply() []byte {
	rec := []byte{0x88} // AID for structured-field replies

	summary := []byte{qcodeSummary, qcodeUsableArea, qcodeCharacterSets, qcodeHighlight, qcodeReplyModes, qcodeDDM, qcodeImplicitPartition}
	rec = qrField(rec, qcodeSummary, summary)

	cols, rows := s.Screen.Cols(), s.Screen.Rows()
	usableArea := make([]byte, 0, 16)
	usableArea = append(usableArea, 0x01, 0x00) // flags 4/5: 12/14-bit addressing, no variable cells
	usableArea = appendUint16(usableArea, uint16(cols))
	usableArea = appendUint16(usableArea, uint16(rows))
	usableArea = append(usableArea, 0x00) // UNITS: inches
	usableArea = appendUint16(usableArea, 1)
	usableArea = appendUint16(usableArea, 96)
	usableArea = appendUint16(usableArea, 1)
	usableArea = appendUint16(usableArea, 96)
	usableArea = append(usableArea, 0x06, 0x0c)
	rec = qrField(rec, qcodeUsableArea, usableArea)

	implicit := make([]byte, 0, 16)
	implicit = append(implicit, 0x00, 0x00)
	implicit = append(implicit, 0x0b, 0x01, 0x00)
	implicit = appendUint16(implicit, uint16(cols))
	implicit = appendUint16(implicit, uint16(rows))
	implicit = appendUint16(implicit, uint16(cols))
	implicit = appendUint16(implicit, uint16(rows))
	rec = qrField(rec, qcodeImplicitPartition, implicit)

	charSets := make([]byte, 0, 16)
	charSets = append(charSets, 0x02, 0x00, 0x06, 0x0c)
	charSets = append(charSets, 0x00, 0x00, 0x00, 0x00) // FORM
	charSets = append(charSets, 0x07)                   // descriptor length
	charSets = append(charSets, 0x00, 0x00, 0x00)        // SET, flags, LCID
	charSets = appendUint16(charSets, 1)                 // CGCSGID character set number
	charSets = appendUint16(charSets, uint16(s.Config.PrimaryCodepage))
	rec = qrField(rec, qcodeCharacterSets, charSets)

	highlight := []byte{0x05, 0x00, 0xf0, 0xf1, 0xf1, 0xf2, 0xf2, 0xf4, 0xf4, 0xf8, 0xf8}
	rec = qrField(rec, qcodeHighlight, highlight)

	replyModes := []byte{0x00, 0x01, 0x02}
	rec = qrField(rec, qcodeReplyModes, replyModes)

	ddm := make([]byte, 0, 8)
	ddm = append(ddm, 0x00, 0x00)
	ddm = appendUint16(ddm, ddmLimin)  // LIMIN
	ddm = appendUint16(ddm, ddmLimout) // LIMOUT
	ddm = append(ddm, 0x01, 0x01)
	rec = qrField(rec, qcodeDDM, ddm)

	return rec
}

func appendUint16(b []byte, v uint16) []byte {
	return append(b, byte(v>>8), byte(v))
}
