// This file is part of https://github.com/racingmars/tn3270e/
// Copyright 2020, 2025 by Matthew R. Wilson, licensed under the MIT license.
// See LICENSE in the project root for license information.

package tn3270e

// AID identifies which key triggered an inbound record, spec.md §4.7.
// Grounded on the teacher's response.go AID byte table (go3270 only ever
// decoded AID bytes sent by a simulated terminal; this engine is the side
// that originates them).
type AID byte

const (
	AIDNone    AID = 0x60
	AIDEnter   AID = 0x7d
	AIDClear   AID = 0x6d
	AIDPA1     AID = 0x6c
	AIDPA2     AID = 0x6e
	AIDPA3     AID = 0x6b
	AIDAttn    AID = 0x6a // attention key, sends no fields
	AIDSysReq  AID = 0xf0

	AIDPF1  AID = 0xf1
	AIDPF2  AID = 0xf2
	AIDPF3  AID = 0xf3
	AIDPF4  AID = 0xf4
	AIDPF5  AID = 0xf5
	AIDPF6  AID = 0xf6
	AIDPF7  AID = 0xf7
	AIDPF8  AID = 0xf8
	AIDPF9  AID = 0xf9
	AIDPF10 AID = 0x7a
	AIDPF11 AID = 0x7b
	AIDPF12 AID = 0x7c
	AIDPF13 AID = 0xc1
	AIDPF14 AID = 0xc2
	AIDPF15 AID = 0xc3
	AIDPF16 AID = 0xc4
	AIDPF17 AID = 0xc5
	AIDPF18 AID = 0xc6
	AIDPF19 AID = 0xc7
	AIDPF20 AID = 0xc8
	AIDPF21 AID = 0xc9
	AIDPF22 AID = 0x4a
	AIDPF23 AID = 0x4b
	AIDPF24 AID = 0x4c
)

// shortAID reports whether aid defaults to short form: just the bare AID
// byte, no cursor address or field data. Grounded on tnz.py's send_aid
// range check `0x6b <= aid <= 0x6f`, which covers CLEAR and PA1-3.
func shortAID(aid AID) bool {
	return byte(aid) >= 0x6b && byte(aid) <= 0x6f
}

// SendAID builds and transmits an inbound record for aid per the session's
// negotiated reply mode (spec.md §4.7) and sets the read-state machine back
// to renter (awaiting the host's next write). Attn sends no 3270 record at
// all (an out-of-band TELNET interrupt); CLEAR and PA1-3 send just the bare
// AID byte (spec.md §4.7's short form); everything else sends the full
// cursor-address-plus-field-data record.
func (s *Session) SendAID(aid AID) error {
	if s.pwait || s.systemLockWait {
		return newError(ErrInputInhibited, "keyboard is locked")
	}

	var rec []byte
	switch {
	case aid == AIDAttn:
		rec = nil // Attn triggers a TELNET interrupt, not a 3270 record.
	case shortAID(aid):
		rec = []byte{byte(aid)}
	default:
		rec = s.buildAIDRecord(aid)
	}

	s.lastAID = aid
	s.pwait = true
	s.Hooks.keylockChanged(true)
	s.readState = readRenter

	if rec != nil {
		s.lastInbound = rec
		s.writeRecord(rec)
	}
	return nil
}

// buildAIDRecord assembles the cursor-address-plus-field-data record sent
// after an AID key, per spec.md §4.7. The reply modes differ only in how a
// field's content is formatted:
//
//   - Field (00) and Extended-Field (01): raw data bytes, `cs=1` bytes as
//     `08 <byte>` (GE). Extended-Field's own field-level SFE attributes were
//     already sent on the outbound write; the inbound echo carries no SA
//     orders in either mode.
//   - Character (02): before each run of bytes that share the same
//     eh/fg/bg, emit `SA t v` for whichever of {0x41, 0x42, 0x45} is in
//     s.replyCattrs and changed since the field's last run.
func (s *Session) buildAIDRecord(aid AID) []byte {
	out := make([]byte, 0, 64)
	out = append(out, byte(aid))
	out = append(out, encodeAddr(s.Screen.CurAddr(), s.Screen.bufferSize, s.Screen.force14Bit)...)

	for _, f := range s.Screen.Fields() {
		if f.Attr.Protected() || !f.Attr.MDT() {
			continue
		}
		start := s.Screen.mod(f.Addr + 1)
		end := s.nextFieldBoundary(f.Addr)

		out = append(out, orderSBA)
		out = append(out, encodeAddr(start, s.Screen.bufferSize, s.Screen.force14Bit)...)

		n := end - start
		if n < 0 {
			n += s.Screen.bufferSize
		}
		var lastEH, lastFG, lastBG byte
		for i := 0; i < n; i++ {
			pos := s.Screen.mod(start + i)
			if s.replyMode == replyCharacter {
				if s.replyCattrs[attrExtHighlight] {
					out = appendSAIfChanged(out, attrExtHighlight, s.Screen.eh.at(pos), &lastEH)
				}
				if s.replyCattrs[attrForeground] {
					out = appendSAIfChanged(out, attrForeground, s.Screen.fg.at(pos), &lastFG)
				}
				if s.replyCattrs[attrBackground] {
					out = appendSAIfChanged(out, attrBackground, s.Screen.bg.at(pos), &lastBG)
				}
			}
			b := s.Screen.dc.at(pos)
			if s.Screen.cs.at(pos) == csAlternate {
				out = append(out, orderGE, b)
			} else {
				out = append(out, b)
			}
		}
	}
	return out
}

func appendSAIfChanged(out []byte, typ, val byte, last *byte) []byte {
	if val == *last {
		return out
	}
	*last = val
	return append(out, orderSA, typ, val)
}

func (s *Session) nextFieldBoundary(fieldAddr int) int {
	fields := s.Screen.Fields()
	for i, f := range fields {
		if f.Addr == fieldAddr {
			if i+1 < len(fields) {
				return fields[i+1].Addr
			}
			return fields[0].Addr
		}
	}
	return fieldAddr
}

// buildReadBufferRecord implements Read-Buffer, spec.md §4.7: an unfiltered
// linear dump of the whole buffer starting at address 0, with SF markers at
// every field-attribute cell, independent of MDT state.
func (s *Session) buildReadBufferRecord() []byte {
	out := make([]byte, 0, s.Screen.bufferSize+16)
	out = append(out, byte(AIDNone))
	out = append(out, encodeAddr(s.Screen.CurAddr(), s.Screen.bufferSize, s.Screen.force14Bit)...)

	for i := 0; i < s.Screen.bufferSize; i++ {
		if fa := s.Screen.fa.at(i); fa != 0 {
			out = append(out, orderSF, fa)
			continue
		}
		b := s.Screen.dc.at(i)
		if s.Screen.cs.at(i) == csAlternate {
			out = append(out, orderGE, b)
		} else {
			out = append(out, b)
		}
	}
	return out
}
