// This file is part of https://github.com/racingmars/tn3270e/
// Copyright 2020, 2025 by Matthew R. Wilson, licensed under the MIT license.
// See LICENSE in the project root for license information.

package tn3270e

// 3270 command codes, spec.md §4.5. Grounded on the teacher's screen.go
// command byte constants, inverted from "commands this side sends" into
// "commands this side receives and must obey".
const (
	cmdW    byte = 0xf1
	cmdEW   byte = 0xf5
	cmdEWA  byte = 0x7e
	cmdEAU  byte = 0x6f
	cmdRB   byte = 0xf2
	cmdRM   byte = 0xf6
	cmdRMA  byte = 0x6e
	cmdWSF  byte = 0xf3

	// Orders, spec.md §4.6.
	orderSF  byte = 0x1d
	orderSFE byte = 0x29
	orderSBA byte = 0x11
	orderSA  byte = 0x28
	orderMF  byte = 0x2c
	orderIC  byte = 0x13
	orderPT  byte = 0x05
	orderRA  byte = 0x3c
	orderEUA byte = 0x12
	orderGE  byte = 0x08

	// WCC bits, spec.md §4.5.
	wccResetMDT   byte = 0x01
	wccKeybdReset byte = 0x02
	wccAlarm      byte = 0x04
	wccPrinterFmt byte = 0x08 // start-printer bit; not wired to any output device
)

// Attribute-type bytes used by SFE/SA/MF, spec.md §4.6.
const (
	attrFieldAttribute byte = 0xc0
	attrExtHighlight   byte = 0x41
	attrForeground     byte = 0x42
	attrCharSet        byte = 0x43
	attrBackground     byte = 0x45
	attrTransparency   byte = 0x46
)

// processOutboundRecord decodes one complete 3270 record (command byte plus
// order/data stream) sent by the host and applies it to the session's
// Screen, per spec.md §4.5/§4.6. "Outbound" here follows the protocol's own
// naming (outbound = host to terminal); this is where the client receives
// that stream.
func (s *Session) processOutboundRecord(rec []byte) error {
	if len(rec) == 0 {
		return nil
	}

	cmd := rec[0]
	body := rec[1:]

	switch cmd {
	case cmdEAU:
		s.eraseAllUnprotected()
		return nil
	case cmdRB, cmdRM, cmdRMA:
		return s.handleReadCommand(cmd)
	case cmdWSF:
		return s.handleWriteStructuredField(body)
	case cmdW, cmdEW, cmdEWA:
		return s.handleWrite(cmd, body)
	default:
		return newError(ErrProtocolViolation, "unrecognized 3270 command byte")
	}
}

// handleWrite implements W/EW/EWA, spec.md §4.5: erase-then-write variants
// clear the screen (EWA resets to the alternate size) before the WCC and
// order stream are applied.
func (s *Session) handleWrite(cmd byte, body []byte) error {
	if len(body) == 0 {
		return newError(ErrProtocolViolation, "write command missing WCC byte")
	}
	wcc := body[0]
	orders := body[1:]

	switch cmd {
	case cmdEW:
		s.Screen.Resize(s.Screen.Rows(), s.Screen.Cols())
		s.Hooks.erase()
	case cmdEWA:
		rows, cols := s.Config.AltRows, s.Config.AltCols
		if rows == 0 || cols == 0 {
			rows, cols = 27, 132
		}
		s.Screen.Resize(rows, cols)
		s.Hooks.erase()
	}

	s.bufadd = s.Screen.CurAddr()
	s.procEH, s.procCS, s.procFG, s.procBG = 0, 0, 0, 0
	s.ptErase = false

	if err := s.applyOrderStream(orders); err != nil {
		return err
	}

	if wcc&wccResetMDT != 0 {
		s.resetAllMDT()
	}
	if wcc&wccKeybdReset != 0 {
		s.pwait = false
		s.systemLockWait = false
		s.Hooks.keylockChanged(false)
	}
	if wcc&wccAlarm != 0 {
		s.Runtime.Log.Debug("host requested audible alarm")
	}

	s.readState = readNormal
	return nil
}

// eraseAllUnprotected implements EAU, spec.md §4.5: every unprotected
// character position is set to NUL and every unprotected field's MDT is
// cleared, without touching protected fields or resizing the screen.
func (s *Session) eraseAllUnprotected() {
	fields := s.Screen.Fields()
	for i, f := range fields {
		if f.Attr.Protected() {
			continue
		}
		start := s.Screen.mod(f.Addr + 1)
		end := f.Addr
		if i+1 < len(fields) {
			end = fields[i+1].Addr
		}
		n := end - start
		if n < 0 {
			n += s.Screen.bufferSize
		}
		for j := 0; j < n; j++ {
			pos := s.Screen.mod(start + j)
			s.Screen.dc.set(pos, ebcdicNUL)
		}
		newAttr := byte(f.Attr) &^ faMDT
		s.Screen.fa.set(f.Addr, newAttr)
	}
	s.readState = readNormal
}

func (s *Session) resetAllMDT() {
	for _, f := range s.Screen.Fields() {
		s.Screen.fa.set(f.Addr, byte(f.Attr)&^faMDT)
	}
}

// applyOrderStream walks the order/data-byte stream that follows the WCC,
// dispatching each order per spec.md §4.6 and stamping plain data bytes with
// the session's current running attribute registers.
func (s *Session) applyOrderStream(stream []byte) error {
	i := 0
	for i < len(stream) {
		b := stream[i]
		switch b {
		case orderSF:
			s.ptErase = false
			n, err := s.orderSF(stream[i+1:])
			if err != nil {
				return err
			}
			i += 1 + n
		case orderSFE:
			s.ptErase = false
			n, err := s.orderSFE(stream[i+1:])
			if err != nil {
				return err
			}
			i += 1 + n
		case orderSBA:
			s.ptErase = false
			n, err := s.orderSBA(stream[i+1:])
			if err != nil {
				return err
			}
			i += 1 + n
		case orderSA:
			s.ptErase = false
			n, err := s.orderSA(stream[i+1:])
			if err != nil {
				return err
			}
			i += 1 + n
		case orderMF:
			s.ptErase = false
			n, err := s.orderMF(stream[i+1:])
			if err != nil {
				return err
			}
			i += 1 + n
		case orderIC:
			s.ptErase = false
			s.Screen.SetCurAddr(s.bufadd)
			s.Hooks.cursorChanged(s.Screen.CurAddr())
			i++
		case orderPT:
			s.orderPT()
			i++
		case orderRA:
			s.ptErase = false
			n, err := s.orderRA(stream[i+1:])
			if err != nil {
				return err
			}
			i += 1 + n
		case orderEUA:
			s.ptErase = false
			n, err := s.orderEUA(stream[i+1:])
			if err != nil {
				return err
			}
			i += 1 + n
		case orderGE:
			if i+1 >= len(stream) {
				return newError(ErrProtocolViolation, "GE order missing data byte")
			}
			s.writeDataByte(stream[i+1], csAlternate)
			i += 2
		default:
			s.writeDataByte(b, s.procCS)
			i++
		}
	}
	return nil
}

// writeDataByte stores one EBCDIC byte at bufadd with the current running
// attribute registers and advances bufadd, per spec.md §4.5 "Data bytes".
func (s *Session) writeDataByte(b byte, cs byte) {
	addr := s.bufadd
	s.Screen.dc.set(addr, b)
	s.Screen.fa.set(addr, 0)
	s.Screen.eh.set(addr, s.procEH)
	s.Screen.cs.set(addr, cs)
	s.Screen.fg.set(addr, s.procFG)
	s.Screen.bg.set(addr, s.procBG)
	s.bufadd = s.Screen.mod(addr + 1)
	s.ptErase = true
	s.Hooks.data(addr, 1)
}

func (s *Session) readAddr(b []byte) (int, int, error) {
	if len(b) < 2 {
		return 0, 0, newError(ErrProtocolViolation, "order missing address bytes")
	}
	is16 := s.Screen.bufferSize >= 16384
	a, err := decodeAddr(b[0], b[1], s.Screen.force14Bit, is16)
	if err != nil {
		return 0, 0, err
	}
	return a, 2, nil
}

// orderSBA: Set Buffer Address, spec.md §4.6.
func (s *Session) orderSBA(rest []byte) (int, error) {
	a, n, err := s.readAddr(rest)
	if err != nil {
		return 0, err
	}
	s.bufadd = s.Screen.mod(a)
	return n, nil
}

// orderSF: Start Field, spec.md §4.6. Writes a field-attribute cell at
// bufadd and resets the running character attributes to their defaults for
// the new field.
func (s *Session) orderSF(rest []byte) (int, error) {
	if len(rest) < 1 {
		return 0, newError(ErrProtocolViolation, "SF order missing attribute byte")
	}
	fa := bit6(rest[0])
	s.setFieldStart(fa, 0, 0, 0, 0)
	return 1, nil
}

// orderSFE: Start Field Extended, spec.md §4.6. The basic field attribute
// defaults to bit6(0) = 0x40 (unprotected, normal display) if no 0xc0 pair is present
// in the attribute-type/value list, per the Open Question decision recorded
// in DESIGN.md.
func (s *Session) orderSFE(rest []byte) (int, error) {
	if len(rest) < 1 {
		return 0, newError(ErrProtocolViolation, "SFE order missing pair count")
	}
	count := int(rest[0])
	if len(rest) < 1+2*count {
		return 0, newError(ErrProtocolViolation, "SFE order truncated attribute list")
	}

	fa := bit6(0) // SFE always starts a field, even with no 0xc0 pair present
	var eh, fg, bg, cs byte
	for i := 0; i < count; i++ {
		typ := rest[1+2*i]
		val := rest[2+2*i]
		switch typ {
		case attrFieldAttribute:
			fa = bit6(val)
		case attrExtHighlight:
			eh = val
		case attrForeground:
			fg = val
		case attrBackground:
			bg = val
		case attrCharSet:
			cs = val
		}
	}
	s.setFieldStart(fa, eh, cs, fg, bg)
	return 1 + 2*count, nil
}

func (s *Session) setFieldStart(fa, eh, cs, fg, bg byte) {
	addr := s.bufadd
	s.Screen.dc.set(addr, ebcdicNUL)
	s.Screen.fa.set(addr, fa)
	s.Screen.eh.set(addr, eh)
	s.Screen.cs.set(addr, cs)
	s.Screen.fg.set(addr, fg)
	s.Screen.bg.set(addr, bg)
	s.bufadd = s.Screen.mod(addr + 1)

	s.procEH, s.procCS, s.procFG, s.procBG = 0, 0, 0, 0
	s.Hooks.fieldDefined(addr)
}

// orderSA: Set Attribute, spec.md §4.6. Updates the running character
// attribute registers that subsequent data bytes (until the next SF/SFE/SA)
// will be stamped with.
func (s *Session) orderSA(rest []byte) (int, error) {
	if len(rest) < 2 {
		return 0, newError(ErrProtocolViolation, "SA order missing type/value pair")
	}
	switch rest[0] {
	case attrExtHighlight:
		s.procEH = rest[1]
	case attrForeground:
		s.procFG = rest[1]
		s.extendedColorEntered = true
		s.Hooks.extendedColorEntered()
	case attrBackground:
		s.procBG = rest[1]
		s.extendedColorEntered = true
		s.Hooks.extendedColorEntered()
	case attrCharSet:
		s.procCS = rest[1]
	}
	return 2, nil
}

// orderMF: Modify Field, spec.md §4.6. Rewrites the attribute-type/value
// pairs of the field-start cell at the current bufadd without moving it or
// clearing the field's data.
func (s *Session) orderMF(rest []byte) (int, error) {
	if len(rest) < 1 {
		return 0, newError(ErrProtocolViolation, "MF order missing pair count")
	}
	count := int(rest[0])
	if len(rest) < 1+2*count {
		return 0, newError(ErrProtocolViolation, "MF order truncated attribute list")
	}

	addr := s.bufadd
	for i := 0; i < count; i++ {
		typ := rest[1+2*i]
		val := rest[2+2*i]
		switch typ {
		case attrFieldAttribute:
			s.Screen.fa.set(addr, val)
		case attrExtHighlight:
			s.Screen.eh.set(addr, val)
		case attrForeground:
			s.Screen.fg.set(addr, val)
		case attrBackground:
			s.Screen.bg.set(addr, val)
		case attrCharSet:
			s.Screen.cs.set(addr, val)
		}
	}
	return 1 + 2*count, nil
}

// orderPT: Program Tab, spec.md §4.6. Advances bufadd to the next
// unprotected field's first data position, skipping protected fields. Only
// if the PT was preceded by data bytes in this same write (the "pt-erase"
// flag, spec.md §4.5) does it first erase to NUL the rest of the current
// field, up to the next field-attribute cell; a PT with no intervening data
// leaves existing content untouched.
func (s *Session) orderPT() {
	start := s.bufadd
	erase := s.ptErase && s.Screen.fa.at(start) == 0
	s.ptErase = false

	addr := -1
	for i := 0; i < s.Screen.bufferSize; i++ {
		pos := s.Screen.mod(start + i)
		if fa := s.Screen.fa.at(pos); fa != 0 && !FieldAttr(fa).Protected() {
			addr = pos
			break
		}
	}
	if addr == -1 {
		return
	}
	dest := s.Screen.mod(addr + 1)

	if erase {
		n := dest - start
		if n < 0 {
			n += s.Screen.bufferSize
		}
		for i := 0; i < n; i++ {
			pos := s.Screen.mod(start + i)
			if s.Screen.fa.at(pos) != 0 {
				break
			}
			s.Screen.dc.set(pos, ebcdicNUL)
		}
	}
	s.bufadd = dest
}

// orderRA: Repeat to Address, spec.md §4.6. Fills [bufadd, stop) with a
// repeated data byte (or a GE byte pair) under the running attribute
// registers.
func (s *Session) orderRA(rest []byte) (int, error) {
	stop, n, err := s.readAddr(rest)
	if err != nil {
		return 0, err
	}
	if n >= len(rest) {
		return 0, newError(ErrProtocolViolation, "RA order missing fill byte")
	}

	cs := s.procCS
	fillByte := rest[n]
	consumed := n + 1
	if fillByte == orderGE {
		if n+1 >= len(rest) {
			return 0, newError(ErrProtocolViolation, "RA order GE escape missing fill byte")
		}
		fillByte = rest[n+1]
		cs = csAlternate
		consumed++
	}

	count := stop - s.bufadd
	if count < 0 {
		count += s.Screen.bufferSize
	}
	for i := 0; i < count; i++ {
		s.writeDataByte(fillByte, cs)
	}
	return consumed, nil
}

// orderEUA: Erase Unprotected to Address, spec.md §4.6. Clears unprotected
// character positions in [bufadd, stop) to NUL, leaving protected positions
// and field-attribute cells untouched.
func (s *Session) orderEUA(rest []byte) (int, error) {
	stop, n, err := s.readAddr(rest)
	if err != nil {
		return 0, err
	}

	count := stop - s.bufadd
	if count < 0 {
		count += s.Screen.bufferSize
	}
	for i := 0; i < count; i++ {
		pos := s.Screen.mod(s.bufadd + i)
		if s.Screen.fa.at(pos) == 0 && !s.Screen.IsProtected(pos) {
			s.Screen.dc.set(pos, ebcdicNUL)
		}
	}
	s.bufadd = stop
	return n, nil
}

// handleReadCommand implements RB/RM/RMA, spec.md §4.7: these are read
// requests the host makes outside of an AID-triggered send. RM/RMA resend
// the most recently built inbound record whatever the current read state
// is; RB always performs a fresh Read-Buffer.
func (s *Session) handleReadCommand(cmd byte) error {
	switch cmd {
	case cmdRB:
		rec := s.buildReadBufferRecord()
		s.writeRecord(rec)
	case cmdRM, cmdRMA:
		if s.lastInbound != nil {
			s.writeRecord(s.lastInbound)
		}
	}
	return nil
}

// handleWriteStructuredField implements WSF, spec.md §4.9: a sequence of
// length-prefixed structured fields, each independently dispatched.
func (s *Session) handleWriteStructuredField(body []byte) error {
	i := 0
	for i < len(body) {
		if i+2 > len(body) {
			return newError(ErrProtocolViolation, "structured field missing length prefix")
		}
		length := int(body[i])<<8 | int(body[i+1])
		if length == 0 || i+length > len(body) {
			return newError(ErrProtocolViolation, "structured field length out of range")
		}
		sfID := body[i+2]
		payload := body[i+3 : i+length]
		if err := s.dispatchStructuredField(sfID, payload); err != nil {
			return err
		}
		i += length
	}
	return nil
}
