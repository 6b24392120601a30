// This file is part of https://github.com/racingmars/tn3270e/
// Copyright 2020, 2025 by Matthew R. Wilson, licensed under the MIT license.
// See LICENSE in the project root for license information.

package tn3270e

// Keyboard operations, spec.md §4.8. Every operation that mutates the
// screen or moves the cursor first checks the keyboard-lock state
// (pwait/systemLockWait), returning ErrInputInhibited if locked, per
// spec.md §4.8 invariant 1.
//
// Grounded on the teacher's screen.go field-navigation helpers (nextField,
// positioning math), generalized from "place a declared Field's value" into
// "respect whatever field layout the host's last write established".

func (s *Session) checkUnlocked() error {
	if s.pwait || s.systemLockWait {
		return newError(ErrInputInhibited, "keyboard is locked")
	}
	return nil
}

// MoveCursor sets the cursor to addr unconditionally (no protection check;
// cursor placement is always allowed, per spec.md §4.8).
func (s *Session) MoveCursor(addr int) error {
	if err := s.checkUnlocked(); err != nil {
		return err
	}
	s.Screen.SetCurAddr(addr)
	s.Hooks.cursorChanged(s.Screen.CurAddr())
	return nil
}

// CursorUp/Down/Left/Right move the cursor by one row or column, wrapping
// at the buffer edges.
func (s *Session) CursorUp() error    { return s.moveBy(-s.Screen.Cols()) }
func (s *Session) CursorDown() error  { return s.moveBy(s.Screen.Cols()) }
func (s *Session) CursorLeft() error  { return s.moveBy(-1) }
func (s *Session) CursorRight() error { return s.moveBy(1) }

func (s *Session) moveBy(delta int) error {
	if err := s.checkUnlocked(); err != nil {
		return err
	}
	s.Screen.SetCurAddr(s.Screen.CurAddr() + delta)
	s.Hooks.cursorChanged(s.Screen.CurAddr())
	return nil
}

// Home moves the cursor to the first unprotected field's first data
// position, or address 0 if the screen is unformatted or has no unprotected
// field.
func (s *Session) Home() error {
	if err := s.checkUnlocked(); err != nil {
		return err
	}
	dest := 0
	for _, f := range s.Screen.Fields() {
		if !f.Attr.Protected() {
			dest = s.Screen.mod(f.Addr + 1)
			break
		}
	}
	s.Screen.SetCurAddr(dest)
	s.Hooks.cursorChanged(s.Screen.CurAddr())
	return nil
}

// Tab moves the cursor to the next unprotected field's first data position,
// matching the PT order's navigation but driven by the keyboard instead of
// the host (spec.md §4.8).
func (s *Session) Tab() error {
	if err := s.checkUnlocked(); err != nil {
		return err
	}
	cur := s.Screen.CurAddr()
	for i := 0; i < s.Screen.bufferSize; i++ {
		pos := s.Screen.mod(cur + i)
		if fa := s.Screen.fa.at(pos); fa != 0 && !FieldAttr(fa).Protected() {
			s.Screen.SetCurAddr(s.Screen.mod(pos + 1))
			s.Hooks.cursorChanged(s.Screen.CurAddr())
			return nil
		}
	}
	return nil
}

// BackTab moves the cursor to the nearest unprotected field's first data
// position before the cursor, wrapping around the buffer. The cursor does
// not move if the screen has no unprotected field.
func (s *Session) BackTab() error {
	if err := s.checkUnlocked(); err != nil {
		return err
	}
	cur := s.Screen.CurAddr()
	// Searching for the field-start from cur-2 backwards lets a cursor that
	// already sits on a field's first data position move to the field before.
	for i := 2; i <= s.Screen.bufferSize+1; i++ {
		pos := s.Screen.mod(cur - i)
		if fa := s.Screen.fa.at(pos); fa != 0 && !FieldAttr(fa).Protected() {
			s.Screen.SetCurAddr(s.Screen.mod(pos + 1))
			s.Hooks.cursorChanged(s.Screen.CurAddr())
			return nil
		}
	}
	return nil
}

// TypeChar places one encoded EBCDIC byte at the cursor in the current
// field (refusing if the field is protected), advances the cursor, and sets
// the field's MDT, per spec.md §4.8.
func (s *Session) TypeChar(b byte) error {
	if err := s.checkUnlocked(); err != nil {
		return err
	}
	addr := s.Screen.CurAddr()
	if s.Screen.IsProtected(addr) {
		return newError(ErrInputInhibited, "cannot type into a protected field")
	}

	s.Screen.dc.set(addr, b)
	s.setFieldMDT(addr)
	s.Hooks.write(s.fieldStartOf(addr), addr, s.Screen.mod(addr+1))

	next := s.Screen.mod(addr + 1)
	s.Screen.SetCurAddr(next)
	s.Hooks.cursorChanged(next)
	return nil
}

// KeyData types a run of already-encoded EBCDIC bytes starting at the
// cursor, stopping (and returning ErrInputInhibited) at the first protected
// position it would have to cross, per spec.md §4.8's "type-ahead is not
// modeled; a blocked byte aborts the whole call" rule.
func (s *Session) KeyData(data []byte) error {
	for _, b := range data {
		if err := s.TypeChar(b); err != nil {
			return err
		}
	}
	return nil
}

// Paste types text through the codec registry and then KeyData, per
// spec.md §4.8.
func (s *Session) Paste(text string) error {
	enc, _, err := s.Codecs.Encode(text, true)
	if err != nil {
		return err
	}
	return s.KeyData(enc)
}

func (s *Session) setFieldMDT(addr int) {
	fa, attr := s.Screen.Field(addr)
	if fa == -1 {
		return
	}
	s.Screen.fa.set(fa, byte(attr)|faMDT)
}

func (s *Session) fieldStartOf(addr int) int {
	fa, _ := s.Screen.Field(addr)
	return fa
}

// Backspace moves the cursor left one position and deletes the character
// now under it, per spec.md §4.8, unless the cell immediately before the
// original cursor position is a field-attribute byte (there is nothing to
// delete into).
func (s *Session) Backspace() error {
	if err := s.checkUnlocked(); err != nil {
		return err
	}
	prev := s.Screen.mod(s.Screen.CurAddr() - 1)
	if s.Screen.fa.at(prev) != 0 {
		return s.CursorLeft()
	}
	if err := s.CursorLeft(); err != nil {
		return err
	}
	return s.Delete()
}

// Delete removes the character at the cursor, shifting the remainder of the
// field left and placing a NUL at the field's last position.
func (s *Session) Delete() error {
	if err := s.checkUnlocked(); err != nil {
		return err
	}
	addr := s.Screen.CurAddr()
	if s.Screen.IsProtected(addr) {
		return newError(ErrInputInhibited, "cannot delete in a protected field")
	}
	fa, _ := s.Screen.Field(addr)
	end := s.nextFieldBoundary(fa)

	n := end - addr
	if n < 0 {
		n += s.Screen.bufferSize
	}
	for i := 0; i < n-1; i++ {
		pos := s.Screen.mod(addr + i)
		nextPos := s.Screen.mod(addr + i + 1)
		s.Screen.dc.set(pos, s.Screen.dc.at(nextPos))
	}
	if n > 0 {
		s.Screen.dc.set(s.Screen.mod(addr+n-1), ebcdicNUL)
	}
	s.setFieldMDT(addr)
	return nil
}

// InsertChar shifts the remainder of the current field right one position
// (dropping its last byte) and places b at the cursor.
func (s *Session) InsertChar(b byte) error {
	if err := s.checkUnlocked(); err != nil {
		return err
	}
	addr := s.Screen.CurAddr()
	if s.Screen.IsProtected(addr) {
		return newError(ErrInputInhibited, "cannot insert into a protected field")
	}
	fa, _ := s.Screen.Field(addr)
	end := s.nextFieldBoundary(fa)

	n := end - addr
	if n < 0 {
		n += s.Screen.bufferSize
	}
	for i := n - 1; i > 0; i-- {
		pos := s.Screen.mod(addr + i)
		prevPos := s.Screen.mod(addr + i - 1)
		s.Screen.dc.set(pos, s.Screen.dc.at(prevPos))
	}
	s.Screen.dc.set(addr, b)
	s.setFieldMDT(addr)
	s.Screen.SetCurAddr(s.Screen.mod(addr + 1))
	return nil
}

// EraseEOF clears from the cursor to the end of its field to NUL, per
// spec.md §4.8.
func (s *Session) EraseEOF() error {
	if err := s.checkUnlocked(); err != nil {
		return err
	}
	addr := s.Screen.CurAddr()
	if s.Screen.IsProtected(addr) {
		return newError(ErrInputInhibited, "cannot erase a protected field")
	}
	fa, _ := s.Screen.Field(addr)
	end := s.nextFieldBoundary(fa)

	n := end - addr
	if n < 0 {
		n += s.Screen.bufferSize
	}
	for i := 0; i < n; i++ {
		s.Screen.dc.set(s.Screen.mod(addr+i), ebcdicNUL)
	}
	s.setFieldMDT(addr)
	return nil
}

// EraseInput clears every unprotected field to NUL and resets its MDT,
// homing the cursor on the first one, per spec.md §4.8 (the keyboard-driven
// counterpart to the EAU order).
func (s *Session) EraseInput() error {
	if err := s.checkUnlocked(); err != nil {
		return err
	}
	s.eraseAllUnprotected()
	return s.Home()
}

// WordLeft / WordRight move the cursor to the start of the previous/next
// run of non-blank EBCDIC bytes within the current field.
func (s *Session) WordLeft() error  { return s.moveWord(-1) }
func (s *Session) WordRight() error { return s.moveWord(1) }

func (s *Session) moveWord(dir int) error {
	if err := s.checkUnlocked(); err != nil {
		return err
	}
	addr := s.Screen.CurAddr()
	fa, _ := s.Screen.Field(addr)
	if fa == -1 {
		return s.moveBy(dir)
	}
	end := s.nextFieldBoundary(fa)
	n := end - s.Screen.mod(fa+1)
	if n < 0 {
		n += s.Screen.bufferSize
	}

	pos := addr
	for i := 0; i < n; i++ {
		pos = s.Screen.mod(pos + dir)
		if pos == fa {
			break
		}
		if s.Screen.dc.at(pos) != ebcdicNUL && s.Screen.dc.at(s.Screen.mod(pos-dir)) == ebcdicNUL {
			break
		}
	}
	s.Screen.SetCurAddr(pos)
	s.Hooks.cursorChanged(pos)
	return nil
}

// Enter, Clear, PF1-24, PA1-3, Attn, SysReq send the corresponding AID,
// spec.md §4.7.
func (s *Session) Enter() error  { return s.SendAID(AIDEnter) }
func (s *Session) Clear() error  { s.Screen.Resize(s.Screen.Rows(), s.Screen.Cols()); return s.SendAID(AIDClear) }
func (s *Session) Attn() error   { return s.SendAID(AIDAttn) }
func (s *Session) SysReq() error { return s.SendAID(AIDSysReq) }
func (s *Session) PA1() error    { return s.SendAID(AIDPA1) }
func (s *Session) PA2() error    { return s.SendAID(AIDPA2) }
func (s *Session) PA3() error    { return s.SendAID(AIDPA3) }

var pfAIDs = [24]AID{
	AIDPF1, AIDPF2, AIDPF3, AIDPF4, AIDPF5, AIDPF6, AIDPF7, AIDPF8, AIDPF9, AIDPF10,
	AIDPF11, AIDPF12, AIDPF13, AIDPF14, AIDPF15, AIDPF16, AIDPF17, AIDPF18, AIDPF19, AIDPF20,
	AIDPF21, AIDPF22, AIDPF23, AIDPF24,
}

// PF sends PF1 through PF24; n outside [1,24] returns ErrProtocolViolation.
func (s *Session) PF(n int) error {
	if n < 1 || n > 24 {
		return newError(ErrProtocolViolation, "PF key number out of range")
	}
	return s.SendAID(pfAIDs[n-1])
}
