// This file is part of https://github.com/racingmars/tn3270e/
// Copyright 2020, 2025 by Matthew R. Wilson, licensed under the MIT license.
// See LICENSE in the project root for license information.

package tn3270e

import "strings"

// Field attribute bits, post-bit6-encoding (spec.md §4.6).
const (
	faProtected  byte = 0x20
	faNumeric    byte = 0x10
	faDisplayBit byte = 0x0c
	faMDT        byte = 0x01

	faDisplayNormal       byte = 0x00
	faDisplayIntensified1 byte = 0x04
	faDisplayIntensified2 byte = 0x08
	faDisplayNonDisplay   byte = 0x0c
)

// Highlight, color, and character-set plane sentinel values.
const (
	csDefault   byte = 0x00
	csAlternate byte = 0x01
)

// FieldAttr is a decoded view of a field-start attribute byte.
type FieldAttr byte

func (a FieldAttr) Protected() bool { return byte(a)&faProtected != 0 }
func (a FieldAttr) Numeric() bool   { return byte(a)&faNumeric != 0 }
func (a FieldAttr) MDT() bool       { return byte(a)&faMDT != 0 }
func (a FieldAttr) Display() byte   { return byte(a) & faDisplayBit }

func (a FieldAttr) Detectable() bool {
	d := a.Display()
	return d == faDisplayIntensified1 || d == faDisplayIntensified2
}

func (a FieldAttr) Displayable() bool { return a.Display() != faDisplayNonDisplay }
func (a FieldAttr) Normal() bool      { return a.Display() == faDisplayNormal }

// Screen is the implicit-partition 3270 display buffer: six parallel planes
// sharing one circular address space, per spec.md §3.
//
// Grounded on the teacher's `Field`/`Screen` declarative model (screen.go),
// generalized from an application-declared field list into fields implicitly
// recovered from fa-plane bytes the host writes into the live data stream.
type Screen struct {
	rows, cols int
	bufferSize int
	force14Bit bool // true once negotiated alternate size exceeds 12-bit range

	dc *buffer // EBCDIC data code
	fa *buffer // field attribute (0 = not a field-start cell)
	eh *buffer // extended highlight
	cs *buffer // character set index
	fg *buffer // extended foreground color
	bg *buffer // extended background color

	curadd int
	bufadd int

	extendedColor bool
}

// NewScreen creates a rows x cols screen with all planes zeroed and the
// cursor at address 0.
func NewScreen(rows, cols int) *Screen {
	size := rows * cols
	s := &Screen{
		rows:       rows,
		cols:       cols,
		bufferSize: size,
		force14Bit: size > 4095,
		dc:         newBuffer(size),
		fa:         newBuffer(size),
		eh:         newBuffer(size),
		cs:         newBuffer(size),
		fg:         newBuffer(size),
		bg:         newBuffer(size),
	}
	return s
}

func (s *Screen) BufferSize() int { return s.bufferSize }
func (s *Screen) Rows() int       { return s.rows }
func (s *Screen) Cols() int       { return s.cols }
func (s *Screen) CurAddr() int    { return s.curadd }

// SetCurAddr sets the cursor address, modulo the buffer size.
func (s *Screen) SetCurAddr(a int) {
	s.curadd = s.dc.mod(a)
}

func (s *Screen) mod(a int) int { return s.dc.mod(a) }

// Resize replaces all six planes with zeroed planes of the new dimensions
// and homes the cursor, per invariant 7 (EW/EWA reset). This is the only
// way buffer_size changes (invariant 8).
func (s *Screen) Resize(rows, cols int) {
	size := rows * cols
	s.rows = rows
	s.cols = cols
	s.bufferSize = size
	s.force14Bit = size > 4095
	s.dc = newBuffer(size)
	s.fa = newBuffer(size)
	s.eh = newBuffer(size)
	s.cs = newBuffer(size)
	s.fg = newBuffer(size)
	s.bg = newBuffer(size)
	s.curadd = 0
	s.bufadd = 0
}

// Field returns the field-start address and attribute byte of the field
// containing addr, or (-1, 0) if the screen is unformatted.
func (s *Screen) Field(addr int) (int, FieldAttr) {
	addr = s.mod(addr)
	if s.fa.at(addr) != 0 {
		return addr, FieldAttr(s.fa.at(addr))
	}
	for i := 1; i <= s.bufferSize; i++ {
		pos := s.mod(addr - i)
		if s.fa.at(pos) != 0 {
			return pos, FieldAttr(s.fa.at(pos))
		}
	}
	return -1, 0
}

// IsProtected reports whether addr lies in a protected field (or is itself
// a field-attribute cell, which is always non-editable).
func (s *Screen) IsProtected(addr int) bool {
	addr = s.mod(addr)
	if s.fa.at(addr) != 0 {
		return true
	}
	fa, attr := s.Field(addr)
	if fa == -1 {
		return false // unformatted screen is fully unprotected
	}
	return attr.Protected()
}

// NextField returns the address and attribute of the next field-start at or
// after addr+offset, stopping and returning (-1, 0) once stop is reached
// again without finding one. If the screen is unformatted, returns (-1, 0).
func (s *Screen) NextField(addr, stop, offset int) (int, FieldAttr) {
	pos := s.mod(addr + offset)
	for i := 0; i < s.bufferSize; i++ {
		if s.fa.at(pos) != 0 {
			return pos, FieldAttr(s.fa.at(pos))
		}
		pos = s.mod(pos + 1)
		if pos == s.mod(stop) {
			break
		}
	}
	return -1, 0
}

// FieldRange describes one field-start address and its attribute byte.
type FieldRange struct {
	Addr int
	Attr FieldAttr
}

// Fields returns every field-start in the screen in address order, starting
// from address 0. Monotone and partitions the buffer per spec.md §8.
func (s *Screen) Fields() []FieldRange {
	var out []FieldRange
	for i := 0; i < s.bufferSize; i++ {
		if s.fa.at(i) != 0 {
			out = append(out, FieldRange{Addr: i, Attr: FieldAttr(s.fa.at(i))})
		}
	}
	return out
}

// AddrRange is a half-open circular [Start, End) address range.
type AddrRange struct {
	Start, End int
}

// CharAddrs returns the maximal runs of non-attribute cells across the whole
// buffer, one run per field (an unformatted screen gives the single run
// {0, 0}, "start==stop means everything"). s and e do not restrict the
// result: the whole buffer is scanned whatever their values.
func (sc *Screen) CharAddrs(s, e int) []AddrRange {
	fields := sc.Fields()
	if len(fields) == 0 {
		return []AddrRange{{Start: 0, End: sc.bufferSize % sc.bufferSize}}
	}

	var out []AddrRange
	for i, f := range fields {
		start := sc.mod(f.Addr + 1)
		var end int
		if i+1 < len(fields) {
			end = fields[i+1].Addr
		} else {
			end = fields[0].Addr
		}
		out = append(out, AddrRange{Start: start, End: end})
	}
	return out
}

// Group is a maximal run of cells sharing identical eh/fg/bg.
type Group struct {
	Start, End  int
	EH, FG, BG  byte
}

// GroupAddrs returns maximal runs of non-attribute cells that share the same
// extended highlight / foreground / background attributes. Like CharAddrs,
// it covers the whole buffer; s and e do not restrict the result.
func (sc *Screen) GroupAddrs(s, e int) []Group {
	addrs := sc.CharAddrs(s, e)
	var out []Group
	for _, r := range addrs {
		n := r.End - r.Start
		if n <= 0 {
			n += sc.bufferSize
		}
		pos := r.Start
		for n > 0 {
			eh, fg, bg := sc.eh.at(pos), sc.fg.at(pos), sc.bg.at(pos)
			start := pos
			count := 0
			for n > 0 && sc.eh.at(pos) == eh && sc.fg.at(pos) == fg && sc.bg.at(pos) == bg {
				pos = sc.mod(pos + 1)
				n--
				count++
			}
			out = append(out, Group{Start: start, End: pos, EH: eh, FG: fg, BG: bg})
		}
	}
	return out
}

// displayXlate maps control EBCDIC bytes to blank for on-screen rendering
// per spec.md §4.2, except SUB/DUP/FM which get distinguishable Unicode
// placeholders so a caller can tell them apart from ordinary blanks.
var displayXlate = map[byte]rune{
	ebcdicNUL: ' ',
	ebcdicFF:  ' ',
	ebcdicCR:  ' ',
	ebcdicNL:  ' ',
	ebcdicEM:  ' ',
	ebcdicEO:  ' ',
	ebcdicSUB: '␦', // SYMBOL FOR SUBSTITUTE FORM TWO
	ebcdicDUP: '∗', // DUPLICATE indicator placeholder
	ebcdicFM:  '⎕', // FIELD MARK placeholder
}

// ScrString returns the visible Unicode text of [s, e), honoring per-cell
// character set so runs under GE are decoded through the alternate codec.
// Attribute cells render as blank. If rstrip is true, trailing blanks on
// each row are removed.
func (sc *Screen) ScrString(s, e int, rstrip bool, reg *CodecRegistry) string {
	var b strings.Builder
	addrs := []AddrRange{{Start: s, End: e}}
	if s == e {
		addrs = []AddrRange{{Start: 0, End: 0}}
	}

	for _, r := range addrs {
		segs := rowSegments(r.Start, r.End, sc.bufferSize, sc.cols)
		for _, seg := range segs {
			row := sc.scrStringRow(seg, reg)
			if rstrip {
				row = strings.TrimRight(row, " ")
			}
			b.WriteString(row)
		}
	}
	return b.String()
}

func (sc *Screen) scrStringRow(seg rowSegment, reg *CodecRegistry) string {
	n := seg.End - seg.Start
	if n <= 0 {
		n += sc.bufferSize
	}
	var out strings.Builder
	pos := seg.Start
	for i := 0; i < n; {
		if sc.fa.at(pos) != 0 {
			out.WriteByte(' ')
			pos = sc.mod(pos + 1)
			i++
			continue
		}
		cs := sc.cs.at(pos)
		start := pos
		var run []byte
		for i < n && sc.fa.at(pos) == 0 && sc.cs.at(pos) == cs {
			run = append(run, sc.dc.at(pos))
			pos = sc.mod(pos + 1)
			i++
		}
		out.WriteString(decodeDisplayRun(run, cs, reg))
		_ = start
	}
	return out.String()
}

func decodeDisplayRun(run []byte, cs byte, reg *CodecRegistry) string {
	var translated []byte
	var runes []rune
	for _, b := range run {
		if r, ok := displayXlate[b]; ok {
			runes = append(runes, r)
			continue
		}
		if len(runes) > 0 {
			// flush pending passthrough placeholder runes isn't needed: we
			// interleave decode calls per contiguous sub-run below instead.
		}
		translated = append(translated, b)
	}
	if len(translated) == 0 && len(runes) > 0 {
		return string(runes)
	}

	// Re-walk the run so placeholders interleave correctly with decoded
	// text in original order.
	var out strings.Builder
	var pending []byte
	flush := func() {
		if len(pending) == 0 {
			return
		}
		out.WriteString(reg.Decode(int(cs), pending))
		pending = nil
	}
	for _, b := range run {
		if r, ok := displayXlate[b]; ok {
			flush()
			out.WriteRune(r)
			continue
		}
		pending = append(pending, b)
	}
	flush()
	return out.String()
}
