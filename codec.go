// This file is part of https://github.com/racingmars/tn3270e/
// Copyright 2020, 2025 by Matthew R. Wilson, licensed under the MIT license.
// See LICENSE in the project root for license information.

package tn3270e

import (
	"github.com/racingmars/tn3270e/internal/codepage"
	"golang.org/x/text/encoding"
)

// EBCDIC control-byte constants referenced by the screen display
// translation (spec.md §4.2) and the keyboard engine.
const (
	ebcdicNUL byte = 0x00
	ebcdicDUP byte = 0x1c
	ebcdicFM  byte = 0x1e
	ebcdicFF  byte = 0x0c
	ebcdicCR  byte = 0x0d
	ebcdicNL  byte = 0x15
	ebcdicEM  byte = 0x19
	ebcdicEO  byte = 0xff
	ebcdicSUB byte = 0x3f
)

// Codec translates between EBCDIC bytes and Unicode text for one character
// set slot. Implementations wrap golang.org/x/text/encoding.Encoding so the
// registry composes with the standard transform pipeline instead of ad hoc
// byte-slice methods (grounded on stlalpha-vision3's use of
// golang.org/x/text for its own text pipeline).
type Codec interface {
	Decode(e []byte) string
	Encode(s string) ([]byte, error)
	ID() string
}

// CodecRegistry holds the two codec slots spec.md §9 describes: slot 0 is
// the primary (default) codepage, slot 1 is the alternate/GE codepage. Both
// slots may point at the same underlying codepage if no alternate was
// configured.
//
// Grounded on the teacher's ebcdic.go (SetCodepage / Codepage* constructors),
// generalized from one global codepage to the two-slot registry spec.md §9
// calls for.
type CodecRegistry struct {
	slots [2]Codec
}

// NewCodecRegistry builds a registry with primary as slot 0. If alt is nil,
// slot 1 aliases the primary, so cells written under GE (stored without the
// escape byte) decode through the primary table's ordinary mapping, not
// through CP310.
func NewCodecRegistry(primary, alt Codec) *CodecRegistry {
	if alt == nil {
		alt = primary
	}
	return &CodecRegistry{slots: [2]Codec{primary, alt}}
}

// Decode decodes e through the codec registered for character-set index cs
// (0 or 1).
func (r *CodecRegistry) Decode(cs int, e []byte) string {
	return r.slots[cs&1].Decode(e)
}

// Encode tries the primary codec first; if it fails and altEnabled is true,
// it tries the alternate codec. It returns the encoded bytes, the codec
// slot index that succeeded, and any error if both failed.
func (r *CodecRegistry) Encode(s string, altEnabled bool) ([]byte, int, error) {
	if b, err := r.slots[0].Encode(s); err == nil {
		return b, 0, nil
	}
	if altEnabled {
		if b, err := r.slots[1].Encode(s); err == nil {
			return b, 1, nil
		}
	}
	return nil, 0, newError(ErrEncoding, "no registered codec could encode text")
}

// codepageCodec adapts the internal codepage table type to the Codec
// interface by driving it through its golang.org/x/text/encoding.Encoding
// view (codepage.Codepage.NewEncoding), so the registry's decode/encode
// calls run the standard transform pipeline instead of calling the table's
// byte-slice methods directly.
type codepageCodec struct {
	cp  *codepage.Codepage
	enc encoding.Encoding
}

func newCodepageCodec(cp *codepage.Codepage) codepageCodec {
	return codepageCodec{cp: cp, enc: cp.NewEncoding()}
}

func (c codepageCodec) Decode(e []byte) string {
	out, err := c.enc.NewDecoder().Bytes(e)
	if err != nil {
		return c.cp.Decode(e)
	}
	return string(out)
}

func (c codepageCodec) Encode(s string) ([]byte, error) {
	out, err := c.enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, newError(ErrEncoding, "codepage "+c.cp.ID()+" cannot represent input")
	}
	return out, nil
}

func (c codepageCodec) ID() string { return c.cp.ID() }

// CodepageByNumber resolves an IBM code-page number to a Codec, matching
// the teacher's codepageToFunction lookup table in ebcdic.go.
func CodepageByNumber(n int) (Codec, bool) {
	cp, ok := codepage.ByNumber(n)
	if !ok {
		return nil, false
	}
	return newCodepageCodec(cp), true
}
