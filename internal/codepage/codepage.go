// This file is part of https://github.com/racingmars/tn3270e/
// Copyright 2020, 2025 by Matthew R. Wilson, licensed under the MIT license.
// See LICENSE in the project root for license information.

// Package codepage implements EBCDIC <-> Unicode translation tables for the
// codec registry (spec.md §4.2/§9). Each Codepage also exposes itself as a
// golang.org/x/text/encoding.Encoding so callers that already work in terms
// of the x/text transform pipeline (as stlalpha-vision3 does for its own
// text handling) can use it directly, instead of this package inventing its
// own encode/decode calling convention.
package codepage

import (
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// Codepage is an EBCDIC<->Unicode translation table for one IBM code page,
// plus the shared CP310 graphic-escape (GE) table every code page in this
// package supports.
//
// Grounded on the teacher's internal/codepage/codepage.go `codepage` struct;
// generalized to export the type (the teacher kept it private behind the
// Codepage interface in ebcdic.go) and to implement encoding.Encoding.
type Codepage struct {
	id string

	e2u []rune // EBCDIC byte -> Unicode code point, 0x00-0xFF
	u2e []byte // Unicode code point (0x00-0xFF) -> EBCDIC byte

	highu2e map[rune]byte // Unicode code point (>0xFF) -> EBCDIC byte

	esub byte // substitute EBCDIC byte for unrepresentable input
	ge   byte // graphic escape EBCDIC byte

	ge2u []rune        // GE byte -> Unicode code point
	u2ge map[rune]byte // Unicode code point -> GE byte
}

const unmapped = '�'

// Decode converts EBCDIC bytes to a UTF-8 string, resolving CP310 graphic
// escapes along the way.
func (cp *Codepage) Decode(b []byte) string {
	runes := make([]rune, 0, len(b))
	var escape bool
	for _, c := range b {
		if escape {
			escape = false
			if cp.ge2u[c] != unmapped {
				runes = append(runes, cp.ge2u[c])
			} else {
				runes = append(runes, 0x1A)
			}
			continue
		}
		if c == cp.ge {
			escape = true
			continue
		}
		runes = append(runes, cp.e2u[c])
	}
	return string(runes)
}

// TryEncode converts a UTF-8 string to EBCDIC bytes. ok is false only if the
// string contains invalid UTF-8; unrepresentable runes are replaced with the
// substitute character rather than failing the whole string, matching the
// teacher's Encode behavior.
func (cp *Codepage) TryEncode(s string) ([]byte, bool) {
	out := make([]byte, 0, len(s))
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		if r == utf8.RuneError && size <= 1 {
			return nil, false
		}
		switch {
		case int(r) < len(cp.u2e):
			out = append(out, cp.u2e[r])
		default:
			if v, ok := cp.highu2e[r]; ok {
				out = append(out, v)
			} else if v, ok := cp.u2ge[r]; ok {
				out = append(out, cp.ge, v)
			} else {
				out = append(out, cp.esub)
			}
		}
		s = s[size:]
	}
	return out, true
}

func (cp *Codepage) ID() string { return cp.id }

// NewEncoding returns an x/text encoding.Encoding view of cp, letting
// callers use transform.NewReader/Writer or cp.NewDecoder()/NewEncoder()
// the same way they would for any stdlib charmap.
func (cp *Codepage) NewEncoding() encoding.Encoding {
	return &xtextCodepage{cp: cp}
}

type xtextCodepage struct{ cp *Codepage }

func (x *xtextCodepage) NewDecoder() *encoding.Decoder {
	return &encoding.Decoder{Transformer: &decodeTransformer{cp: x.cp}}
}

func (x *xtextCodepage) NewEncoder() *encoding.Encoder {
	return &encoding.Encoder{Transformer: &encodeTransformer{cp: x.cp}}
}

type decodeTransformer struct{ cp *Codepage }

func (t *decodeTransformer) Reset() {}

func (t *decodeTransformer) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		n := 1
		if src[nSrc] == t.cp.ge {
			if nSrc+1 < len(src) {
				n = 2 // decode the GE byte together with the byte it escapes
			} else if !atEOF {
				return nDst, nSrc, transform.ErrShortSrc
			}
		}
		decoded := t.cp.Decode(src[nSrc : nSrc+n])
		if nDst+len(decoded) > len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		nDst += copy(dst[nDst:], decoded)
		nSrc += n
	}
	return nDst, nSrc, nil
}

type encodeTransformer struct{ cp *Codepage }

func (t *encodeTransformer) Reset() {}

func (t *encodeTransformer) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		r, size := utf8.DecodeRune(src[nSrc:])
		if r == utf8.RuneError && size == 1 && !atEOF {
			return nDst, nSrc, transform.ErrShortSrc
		}
		b, _ := t.cp.TryEncode(string(r))
		if nDst+len(b) > len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		nDst += copy(dst[nDst:], b)
		nSrc += size
	}
	return nDst, nSrc, nil
}

var registry = map[int]*Codepage{}

func register(n int, cp *Codepage) {
	registry[n] = cp
}

// ByNumber resolves an IBM code-page number to its Codepage, matching the
// teacher's codepageToFunction map in ebcdic.go.
func ByNumber(n int) (*Codepage, bool) {
	cp, ok := registry[n]
	return cp, ok
}
