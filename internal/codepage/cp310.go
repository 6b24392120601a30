// This file is part of https://github.com/racingmars/tn3270e/
// Copyright 2020, 2025 by Matthew R. Wilson, licensed under the MIT license.
// See LICENSE in the project root for license information.

package codepage

// CP310 is the APL-derived "graphic escape" character set every 3270 code
// page in this package shares, entered by the graphic escape byte (0x08, see
// Codepage.ge), the same value as the 3270 GE data-stream order. Grounded on the teacher's
// internal/codepage/codepage.go unicodeToCP310/cp310ToUnicode tables; this
// package implements the common mathematical/line-drawing subset rather
// than the full APL glyph repertoire, matching original_source/tnz/cp310.py's
// treatment of CP310 as a supplementary, not primary, character set.
var cp310ToUnicode = buildCP310ToUnicode()

var unicodeToCP310 = map[rune]byte{
	'├': 0xc6, '┤': 0xd6, '┬': 0xc7, '┴': 0xd7, '│': 0x85, '─': 0xa2,
	'┌': 0xc5, '┐': 0xd5, '└': 0xc4, '┘': 0xd4, '┼': 0xd3,
	'≤': 0x8c, '≥': 0xae, '≠': 0xbe, '≡': 0xe0, '∞': 0xb0,
	'↑': 0x8a, '↓': 0x8b, '→': 0x8f, '←': 0x9f,
	'∩': 0xaa, '∪': 0xab, '∈': 0xb1, '∀': 0xf1, '∃': 0xec,
	'▀': 0x93, '▄': 0x94, '▌': 0x91, '▐': 0x92, '█': 0x95,
	'°': 0xa1, '±': 0x9e, '÷': 0xb8, '×': 0xb6, '√': 0xd8,
	'Σ': 0xe6, 'Δ': 0xbb, '∇': 0xba, '⎕': 0x90,
}

func buildCP310ToUnicode() []rune {
	t := make([]rune, 256)
	for i := range t {
		t[i] = unmapped
	}
	for r, b := range unicodeToCP310 {
		t[b] = r
	}
	return t
}
