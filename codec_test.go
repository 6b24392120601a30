// This file is part of https://github.com/racingmars/tn3270e/
// Copyright 2020, 2025 by Matthew R. Wilson, licensed under the MIT license.
// See LICENSE in the project root for license information.

package tn3270e

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodepageByNumberKnownPages(t *testing.T) {
	for _, n := range []int{37, 500, 1047, 1140} {
		cp, ok := CodepageByNumber(n)
		require.True(t, ok, "codepage %d should be registered", n)
		assert.NotEmpty(t, cp.ID())
	}
}

func TestCodepageByNumberUnknown(t *testing.T) {
	_, ok := CodepageByNumber(99999)
	assert.False(t, ok)
}

func TestCodecRegistryRoundTripASCIILetters(t *testing.T) {
	cp, ok := CodepageByNumber(37)
	require.True(t, ok)
	reg := NewCodecRegistry(cp, nil)

	enc, slot, err := reg.Encode("HELLO", false)
	require.NoError(t, err)
	assert.Equal(t, 0, slot)

	dec := reg.Decode(0, enc)
	assert.Equal(t, "HELLO", dec)
}

func TestCodecRegistryAliasesAlternateWhenUnset(t *testing.T) {
	cp, ok := CodepageByNumber(37)
	require.True(t, ok)
	reg := NewCodecRegistry(cp, nil)
	assert.Equal(t, reg.slots[0].ID(), reg.slots[1].ID())
}
