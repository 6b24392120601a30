// This file is part of https://github.com/racingmars/tn3270e/
// Copyright 2020, 2025 by Matthew R. Wilson, licensed under the MIT license.
// See LICENSE in the project root for license information.

package tn3270e

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuntimeWaitReturnsOnWake(t *testing.T) {
	r := NewRuntime(nil)
	go func() {
		time.Sleep(10 * time.Millisecond)
		r.Wake()
	}()

	fired, err := r.Wait(time.Second)
	require.NoError(t, err)
	assert.True(t, fired)
}

func TestRuntimeWaitTimesOut(t *testing.T) {
	r := NewRuntime(nil)
	fired, err := r.Wait(10 * time.Millisecond)
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestRuntimeWaitConsumesPriorWake(t *testing.T) {
	r := NewRuntime(nil)
	r.Wake()
	fired, err := r.Wait(time.Second)
	require.NoError(t, err)
	assert.True(t, fired)
}

func TestRuntimeNestedWaitRejected(t *testing.T) {
	r := NewRuntime(nil)
	done := make(chan struct{})
	started := make(chan struct{})
	go func() {
		close(started)
		r.Wait(200 * time.Millisecond)
		close(done)
	}()
	<-started
	time.Sleep(20 * time.Millisecond)

	_, err := r.Wait(0)
	require.Error(t, err)
	<-done
}
