// This file is part of https://github.com/racingmars/tn3270e/
// Copyright 2020, 2025 by Matthew R. Wilson, licensed under the MIT license.
// See LICENSE in the project root for license information.

package tn3270e

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ddmOpenPayload(uploadFlag byte) []byte {
	rest := make([]byte, 10)
	rest[9] = uploadFlag
	return rest
}

// ddmOpenPayloadNamed builds an Open rest slice with an 8-byte encoded name
// field, for exercising the FT:DATA-vs-MSG open distinction.
func ddmOpenPayloadNamed(s *Session, name string, uploadFlag byte) []byte {
	enc, _, err := s.Codecs.Encode(name, false)
	if err != nil {
		panic(err)
	}
	pad, _, _ := s.Codecs.Encode(" ", false)
	rest := make([]byte, 10)
	for i := range rest[:8] {
		rest[i] = pad[0]
	}
	copy(rest, enc)
	rest[9] = uploadFlag
	return rest
}

func dataInsertRest(data []byte) []byte {
	rest := make([]byte, 0, len(data)+3)
	rest = append(rest, 0x00)
	datalen := uint16(len(data) + 5)
	rest = append(rest, byte(datalen>>8), byte(datalen))
	rest = append(rest, data...)
	return rest
}

func TestDDMOpenDownloadProducesFirstGetOnRequest(t *testing.T) {
	s, conn := newTestSessionWithConn()
	s.QueueDownload([]byte("hello world"), false)

	require.NoError(t, s.handleDDMStructuredField(append(ddmOpOpen[:], ddmOpenPayload(0)...)))
	conn.buf.Reset()

	require.NoError(t, s.handleDDMStructuredField(append(ddmOpGet[:], []byte{}...)))
	assert.NotEmpty(t, conn.buf.Bytes())
	assert.Empty(t, s.ddm.downloadQueue)
}

func TestDDMGetPastEndOfFileReturnsError(t *testing.T) {
	s, conn := newTestSessionWithConn()
	require.NoError(t, s.handleDDMStructuredField(append(ddmOpOpen[:], ddmOpenPayload(0)...)))
	conn.buf.Reset()

	require.NoError(t, s.handleDDMStructuredField(ddmOpGet[:]))
	got := conn.buf.Bytes()
	require.NotEmpty(t, got)
	assert.Contains(t, got, byte(0x22)) // get-past-eof error code
}

func TestDDMDataToInsertAccumulatesUploadBuffer(t *testing.T) {
	s, _ := newTestSessionWithConn()
	require.NoError(t, s.handleDDMStructuredField(append(ddmOpOpen[:], ddmOpenPayload(1)...)))

	require.NoError(t, s.handleDDMStructuredField(append(ddmOpDataInsert[:], dataInsertRest([]byte("ABC"))...)))
	assert.Equal(t, "ABC", string(s.UploadedData()))
}

func TestDDMCloseEndsTransfer(t *testing.T) {
	s, _ := newTestSessionWithConn()
	require.NoError(t, s.handleDDMStructuredField(append(ddmOpOpen[:], ddmOpenPayload(0)...)))
	require.True(t, s.ddm.open)

	require.NoError(t, s.handleDDMStructuredField(ddmOpClose[:]))
	assert.False(t, s.ddm.open)
}

func TestTranslateTextConvertsLFToCRLFAndBack(t *testing.T) {
	original := []byte("line one\nline two\n")
	toHost := translateText(original, true)
	assert.Contains(t, string(toHost), "\r\n")

	back := translateText(toHost, false)
	assert.Equal(t, original, back)
}

func TestQueueDownloadChunksAtMaxRecordLength(t *testing.T) {
	s := newTestSession()
	data := make([]byte, 2500)
	for i := range data {
		data[i] = byte('a' + i%26)
	}
	s.QueueDownload(data, false)
	require.Len(t, s.ddm.downloadQueue, 3)
	assert.Len(t, s.ddm.downloadQueue[0], 1024)
	assert.Len(t, s.ddm.downloadQueue[2], 2500-2*1024)
}

func TestGetFileKeysCommandAndCapturesCompletionMessage(t *testing.T) {
	s, conn := newTestSessionWithConn()
	path := filepath.Join(t.TempDir(), "downloaded.txt")

	type result struct {
		msg string
		err error
	}
	done := make(chan result, 1)
	go func() {
		msg, err := s.GetFile(path, "'MY.DATASET' ASCII")
		done <- result{msg, err}
	}()

	require.Eventually(t, func() bool { return conn.buf.Len() > 0 }, time.Second, time.Millisecond)

	require.NoError(t, s.handleDDMStructuredField(append(ddmOpOpen[:], ddmOpenPayload(0)...)))
	require.NoError(t, s.handleDDMStructuredField(append(ddmOpDataInsert[:], dataInsertRest([]byte("payload bytes"))...)))
	require.NoError(t, s.handleDDMStructuredField(ddmOpClose[:]))

	require.NoError(t, s.handleDDMStructuredField(append(ddmOpOpen[:], ddmOpenPayloadNamed(s, "DONE", 0)...)))
	msgText, _, err := s.Codecs.Encode("TRANSFER COMPLETE", false)
	require.NoError(t, err)
	require.NoError(t, s.handleDDMStructuredField(append(ddmOpDataInsert[:], dataInsertRest(msgText)...)))
	require.NoError(t, s.handleDDMStructuredField(ddmOpClose[:]))

	r := <-done
	require.NoError(t, r.err)
	assert.Equal(t, "TRANSFER COMPLETE", r.msg)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "payload bytes", string(written))
}

func TestPutFileReadsLocalFileAndReturnsCompletionMessage(t *testing.T) {
	s, conn := newTestSessionWithConn()
	path := filepath.Join(t.TempDir(), "upload.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello upload"), 0o600))

	type result struct {
		msg string
		err error
	}
	done := make(chan result, 1)
	go func() {
		msg, err := s.PutFile(path, "'MY.DATASET'")
		done <- result{msg, err}
	}()

	require.Eventually(t, func() bool { return conn.buf.Len() > 0 }, time.Second, time.Millisecond)
	require.NotEmpty(t, s.ddm.downloadQueue)

	conn.buf.Reset()
	require.NoError(t, s.handleDDMStructuredField(append(ddmOpOpen[:], ddmOpenPayload(1)...)))
	assert.NotEmpty(t, conn.buf.Bytes()) // Open Ack plus the auto-triggered first Get reply
	assert.Empty(t, s.ddm.downloadQueue)
	require.NoError(t, s.handleDDMStructuredField(ddmOpClose[:]))

	require.NoError(t, s.handleDDMStructuredField(append(ddmOpOpen[:], ddmOpenPayloadNamed(s, "DONE", 0)...)))
	msgText, _, err := s.Codecs.Encode("TRANSFER COMPLETE", false)
	require.NoError(t, err)
	require.NoError(t, s.handleDDMStructuredField(append(ddmOpDataInsert[:], dataInsertRest(msgText)...)))
	require.NoError(t, s.handleDDMStructuredField(ddmOpClose[:]))

	r := <-done
	require.NoError(t, r.err)
	assert.Equal(t, "TRANSFER COMPLETE", r.msg)
}

func TestGetFileReturnsErrorWhenSessionLost(t *testing.T) {
	s, conn := newTestSessionWithConn()
	path := filepath.Join(t.TempDir(), "downloaded.txt")

	done := make(chan error, 1)
	go func() {
		_, err := s.GetFile(path, "'MY.DATASET'")
		done <- err
	}()

	require.Eventually(t, func() bool { return conn.buf.Len() > 0 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	s.markLost(wrapError(ErrTransportLost, "connection reset", nil))

	err := <-done
	require.Error(t, err)
}
