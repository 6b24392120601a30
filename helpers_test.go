// This file is part of https://github.com/racingmars/tn3270e/
// Copyright 2020, 2025 by Matthew R. Wilson, licensed under the MIT license.
// See LICENSE in the project root for license information.

package tn3270e

import (
	"bytes"
	"net"
	"time"
)

// recordingConn is a net.Conn stand-in that captures everything written to
// it, for tests that exercise code paths ending in Session.writeRecord.
type recordingConn struct {
	net.Conn
	buf bytes.Buffer
}

func (c *recordingConn) Write(b []byte) (int, error) { return c.buf.Write(b) }
func (c *recordingConn) Read([]byte) (int, error)    { return 0, nil }
func (c *recordingConn) Close() error                { return nil }
func (c *recordingConn) LocalAddr() net.Addr         { return nil }
func (c *recordingConn) RemoteAddr() net.Addr        { return nil }
func (c *recordingConn) SetDeadline(time.Time) error      { return nil }
func (c *recordingConn) SetReadDeadline(time.Time) error  { return nil }
func (c *recordingConn) SetWriteDeadline(time.Time) error { return nil }

func newTestSessionWithConn() (*Session, *recordingConn) {
	s := newTestSession()
	c := &recordingConn{}
	s.conn = c
	return s, c
}
