// This file is part of https://github.com/racingmars/tn3270e/
// Copyright 2020, 2025 by Matthew R. Wilson, licensed under the MIT license.
// See LICENSE in the project root for license information.

package tn3270e

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
)

// Config is the per-session configuration input, spec.md §6.
type Config struct {
	// TerminalType is the ASCII terminal type sent during negotiation.
	// Defaults to "IBM-DYNAMIC".
	TerminalType string

	// LUName, if non-empty, requests a specific LU via TN3270E CONNECT.
	LUName string

	// UseTN3270E enables TN3270E device-type/functions negotiation.
	UseTN3270E bool

	// Secure wraps the connection in TLS as soon as it is established. A
	// STARTTLS upgrade requested by the host during telnet negotiation is
	// performed whether or not Secure is set.
	Secure bool

	// VerifyCert controls certificate verification when Secure is true.
	VerifyCert bool

	// PrimaryCodepage / AltCodepage select the codec registry slots by IBM
	// code-page number. AltCodepage may be 0 to alias the primary.
	PrimaryCodepage int
	AltCodepage     int

	// AltRows / AltCols configure the alternate screen size EWA selects.
	// Bounded by spec.md §3: rows*cols <= 16383.
	AltRows, AltCols int
}

func (c *Config) terminalType() string {
	if c.TerminalType == "" {
		return "IBM-DYNAMIC"
	}
	return c.TerminalType
}

func (c *Config) defaultPort() int {
	if c.Secure {
		return 992
	}
	return 23
}

// Hooks lets a UI/scripting collaborator observe screen and keyboard-lock
// changes without the core dispatching through dynamic attribute lookup
// (spec.md §6/§9). The core runs correctly with Hooks left as its zero
// value (every method nil-checked before being called).
type Hooks struct {
	OnErase               func()
	OnWrite               func(fieldAddr, start, end int)
	OnData                func(start, length int)
	OnFieldDefined        func(addr int)
	OnKeylockChanged      func(locked bool)
	OnCursorChanged       func(addr int)
	OnExtendedColorEntered func()
}

func (h *Hooks) erase() {
	if h.OnErase != nil {
		h.OnErase()
	}
}
func (h *Hooks) write(fieldAddr, start, end int) {
	if h.OnWrite != nil {
		h.OnWrite(fieldAddr, start, end)
	}
}
func (h *Hooks) data(start, length int) {
	if h.OnData != nil {
		h.OnData(start, length)
	}
}
func (h *Hooks) fieldDefined(addr int) {
	if h.OnFieldDefined != nil {
		h.OnFieldDefined(addr)
	}
}
func (h *Hooks) keylockChanged(locked bool) {
	if h.OnKeylockChanged != nil {
		h.OnKeylockChanged(locked)
	}
}
func (h *Hooks) cursorChanged(addr int) {
	if h.OnCursorChanged != nil {
		h.OnCursorChanged(addr)
	}
}
func (h *Hooks) extendedColorEntered() {
	if h.OnExtendedColorEntered != nil {
		h.OnExtendedColorEntered()
	}
}

// readState is the three-state read-state machine of spec.md §4.5.
type readState int

const (
	readNormal readState = iota
	readRenter
	readRread
)

// replyMode selects how inbound field content is formatted, spec.md §4.7.
type replyMode int

const (
	replyField         replyMode = 0
	replyExtendedField replyMode = 1
	replyCharacter     replyMode = 2
)

// Session owns one transport connection, negotiation state, the screen,
// and any in-flight file transfer (spec.md §3). Exactly one Screen per
// Session.
type Session struct {
	ID string

	Config  Config
	Runtime *Runtime
	Hooks   Hooks
	Codecs  *CodecRegistry

	conn    net.Conn
	framer  *Framer
	neg     *negotiator
	tlsHost string // ServerName for a STARTTLS-triggered upgrade

	Screen *Screen

	// bufadd is the write pointer used during order processing (spec.md
	// §3 invariant 5).
	bufadd int

	// Running character-attribute registers the outbound processor stamps
	// onto data bytes (spec.md §4.5 "Data bytes").
	procEH, procCS, procFG, procBG byte

	pwait          bool
	systemLockWait bool
	readState      readState
	replyMode      replyMode
	replyCattrs    map[byte]bool // attribute types of interest in character mode (0x41/0x42/0x45), set by Set Reply Mode
	lastAID        AID
	// lastInbound is the RM/RMA resend target in any read state; it also doubles as
	// the pending Data-For-Get record spec.md §4.12 wants resent verbatim,
	// since ddmProduceNextGet stamps it here the same way every other
	// inbound record does.
	lastInbound []byte

	extendedColorEntered bool
	ptErase              bool // set by data bytes, consumed by a following PT order

	tn3270eActive bool
	tn3270eSeq    uint16

	ddm *ddmState

	lost    bool
	lostErr error
}

// NewSession creates a Session with the given configuration. The screen is
// sized to the default 24x80 until EWA or an explicit Resize selects the
// alternate size.
func NewSession(cfg Config, rt *Runtime) *Session {
	if rt == nil {
		rt = NewRuntime(nil)
	}

	primary, ok := CodepageByNumber(cfg.PrimaryCodepage)
	if !ok {
		primary, _ = CodepageByNumber(1047)
	}
	var alt Codec
	if cfg.AltCodepage != 0 {
		alt, _ = CodepageByNumber(cfg.AltCodepage)
	}

	s := &Session{
		ID:          uuid.NewString(),
		Config:      cfg,
		Runtime:     rt,
		Codecs:      NewCodecRegistry(primary, alt),
		Screen:      NewScreen(24, 80),
		replyCattrs: make(map[byte]bool),
	}
	return s
}

// Lost reports whether the session has been marked lost (transport error,
// TLS failure, or Close), per spec.md §7. Protocol violations in host data
// do not mark it lost.
func (s *Session) Lost() (bool, error) {
	return s.lost, s.lostErr
}

func (s *Session) markLost(err error) {
	if s.lost {
		return
	}
	s.lost = true
	s.lostErr = err
	s.Runtime.Log.Error("session lost", "id", s.ID, "err", err)
	s.Runtime.Wake()
}

// Connect dials the first reachable address in addrs (host:port pairs),
// negotiates telnet options (including a STARTTLS upgrade whenever the host
// requests one), and, if UseTN3270E is set, negotiates TN3270E device type and
// functions. Accepting a candidate list mirrors original_source/tnz/tnz.py's
// connect(), which tries each host:port in turn until one succeeds.
func (s *Session) Connect(addrs ...string) error {
	if len(addrs) == 0 {
		return newError(ErrProtocolViolation, "Connect requires at least one address")
	}

	var lastErr error
	var conn net.Conn
	for _, a := range addrs {
		c, err := net.DialTimeout("tcp", a, 10*time.Second)
		if err == nil {
			conn = c
			break
		}
		lastErr = err
	}
	if conn == nil {
		return wrapError(ErrTransportLost, "could not connect to any address", lastErr)
	}

	if s.Config.Secure {
		tlsConn, err := upgradeTLS(conn, hostOf(addrs[0]), s.Config.VerifyCert)
		if err != nil {
			conn.Close()
			return err
		}
		conn = tlsConn
	}

	s.conn = conn
	s.tlsHost = hostOf(addrs[0])
	s.framer = NewFramer()
	s.neg = newNegotiator(&s.Config, conn, s.Runtime.Log)

	go s.readLoop()
	return nil
}

func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// Close idempotently shuts down the transport. Safe to call multiple times
// and from any goroutine.
func (s *Session) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.markLost(wrapError(ErrTransportLost, "session closed by caller", err))
	return nil
}

// Wait blocks until data arrives, the timeout elapses, the connection is
// lost, or a wake signal is posted, per spec.md §4.11.
func (s *Session) Wait(timeout time.Duration) (bool, error) {
	return s.Runtime.Wait(timeout)
}

// readLoop is the single reader goroutine per session; all state mutation
// driven by inbound bytes happens by calling back into the (otherwise
// single-threaded) processing methods, preserving the "no fine-grained
// locks on the screen" model of spec.md §5 as long as callers don't also
// mutate the screen concurrently from another goroutine.
func (s *Session) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			if perr := s.feed(buf[:n]); perr != nil {
				var e *Error
				if errors.As(perr, &e) && e.Kind == ErrProtocolViolation {
					s.Runtime.Log.Warn("protocol violation; draining record", "err", perr)
					continue
				}
				s.markLost(perr)
				return
			}
		}
		if err != nil {
			s.markLost(wrapError(ErrTransportLost, "read failed", err))
			return
		}
		s.Runtime.Wake()
	}
}

// feed processes one chunk of freshly-read transport bytes through the
// telnet framer and dispatches the resulting events.
func (s *Session) feed(data []byte) error {
	events, err := s.framer.Feed(data)
	if err != nil {
		return err
	}
	for _, ev := range events {
		switch ev.Kind {
		case EventRecord:
			if perr := s.handleInboundRecord(ev.Record); perr != nil {
				return perr
			}
		default:
			if perr := s.neg.HandleEvent(ev); perr != nil {
				return perr
			}
			if s.neg.consumeStartTLSReady() {
				if perr := s.upgradeToStartTLS(); perr != nil {
					return perr
				}
			}
			if s.neg.tn3270eNegotiationDone() {
				s.tn3270eActive = true
			}
		}
	}
	return nil
}

// upgradeToStartTLS performs the TLS handshake over the still-plaintext
// connection once the negotiator has sent the START_TLS FOLLOWS
// subnegotiation, then swaps both the session's and the negotiator's
// transport to the new TLS connection so every subsequent byte (including
// the TN3270E negotiation that follows) goes over it, per spec.md §4.3.
func (s *Session) upgradeToStartTLS() error {
	tlsConn, err := upgradeTLS(s.conn, s.tlsHost, s.Config.VerifyCert)
	if err != nil {
		s.markLost(err)
		return err
	}
	s.conn = tlsConn
	s.neg.out = tlsConn
	return nil
}

// handleInboundRecord dispatches a fully-framed 3270 (or TN3270E-wrapped)
// record to the outbound-command processor, per spec.md §4.4/§4.5.
func (s *Session) handleInboundRecord(rec []byte) error {
	payload := rec
	var seq uint16
	var respFlag byte

	if s.tn3270eActive {
		hdr, rest, err := decodeRecordHeader(rec)
		if err != nil {
			return err
		}
		if hdr.DataType != dtData3270 {
			return newError(ErrProtocolViolation, "unsupported TN3270E data-type")
		}
		payload = rest
		seq = hdr.SeqNumber
		respFlag = hdr.ResponseFlag
	}

	if err := s.processOutboundRecord(payload); err != nil {
		return err
	}

	if s.tn3270eActive && respFlag == responseFlagAlways {
		s.writeRecord(responseRecord(seq))
	}
	return nil
}

// writeRecord frames payload (adding a TN3270E header if active) and writes
// it to the transport as one EOR-terminated record.
func (s *Session) writeRecord(payload []byte) {
	out := payload
	if s.tn3270eActive {
		hdr := RecordHeader{DataType: dtData3270}
		out = append(hdr.Encode(), payload...)
	}
	s.conn.Write(EncodeRecord(out))
}

// Screen read operations (spec.md §6).

func (s *Session) ScreenString(start, end int, rstrip bool) string {
	return s.Screen.ScrString(start, end, rstrip, s.Codecs)
}

func (s *Session) Fields() []FieldRange { return s.Screen.Fields() }

func (s *Session) CharAddrs(start, end int) []AddrRange { return s.Screen.CharAddrs(start, end) }

func (s *Session) FieldAt(addr int) (int, FieldAttr) { return s.Screen.Field(addr) }

func (s *Session) IsProtected(addr int) bool { return s.Screen.IsProtected(addr) }

func (s *Session) String() string {
	return fmt.Sprintf("Session(%s, %dx%d)", s.ID, s.Screen.Rows(), s.Screen.Cols())
}

