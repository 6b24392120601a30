// This file is part of https://github.com/racingmars/tn3270e/
// Copyright 2020, 2025 by Matthew R. Wilson, licensed under the MIT license.
// See LICENSE in the project root for license information.

package tn3270e

import "fmt"

// ErrorKind identifies which of the error categories from the failure
// semantics table a Error value belongs to.
type ErrorKind int

const (
	// ErrInputInhibited is returned by a keyboard operation attempted while
	// the keyboard is locked (pwait or system-lock-wait is set).
	ErrInputInhibited ErrorKind = iota

	// ErrBadAddress is returned when an address falls outside 0..bufferSize.
	ErrBadAddress

	// ErrProtocolViolation is returned for malformed addresses, structured
	// field lengths, unknown command/order bytes, or bad DDM subcodes. It
	// does not mark the session lost: the reader loop logs a violation in
	// host data, drops the rest of that chunk, and keeps reading.
	ErrProtocolViolation

	// ErrEncoding is returned when no registered codec can encode a
	// keystroke.
	ErrEncoding

	// ErrTransportLost is returned when the connection is closed by the
	// peer or the transport otherwise fails. It marks the session lost.
	ErrTransportLost

	// ErrTLSNegotiation is returned when a STARTTLS upgrade fails. Treated
	// as ErrTransportLost with a more specific cause.
	ErrTLSNegotiation

	// ErrFileTransfer is surfaced as the MSG text captured from the host
	// during an IND$FILE transfer failure.
	ErrFileTransfer
)

func (k ErrorKind) String() string {
	switch k {
	case ErrInputInhibited:
		return "input inhibited"
	case ErrBadAddress:
		return "bad address"
	case ErrProtocolViolation:
		return "protocol violation"
	case ErrEncoding:
		return "encoding error"
	case ErrTransportLost:
		return "transport lost"
	case ErrTLSNegotiation:
		return "tls negotiation failed"
	case ErrFileTransfer:
		return "file transfer error"
	default:
		return "unknown error"
	}
}

// Error is the error type returned by every exported operation in this
// package that can fail. Use errors.As to recover the Kind and Cause.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func wrapError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}
