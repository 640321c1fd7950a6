package socks5

import (
	"errors"
	"fmt"
)

// ProtocolErrorKind classifies malformed input.
type ProtocolErrorKind int

const (
	BadVersion ProtocolErrorKind = iota + 1
	Truncated
	BadAddressType
	Malformed
)

func (k ProtocolErrorKind) String() string {
	switch k {
	case BadVersion:
		return "bad version"
	case Truncated:
		return "truncated message"
	case BadAddressType:
		return "bad address type"
	case Malformed:
		return "malformed message"
	default:
		return fmt.Sprintf("protocol error %d", int(k))
	}
}

// ProtocolError reports bytes that do not form a valid message. It is always
// fatal to the connection.
type ProtocolError struct {
	Kind ProtocolErrorKind
	Msg  string
	Err  error
}

// Sentinels for errors.Is. Any *ProtocolError matches the sentinel of the same
// Kind.
var (
	ErrBadVersion     = &ProtocolError{Kind: BadVersion}
	ErrTruncated      = &ProtocolError{Kind: Truncated}
	ErrBadAddressType = &ProtocolError{Kind: BadAddressType}
	ErrMalformed      = &ProtocolError{Kind: Malformed}
)

func (e *ProtocolError) Error() string {
	s := "socks5: " + e.Kind.String()
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func (e *ProtocolError) Is(target error) bool {
	t, ok := target.(*ProtocolError)
	return ok && t.Kind == e.Kind
}

func protoErr(kind ProtocolErrorKind, format string, args ...any) *ProtocolError {
	return &ProtocolError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Authentication outcomes. These are normal protocol results, reported to the
// client with a negative reply before the connection closes.
var (
	ErrNoAcceptableMethod = errors.New("socks5: no acceptable authentication method")
	ErrAuthFailed         = errors.New("socks5: authentication failed")
)

// ReplyError is a non-success reply code received from a SOCKS5 server.
type ReplyError byte

func (r ReplyError) Error() string {
	switch byte(r) {
	case RepSucceeded:
		return "succeeded"
	case RepGeneralFailure:
		return "general SOCKS server failure"
	case RepNotAllowed:
		return "connection not allowed by ruleset"
	case RepNetworkUnreachable:
		return "network unreachable"
	case RepHostUnreachable:
		return "host unreachable"
	case RepConnectionRefused:
		return "connection refused"
	case RepTTLExpired:
		return "TTL expired"
	case RepCommandNotSupported:
		return "command not supported"
	case RepAddressNotSupported:
		return "address type not supported"
	default:
		return fmt.Sprintf("unknown SOCKS5 reply %#02x", byte(r))
	}
}
