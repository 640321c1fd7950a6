package dialer

import (
	"context"
	"errors"
	"net"
)

// ErrNotAllowed is returned when every candidate address of a destination is
// covered by the deny list.
var ErrNotAllowed = errors.New("destination not allowed")

// Failure is the reason a dial failed, reduced to what a SOCKS5 reply can
// express.
type Failure int

const (
	FailureOther Failure = iota
	FailureRefused
	FailureHostUnreachable
	FailureNetworkUnreachable
	FailureNotAllowed
)

func (f Failure) String() string {
	switch f {
	case FailureRefused:
		return "refused"
	case FailureHostUnreachable:
		return "host unreachable"
	case FailureNetworkUnreachable:
		return "network unreachable"
	case FailureNotAllowed:
		return "not allowed"
	default:
		return "other"
	}
}

// Classify inspects an error returned by a Dialer. Timeouts and anything not
// recognized are FailureOther.
func Classify(err error) Failure {
	if err == nil {
		return FailureOther
	}
	if errors.Is(err, ErrNotAllowed) {
		return FailureNotAllowed
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return FailureOther
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsNotFound {
			return FailureHostUnreachable
		}
		return FailureOther
	}

	if f, ok := classifyErrno(err); ok {
		return f
	}
	return FailureOther
}
